package enums

import "fmt"

// PaymentMethod identifies how a payment is settled.
type PaymentMethod string

const (
	PaymentMethodChapa  PaymentMethod = "chapa"
	PaymentMethodMpesa  PaymentMethod = "mpesa"
	PaymentMethodWallet PaymentMethod = "wallet"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodChapa,
	PaymentMethodMpesa,
	PaymentMethodWallet,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// UsesGateway reports whether the method settles through the external gateway.
func (p PaymentMethod) UsesGateway() bool {
	return p == PaymentMethodChapa || p == PaymentMethodMpesa
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
