package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopvana/shopvana-backend/pkg/enums"
)

// Payment records one settlement attempt for an order. TxRef is the gateway
// idempotency key correlating initiate, callback and verify; Wallet holds
// any overpayment credited back to the payer.
type Payment struct {
	TransactionID     uuid.UUID           `gorm:"column:transaction_id;type:uuid;primaryKey"`
	OrderID           uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	UserID            uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	Amount            decimal.Decimal     `gorm:"column:amount;type:numeric(10,2);not null"`
	Currency          enums.Currency      `gorm:"column:currency;type:text;not null"`
	PaymentMethod     enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	Status            enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending';index"`
	Wallet            decimal.Decimal     `gorm:"column:wallet;type:numeric(10,2);not null;default:0"`
	TxRef             string              `gorm:"column:tx_ref;uniqueIndex;not null"`
	CheckoutRequestID *string             `gorm:"column:checkout_request_id;index"`
	ReceiptNumber     *string             `gorm:"column:receipt_number"`
	Order             *Order              `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
