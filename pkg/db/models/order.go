package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopvana/shopvana-backend/pkg/enums"
)

// Order is created only by the checkout flow. TotalAmount is maintained
// incrementally as items change and every status change mirrors onto the
// owned items in the same transaction.
type Order struct {
	ID                     uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID                 uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Status                 enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending';index"`
	TotalAmount            decimal.Decimal   `gorm:"column:total_amount;type:numeric(10,2);not null"`
	ShippingAddress        string            `gorm:"column:shipping_address;not null"`
	ReadyForPayment        bool              `gorm:"column:ready_for_payment;not null;default:false"`
	PaymentWindowExpiresAt *time.Time        `gorm:"column:payment_window_expires_at"`
	Items                  []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	OrderedAt              time.Time         `gorm:"column:ordered_at;autoCreateTime;index"`
	UpdatedAt              time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// PaymentWindowOpen reports whether manual payment creation is still allowed.
func (o Order) PaymentWindowOpen(now time.Time) bool {
	if !o.ReadyForPayment {
		return false
	}
	if o.PaymentWindowExpiresAt == nil {
		return false
	}
	return now.Before(*o.PaymentWindowExpiresAt)
}
