package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/shopvana/shopvana-backend/pkg/enums"
)

// OrderItem belongs to exactly one order and mirrors the order's status.
// The product reference is protected: products cannot be deleted while
// order items point at them.
type OrderItem struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID    uuid.UUID         `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_order_items_order_product"`
	ProductID  uuid.UUID         `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_order_items_order_product"`
	Quantity   int               `gorm:"column:quantity;not null"`
	ItemStatus enums.OrderStatus `gorm:"column:item_status;type:text;not null;default:'pending'"`
	Product    *Product          `gorm:"foreignKey:ProductID;constraint:OnDelete:RESTRICT"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
