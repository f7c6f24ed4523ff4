package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopvana/shopvana-backend/pkg/enums"
)

// User represents a storefront account. Authentication lives outside this
// service; the fields here are what orders, payments and notifications need.
type User struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Email         string          `gorm:"column:email;uniqueIndex;not null"`
	Username      string          `gorm:"column:username;uniqueIndex;not null"`
	FirstName     string          `gorm:"column:first_name"`
	LastName      string          `gorm:"column:last_name"`
	Role          enums.UserRole  `gorm:"column:role;type:text;not null;default:'customer'"`
	IsStaff       bool            `gorm:"column:is_staff;not null;default:false"`
	IsActive      bool            `gorm:"column:is_active;not null;default:true"`
	WalletBalance decimal.Decimal `gorm:"column:wallet_balance;type:numeric(10,2);not null;default:0"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// FullName returns the display name used in notification emails.
func (u User) FullName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Username
	}
	return name
}
