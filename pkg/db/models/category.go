package models

import (
	"time"

	"github.com/google/uuid"
)

// Category groups products; categories may nest one level via ParentID.
type Category struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ParentID    *uuid.UUID `gorm:"column:parent_id;type:uuid"`
	Name        string     `gorm:"column:name;uniqueIndex;not null"`
	Description string     `gorm:"column:description"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
