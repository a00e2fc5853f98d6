package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// customers
type Customer struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	BusinessID uuid.UUID `gorm:"type:uuid;not null;index"`

	DisplayName  string `gorm:"type:varchar(255);not null"`
	ContactPhone string `gorm:"type:varchar(32)"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (c *Customer) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
