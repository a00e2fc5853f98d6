package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Provider: исполнитель услуг (мастер, консультант и т.п.) внутри бизнеса.
type Provider struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	// Владелец-бизнес (тенант).
	BusinessID uuid.UUID `gorm:"type:uuid;not null;index"`

	// Имя/отображаемое название в интерфейсе.
	DisplayName string `gorm:"type:varchar(255);not null"`

	IsActive bool `gorm:"not null;default:true;index"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (p *Provider) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
