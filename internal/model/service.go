package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// services: позиция каталога; ядру нужны только id и название.
type Service struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	BusinessID uuid.UUID `gorm:"type:uuid;not null;index"`

	Name string `gorm:"type:varchar(255);not null"`

	// В минутах, может быть nil, если услуга не фиксирована по времени.
	DefaultDurationMin *int64 `gorm:"type:bigint"`

	IsActive bool `gorm:"not null;default:true;index"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (s *Service) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
