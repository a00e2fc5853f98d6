package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Тип события аудита.
type EventType string

const (
	EventTypeAppointmentCreated EventType = "appointment_created"
	EventTypeAppointmentUpdated EventType = "appointment_updated"
	EventTypeAppointmentDeleted EventType = "appointment_deleted"
	EventTypeScheduleReplaced   EventType = "schedule_replaced"
	EventTypeScheduleSeeded     EventType = "schedule_seeded"
)

// events: события аудита. Пишутся в той же транзакции, что и изменение.
type Event struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	EventType EventType `gorm:"type:varchar(64);not null;index"`

	CreatedAt time.Time `gorm:"not null;index"`

	BusinessID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	ProviderID    *uuid.UUID `gorm:"type:uuid;index"`
	AppointmentID *uuid.UUID `gorm:"type:uuid;index"`

	Details datatypes.JSON
}

func (e *Event) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
