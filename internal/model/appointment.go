package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCanceled  AppointmentStatus = "canceled"
	AppointmentStatusAbsent    AppointmentStatus = "absent"
)

var appointmentStatuses = []AppointmentStatus{
	AppointmentStatusPending,
	AppointmentStatusConfirmed,
	AppointmentStatusCompleted,
	AppointmentStatusCanceled,
	AppointmentStatusAbsent,
}

// ParseAppointmentStatus принимает статус в любом регистре.
func ParseAppointmentStatus(s string) (AppointmentStatus, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "cancelled" {
		s = string(AppointmentStatusCanceled)
	}
	for _, st := range appointmentStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown appointment status %q", s)
}

// Разрешённые переходы для строгого режима. Completed, Canceled и Absent терминальные.
var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusPending:   {AppointmentStatusConfirmed, AppointmentStatusCanceled},
	AppointmentStatusConfirmed: {AppointmentStatusCompleted, AppointmentStatusCanceled, AppointmentStatusAbsent},
}

// CanTransitionTo сообщает, допустим ли переход в строгом режиме.
// Переход в тот же статус всегда допустим.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range appointmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// appointments
type Appointment struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	BusinessID uuid.UUID  `gorm:"type:uuid;not null;index:idx_appointments_business_start,priority:1"`
	ProviderID uuid.UUID  `gorm:"type:uuid;not null;index:idx_appointments_provider_start,priority:1"`
	CustomerID *uuid.UUID `gorm:"type:uuid;index"`
	ServiceID  *uuid.UUID `gorm:"type:uuid;index"`

	// Локальное время бизнеса без зоны.
	StartAt time.Time `gorm:"type:timestamp;not null;index:idx_appointments_business_start,priority:2;index:idx_appointments_provider_start,priority:2"`
	EndAt   time.Time `gorm:"type:timestamp;not null"`

	Status AppointmentStatus `gorm:"type:varchar(32);not null;default:'pending';index"`
	Notes  string            `gorm:"type:text"`

	// Мягкое удаление. Фильтр применяется явно в каждом запросе репозитория.
	IsDeleted bool `gorm:"not null;default:false;index"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Provider *Provider `gorm:"foreignKey:ProviderID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Customer *Customer `gorm:"foreignKey:CustomerID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
	Service  *Service  `gorm:"foreignKey:ServiceID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

func (a *Appointment) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = AppointmentStatusPending
	}
	return nil
}
