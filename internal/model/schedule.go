package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// schedule_entries: версия недельного расписания провайдера на один день недели.
// Несколько строк на один день недели это либо раздельные смены, либо
// последовательные версии с разными окнами действия.
type ScheduleEntry struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	ProviderID uuid.UUID `gorm:"type:uuid;not null;index:idx_schedule_entries_provider_weekday,priority:1"`

	// 0 = воскресенье ... 6 = суббота, как time.Weekday.
	Weekday int `gorm:"not null;index:idx_schedule_entries_provider_weekday,priority:2"`

	StartTime datatypes.Time `gorm:"not null"`
	EndTime   datatypes.Time `gorm:"not null"`

	// Чистые даты без времени, datatypes.Date. ValidUntil == nil означает "действует до сих пор".
	ValidFrom  datatypes.Date  `gorm:"not null"`
	ValidUntil *datatypes.Date

	IsDeleted bool `gorm:"not null;default:false;index"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Provider *Provider `gorm:"foreignKey:ProviderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (e *ScheduleEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// ActiveOn сообщает, действует ли запись в указанную календарную дату.
func (e ScheduleEntry) ActiveOn(date time.Time) bool {
	if e.IsDeleted || int(date.Weekday()) != e.Weekday {
		return false
	}
	day := dateKey(date)
	if dateKey(time.Time(e.ValidFrom)) > day {
		return false
	}
	if e.ValidUntil != nil && dateKey(time.Time(*e.ValidUntil)) < day {
		return false
	}
	return true
}

// Minutes: длительность смены в минутах.
func (e ScheduleEntry) Minutes() int {
	return int((time.Duration(e.EndTime) - time.Duration(e.StartTime)).Round(time.Minute) / time.Minute)
}

// dateKey сравнивает даты по календарю, не глядя на зону.
func dateKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}
