package schedule

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Leganyst/calendar-core/internal/apperror"
	"github.com/Leganyst/calendar-core/internal/db/dbtest"
	"github.com/Leganyst/calendar-core/internal/logging"
	"github.com/Leganyst/calendar-core/internal/model"
	"github.com/Leganyst/calendar-core/internal/repository"
)

func entry(wd time.Weekday, sh, sm, eh, em int, from time.Time, until *time.Time) model.ScheduleEntry {
	e := model.ScheduleEntry{
		ID:        uuid.New(),
		Weekday:   int(wd),
		StartTime: datatypes.NewTime(sh, sm, 0, 0),
		EndTime:   datatypes.NewTime(eh, em, 0, 0),
		ValidFrom: datatypes.Date(from),
	}
	if until != nil {
		u := datatypes.Date(*until)
		e.ValidUntil = &u
	}
	return e
}

func TestScheduledMinutes_SplitShiftsAddUp(t *testing.T) {
	entries := []model.ScheduleEntry{
		entry(time.Monday, 9, 0, 12, 0, monday, nil),
		entry(time.Monday, 13, 0, 17, 30, monday, nil),
		entry(time.Tuesday, 9, 0, 17, 0, monday, nil),
	}

	if got := ScheduledMinutes(entries, monday); got != 180+270 {
		t.Fatalf("monday minutes = %d, want 450", got)
	}
	if got := ScheduledMinutes(entries, monday.AddDate(0, 0, 1)); got != 480 {
		t.Fatalf("tuesday minutes = %d, want 480", got)
	}
	if got := ScheduledMinutes(entries, monday.AddDate(0, 0, 2)); got != 0 {
		t.Fatalf("wednesday minutes = %d, want 0", got)
	}
}

func TestScheduledMinutes_ValidityWindow(t *testing.T) {
	closed := monday.AddDate(0, 0, 6) // воскресенье 12.01
	entries := []model.ScheduleEntry{
		entry(time.Monday, 9, 0, 17, 0, monday.AddDate(0, 0, -7), &closed),
		entry(time.Monday, 10, 0, 14, 0, monday.AddDate(0, 0, 7), nil),
	}

	if got := ScheduledMinutes(entries, monday); got != 480 {
		t.Fatalf("old version minutes = %d, want 480", got)
	}
	if got := ScheduledMinutes(entries, monday.AddDate(0, 0, 7)); got != 240 {
		t.Fatalf("new version minutes = %d, want 240", got)
	}
	if got := ScheduledMinutes(entries, monday.AddDate(0, 0, -14)); got != 0 {
		t.Fatalf("before any version minutes = %d, want 0", got)
	}
}

func TestScheduledMinutes_DeletedIgnored(t *testing.T) {
	e := entry(time.Monday, 9, 0, 17, 0, monday, nil)
	e.IsDeleted = true

	if got := ScheduledMinutes([]model.ScheduleEntry{e}, monday); got != 0 {
		t.Fatalf("minutes = %d, want 0", got)
	}
}

func TestActiveEntries_FiltersByRangeAndWarnsOnOverlap(t *testing.T) {
	db := dbtest.Open(t)
	businessID := uuid.New()
	p := dbtest.Provider(t, db, businessID, "Anna")

	dbtest.Shift(t, db, p.ID, time.Monday, "09:00", "17:00", monday)
	dbtest.Shift(t, db, p.ID, time.Monday, "12:00", "18:00", monday) // забытая старая версия
	dbtest.Shift(t, db, p.ID, time.Friday, "09:00", "17:00", monday)
	dbtest.Shift(t, db, p.ID, time.Tuesday, "09:00", "17:00", monday.AddDate(0, 1, 0))

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	reg := NewRegistry(repository.NewGormScheduleRepository(db), repository.NewGormProviderRepository(db), log)

	// только понедельник 06.01 и вторник 07.01
	active, err := reg.ActiveEntries(context.Background(), []uuid.UUID{p.ID}, monday, monday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("ActiveEntries: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("active = %d, want 2 monday entries", len(active))
	}
	if got := ScheduledMinutes(active, monday); got != 480+360 {
		t.Fatalf("minutes = %d, want additive 840", got)
	}
	if !strings.Contains(buf.String(), "overlapping schedule entries") {
		t.Fatalf("expected overlap warning, log: %s", buf.String())
	}
}

func TestActiveEntries_NoProviders(t *testing.T) {
	db := dbtest.Open(t)
	reg := NewRegistry(repository.NewGormScheduleRepository(db), repository.NewGormProviderRepository(db), logging.Nop())

	active, err := reg.ActiveEntries(context.Background(), nil, monday, monday)
	if err != nil {
		t.Fatalf("ActiveEntries: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("active = %d, want 0", len(active))
	}
}

func TestProviderSchedule(t *testing.T) {
	db := dbtest.Open(t)
	businessID := uuid.New()
	p := dbtest.Provider(t, db, businessID, "Anna")
	dbtest.Shift(t, db, p.ID, time.Wednesday, "10:00", "16:00", monday)

	reg := NewRegistry(repository.NewGormScheduleRepository(db), repository.NewGormProviderRepository(db), logging.Nop())

	entries, err := reg.ProviderSchedule(context.Background(), businessID, p.ID)
	if err != nil {
		t.Fatalf("ProviderSchedule: %v", err)
	}
	if len(entries) != 1 || entries[0].Weekday != int(time.Wednesday) {
		t.Fatalf("entries = %+v", entries)
	}

	_, err = reg.ProviderSchedule(context.Background(), uuid.New(), p.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("expected NotFoundError for another business, got %v", err)
	}
}
