package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Leganyst/calendar-core/internal/apperror"
	"github.com/Leganyst/calendar-core/internal/db/dbtest"
	"github.com/Leganyst/calendar-core/internal/logging"
	"github.com/Leganyst/calendar-core/internal/model"
	"github.com/Leganyst/calendar-core/internal/repository"
)

// 2025-01-06: понедельник.
var monday = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

func newReplacer(db *gorm.DB) *Replacer {
	return NewReplacer(repository.NewGormStore(db),
		WithLogger(logging.Nop()),
		WithClock(func() time.Time { return monday.Add(10 * time.Hour) }),
	)
}

func liveEntries(t *testing.T, db *gorm.DB, providerID uuid.UUID) []model.ScheduleEntry {
	t.Helper()
	entries, err := repository.NewGormScheduleRepository(db).ListByProvider(context.Background(), providerID)
	if err != nil {
		t.Fatalf("ListByProvider: %v", err)
	}
	return entries
}

func countWeekday(entries []model.ScheduleEntry, wd time.Weekday) int {
	n := 0
	for _, e := range entries {
		if e.Weekday == int(wd) {
			n++
		}
	}
	return n
}

func TestReplace_OnlyTouchesGivenWeekdays(t *testing.T) {
	db := dbtest.Open(t)
	businessID := uuid.New()
	p := dbtest.Provider(t, db, businessID, "Anna")
	r := newReplacer(db)

	if _, err := r.SeedDefault(context.Background(), businessID, p.ID); err != nil {
		t.Fatalf("SeedDefault: %v", err)
	}

	_, err := r.Replace(context.Background(), ReplaceRequest{
		BusinessID: businessID,
		ProviderID: p.ID,
		Entries: []EntryInput{
			{Weekday: int(time.Monday), Start: "08:00", End: "12:00"},
			{Weekday: int(time.Monday), Start: "13:00", End: "18:00"},
		},
	})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}

	entries := liveEntries(t, db, p.ID)
	if got := countWeekday(entries, time.Monday); got != 2 {
		t.Fatalf("monday entries = %d, want 2", got)
	}
	for _, wd := range []time.Weekday{time.Tuesday, time.Wednesday, time.Thursday, time.Friday} {
		if got := countWeekday(entries, wd); got != 1 {
			t.Fatalf("%s entries = %d, want 1", wd, got)
		}
	}

	// старые записи понедельника помечены, а не удалены
	var deleted int64
	db.Model(&model.ScheduleEntry{}).Where("provider_id = ? AND is_deleted = ?", p.ID, true).Count(&deleted)
	if deleted != 1 {
		t.Fatalf("soft-deleted entries = %d, want 1", deleted)
	}
}

func TestReplace_InvalidEntryHasNoEffect(t *testing.T) {
	db := dbtest.Open(t)
	businessID := uuid.New()
	p := dbtest.Provider(t, db, businessID, "Anna")
	r := newReplacer(db)

	if _, err := r.SeedDefault(context.Background(), businessID, p.ID); err != nil {
		t.Fatalf("SeedDefault: %v", err)
	}

	_, err := r.Replace(context.Background(), ReplaceRequest{
		BusinessID: businessID,
		ProviderID: p.ID,
		Entries: []EntryInput{
			{Weekday: int(time.Monday), Start: "08:00", End: "12:00"},
			{Weekday: int(time.Tuesday), Start: "12:00", End: "12:00"},
		},
	})
	if !errors.Is(err, apperror.ErrBadRequest) {
		t.Fatalf("expected BadRequestError, got %v", err)
	}

	entries := liveEntries(t, db, p.ID)
	if len(entries) != 5 {
		t.Fatalf("entries = %d, want untouched 5", len(entries))
	}
	for _, e := range entries {
		if e.Weekday == int(time.Monday) && e.StartTime != datatypes.NewTime(9, 0, 0, 0) {
			t.Fatalf("unexpected monday entry %+v", e)
		}
	}
}

func TestReplace_RejectsMalformedInput(t *testing.T) {
	db := dbtest.Open(t)
	businessID := uuid.New()
	p := dbtest.Provider(t, db, businessID, "Anna")
	r := newReplacer(db)

	cases := map[string][]EntryInput{
		"empty":       nil,
		"weekday":     {{Weekday: 7, Start: "09:00", End: "10:00"}},
		"bad clock":   {{Weekday: 1, Start: "9am", End: "10:00"}},
		"past 24:00":  {{Weekday: 1, Start: "22:00", End: "24:30"}},
		"end < start": {{Weekday: 1, Start: "18:00", End: "09:00"}},
	}
	for name, in := range cases {
		_, err := r.Replace(context.Background(), ReplaceRequest{BusinessID: businessID, ProviderID: p.ID, Entries: in})
		if !errors.Is(err, apperror.ErrBadRequest) {
			t.Fatalf("%s: expected BadRequestError, got %v", name, err)
		}
	}
}

func TestReplace_AllowsEndOfDay(t *testing.T) {
	db := dbtest.Open(t)
	businessID := uuid.New()
	p := dbtest.Provider(t, db, businessID, "Anna")

	entries, err := newReplacer(db).Replace(context.Background(), ReplaceRequest{
		BusinessID: businessID,
		ProviderID: p.ID,
		Entries:    []EntryInput{{Weekday: 6, Start: "20:00", End: "24:00"}},
	})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if entries[0].Minutes() != 240 {
		t.Fatalf("minutes = %d, want 240", entries[0].Minutes())
	}
}

func TestReplace_ForeignProviderNotFound(t *testing.T) {
	db := dbtest.Open(t)
	p := dbtest.Provider(t, db, uuid.New(), "Anna")

	_, err := newReplacer(db).Replace(context.Background(), ReplaceRequest{
		BusinessID: uuid.New(),
		ProviderID: p.ID,
		Entries:    []EntryInput{{Weekday: 1, Start: "09:00", End: "17:00"}},
	})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestReplace_ValidFromDefaultsToToday(t *testing.T) {
	db := dbtest.Open(t)
	businessID := uuid.New()
	p := dbtest.Provider(t, db, businessID, "Anna")

	entries, err := newReplacer(db).Replace(context.Background(), ReplaceRequest{
		BusinessID: businessID,
		ProviderID: p.ID,
		Entries:    []EntryInput{{Weekday: 1, Start: "09:00", End: "17:00"}},
	})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if !time.Time(entries[0].ValidFrom).Equal(monday) {
		t.Fatalf("valid_from = %v, want %v", time.Time(entries[0].ValidFrom), monday)
	}
	if entries[0].ValidUntil != nil {
		t.Fatalf("expected open-ended entry")
	}
}

func TestSeedDefault_OnlyOnce(t *testing.T) {
	db := dbtest.Open(t)
	businessID := uuid.New()
	p := dbtest.Provider(t, db, businessID, "Anna")
	r := newReplacer(db)

	first, err := r.SeedDefault(context.Background(), businessID, p.ID)
	if err != nil {
		t.Fatalf("SeedDefault: %v", err)
	}
	if len(first) != 5 {
		t.Fatalf("seeded = %d, want 5", len(first))
	}

	second, err := r.SeedDefault(context.Background(), businessID, p.ID)
	if err != nil {
		t.Fatalf("second SeedDefault: %v", err)
	}
	if second != nil {
		t.Fatalf("second seed must be a no-op")
	}

	var events []model.Event
	db.Where("event_type = ?", model.EventTypeScheduleSeeded).Find(&events)
	if len(events) != 1 {
		t.Fatalf("seed events = %d, want 1", len(events))
	}
}
