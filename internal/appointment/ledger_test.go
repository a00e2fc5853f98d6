package appointment

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/calendar-core/internal/apperror"
	"github.com/Leganyst/calendar-core/internal/db/dbtest"
	"github.com/Leganyst/calendar-core/internal/logging"
	"github.com/Leganyst/calendar-core/internal/model"
	"github.com/Leganyst/calendar-core/internal/repository"
)

type capturePublisher struct {
	events []model.Event
}

func (c *capturePublisher) Publish(_ context.Context, events ...model.Event) error {
	c.events = append(c.events, events...)
	return nil
}

type fixture struct {
	db         *gorm.DB
	ledger     *Ledger
	published  *capturePublisher
	businessID uuid.UUID
	provider   *model.Provider
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	pub := &capturePublisher{}
	businessID := uuid.New()
	opts = append([]Option{WithPublisher(pub), WithLogger(logging.Nop())}, opts...)
	return &fixture{
		db:         db,
		ledger:     NewLedger(repository.NewGormStore(db), opts...),
		published:  pub,
		businessID: businessID,
		provider:   dbtest.Provider(t, db, businessID, "Anna"),
	}
}

func (f *fixture) book(t *testing.T, startHour, endHour int) (*model.Appointment, error) {
	t.Helper()
	return f.ledger.Create(context.Background(), CreateRequest{
		BusinessID: f.businessID,
		ProviderID: f.provider.ID,
		Start:      dbtest.At(2025, 1, 6, startHour, 0),
		End:        dbtest.At(2025, 1, 6, endHour, 0),
	})
}

func TestLedger_Create_Pending(t *testing.T) {
	f := newFixture(t)

	appt, err := f.book(t, 9, 10)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if appt.Status != model.AppointmentStatusPending {
		t.Fatalf("status = %q, want pending", appt.Status)
	}
	if appt.ID == uuid.Nil {
		t.Fatalf("expected generated id")
	}
}

func TestLedger_Create_DoubleBookingConflicts(t *testing.T) {
	f := newFixture(t)

	if _, err := f.book(t, 9, 11); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	_, err := f.book(t, 10, 12)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}

	var count int64
	f.db.Model(&model.Appointment{}).Count(&count)
	if count != 1 {
		t.Fatalf("appointments = %d, want 1", count)
	}
}

func TestLedger_Create_TouchingIntervalsAllowed(t *testing.T) {
	f := newFixture(t)

	if _, err := f.book(t, 9, 10); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if _, err := f.book(t, 10, 11); err != nil {
		t.Fatalf("adjacent booking must not conflict: %v", err)
	}
}

func TestLedger_Create_OtherProviderNotAffected(t *testing.T) {
	f := newFixture(t)
	other := dbtest.Provider(t, f.db, f.businessID, "Boris")

	if _, err := f.book(t, 9, 10); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	_, err := f.ledger.Create(context.Background(), CreateRequest{
		BusinessID: f.businessID,
		ProviderID: other.ID,
		Start:      dbtest.At(2025, 1, 6, 9, 0),
		End:        dbtest.At(2025, 1, 6, 10, 0),
	})
	if err != nil {
		t.Fatalf("same slot with another provider: %v", err)
	}
}

func TestLedger_Create_InvalidRange(t *testing.T) {
	f := newFixture(t)

	_, err := f.book(t, 10, 10)
	if apperror.KindOf(err) != apperror.KindValidation {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestLedger_Create_ProviderOfAnotherBusiness(t *testing.T) {
	f := newFixture(t)
	foreign := dbtest.Provider(t, f.db, uuid.New(), "Foreign")

	_, err := f.ledger.Create(context.Background(), CreateRequest{
		BusinessID: f.businessID,
		ProviderID: foreign.ID,
		Start:      dbtest.At(2025, 1, 6, 9, 0),
		End:        dbtest.At(2025, 1, 6, 10, 0),
	})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestLedger_Create_InactiveProvider(t *testing.T) {
	f := newFixture(t)
	if err := f.db.Model(f.provider).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	_, err := f.book(t, 9, 10)
	if apperror.KindOf(err) != apperror.KindValidation {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestLedger_Create_RecordsAndPublishesEvent(t *testing.T) {
	f := newFixture(t)

	appt, err := f.book(t, 9, 10)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	var stored []model.Event
	if err := f.db.Find(&stored).Error; err != nil {
		t.Fatalf("load events: %v", err)
	}
	if len(stored) != 1 || stored[0].EventType != model.EventTypeAppointmentCreated {
		t.Fatalf("stored events = %+v", stored)
	}
	if len(f.published.events) != 1 {
		t.Fatalf("published = %d, want 1", len(f.published.events))
	}
	if *f.published.events[0].AppointmentID != appt.ID {
		t.Fatalf("published event for another appointment")
	}
}

func TestLedger_Update_ExcludesItself(t *testing.T) {
	f := newFixture(t)

	appt, err := f.book(t, 9, 11)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := f.ledger.Update(context.Background(), UpdateRequest{
		BusinessID:    f.businessID,
		AppointmentID: appt.ID,
		Start:         dbtest.At(2025, 1, 6, 10, 0),
		End:           dbtest.At(2025, 1, 6, 12, 0),
		Status:        "Confirmed",
	})
	if err != nil {
		t.Fatalf("reschedule over own interval: %v", err)
	}
	if updated.Status != model.AppointmentStatusConfirmed {
		t.Fatalf("status = %q", updated.Status)
	}

	got, err := f.ledger.Get(context.Background(), f.businessID, appt.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.StartAt.Equal(dbtest.At(2025, 1, 6, 10, 0)) {
		t.Fatalf("start_at = %v", got.StartAt)
	}
}

func TestLedger_Update_ConflictWithAnother(t *testing.T) {
	f := newFixture(t)

	if _, err := f.book(t, 9, 10); err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := f.book(t, 11, 12)
	if err != nil {
		t.Fatalf("second: %v", err)
	}

	_, err = f.ledger.Update(context.Background(), UpdateRequest{
		BusinessID:    f.businessID,
		AppointmentID: second.ID,
		Start:         dbtest.At(2025, 1, 6, 9, 30),
		End:           dbtest.At(2025, 1, 6, 10, 30),
	})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestLedger_Update_AnotherBusinessNotFound(t *testing.T) {
	f := newFixture(t)

	appt, err := f.book(t, 9, 10)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = f.ledger.Update(context.Background(), UpdateRequest{
		BusinessID:    uuid.New(),
		AppointmentID: appt.ID,
		Status:        "confirmed",
	})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestLedger_Update_UnknownStatus(t *testing.T) {
	f := newFixture(t)

	appt, err := f.book(t, 9, 10)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = f.ledger.Update(context.Background(), UpdateRequest{
		BusinessID:    f.businessID,
		AppointmentID: appt.ID,
		Status:        "archived",
	})
	if apperror.KindOf(err) != apperror.KindValidation {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestLedger_Update_PermissiveTransitionsByDefault(t *testing.T) {
	f := newFixture(t)

	appt, err := f.book(t, 9, 10)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// pending -> completed без подтверждения
	if _, err := f.ledger.Update(context.Background(), UpdateRequest{
		BusinessID:    f.businessID,
		AppointmentID: appt.ID,
		Status:        "completed",
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func TestLedger_Update_StrictTransitions(t *testing.T) {
	f := newFixture(t, WithStrictTransitions(true))

	appt, err := f.book(t, 9, 10)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = f.ledger.Update(context.Background(), UpdateRequest{
		BusinessID:    f.businessID,
		AppointmentID: appt.ID,
		Status:        "completed",
	})
	if apperror.KindOf(err) != apperror.KindValidation {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	if _, err := f.ledger.Update(context.Background(), UpdateRequest{
		BusinessID:    f.businessID,
		AppointmentID: appt.ID,
		Status:        "confirmed",
	}); err != nil {
		t.Fatalf("pending -> confirmed: %v", err)
	}
}

func TestLedger_SoftDelete(t *testing.T) {
	f := newFixture(t)

	appt, err := f.book(t, 9, 10)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.ledger.SoftDelete(context.Background(), f.businessID, appt.ID); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	// строка осталась
	var row model.Appointment
	if err := f.db.First(&row, "id = ?", appt.ID).Error; err != nil {
		t.Fatalf("row must be retained: %v", err)
	}
	if !row.IsDeleted {
		t.Fatalf("expected is_deleted")
	}

	if _, err := f.ledger.Get(context.Background(), f.businessID, appt.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("deleted appointment must be invisible, got %v", err)
	}
	if err := f.ledger.SoftDelete(context.Background(), f.businessID, appt.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("second delete: expected NotFoundError, got %v", err)
	}

	// освободившийся интервал снова доступен
	if _, err := f.book(t, 9, 10); err != nil {
		t.Fatalf("rebook freed interval: %v", err)
	}
}

func TestLedger_ListByDateRange(t *testing.T) {
	f := newFixture(t)

	for _, h := range []int{14, 9, 11} {
		if _, err := f.book(t, h, h+1); err != nil {
			t.Fatalf("book %d: %v", h, err)
		}
	}
	deleted, err := f.book(t, 16, 17)
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if err := f.ledger.SoftDelete(context.Background(), f.businessID, deleted.ID); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	list, err := f.ledger.ListByDateRange(context.Background(), f.businessID,
		dbtest.At(2025, 1, 6, 0, 0), dbtest.At(2025, 1, 6, 23, 59))
	if err != nil {
		t.Fatalf("ListByDateRange: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i].StartAt.Before(list[i-1].StartAt) {
			t.Fatalf("not ordered by start: %v before %v", list[i-1].StartAt, list[i].StartAt)
		}
	}

	other, err := f.ledger.ListByDateRange(context.Background(), uuid.New(),
		dbtest.At(2025, 1, 6, 0, 0), dbtest.At(2025, 1, 6, 23, 59))
	if err != nil {
		t.Fatalf("ListByDateRange: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("another business sees %d appointments", len(other))
	}
}
