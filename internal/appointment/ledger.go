package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/Leganyst/calendar-core/internal/apperror"
	"github.com/Leganyst/calendar-core/internal/calendar"
	"github.com/Leganyst/calendar-core/internal/events"
	"github.com/Leganyst/calendar-core/internal/model"
	"github.com/Leganyst/calendar-core/internal/repository"
)

const instrumentation = "github.com/Leganyst/calendar-core/internal/appointment"

type CreateRequest struct {
	BusinessID uuid.UUID
	ProviderID uuid.UUID
	CustomerID *uuid.UUID
	ServiceID  *uuid.UUID
	Start      time.Time
	End        time.Time
	Notes      string
}

// UpdateRequest: нулевые значения оставляют поле как есть.
type UpdateRequest struct {
	BusinessID    uuid.UUID
	AppointmentID uuid.UUID
	ProviderID    uuid.UUID
	CustomerID    *uuid.UUID
	ServiceID     *uuid.UUID
	Start         time.Time
	End           time.Time
	Status        string
	Notes         *string
}

// Ledger: единственная точка изменения записей.
type Ledger struct {
	store     repository.Store
	publisher events.Publisher
	log       *slog.Logger
	strict    bool

	tracer    trace.Tracer
	created   metric.Int64Counter
	conflicts metric.Int64Counter
}

type Option func(*Ledger)

func WithPublisher(p events.Publisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

func WithLogger(log *slog.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// WithStrictTransitions включает таблицу допустимых переходов статуса.
func WithStrictTransitions(strict bool) Option {
	return func(l *Ledger) { l.strict = strict }
}

func NewLedger(store repository.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:     store,
		publisher: events.Nop(),
		log:       slog.Default(),
		tracer:    otel.Tracer(instrumentation),
	}
	for _, opt := range opts {
		opt(l)
	}

	meter := otel.Meter(instrumentation)
	l.created, _ = meter.Int64Counter("calendar.appointments.created",
		metric.WithDescription("Appointments booked"))
	l.conflicts, _ = meter.Int64Counter("calendar.appointments.conflicts",
		metric.WithDescription("Bookings rejected because of an overlap"))
	return l
}

func (l *Ledger) Create(ctx context.Context, req CreateRequest) (_ *model.Appointment, err error) {
	ctx, span := l.tracer.Start(ctx, "appointment.Create", trace.WithAttributes(
		attribute.String("business.id", req.BusinessID.String()),
		attribute.String("provider.id", req.ProviderID.String()),
	))
	defer func() { endSpan(span, err) }()

	if req.BusinessID == uuid.Nil {
		return nil, apperror.Validation("business_id is required")
	}
	window, err := interval(req.Start, req.End)
	if err != nil {
		return nil, err
	}

	appt := &model.Appointment{
		BusinessID: req.BusinessID,
		ProviderID: req.ProviderID,
		CustomerID: req.CustomerID,
		ServiceID:  req.ServiceID,
		StartAt:    window.Start,
		EndAt:      window.End,
		Status:     model.AppointmentStatusPending,
		Notes:      req.Notes,
	}

	var ev model.Event
	err = l.store.Transaction(ctx, func(tx repository.Tx) error {
		if err := l.checkReferences(ctx, tx, appt); err != nil {
			return err
		}
		if err := tx.LockProvider(ctx, appt.ProviderID); err != nil {
			return fmt.Errorf("lock provider: %w", err)
		}
		if err := l.ensureFree(ctx, tx, appt.ProviderID, window, nil); err != nil {
			return err
		}
		if err := tx.Appointments().Create(ctx, appt); err != nil {
			return storeErr("create appointment", err)
		}
		recorded, err := recordEvent(ctx, tx, model.EventTypeAppointmentCreated, appt)
		ev = recorded
		return err
	})
	if err != nil {
		l.countConflict(ctx, err)
		return nil, err
	}

	l.created.Add(ctx, 1)
	l.log.InfoContext(ctx, "appointment created",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("provider_id", appt.ProviderID.String()),
		slog.Time("start_at", appt.StartAt),
	)
	l.publish(ctx, ev)
	return appt, nil
}

func (l *Ledger) Update(ctx context.Context, req UpdateRequest) (_ *model.Appointment, err error) {
	ctx, span := l.tracer.Start(ctx, "appointment.Update", trace.WithAttributes(
		attribute.String("business.id", req.BusinessID.String()),
		attribute.String("appointment.id", req.AppointmentID.String()),
	))
	defer func() { endSpan(span, err) }()

	var (
		appt *model.Appointment
		ev   model.Event
	)
	err = l.store.Transaction(ctx, func(tx repository.Tx) error {
		current, err := tx.Appointments().GetByID(ctx, req.BusinessID, req.AppointmentID)
		if err != nil {
			return storeErr("load appointment", err)
		}
		next := *current

		if req.ProviderID != uuid.Nil {
			next.ProviderID = req.ProviderID
		}
		if req.CustomerID != nil {
			next.CustomerID = req.CustomerID
		}
		if req.ServiceID != nil {
			next.ServiceID = req.ServiceID
		}
		if req.Notes != nil {
			next.Notes = *req.Notes
		}
		start, end := current.StartAt, current.EndAt
		if !req.Start.IsZero() {
			start = req.Start
		}
		if !req.End.IsZero() {
			end = req.End
		}
		window, err := interval(start, end)
		if err != nil {
			return err
		}
		next.StartAt, next.EndAt = window.Start, window.End

		if req.Status != "" {
			status, err := model.ParseAppointmentStatus(req.Status)
			if err != nil {
				return apperror.Validation(err.Error())
			}
			if l.strict && !current.Status.CanTransitionTo(status) {
				return apperror.Validation(fmt.Sprintf("status transition %s -> %s is not allowed", current.Status, status))
			}
			next.Status = status
		}

		if err := l.checkReferences(ctx, tx, &next); err != nil {
			return err
		}
		if err := tx.LockProvider(ctx, next.ProviderID); err != nil {
			return fmt.Errorf("lock provider: %w", err)
		}
		if err := l.ensureFree(ctx, tx, next.ProviderID, window, &next.ID); err != nil {
			return err
		}
		if err := tx.Appointments().Update(ctx, &next); err != nil {
			return storeErr("update appointment", err)
		}

		appt = &next
		ev, err = recordEvent(ctx, tx, model.EventTypeAppointmentUpdated, appt)
		return err
	})
	if err != nil {
		l.countConflict(ctx, err)
		return nil, err
	}

	l.log.InfoContext(ctx, "appointment updated",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("status", string(appt.Status)),
	)
	l.publish(ctx, ev)
	return appt, nil
}

// SoftDelete помечает запись удалённой. Строка остаётся в таблице.
func (l *Ledger) SoftDelete(ctx context.Context, businessID, appointmentID uuid.UUID) (err error) {
	ctx, span := l.tracer.Start(ctx, "appointment.SoftDelete", trace.WithAttributes(
		attribute.String("business.id", businessID.String()),
		attribute.String("appointment.id", appointmentID.String()),
	))
	defer func() { endSpan(span, err) }()

	var ev model.Event
	err = l.store.Transaction(ctx, func(tx repository.Tx) error {
		appt, err := tx.Appointments().GetByID(ctx, businessID, appointmentID)
		if err != nil {
			return storeErr("load appointment", err)
		}
		if err := tx.Appointments().SoftDelete(ctx, businessID, appointmentID); err != nil {
			return storeErr("delete appointment", err)
		}
		ev, err = recordEvent(ctx, tx, model.EventTypeAppointmentDeleted, appt)
		return err
	})
	if err != nil {
		return err
	}

	l.log.InfoContext(ctx, "appointment deleted", slog.String("appointment_id", appointmentID.String()))
	l.publish(ctx, ev)
	return nil
}

func (l *Ledger) Get(ctx context.Context, businessID, appointmentID uuid.UUID) (*model.Appointment, error) {
	appt, err := l.store.Appointments().GetByID(ctx, businessID, appointmentID)
	if err != nil {
		return nil, storeErr("load appointment", err)
	}
	return appt, nil
}

// ListByDateRange: живые записи бизнеса с началом в [from, to], по возрастанию начала.
func (l *Ledger) ListByDateRange(ctx context.Context, businessID uuid.UUID, from, to time.Time) ([]model.Appointment, error) {
	if from.IsZero() || to.IsZero() {
		return nil, apperror.BadRequest("from and to are required")
	}
	from, to = calendar.WallClock(from), calendar.WallClock(to)
	if to.Before(from) {
		return nil, apperror.BadRequest("to must not be before from")
	}
	appts, err := l.store.Appointments().ListByBusinessAndRange(ctx, businessID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// RecentEvents: журнал изменений бизнеса, новые события первыми.
func (l *Ledger) RecentEvents(ctx context.Context, businessID uuid.UUID, limit int) ([]model.Event, error) {
	if limit < 0 {
		return nil, apperror.BadRequest("limit must not be negative")
	}
	events, err := l.store.Events().ListByBusiness(ctx, businessID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// checkReferences проверяет провайдера, клиента и услугу на принадлежность бизнесу.
func (l *Ledger) checkReferences(ctx context.Context, tx repository.Tx, appt *model.Appointment) error {
	_, err := calendar.ValidateProvider(ctx, repository.ProviderDirectory{Repo: tx.Providers()}, appt.BusinessID, appt.ProviderID)
	switch {
	case err == nil:
	case errors.Is(err, calendar.ErrInvalidProviderID):
		return apperror.Validation("provider_id is required")
	case errors.Is(err, calendar.ErrProviderNotFound):
		return apperror.NotFound("provider")
	case errors.Is(err, calendar.ErrProviderInactive):
		return apperror.Validation("provider is inactive")
	default:
		return fmt.Errorf("load provider: %w", err)
	}

	if appt.CustomerID != nil {
		c, err := tx.Customers().GetByID(ctx, *appt.CustomerID)
		if err != nil && !repository.IsNotFound(err) {
			return fmt.Errorf("load customer: %w", err)
		}
		if c == nil || c.BusinessID != appt.BusinessID {
			return apperror.NotFound("customer")
		}
	}
	if appt.ServiceID != nil {
		s, err := tx.Services().GetByID(ctx, *appt.ServiceID)
		if err != nil && !repository.IsNotFound(err) {
			return fmt.Errorf("load service: %w", err)
		}
		if s == nil || s.BusinessID != appt.BusinessID {
			return apperror.NotFound("service")
		}
	}
	return nil
}

func (l *Ledger) ensureFree(ctx context.Context, tx repository.Tx, providerID uuid.UUID, window calendar.TimeRange, excludeID *uuid.UUID) error {
	busy, err := NewConflictChecker(tx.Appointments()).HasConflict(ctx, providerID, window, excludeID)
	if err != nil {
		return fmt.Errorf("check conflicts: %w", err)
	}
	if busy {
		return apperror.Conflict("provider already has an appointment in this interval")
	}
	return nil
}

func (l *Ledger) countConflict(ctx context.Context, err error) {
	if errors.Is(err, apperror.ErrConflict) {
		l.conflicts.Add(ctx, 1)
	}
}

func (l *Ledger) publish(ctx context.Context, ev model.Event) {
	if err := l.publisher.Publish(ctx, ev); err != nil {
		l.log.WarnContext(ctx, "publish appointment event",
			slog.String("event_id", ev.ID.String()),
			slog.Any("err", err),
		)
	}
}

// interval приводит границы к настенному времени и проверяет, что конец позже начала.
func interval(start, end time.Time) (calendar.TimeRange, error) {
	r, err := calendar.NewTimeRange(calendar.WallClock(start), calendar.WallClock(end))
	if err != nil {
		return calendar.TimeRange{}, apperror.Validation("end must be after start")
	}
	return r, nil
}

// storeErr переводит ошибки хранилища в ожидаемые результаты там, где это возможно.
func storeErr(op string, err error) error {
	switch {
	case repository.IsNotFound(err):
		return apperror.NotFound("appointment")
	case repository.IsExclusionViolation(err):
		return apperror.Wrap(apperror.KindConflict, "provider already has an appointment in this interval", err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func recordEvent(ctx context.Context, tx repository.Tx, typ model.EventType, appt *model.Appointment) (model.Event, error) {
	details, err := json.Marshal(map[string]any{
		"start_at": appt.StartAt,
		"end_at":   appt.EndAt,
		"status":   appt.Status,
	})
	if err != nil {
		return model.Event{}, fmt.Errorf("encode event details: %w", err)
	}
	providerID, appointmentID := appt.ProviderID, appt.ID
	ev := model.Event{
		EventType:     typ,
		BusinessID:    appt.BusinessID,
		ProviderID:    &providerID,
		AppointmentID: &appointmentID,
		Details:       datatypes.JSON(details),
	}
	if err := tx.Events().Create(ctx, &ev); err != nil {
		return model.Event{}, fmt.Errorf("record event: %w", err)
	}
	return ev, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		// ожидаемые исходы не помечаем как ошибку трассы
		if apperror.KindOf(err) == "" {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("outcome", string(apperror.KindOf(err))))
		}
	}
	span.End()
}
