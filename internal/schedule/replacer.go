package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/Leganyst/calendar-core/internal/apperror"
	"github.com/Leganyst/calendar-core/internal/calendar"
	"github.com/Leganyst/calendar-core/internal/events"
	"github.com/Leganyst/calendar-core/internal/model"
	"github.com/Leganyst/calendar-core/internal/repository"
)

// EntryInput: одна смена в запросе массовой замены. Время в формате "HH:MM" или "HH:MM:SS".
type EntryInput struct {
	Weekday int
	Start   string
	End     string
}

type ReplaceRequest struct {
	BusinessID uuid.UUID
	ProviderID uuid.UUID
	Entries    []EntryInput
	// Нулевое значение: сегодня.
	ValidFrom time.Time
}

// Шаблон по умолчанию для нового провайдера: пн–пт 09:00–17:00.
var DefaultTemplate = []EntryInput{
	{Weekday: int(time.Monday), Start: "09:00", End: "17:00"},
	{Weekday: int(time.Tuesday), Start: "09:00", End: "17:00"},
	{Weekday: int(time.Wednesday), Start: "09:00", End: "17:00"},
	{Weekday: int(time.Thursday), Start: "09:00", End: "17:00"},
	{Weekday: int(time.Friday), Start: "09:00", End: "17:00"},
}

// Replacer заменяет расписание по дням недели целиком: затронутые дни стираются,
// остальные не трогаются.
type Replacer struct {
	store     repository.Store
	publisher events.Publisher
	log       *slog.Logger
	now       func() time.Time

	tracer       trace.Tracer
	replacements metric.Int64Counter
}

type ReplacerOption func(*Replacer)

func WithPublisher(p events.Publisher) ReplacerOption {
	return func(r *Replacer) { r.publisher = p }
}

func WithLogger(log *slog.Logger) ReplacerOption {
	return func(r *Replacer) { r.log = log }
}

func WithClock(now func() time.Time) ReplacerOption {
	return func(r *Replacer) { r.now = now }
}

func NewReplacer(store repository.Store, opts ...ReplacerOption) *Replacer {
	r := &Replacer{
		store:     store,
		publisher: events.Nop(),
		log:       slog.Default(),
		now:       time.Now,
		tracer:    otel.Tracer(instrumentation),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.replacements, _ = otel.Meter(instrumentation).Int64Counter("calendar.schedule.replacements",
		metric.WithDescription("Bulk schedule replacements"))
	return r
}

// Replace проверяет все смены до каких-либо изменений, затем в одной транзакции
// помечает удалёнными текущие записи затронутых дней и вставляет новые.
func (r *Replacer) Replace(ctx context.Context, req ReplaceRequest) (_ []model.ScheduleEntry, err error) {
	ctx, span := r.tracer.Start(ctx, "schedule.Replace", trace.WithAttributes(
		attribute.String("business.id", req.BusinessID.String()),
		attribute.String("provider.id", req.ProviderID.String()),
		attribute.Int("entries", len(req.Entries)),
	))
	defer func() {
		if err != nil && apperror.KindOf(err) == "" {
			span.RecordError(err)
		}
		span.End()
	}()

	validFrom := req.ValidFrom
	if validFrom.IsZero() {
		validFrom = r.now()
	}
	entries, weekdays, err := buildEntries(req.ProviderID, req.Entries, calendar.DateOnly(validFrom))
	if err != nil {
		return nil, err
	}

	var ev model.Event
	err = r.store.Transaction(ctx, func(tx repository.Tx) error {
		if err := checkProvider(ctx, tx, req.BusinessID, req.ProviderID); err != nil {
			return err
		}
		if err := tx.LockProvider(ctx, req.ProviderID); err != nil {
			return fmt.Errorf("lock provider: %w", err)
		}

		removed, err := tx.Schedules().SoftDeleteWeekdays(ctx, req.ProviderID, weekdays)
		if err != nil {
			return fmt.Errorf("wipe schedule: %w", err)
		}
		if err := tx.Schedules().CreateBatch(ctx, entries); err != nil {
			return fmt.Errorf("insert schedule: %w", err)
		}

		recorded, err := recordEvent(ctx, tx, model.EventTypeScheduleReplaced, req.BusinessID, req.ProviderID, map[string]any{
			"weekdays": weekdays,
			"removed":  removed,
			"inserted": len(entries),
		})
		ev = recorded
		return err
	})
	if err != nil {
		return nil, err
	}

	r.replacements.Add(ctx, 1)
	r.log.InfoContext(ctx, "schedule replaced",
		slog.String("provider_id", req.ProviderID.String()),
		slog.Any("weekdays", weekdays),
		slog.Int("entries", len(entries)),
	)
	r.publish(ctx, ev)
	return entries, nil
}

// SeedDefault ставит шаблон пн–пт 09:00–17:00, если у провайдера ещё нет записей.
// Возвращает nil, если расписание уже есть.
func (r *Replacer) SeedDefault(ctx context.Context, businessID, providerID uuid.UUID) ([]model.ScheduleEntry, error) {
	ctx, span := r.tracer.Start(ctx, "schedule.SeedDefault")
	defer span.End()

	entries, weekdays, err := buildEntries(providerID, DefaultTemplate, calendar.DateOnly(r.now()))
	if err != nil {
		return nil, err
	}

	var (
		seeded bool
		ev     model.Event
	)
	err = r.store.Transaction(ctx, func(tx repository.Tx) error {
		if err := checkProvider(ctx, tx, businessID, providerID); err != nil {
			return err
		}
		if err := tx.LockProvider(ctx, providerID); err != nil {
			return fmt.Errorf("lock provider: %w", err)
		}
		existing, err := tx.Schedules().CountByProvider(ctx, providerID)
		if err != nil {
			return fmt.Errorf("count schedule: %w", err)
		}
		if existing > 0 {
			return nil
		}
		if err := tx.Schedules().CreateBatch(ctx, entries); err != nil {
			return fmt.Errorf("insert schedule: %w", err)
		}
		seeded = true
		recorded, err := recordEvent(ctx, tx, model.EventTypeScheduleSeeded, businessID, providerID, map[string]any{
			"weekdays": weekdays,
		})
		ev = recorded
		return err
	})
	if err != nil || !seeded {
		return nil, err
	}

	r.log.InfoContext(ctx, "default schedule seeded", slog.String("provider_id", providerID.String()))
	r.publish(ctx, ev)
	return entries, nil
}

func (r *Replacer) publish(ctx context.Context, ev model.Event) {
	if err := r.publisher.Publish(ctx, ev); err != nil {
		r.log.WarnContext(ctx, "publish schedule event",
			slog.String("event_id", ev.ID.String()),
			slog.Any("err", err),
		)
	}
}

// buildEntries проверяет все смены и возвращает строки для вставки и набор затронутых дней.
func buildEntries(providerID uuid.UUID, in []EntryInput, validFrom time.Time) ([]model.ScheduleEntry, []int, error) {
	if len(in) == 0 {
		return nil, nil, apperror.BadRequest("at least one schedule entry is required")
	}

	seen := make(map[int]bool)
	entries := make([]model.ScheduleEntry, 0, len(in))
	for i, e := range in {
		if e.Weekday < 0 || e.Weekday > 6 {
			return nil, nil, apperror.BadRequest(fmt.Sprintf("entry %d: weekday must be within 0..6", i))
		}
		start, err := calendar.ParseClock(e.Start)
		if err != nil {
			return nil, nil, apperror.Wrap(apperror.KindBadRequest, fmt.Sprintf("entry %d: invalid start", i), err)
		}
		end, err := calendar.ParseClock(e.End)
		if err != nil {
			return nil, nil, apperror.Wrap(apperror.KindBadRequest, fmt.Sprintf("entry %d: invalid end", i), err)
		}
		if end <= start {
			return nil, nil, apperror.BadRequest(fmt.Sprintf("entry %d: end must be after start", i))
		}

		seen[e.Weekday] = true
		entries = append(entries, model.ScheduleEntry{
			ProviderID: providerID,
			Weekday:    e.Weekday,
			StartTime:  start,
			EndTime:    end,
			ValidFrom:  datatypes.Date(validFrom),
		})
	}

	weekdays := make([]int, 0, len(seen))
	for wd := range seen {
		weekdays = append(weekdays, wd)
	}
	sort.Ints(weekdays)
	return entries, weekdays, nil
}

// checkProvider: чужой или несуществующий провайдер, NotFound. Неактивному расписание менять можно.
func checkProvider(ctx context.Context, tx repository.Tx, businessID, providerID uuid.UUID) error {
	_, err := calendar.ValidateProvider(ctx, repository.ProviderDirectory{Repo: tx.Providers()}, businessID, providerID)
	switch {
	case err == nil, errors.Is(err, calendar.ErrProviderInactive):
		return nil
	case errors.Is(err, calendar.ErrProviderNotFound), errors.Is(err, calendar.ErrInvalidProviderID):
		return apperror.NotFound("provider")
	default:
		return fmt.Errorf("load provider: %w", err)
	}
}

func recordEvent(ctx context.Context, tx repository.Tx, typ model.EventType, businessID, providerID uuid.UUID, details map[string]any) (model.Event, error) {
	raw, err := json.Marshal(details)
	if err != nil {
		return model.Event{}, fmt.Errorf("encode event details: %w", err)
	}
	ev := model.Event{
		EventType:  typ,
		BusinessID: businessID,
		ProviderID: &providerID,
		Details:    datatypes.JSON(raw),
	}
	if err := tx.Events().Create(ctx, &ev); err != nil {
		return model.Event{}, fmt.Errorf("record event: %w", err)
	}
	return ev, nil
}
