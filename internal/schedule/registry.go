package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Leganyst/calendar-core/internal/apperror"
	"github.com/Leganyst/calendar-core/internal/calendar"
	"github.com/Leganyst/calendar-core/internal/model"
	"github.com/Leganyst/calendar-core/internal/repository"
)

const instrumentation = "github.com/Leganyst/calendar-core/internal/schedule"

// Registry разрешает недельные расписания провайдеров с учётом окон действия.
type Registry struct {
	schedules repository.ScheduleRepository
	providers repository.ProviderRepository
	log       *slog.Logger
	tracer    trace.Tracer
}

func NewRegistry(schedules repository.ScheduleRepository, providers repository.ProviderRepository, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		schedules: schedules,
		providers: providers,
		log:       log,
		tracer:    otel.Tracer(instrumentation),
	}
}

// ActiveEntries возвращает живые записи провайдеров, которые действуют
// хотя бы в одну дату диапазона [from, to] со своим днём недели.
func (r *Registry) ActiveEntries(ctx context.Context, providerIDs []uuid.UUID, from, to time.Time) ([]model.ScheduleEntry, error) {
	ctx, span := r.tracer.Start(ctx, "schedule.ActiveEntries", trace.WithAttributes(
		attribute.Int("providers", len(providerIDs)),
	))
	defer span.End()

	if len(providerIDs) == 0 {
		return []model.ScheduleEntry{}, nil
	}
	from, to = calendar.DateOnly(from), calendar.DateOnly(to)
	if to.Before(from) {
		from, to = to, from
	}

	candidates, err := r.schedules.ListActive(ctx, providerIDs, from, to)
	if err != nil {
		return nil, fmt.Errorf("list schedule entries: %w", err)
	}

	days := calendar.Days(from, to)
	active := make([]model.ScheduleEntry, 0, len(candidates))
	for _, e := range candidates {
		for _, d := range days {
			if e.ActiveOn(d) {
				active = append(active, e)
				break
			}
		}
	}

	r.reportOverlaps(ctx, active, days)
	span.SetAttributes(attribute.Int("entries", len(active)))
	return active, nil
}

// ProviderSchedule: все живые записи провайдера бизнеса.
func (r *Registry) ProviderSchedule(ctx context.Context, businessID, providerID uuid.UUID) ([]model.ScheduleEntry, error) {
	_, err := calendar.ValidateProvider(ctx, repository.ProviderDirectory{Repo: r.providers}, businessID, providerID)
	if err != nil && !errors.Is(err, calendar.ErrProviderInactive) {
		if errors.Is(err, calendar.ErrProviderNotFound) || errors.Is(err, calendar.ErrInvalidProviderID) {
			return nil, apperror.NotFound("provider")
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}

	entries, err := r.schedules.ListByProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("list schedule entries: %w", err)
	}
	return entries, nil
}

// EntriesOn: записи, действующие в указанную дату.
func EntriesOn(entries []model.ScheduleEntry, date time.Time) []model.ScheduleEntry {
	var out []model.ScheduleEntry
	for _, e := range entries {
		if e.ActiveOn(date) {
			out = append(out, e)
		}
	}
	return out
}

// ScheduledMinutes суммирует минуты всех записей, действующих в дату.
// Раздельные смены и пересекающиеся версии складываются без дедупликации.
func ScheduledMinutes(entries []model.ScheduleEntry, date time.Time) int {
	total := 0
	for _, e := range EntriesOn(entries, date) {
		total += e.Minutes()
	}
	return total
}

// reportOverlaps пишет предупреждение, если у провайдера в одну дату
// действуют записи с пересекающимся временем. Минуты при этом не меняются.
func (r *Registry) reportOverlaps(ctx context.Context, entries []model.ScheduleEntry, days []time.Time) {
	type key struct {
		provider uuid.UUID
		weekday  int
	}
	reported := make(map[key]bool)

	for _, d := range days {
		byProvider := make(map[uuid.UUID][]model.ScheduleEntry)
		for _, e := range EntriesOn(entries, d) {
			byProvider[e.ProviderID] = append(byProvider[e.ProviderID], e)
		}
		for providerID, list := range byProvider {
			k := key{provider: providerID, weekday: int(d.Weekday())}
			if reported[k] || len(list) < 2 {
				continue
			}
			sort.Slice(list, func(i, j int) bool { return list[i].StartTime < list[j].StartTime })
			for i := 1; i < len(list); i++ {
				if list[i].StartTime < list[i-1].EndTime {
					reported[k] = true
					r.log.WarnContext(ctx, "overlapping schedule entries are counted twice",
						slog.String("provider_id", providerID.String()),
						slog.String("weekday", d.Weekday().String()),
						slog.String("date", d.Format(time.DateOnly)),
						slog.String("first_entry_id", list[i-1].ID.String()),
						slog.String("second_entry_id", list[i].ID.String()),
					)
					break
				}
			}
		}
	}
}
