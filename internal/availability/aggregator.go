package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Leganyst/calendar-core/internal/apperror"
	"github.com/Leganyst/calendar-core/internal/calendar"
	"github.com/Leganyst/calendar-core/internal/model"
	"github.com/Leganyst/calendar-core/internal/schedule"
)

const instrumentation = "github.com/Leganyst/calendar-core/internal/availability"

// DefaultMaxSummaryDays ограничивает длину диапазона сводки.
const DefaultMaxSummaryDays = 366

type ProviderSource interface {
	ListActiveIDs(ctx context.Context, businessID uuid.UUID) ([]uuid.UUID, error)
	FindProvider(ctx context.Context, providerID uuid.UUID) (*calendar.ProviderInfo, error)
}

type ScheduleSource interface {
	ActiveEntries(ctx context.Context, providerIDs []uuid.UUID, from, to time.Time) ([]model.ScheduleEntry, error)
}

type AppointmentSource interface {
	ListByProviders(ctx context.Context, businessID uuid.UUID, providerIDs []uuid.UUID, from, to time.Time) ([]model.Appointment, error)
	ListDetailed(ctx context.Context, businessID uuid.UUID, providerIDs []uuid.UUID, from, to time.Time) ([]model.Appointment, error)
	Count(ctx context.Context, businessID uuid.UUID, providerIDs []uuid.UUID, from, to time.Time) (int64, error)
	ListOverlapping(ctx context.Context, providerID uuid.UUID, from, to time.Time, excludeID *uuid.UUID) ([]model.Appointment, error)
}

// SummaryCache хранит готовые сводки. Промах и ошибки кэша не мешают расчёту.
type SummaryCache interface {
	// GetSummary при промахе отдаёт ключ, под которым сохранять свежий расчёт.
	GetSummary(ctx context.Context, businessID uuid.UUID, from, to time.Time) (rows []DaySummary, key string, ok bool)
	SetSummary(ctx context.Context, key string, rows []DaySummary)
}

type DaySummary struct {
	Date             time.Time `json:"date"`
	AppointmentCount int       `json:"appointment_count"`
	ScheduledMinutes int       `json:"scheduled_minutes"`
	OccupiedMinutes  int       `json:"occupied_minutes"`
	AvailableMinutes int       `json:"available_minutes"`
}

type Filters struct {
	Status    string // без учёта регистра
	StartTime string // "HH:MM", точное совпадение времени начала
	Text      string // подстрока в имени клиента, провайдера или названии услуги
}

type DayDetailRequest struct {
	BusinessID uuid.UUID
	Date       time.Time
	Page       int
	PageSize   int
	Filters    Filters
}

type DetailRow struct {
	AppointmentID   uuid.UUID
	CustomerName    string
	ProviderName    string
	ServiceName     string
	StartTime       string
	EndTime         string
	DurationMinutes int
	Status          model.AppointmentStatus
}

type DayDetail struct {
	Date              time.Time
	WeekdayName       string
	TotalAppointments int
	// Разница с количеством записей за предыдущий день.
	Trend            int
	ScheduledMinutes int
	OccupiedMinutes  int

	Rows       []DetailRow
	Page       int
	PageSize   int
	TotalCount int
	TotalPages int
}

type Aggregator struct {
	providers    ProviderSource
	schedules    ScheduleSource
	appointments AppointmentSource
	cache        SummaryCache
	log          *slog.Logger
	tracer       trace.Tracer

	pageSize int
	maxDays  int
}

type Option func(*Aggregator)

func WithCache(c SummaryCache) Option {
	return func(a *Aggregator) { a.cache = c }
}

func WithPageSize(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.pageSize = n
		}
	}
}

func WithMaxSummaryDays(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.maxDays = n
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(a *Aggregator) { a.log = log }
}

func NewAggregator(providers ProviderSource, schedules ScheduleSource, appointments AppointmentSource, opts ...Option) *Aggregator {
	a := &Aggregator{
		providers:    providers,
		schedules:    schedules,
		appointments: appointments,
		log:          slog.Default(),
		tracer:       otel.Tracer(instrumentation),
		pageSize:     calendar.DefaultPageSize,
		maxDays:      DefaultMaxSummaryDays,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CalendarSummary возвращает по строке на каждый день диапазона [start, end] включительно.
func (a *Aggregator) CalendarSummary(ctx context.Context, businessID uuid.UUID, start, end time.Time) ([]DaySummary, error) {
	ctx, span := a.tracer.Start(ctx, "availability.CalendarSummary", trace.WithAttributes(
		attribute.String("business.id", businessID.String()),
	))
	defer span.End()

	from, to, err := calendar.NormalizeDateRange(start, end, a.maxDays)
	if err != nil {
		if errors.Is(err, calendar.ErrRangeTooLong) {
			return nil, apperror.BadRequest(fmt.Sprintf("date range must not exceed %d days", a.maxDays))
		}
		return nil, apperror.BadRequest("start and end dates are required")
	}

	var cacheKey string
	if a.cache != nil {
		rows, key, ok := a.cache.GetSummary(ctx, businessID, from, to)
		if ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return rows, nil
		}
		cacheKey = key
	}

	days := calendar.Days(from, to)
	rows := make([]DaySummary, len(days))
	for i, d := range days {
		rows[i] = DaySummary{Date: d}
	}

	providerIDs, err := a.providers.ListActiveIDs(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	if len(providerIDs) == 0 {
		return rows, nil
	}

	entries, err := a.schedules.ActiveEntries(ctx, providerIDs, from, to)
	if err != nil {
		return nil, err
	}
	appts, err := a.appointments.ListByProviders(ctx, businessID, providerIDs, from, calendar.NextDay(to))
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	type occupancy struct {
		count   int
		minutes int
	}
	occupied := make(map[time.Time]occupancy)
	for _, appt := range appts {
		day := calendar.DateOnly(appt.StartAt)
		o := occupied[day]
		o.count++
		o.minutes += calendar.DurationMinutes(calendar.TimeRange{Start: appt.StartAt, End: appt.EndAt})
		occupied[day] = o
	}

	for i := range rows {
		o := occupied[rows[i].Date]
		scheduled := schedule.ScheduledMinutes(entries, rows[i].Date)
		rows[i].AppointmentCount = o.count
		rows[i].ScheduledMinutes = scheduled
		rows[i].OccupiedMinutes = o.minutes
		rows[i].AvailableMinutes = max(0, scheduled-o.minutes)
	}

	if a.cache != nil {
		a.cache.SetSummary(ctx, cacheKey, rows)
	}
	return rows, nil
}

// DayDetail считает итоги дня по всем записям активных провайдеров, затем фильтрует и разбивает на страницы.
func (a *Aggregator) DayDetail(ctx context.Context, req DayDetailRequest) (*DayDetail, error) {
	ctx, span := a.tracer.Start(ctx, "availability.DayDetail", trace.WithAttributes(
		attribute.String("business.id", req.BusinessID.String()),
	))
	defer span.End()

	if req.Date.IsZero() {
		return nil, apperror.BadRequest("date is required")
	}
	day := calendar.DateOnly(req.Date)
	next := calendar.NextDay(day)

	match, err := compileFilters(req.Filters)
	if err != nil {
		return nil, err
	}

	// Как и в сводке, день считается только по активным провайдерам бизнеса.
	providerIDs, err := a.providers.ListActiveIDs(ctx, req.BusinessID)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}

	var (
		appts     []model.Appointment
		prevCount int64
		scheduled int
	)
	if len(providerIDs) > 0 {
		appts, err = a.appointments.ListDetailed(ctx, req.BusinessID, providerIDs, day, next)
		if err != nil {
			return nil, fmt.Errorf("list appointments: %w", err)
		}
		prevCount, err = a.appointments.Count(ctx, req.BusinessID, providerIDs, day.AddDate(0, 0, -1), day)
		if err != nil {
			return nil, fmt.Errorf("count previous day: %w", err)
		}
		entries, err := a.schedules.ActiveEntries(ctx, providerIDs, day, day)
		if err != nil {
			return nil, err
		}
		scheduled = schedule.ScheduledMinutes(entries, day)
	}

	occupied := 0
	for _, appt := range appts {
		occupied += calendar.DurationMinutes(calendar.TimeRange{Start: appt.StartAt, End: appt.EndAt})
	}

	sort.SliceStable(appts, func(i, j int) bool { return appts[i].StartAt.After(appts[j].StartAt) })
	rows := make([]DetailRow, 0, len(appts))
	for _, appt := range appts {
		if match(appt) {
			rows = append(rows, toRow(appt))
		}
	}

	page := calendar.Paginate(rows, req.Page, req.PageSize, a.pageSize)

	return &DayDetail{
		Date:              day,
		WeekdayName:       day.Weekday().String(),
		TotalAppointments: len(appts),
		Trend:             len(appts) - int(prevCount),
		ScheduledMinutes:  scheduled,
		OccupiedMinutes:   occupied,
		Rows:              page.Items,
		Page:              page.Page,
		PageSize:          page.PageSize,
		TotalCount:        page.Total,
		TotalPages:        page.TotalPages,
	}, nil
}

// FreeSlots режет рабочее время провайдера за вычетом записей на слоты длиной duration.
func (a *Aggregator) FreeSlots(ctx context.Context, businessID, providerID uuid.UUID, date time.Time, duration time.Duration) ([]calendar.TimeRange, error) {
	ctx, span := a.tracer.Start(ctx, "availability.FreeSlots", trace.WithAttributes(
		attribute.String("provider.id", providerID.String()),
	))
	defer span.End()

	if duration <= 0 {
		return nil, apperror.BadRequest("slot duration must be positive")
	}
	if date.IsZero() {
		return nil, apperror.BadRequest("date is required")
	}
	if _, err := calendar.ValidateProvider(ctx, a.providers, businessID, providerID); err != nil {
		switch {
		case errors.Is(err, calendar.ErrProviderNotFound), errors.Is(err, calendar.ErrInvalidProviderID):
			return nil, apperror.NotFound("provider")
		case errors.Is(err, calendar.ErrProviderInactive):
			return []calendar.TimeRange{}, nil
		default:
			return nil, fmt.Errorf("load provider: %w", err)
		}
	}

	day := calendar.DateOnly(date)
	entries, err := a.schedules.ActiveEntries(ctx, []uuid.UUID{providerID}, day, day)
	if err != nil {
		return nil, err
	}
	var windows []calendar.TimeRange
	for _, e := range schedule.EntriesOn(entries, day) {
		windows = append(windows, calendar.TimeRange{
			Start: calendar.At(day, e.StartTime),
			End:   calendar.At(day, e.EndTime),
		})
	}
	if len(windows) == 0 {
		return []calendar.TimeRange{}, nil
	}

	appts, err := a.appointments.ListOverlapping(ctx, providerID, day, calendar.NextDay(day), nil)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	busy := make([]calendar.TimeRange, 0, len(appts))
	for _, appt := range appts {
		busy = append(busy, calendar.TimeRange{Start: appt.StartAt, End: appt.EndAt})
	}

	slots := []calendar.TimeRange{}
	for _, free := range calendar.Subtract(calendar.Merge(windows), busy) {
		part, err := calendar.SplitToTimeSlots(free, duration, 0)
		if err != nil {
			return nil, apperror.BadRequest(err.Error())
		}
		slots = append(slots, part...)
	}
	return slots, nil
}

func compileFilters(f Filters) (func(model.Appointment) bool, error) {
	var (
		status  string
		clock   *time.Duration
		needle  = strings.ToLower(strings.TrimSpace(f.Text))
		checked = strings.TrimSpace(f.Status) != ""
	)
	if checked {
		status = strings.ToLower(strings.TrimSpace(f.Status))
		if parsed, err := model.ParseAppointmentStatus(status); err == nil {
			status = string(parsed)
		}
	}
	if strings.TrimSpace(f.StartTime) != "" {
		c, err := calendar.ParseClock(f.StartTime)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindBadRequest, "invalid start time filter", err)
		}
		d := time.Duration(c)
		clock = &d
	}

	return func(a model.Appointment) bool {
		if checked && string(a.Status) != status {
			return false
		}
		if clock != nil && time.Duration(calendar.ClockOf(a.StartAt)) != *clock {
			return false
		}
		if needle != "" {
			var names []string
			if a.Customer != nil {
				names = append(names, a.Customer.DisplayName)
			}
			if a.Provider != nil {
				names = append(names, a.Provider.DisplayName)
			}
			if a.Service != nil {
				names = append(names, a.Service.Name)
			}
			found := false
			for _, n := range names {
				if strings.Contains(strings.ToLower(n), needle) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}, nil
}

func toRow(a model.Appointment) DetailRow {
	row := DetailRow{
		AppointmentID:   a.ID,
		StartTime:       calendar.FormatClock(calendar.ClockOf(a.StartAt)),
		EndTime:         calendar.FormatClock(calendar.ClockOf(a.EndAt)),
		DurationMinutes: calendar.DurationMinutes(calendar.TimeRange{Start: a.StartAt, End: a.EndAt}),
		Status:          a.Status,
	}
	if a.Customer != nil {
		row.CustomerName = a.Customer.DisplayName
	}
	if a.Provider != nil {
		row.ProviderName = a.Provider.DisplayName
	}
	if a.Service != nil {
		row.ServiceName = a.Service.Name
	}
	return row
}
