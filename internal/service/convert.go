package service

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Leganyst/calendar-core/internal/apperror"
	"github.com/Leganyst/calendar-core/internal/availability"
	"github.com/Leganyst/calendar-core/internal/calendar"
	"github.com/Leganyst/calendar-core/internal/model"
)

// Время на границе: локальное время бизнеса без зоны.
const wallClockLayout = "2006-01-02T15:04:05"

type fields struct {
	m map[string]*structpb.Value
}

func fieldsOf(s *structpb.Struct) fields {
	if s == nil {
		return fields{m: map[string]*structpb.Value{}}
	}
	return fields{m: s.GetFields()}
}

func (f fields) has(key string) bool {
	v, ok := f.m[key]
	if !ok {
		return false
	}
	_, isNull := v.GetKind().(*structpb.Value_NullValue)
	return !isNull
}

func (f fields) str(key string) string {
	if !f.has(key) {
		return ""
	}
	return strings.TrimSpace(f.m[key].GetStringValue())
}

func (f fields) strPtr(key string) *string {
	if !f.has(key) {
		return nil
	}
	s := f.m[key].GetStringValue()
	return &s
}

// integer принимает только целое число в пределах int32; дробные значения не округляются.
func (f fields) integer(key string) (int, error) {
	if !f.has(key) {
		return 0, nil
	}
	num, ok := f.m[key].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, apperror.Validation(key + " must be a number")
	}
	v := num.NumberValue
	if math.IsNaN(v) || math.Trunc(v) != v || v > math.MaxInt32 || v < math.MinInt32 {
		return 0, apperror.Validation(key + " must be an integer")
	}
	return int(v), nil
}

func (f fields) uuid(key string) (uuid.UUID, error) {
	raw := f.str(key)
	if raw == "" {
		return uuid.Nil, apperror.Validation(key + " is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperror.Validation(key + " must be a valid uuid")
	}
	return id, nil
}

func (f fields) optionalUUID(key string) (*uuid.UUID, error) {
	if f.str(key) == "" {
		return nil, nil
	}
	id, err := f.uuid(key)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// timestamp принимает "2006-01-02T15:04:05" или RFC3339; смещение зоны отбрасывается.
func (f fields) timestamp(key string) (time.Time, error) {
	raw := f.str(key)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{wallClockLayout, time.RFC3339, time.RFC3339Nano, "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return calendar.WallClock(t), nil
		}
	}
	return time.Time{}, apperror.Validation(fmt.Sprintf("%s must be a local timestamp like %s", key, wallClockLayout))
}

func (f fields) date(key string) (time.Time, error) {
	raw := f.str(key)
	if raw == "" {
		return time.Time{}, apperror.Validation(key + " is required")
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, apperror.Validation(key + " must be a date like 2006-01-02")
	}
	return t, nil
}

func (f fields) list(key string) []*structpb.Value {
	if !f.has(key) {
		return nil
	}
	return f.m[key].GetListValue().GetValues()
}

func formatTime(t time.Time) string {
	return t.Format(wallClockLayout)
}

func toStruct(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return s, nil
}

func optionalID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func appointmentDoc(a *model.Appointment) map[string]any {
	return map[string]any{
		"id":          a.ID.String(),
		"business_id": a.BusinessID.String(),
		"provider_id": a.ProviderID.String(),
		"customer_id": optionalID(a.CustomerID),
		"service_id":  optionalID(a.ServiceID),
		"start":       formatTime(a.StartAt),
		"end":         formatTime(a.EndAt),
		"status":      string(a.Status),
		"notes":       a.Notes,
		"created_at":  a.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":  a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func scheduleDocs(entries []model.ScheduleEntry) []any {
	out := make([]any, 0, len(entries))
	for _, e := range entries {
		doc := map[string]any{
			"id":          e.ID.String(),
			"provider_id": e.ProviderID.String(),
			"weekday":     e.Weekday,
			"start":       calendar.FormatClock(e.StartTime),
			"end":         calendar.FormatClock(e.EndTime),
			"valid_from":  time.Time(e.ValidFrom).Format(time.DateOnly),
			"valid_until": nil,
		}
		if e.ValidUntil != nil {
			doc["valid_until"] = time.Time(*e.ValidUntil).Format(time.DateOnly)
		}
		out = append(out, doc)
	}
	return out
}

func summaryDocs(rows []availability.DaySummary) []any {
	out := make([]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, map[string]any{
			"date":                    r.Date.Format(time.DateOnly),
			"appointment_count":       r.AppointmentCount,
			"total_scheduled_minutes": r.ScheduledMinutes,
			"total_occupied_minutes":  r.OccupiedMinutes,
			"total_available_minutes": r.AvailableMinutes,
		})
	}
	return out
}

func dayDetailDoc(d *availability.DayDetail) map[string]any {
	rows := make([]any, 0, len(d.Rows))
	for _, r := range d.Rows {
		rows = append(rows, map[string]any{
			"appointment_id":   r.AppointmentID.String(),
			"customer_name":    r.CustomerName,
			"provider_name":    r.ProviderName,
			"service_name":     r.ServiceName,
			"start_time":       r.StartTime,
			"end_time":         r.EndTime,
			"duration_minutes": r.DurationMinutes,
			"status":           string(r.Status),
		})
	}
	return map[string]any{
		"date":                    d.Date.Format(time.DateOnly),
		"weekday_name":            d.WeekdayName,
		"total_appointments":      d.TotalAppointments,
		"trend":                   d.Trend,
		"total_scheduled_minutes": d.ScheduledMinutes,
		"total_occupied_minutes":  d.OccupiedMinutes,
		"appointments":            rows,
		"page":                    d.Page,
		"page_size":               d.PageSize,
		"total_count":             d.TotalCount,
		"total_pages":             d.TotalPages,
	}
}

func slotDocs(slots []calendar.TimeRange) []any {
	out := make([]any, 0, len(slots))
	for _, s := range slots {
		out = append(out, map[string]any{
			"start": formatTime(s.Start),
			"end":   formatTime(s.End),
		})
	}
	return out
}

func eventDocs(events []model.Event) []any {
	out := make([]any, 0, len(events))
	for _, e := range events {
		doc := map[string]any{
			"id":             e.ID.String(),
			"event_type":     string(e.EventType),
			"created_at":     e.CreatedAt.UTC().Format(time.RFC3339),
			"provider_id":    optionalID(e.ProviderID),
			"appointment_id": optionalID(e.AppointmentID),
		}
		var details map[string]any
		if len(e.Details) > 0 && json.Unmarshal(e.Details, &details) == nil {
			doc["details"] = details
		}
		out = append(out, doc)
	}
	return out
}
