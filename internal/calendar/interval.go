package calendar

import (
	"errors"
	"math"
	"sort"
	"time"
)

var (
	ErrInvalidTimeRange = errors.New("invalid time range")
	ErrSlotDuration     = errors.New("slot duration must be positive")
	ErrRangeTooLong     = errors.New("date range is too long")
)

// TimeRange представляет полуоткрытый интервал [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// NewTimeRange создаёт интервал; пустые и вывернутые интервалы запрещены.
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	if start.IsZero() || end.IsZero() {
		return TimeRange{}, ErrInvalidTimeRange
	}
	if !end.After(start) {
		return TimeRange{}, ErrInvalidTimeRange
	}
	return TimeRange{Start: start, End: end}, nil
}

// Overlaps: единственный предикат пересечения во всём ядре.
// [a.Start, a.End) и [b.Start, b.End) пересекаются, если a.Start < b.End && a.End > b.Start,
// поэтому 09:00–10:00 и 10:00–11:00 не конфликтуют.
func Overlaps(a, b TimeRange) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// DurationMinutes округляет длительность до целых минут.
func DurationMinutes(r TimeRange) int {
	return int(math.Round(r.End.Sub(r.Start).Minutes()))
}

// Merge сортирует интервалы и склеивает пересекающиеся и соприкасающиеся.
func Merge(ranges []TimeRange) []TimeRange {
	if len(ranges) == 0 {
		return []TimeRange{}
	}
	sorted := append([]TimeRange(nil), ranges...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	out := []TimeRange{sorted[0]}
	for _, r := range sorted[1:] {
		last := &out[len(out)-1]
		if r.Start.After(last.End) {
			out = append(out, r)
			continue
		}
		if r.End.After(last.End) {
			last.End = r.End
		}
	}
	return out
}

// Subtract вычитает занятые интервалы из base и возвращает свободные куски
// в порядке возрастания начала. base должен быть отсортирован и не пересекаться.
func Subtract(base []TimeRange, busy []TimeRange) []TimeRange {
	free := make([]TimeRange, 0, len(base))
	for _, b := range base {
		pieces := []TimeRange{b}
		for _, occ := range busy {
			var next []TimeRange
			for _, p := range pieces {
				if !Overlaps(p, occ) {
					next = append(next, p)
					continue
				}
				if p.Start.Before(occ.Start) {
					next = append(next, TimeRange{Start: p.Start, End: occ.Start})
				}
				if occ.End.Before(p.End) {
					next = append(next, TimeRange{Start: occ.End, End: p.End})
				}
			}
			pieces = next
		}
		free = append(free, pieces...)
	}
	return free
}

// SplitToTimeSlots разбивает интервал на слоты фиксированной длительности.
// alignMinutes > 0 включает выравнивание начала по ближайшей отметке, кратной alignMinutes.
// "Хвост" меньшей длительности, чем slotDuration, отбрасывается.
func SplitToTimeSlots(
	tr TimeRange,
	slotDuration time.Duration,
	alignMinutes int,
) ([]TimeRange, error) {
	if slotDuration <= 0 {
		return nil, ErrSlotDuration
	}
	if !tr.End.After(tr.Start) {
		return []TimeRange{}, nil
	}

	start := tr.Start

	if alignMinutes > 0 {
		min := start.Minute()
		rem := min % alignMinutes
		if rem != 0 || start.Second() != 0 || start.Nanosecond() != 0 {
			delta := alignMinutes - rem
			if rem == 0 {
				delta = 0
			}
			start = time.Date(
				start.Year(),
				start.Month(),
				start.Day(),
				start.Hour(),
				min+delta,
				0, 0,
				start.Location(),
			)
			if start.Before(tr.Start) {
				start = start.Add(time.Duration(alignMinutes) * time.Minute)
			}
			if !start.Before(tr.End) {
				return []TimeRange{}, nil
			}
		}
	}

	slots := []TimeRange{}
	for cur := start; !cur.Add(slotDuration).After(tr.End); cur = cur.Add(slotDuration) {
		slots = append(slots, TimeRange{Start: cur, End: cur.Add(slotDuration)})
	}

	return slots, nil
}
