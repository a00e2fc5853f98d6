package calendar

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Все времена в ядре это локальные для бизнеса "настенные часы".
// Зона отбрасывается, а не конвертируется, чтобы дата не уезжала на соседний день.

// WallClock сохраняет показания часов t с точностью до секунды и помечает их как UTC.
func WallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// DateOnly возвращает полночь календарной даты t.
func DateOnly(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// NextDay возвращает полночь следующей календарной даты.
func NextDay(t time.Time) time.Time {
	return DateOnly(t).AddDate(0, 0, 1)
}

// Days перечисляет даты в [from, to] включительно.
func Days(from, to time.Time) []time.Time {
	from, to = DateOnly(from), DateOnly(to)
	var days []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// NormalizeDateRange приводит границы к дням и меняет их местами, если они перепутаны.
// При maxDays > 0 диапазон длиннее maxDays дней отклоняется.
func NormalizeDateRange(start, end time.Time, maxDays int) (time.Time, time.Time, error) {
	if start.IsZero() || end.IsZero() {
		return time.Time{}, time.Time{}, ErrInvalidTimeRange
	}
	from, to := DateOnly(start), DateOnly(end)
	if to.Before(from) {
		from, to = to, from
	}
	if maxDays > 0 && int(to.Sub(from).Hours()/24)+1 > maxDays {
		return time.Time{}, time.Time{}, ErrRangeTooLong
	}
	return from, to, nil
}

// DayBound: верхняя граница времени суток (24:00:00).
const DayBound = 24 * time.Hour

// ParseClock разбирает "HH:MM" или "HH:MM:SS". Допускается "24:00" как конец суток.
func ParseClock(s string) (datatypes.Time, error) {
	s = strings.TrimSpace(s)
	var h, m, sec int
	var err error
	switch strings.Count(s, ":") {
	case 1:
		_, err = fmt.Sscanf(s, "%d:%d", &h, &m)
	case 2:
		_, err = fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec)
	default:
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	if h < 0 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second
	if d > DayBound {
		return 0, fmt.Errorf("time of day %q is out of day bounds", s)
	}
	return datatypes.Time(d), nil
}

// ClockOf возвращает время суток момента t.
func ClockOf(t time.Time) datatypes.Time {
	return datatypes.NewTime(t.Hour(), t.Minute(), t.Second(), 0)
}

// At ставит время суток clock на календарную дату date.
func At(date time.Time, clock datatypes.Time) time.Time {
	return DateOnly(date).Add(time.Duration(clock))
}

// FormatClock печатает время суток как "HH:MM".
func FormatClock(clock datatypes.Time) string {
	d := time.Duration(clock)
	return fmt.Sprintf("%02d:%02d", int(d/time.Hour), int(d%time.Hour/time.Minute))
}
