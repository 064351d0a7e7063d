package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/cyp0633/lumencal/calendar/event"
)

// Mode is the calendar view granularity.
type Mode string

const (
	ModeDay   Mode = "day"
	ModeWeek  Mode = "week"
	ModeMonth Mode = "month"
)

// ParseMode parses "day", "week" or "month".
func ParseMode(value string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(value))); m {
	case ModeDay, ModeWeek, ModeMonth:
		return m, nil
	default:
		return "", fmt.Errorf("unknown view mode %q", value)
	}
}

// ParseWeekday parses an English weekday name ("monday", "Sun", ...).
func ParseWeekday(value string) (time.Weekday, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if v == name || (len(v) >= 3 && strings.HasPrefix(name, v)) {
			return d, nil
		}
	}
	return time.Monday, fmt.Errorf("unknown weekday %q", value)
}

// StartOfWeek returns midnight of the first day of t's week.
func StartOfWeek(t time.Time, weekStart time.Weekday) time.Time {
	offset := (int(t.Weekday()) - int(weekStart) + 7) % 7
	return event.StartOfDay(t).AddDate(0, 0, -offset)
}

// VisibleRange returns the inclusive window shown for date in mode. The
// month window covers whole grid weeks, so it includes trailing and leading
// days of the adjacent months.
func VisibleRange(date time.Time, mode Mode, weekStart time.Weekday) (time.Time, time.Time) {
	switch mode {
	case ModeWeek:
		start := StartOfWeek(date, weekStart)
		return start, event.EndOfDay(start.AddDate(0, 0, 6))
	case ModeMonth:
		first := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, date.Location())
		last := first.AddDate(0, 1, -1)
		return StartOfWeek(first, weekStart), event.EndOfDay(StartOfWeek(last, weekStart).AddDate(0, 0, 6))
	default:
		return event.StartOfDay(date), event.EndOfDay(date)
	}
}

// Shift moves date by step units of mode. Month steps keep the day of month
// when possible and clamp to the end of shorter months.
func Shift(date time.Time, mode Mode, step int) time.Time {
	switch mode {
	case ModeWeek:
		return date.AddDate(0, 0, 7*step)
	case ModeMonth:
		first := time.Date(date.Year(), date.Month()+time.Month(step), 1,
			date.Hour(), date.Minute(), date.Second(), date.Nanosecond(), date.Location())
		day := date.Day()
		if last := first.AddDate(0, 1, -1).Day(); day > last {
			day = last
		}
		return first.AddDate(0, 0, day-1)
	default:
		return date.AddDate(0, 0, step)
	}
}
