package event

import "time"

const (
	// DateLayout is the day key format used across the pipeline.
	DateLayout = "2006-01-02"
	// ClockLayout is the display time-of-day format.
	ClockLayout = "15:04"
	// DateTimeLayout is the local wall-clock format of the wire model.
	DateTimeLayout = "2006-01-02T15:04"
)

// WallClock drops the location of t, keeping its clock fields.
func WallClock(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// StartOfDay returns midnight of t's day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last representable instant of t's day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// Within reports whether t lies in [start, end], bounds included.
func Within(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

// Intersects reports whether the span [start, end] intersects the window
// [winStart, winEnd]: the start falls in the window, or the end falls in the
// window, or the span covers the whole window.
func Intersects(start, end, winStart, winEnd time.Time) bool {
	return Within(start, winStart, winEnd) ||
		Within(end, winStart, winEnd) ||
		(!start.After(winStart) && !end.Before(winEnd))
}

// Intersects reports whether the event span intersects [winStart, winEnd].
func (e Event) Intersects(winStart, winEnd time.Time) bool {
	return Intersects(e.Start, e.End, winStart, winEnd)
}
