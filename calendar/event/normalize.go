package event

import (
	"strings"
	"time"
)

// DefaultDuration is substituted when an event has no usable end.
const DefaultDuration = time.Hour

var parseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	DateTimeLayout,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"20060102T150405",
	DateLayout,
}

// ParseTime parses a wall-clock instant in any of the accepted wire layouts.
// Offsets are discarded: the clock fields are kept as written.
func ParseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return WallClock(t), true
		}
	}
	return time.Time{}, false
}

// Normalize returns a copy of e that is safe to feed into the pipeline:
// a missing start becomes the start of now's day, a missing end becomes one
// hour after the start, times lose their location, all-day spans are snapped
// to whole days and a "none" recurrence is dropped.
//
// Normalize never fails; bad records get defaults so one broken event cannot
// poison a batch.
func Normalize(e Event, now time.Time) Event {
	out := e.Clone()

	out.Start = WallClock(out.Start)
	out.End = WallClock(out.End)
	if out.Start.IsZero() {
		out.Start = StartOfDay(WallClock(now))
	}
	if out.End.IsZero() {
		out.End = out.Start.Add(DefaultDuration)
	}

	if out.AllDay {
		out.Start = StartOfDay(out.Start)
		switch {
		case !out.End.After(out.Start):
			out.End = out.Start.AddDate(0, 0, 1)
		case !out.End.Equal(StartOfDay(out.End)):
			out.End = StartOfDay(out.End).AddDate(0, 0, 1)
		}
	}

	if out.Attendees == nil {
		out.Attendees = []string{}
	}
	if out.Recurrence != nil && !out.Recurrence.Repeats() {
		out.Recurrence = nil
	}
	if out.Recurrence != nil && out.Recurrence.Until != nil {
		until := WallClock(*out.Recurrence.Until)
		out.Recurrence.Until = &until
	}
	return out
}
