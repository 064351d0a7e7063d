package storage

import (
	"strings"
	"unicode/utf8"

	"github.com/cyp0633/lumencal/calendar/event"
)

// MinTitleLength is the shortest accepted title, in runes.
const MinTitleLength = 3

var validKinds = map[event.Kind]bool{
	event.KindDeal:    true,
	event.KindMeeting: true,
	event.KindEmail:   true,
	event.KindCall:    true,
}

var validFrequencies = map[event.Frequency]bool{
	event.FrequencyNone:    true,
	event.FrequencyDaily:   true,
	event.FrequencyWeekly:  true,
	event.FrequencyMonthly: true,
}

// Validate checks a create/update payload. All problems are reported at once
// in an *Error of type ErrInvalidInput keyed by wire field name.
func Validate(ev event.Event) error {
	fields := make(map[string][]string)
	add := func(field, msg string) {
		fields[field] = append(fields[field], msg)
	}

	if utf8.RuneCountInString(strings.TrimSpace(ev.Title)) < MinTitleLength {
		add("title", "add a descriptive title")
	}
	if ev.Start.IsZero() {
		add("start", "start date is required")
	}
	if ev.End.IsZero() {
		add("end", "end date is required")
	}
	if !ev.Start.IsZero() && !ev.End.IsZero() && !ev.Start.Before(ev.End) {
		add("end", "end must be after start")
	}
	if ev.Kind != "" && !validKinds[ev.Kind] {
		add("type", "unknown activity type")
	}
	if strings.TrimSpace(ev.Owner) == "" {
		add("owner", "assign an owner")
	}
	if strings.TrimSpace(ev.CalendarID) == "" {
		add("calendarId", "select a calendar")
	}
	if r := ev.Recurrence; r != nil {
		if !validFrequencies[r.Frequency] && r.Frequency != "" {
			add("recurrence", "unknown recurrence frequency")
		}
		if r.Count < 0 {
			add("recurrence", "count must not be negative")
		}
		if r.Until != nil && r.Until.Before(ev.Start) {
			add("recurrence", "until must not be before start")
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return &Error{Type: ErrInvalidInput, Message: "invalid event", Fields: fields}
}

// NormalizePayload applies the store-side defaults to a validated payload:
// wall-clock times, trimmed non-empty attendees, organizer defaulting to the
// owner, meeting as the default kind, a dropped "none" recurrence and an
// interval of at least 1.
func NormalizePayload(ev event.Event) event.Event {
	out := ev.Clone()

	out.Title = strings.TrimSpace(out.Title)
	out.Owner = strings.TrimSpace(out.Owner)
	out.Start = event.WallClock(out.Start)
	out.End = event.WallClock(out.End)
	if out.Kind == "" {
		out.Kind = event.KindMeeting
	}
	if strings.TrimSpace(out.Organizer) == "" {
		out.Organizer = out.Owner
	}

	attendees := make([]string, 0, len(out.Attendees))
	for _, a := range out.Attendees {
		if a = strings.TrimSpace(a); a != "" {
			attendees = append(attendees, a)
		}
	}
	out.Attendees = attendees

	if !out.Recurrence.Repeats() {
		out.Recurrence = nil
	} else {
		out.Recurrence.Interval = out.Recurrence.Step()
		if out.Recurrence.Until != nil {
			until := event.WallClock(*out.Recurrence.Until)
			out.Recurrence.Until = &until
		}
	}
	return out
}
