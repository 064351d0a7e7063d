// Package event defines the calendar event model shared by the expansion,
// filtering and layout stages.
package event

import (
	"slices"
	"strconv"
	"time"
)

// Kind is the activity type an event was created from.
type Kind string

const (
	KindDeal    Kind = "deal"
	KindMeeting Kind = "meeting"
	KindEmail   Kind = "email"
	KindCall    Kind = "call"
)

// Frequency is how often a recurring event repeats.
type Frequency string

const (
	FrequencyNone    Frequency = "none"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// RecurrenceRule describes how an event repeats. A rule is owned by exactly
// one Event and is deep-copied with it.
type RecurrenceRule struct {
	Frequency Frequency
	// Interval is the step in Frequency units. Values below 1 mean 1.
	Interval int
	// Count limits the number of generated occurrences (0 = no limit).
	Count int
	// Until is the latest allowed occurrence start (nil = no limit).
	Until *time.Time
}

// Step returns the effective interval.
func (r RecurrenceRule) Step() int {
	if r.Interval < 1 {
		return 1
	}
	return r.Interval
}

// Repeats reports whether the rule generates more than one occurrence.
func (r *RecurrenceRule) Repeats() bool {
	return r != nil && r.Frequency != "" && r.Frequency != FrequencyNone
}

// Event is a calendar entry. Start and End are wall-clock instants without a
// timezone; they are stored as time.Time values in time.UTC whose clock fields
// carry the local wall clock.
type Event struct {
	ID          string
	Kind        Kind
	Title       string
	Description string

	Start  time.Time
	End    time.Time
	AllDay bool

	Recurrence *RecurrenceRule

	CalendarID string
	Owner      string
	Organizer  string
	Attendees  []string
	Location   string
	Color      string
}

// Occurrence is one materialized repetition of a master event. It keeps the
// master ID so edits and deletes act on the master.
type Occurrence struct {
	Event
	// Index is the zero-based repetition number counted from the master start.
	Index int
}

// Key identifies the occurrence within an expansion: the master ID for the
// first repetition, "ID#n" for later ones.
func (o Occurrence) Key() string {
	if o.Index == 0 {
		return o.ID
	}
	return o.ID + "#" + strconv.Itoa(o.Index)
}

// Duration returns End - Start.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Clone returns a deep copy of the event.
func (e Event) Clone() Event {
	out := e
	if e.Attendees != nil {
		out.Attendees = slices.Clone(e.Attendees)
	}
	if e.Recurrence != nil {
		rule := *e.Recurrence
		if rule.Until != nil {
			until := *rule.Until
			rule.Until = &until
		}
		out.Recurrence = &rule
	}
	return out
}

// DisplayDate returns the start date as YYYY-MM-DD.
func (e Event) DisplayDate() string {
	return e.Start.Format(DateLayout)
}

// DisplayTime returns the start clock as HH:mm, or "" for all-day events.
func (e Event) DisplayTime() string {
	if e.AllDay {
		return ""
	}
	return e.Start.Format(ClockLayout)
}

// HasAttendee reports whether name is in the attendee list (exact match).
func (e Event) HasAttendee(name string) bool {
	return slices.Contains(e.Attendees, name)
}
