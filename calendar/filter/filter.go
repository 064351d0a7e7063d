// Package filter narrows an event collection down to what the user asked to
// see: active calendars, owner and participant facets, a date range, a free
// text term and finally the visible window.
package filter

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/cyp0633/lumencal/calendar/event"
	"github.com/samber/mo"
)

// DateRange is an inclusive range of days. Only the date part of From and To
// is significant.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Window returns [StartOfDay(From), EndOfDay(To)].
func (r DateRange) Window() (time.Time, time.Time) {
	return event.StartOfDay(r.From), event.EndOfDay(r.To)
}

// State is the user's filter selection. The zero value passes everything.
type State struct {
	Term        string
	Owner       mo.Option[string]
	Participant mo.Option[string]
	Dates       mo.Option[DateRange]
	// Calendars holds the active calendar IDs. Empty means all calendars.
	Calendars map[string]struct{}
}

// Clone returns a copy of s that does not share the calendar set.
func (s State) Clone() State {
	out := s
	out.Calendars = maps.Clone(s.Calendars)
	return out
}

// Active reports whether any facet narrows the result.
func (s State) Active() bool {
	return strings.TrimSpace(s.Term) != "" ||
		s.Owner.IsPresent() ||
		s.Participant.IsPresent() ||
		s.Dates.IsPresent() ||
		len(s.Calendars) > 0
}

// ToggleCalendar adds id to the active set, or removes it if present.
func (s *State) ToggleCalendar(id string) {
	if _, ok := s.Calendars[id]; ok {
		delete(s.Calendars, id)
		return
	}
	if s.Calendars == nil {
		s.Calendars = make(map[string]struct{})
	}
	s.Calendars[id] = struct{}{}
}

// CalendarIDs returns the active calendar IDs in sorted order.
func (s State) CalendarIDs() []string {
	return slices.Sorted(maps.Keys(s.Calendars))
}

// Matches reports whether ev passes every predicate of s and intersects the
// visible window [rangeStart, rangeEnd]. Predicates are checked cheapest
// first; the window check is last and always applies.
func Matches(ev event.Event, s State, rangeStart, rangeEnd time.Time) bool {
	if len(s.Calendars) > 0 {
		if _, ok := s.Calendars[ev.CalendarID]; !ok {
			return false
		}
	}
	if owner, ok := s.Owner.Get(); ok && ev.Owner != owner {
		return false
	}
	if participant, ok := s.Participant.Get(); ok && !ev.HasAttendee(participant) {
		return false
	}
	if dates, ok := s.Dates.Get(); ok {
		from, to := dates.Window()
		if !ev.Intersects(from, to) {
			return false
		}
	}
	if term := strings.ToLower(strings.TrimSpace(s.Term)); term != "" {
		if !strings.Contains(strings.ToLower(searchText(ev)), term) {
			return false
		}
	}
	return ev.Intersects(rangeStart, rangeEnd)
}

func searchText(ev event.Event) string {
	fields := make([]string, 0, 4+len(ev.Attendees))
	fields = append(fields, ev.Title, ev.Description, ev.Location, ev.Owner)
	fields = append(fields, ev.Attendees...)
	return strings.Join(fields, " ")
}

// Apply returns the events that match s, in input order.
func Apply(events []event.Event, s State, rangeStart, rangeEnd time.Time) []event.Event {
	out := make([]event.Event, 0, len(events))
	for _, ev := range events {
		if Matches(ev, s, rangeStart, rangeEnd) {
			out = append(out, ev)
		}
	}
	return out
}

// ApplyOccurrences is Apply for expanded occurrences.
func ApplyOccurrences(occs []event.Occurrence, s State, rangeStart, rangeEnd time.Time) []event.Occurrence {
	out := make([]event.Occurrence, 0, len(occs))
	for _, occ := range occs {
		if Matches(occ.Event, s, rangeStart, rangeEnd) {
			out = append(out, occ)
		}
	}
	return out
}

// Owners lists the distinct non-empty owners of events, sorted.
func Owners(events []event.Event) []string {
	set := make(map[string]struct{})
	for _, ev := range events {
		if ev.Owner != "" {
			set[ev.Owner] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(set))
}

// Participants lists the distinct attendees of events, sorted.
func Participants(events []event.Event) []string {
	set := make(map[string]struct{})
	for _, ev := range events {
		for _, a := range ev.Attendees {
			if a != "" {
				set[a] = struct{}{}
			}
		}
	}
	return slices.Sorted(maps.Keys(set))
}
