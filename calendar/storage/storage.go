// Package storage defines the event store the calendar core depends on,
// together with payload validation and the iCalendar codec shared by store
// implementations.
package storage

import (
	"context"
	"slices"
	"time"

	"github.com/cyp0633/lumencal/calendar/event"
)

// ListOptions narrows a List call. A nil *ListOptions lists everything.
type ListOptions struct {
	// Time range filter; events intersecting [Start, End] are returned.
	Start *time.Time
	End   *time.Time

	// CalendarIDs restricts the result to these calendars (empty = all).
	CalendarIDs []string
}

// Match reports whether ev satisfies the options.
func (o *ListOptions) Match(ev event.Event) bool {
	if o == nil {
		return true
	}
	if len(o.CalendarIDs) > 0 && !slices.Contains(o.CalendarIDs, ev.CalendarID) {
		return false
	}
	if o.Start != nil && ev.End.Before(*o.Start) {
		return false
	}
	if o.End != nil && ev.Start.After(*o.End) {
		return false
	}
	return true
}

// EventStore is the authoritative event repository. Implementations validate
// payloads (see Validate) and reject bad input with an *Error of type
// ErrInvalidInput.
type EventStore interface {
	// Create stores a new event and returns the canonical copy. An empty ID is
	// assigned by the store.
	Create(ctx context.Context, ev event.Event) (event.Event, error)
	// Update replaces the event with the same ID and returns the canonical copy.
	Update(ctx context.Context, ev event.Event) (event.Event, error)
	// Delete removes the event with the given ID.
	Delete(ctx context.Context, id string) error
	// List returns the stored events matching opts.
	List(ctx context.Context, opts *ListOptions) ([]event.Event, error)
}
