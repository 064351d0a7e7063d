package storage

import (
	"context"
	"time"

	"github.com/cyp0633/lumencal/calendar/event"
	"github.com/stretchr/testify/mock"
)

// MockStore implements EventStore for testing
type MockStore struct {
	mock.Mock
}

var _ EventStore = (*MockStore)(nil)

func (m *MockStore) Create(ctx context.Context, ev event.Event) (event.Event, error) {
	args := m.Called(ctx, ev)
	return eventArg(args, ev), args.Error(1)
}

func (m *MockStore) Update(ctx context.Context, ev event.Event) (event.Event, error) {
	args := m.Called(ctx, ev)
	return eventArg(args, ev), args.Error(1)
}

func (m *MockStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStore) List(ctx context.Context, opts *ListOptions) ([]event.Event, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]event.Event), args.Error(1)
}

// eventArg returns the first return value, which may be an event.Event or a
// func(event.Event) event.Event computing the result from the input.
func eventArg(args mock.Arguments, in event.Event) event.Event {
	switch v := args.Get(0).(type) {
	case event.Event:
		return v
	case func(event.Event) event.Event:
		return v(in)
	default:
		return event.Event{}
	}
}

// --- Helper methods for creating test data ---

// NewMockEvent creates a valid one-hour event.
func NewMockEvent(id, title string, start time.Time) event.Event {
	return event.Event{
		ID:         id,
		Kind:       event.KindMeeting,
		Title:      title,
		Start:      start,
		End:        start.Add(time.Hour),
		Owner:      "Lucía Pérez",
		Organizer:  "Lucía Pérez",
		CalendarID: "mi-calendario",
		Attendees:  []string{},
	}
}
