// memory based implementation of storage.EventStore
package memory

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/cyp0633/lumencal/calendar/event"
	"github.com/cyp0633/lumencal/calendar/live"
	"github.com/cyp0633/lumencal/calendar/storage"
	"github.com/google/uuid"
)

// MaxActivities is the length of the activity log.
const MaxActivities = 50

// Publisher receives a message for every successful change.
type Publisher interface {
	Publish(live.Message)
}

// Option customizes a Store.
type Option func(*Store)

// WithCapacity bounds the number of stored events. When full, the oldest
// events are evicted. Zero means unbounded.
func WithCapacity(n int) Option {
	return func(s *Store) { s.capacity = n }
}

// WithPublisher sets the change publisher.
func WithPublisher(p Publisher) Option {
	return func(s *Store) { s.publisher = p }
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides time.Now for activity timestamps and ICS stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store implements storage.EventStore in memory. Events are kept newest
// first.
type Store struct {
	mu         sync.RWMutex
	events     []event.Event
	index      map[string]int
	activities []live.Activity

	capacity  int
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

var _ storage.EventStore = (*Store)(nil)

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		index:  make(map[string]int),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// reindex rebuilds the ID index. Callers hold the write lock.
func (s *Store) reindex() {
	clear(s.index)
	for i, ev := range s.events {
		s.index[ev.ID] = i
	}
}

// Seed inserts events without validation, notifications or activity entries.
// Events with an existing ID replace the stored one. Input order is kept.
func (s *Store) Seed(events ...event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ev := range events {
		ev = ev.Clone()
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		if i, ok := s.index[ev.ID]; ok {
			s.events[i] = ev
			continue
		}
		s.events = append(s.events, ev)
		s.index[ev.ID] = len(s.events) - 1
	}
	s.trim()
}

// trim drops the oldest events over capacity. Callers hold the write lock.
func (s *Store) trim() {
	if s.capacity > 0 && len(s.events) > s.capacity {
		s.events = s.events[:s.capacity]
		s.reindex()
	}
}

func (s *Store) Create(ctx context.Context, ev event.Event) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if err := storage.Validate(ev); err != nil {
		return event.Event{}, err
	}
	ev = storage.NormalizePayload(ev)

	s.mu.Lock()
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if _, exists := s.index[ev.ID]; exists {
		s.mu.Unlock()
		return event.Event{}, storage.AlreadyExists(ev.ID)
	}
	s.events = slices.Insert(s.events, 0, ev)
	s.reindex()
	s.trim()
	s.recordLocked(ev, "created")
	s.mu.Unlock()

	s.logger.Debug("event created", "event_id", ev.ID, "calendar_id", ev.CalendarID)
	s.publish(live.Created(ev.Clone()))
	return ev.Clone(), nil
}

func (s *Store) Update(ctx context.Context, ev event.Event) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if ev.ID == "" {
		return event.Event{}, &storage.Error{
			Type:    storage.ErrInvalidInput,
			Message: "invalid event",
			Fields:  map[string][]string{"id": {"event not found"}},
		}
	}
	if err := storage.Validate(ev); err != nil {
		return event.Event{}, err
	}
	ev = storage.NormalizePayload(ev)

	s.mu.Lock()
	i, ok := s.index[ev.ID]
	if !ok {
		s.mu.Unlock()
		return event.Event{}, storage.NotFound(ev.ID)
	}
	s.events[i] = ev
	s.recordLocked(ev, "updated")
	s.mu.Unlock()

	s.logger.Debug("event updated", "event_id", ev.ID)
	s.publish(live.Updated(ev.Clone()))
	return ev.Clone(), nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return storage.NotFound(id)
	}
	removed := s.events[i]
	s.events = slices.Delete(s.events, i, i+1)
	s.reindex()
	s.recordLocked(removed, "deleted")
	s.mu.Unlock()

	s.logger.Debug("event deleted", "event_id", id)
	s.publish(live.Deleted(id))
	return nil
}

func (s *Store) List(ctx context.Context, opts *storage.ListOptions) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]event.Event, 0, len(s.events))
	for _, ev := range s.events {
		if opts.Match(ev) {
			out = append(out, ev.Clone())
		}
	}
	return out, nil
}

// Get returns the event with the given ID.
func (s *Store) Get(_ context.Context, id string) (event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return event.Event{}, storage.NotFound(id)
	}
	return s.events[i].Clone(), nil
}

// Len returns the number of stored events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// recordLocked appends an activity entry for a change. Callers hold the
// write lock.
func (s *Store) recordLocked(ev event.Event, verb string) {
	a := live.Activity{
		ID:          uuid.NewString(),
		Kind:        ev.Kind,
		Title:       ev.Title,
		Description: fmt.Sprintf("event %s", verb),
		Timestamp:   s.now().Format(time.RFC3339),
		User:        ev.Owner,
	}
	s.activities = slices.Insert(s.activities, 0, a)
	if len(s.activities) > MaxActivities {
		s.activities = s.activities[:MaxActivities]
	}
}

// AppendActivity adds an external entry to the activity log and publishes
// it.
func (s *Store) AppendActivity(a live.Activity) live.Activity {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Timestamp == "" {
		a.Timestamp = s.now().Format(time.RFC3339)
	}

	s.mu.Lock()
	s.activities = slices.Insert(s.activities, 0, a)
	if len(s.activities) > MaxActivities {
		s.activities = s.activities[:MaxActivities]
	}
	s.mu.Unlock()

	s.publish(live.ActivityMessage(a))
	return a
}

// Activities returns the activity log, newest first.
func (s *Store) Activities() []live.Activity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.activities)
}

func (s *Store) publish(m live.Message) {
	if s.publisher != nil {
		s.publisher.Publish(m)
	}
}
