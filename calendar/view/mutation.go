package view

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cyp0633/lumencal/calendar/event"
	"github.com/cyp0633/lumencal/calendar/storage"
	"github.com/google/uuid"
	"github.com/samber/mo"
)

// MutationKind is the store operation behind a mutation.
type MutationKind string

const (
	MutationCreate MutationKind = "create"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
)

// MutationState is the reconciliation state of a mutation.
type MutationState string

const (
	StatePending    MutationState = "pending"
	StateConfirmed  MutationState = "confirmed"
	StateRolledBack MutationState = "rolled-back"
)

// maxHistory bounds the number of settled mutations kept for inspection.
const maxHistory = 64

// Mutation is one optimistic change. It moves from StatePending to
// StateConfirmed or StateRolledBack exactly once.
type Mutation struct {
	// ID is the optimistic ID. For creates it is also the temporary event ID
	// shown until the store answers.
	ID      string
	Kind    MutationKind
	EventID string
	// Event is the optimistic payload (create and update).
	Event event.Event

	State     MutationState
	Result    mo.Result[event.Event]
	IssuedAt  time.Time
	SettledAt time.Time
}

// MutationError reports a mutation the store rejected. The optimistic change
// has been rolled back when it is returned.
type MutationError struct {
	MutationID string
	Kind       MutationKind
	EventID    string
	Err        error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s %s rolled back: %v", e.Kind, e.EventID, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

// ErrUnknownEvent is returned when an intent names an event that is not in
// the current collection.
var ErrUnknownEvent = errors.New("unknown event")

// ErrInvalidResize is returned when a resize would end an event at or before
// its start.
var ErrInvalidResize = errors.New("resize would end event before it starts")

// Create adds ev optimistically and asks the store to create it. An event
// without ID is created under the mutation ID, so a pushed "created" change
// lands on the optimistic entry instead of beside it. The returned event is
// the store's canonical copy.
func (c *Controller) Create(ctx context.Context, ev event.Event) (event.Event, error) {
	m := &Mutation{ID: uuid.NewString(), Kind: MutationCreate, Event: ev.Clone()}
	m.EventID = m.ID
	if ev.ID != "" {
		m.EventID = ev.ID
	}
	m.Event.ID = m.EventID

	payload := m.Event.Clone()
	return c.run(ctx, m, func(ctx context.Context) (event.Event, error) {
		return c.store.Create(ctx, payload)
	})
}

// Update replaces the event with ev.ID optimistically and asks the store to
// update it. Last write wins.
func (c *Controller) Update(ctx context.Context, ev event.Event) (event.Event, error) {
	m := &Mutation{ID: uuid.NewString(), Kind: MutationUpdate, EventID: ev.ID, Event: ev.Clone()}
	return c.run(ctx, m, func(ctx context.Context) (event.Event, error) {
		return c.store.Update(ctx, ev)
	})
}

// Delete hides the event optimistically and asks the store to delete it.
func (c *Controller) Delete(ctx context.Context, id string) error {
	m := &Mutation{ID: uuid.NewString(), Kind: MutationDelete, EventID: id}
	_, err := c.run(ctx, m, func(ctx context.Context) (event.Event, error) {
		return event.Event{}, c.store.Delete(ctx, id)
	})
	return err
}

// Move shifts the start and end of the event by delta (a drag). For an
// occurrence of a recurring event the master moves, so every occurrence
// shifts.
func (c *Controller) Move(ctx context.Context, id string, delta time.Duration) (event.Event, error) {
	ev, ok := c.Lookup(id)
	if !ok {
		return event.Event{}, fmt.Errorf("move %s: %w", id, ErrUnknownEvent)
	}
	delta = c.snapDelta(delta)
	ev.Start = ev.Start.Add(delta)
	ev.End = ev.End.Add(delta)
	return c.Update(ctx, ev)
}

// Resize shifts only the end of the event by delta.
func (c *Controller) Resize(ctx context.Context, id string, delta time.Duration) (event.Event, error) {
	ev, ok := c.Lookup(id)
	if !ok {
		return event.Event{}, fmt.Errorf("resize %s: %w", id, ErrUnknownEvent)
	}
	ev.End = ev.End.Add(c.snapDelta(delta))
	if !ev.End.After(ev.Start) {
		return event.Event{}, fmt.Errorf("resize %s: %w", id, ErrInvalidResize)
	}
	return c.Update(ctx, ev)
}

// Duplicate creates a copy of the event with a new ID and a "(copy)" title.
func (c *Controller) Duplicate(ctx context.Context, id string) (event.Event, error) {
	ev, ok := c.Lookup(id)
	if !ok {
		return event.Event{}, fmt.Errorf("duplicate %s: %w", id, ErrUnknownEvent)
	}
	ev.ID = ""
	ev.Title = strings.Join(strings.Fields(ev.Title+" (copy)"), " ")
	return c.Create(ctx, ev)
}

func (c *Controller) snapDelta(delta time.Duration) time.Duration {
	if c.snap <= 0 {
		return delta
	}
	return delta.Round(time.Duration(c.snap) * time.Minute)
}

// run applies m optimistically, calls the store and settles m. The store
// call runs on a context the caller cannot cancel, bounded by the store
// timeout, so an issued mutation always completes.
func (c *Controller) run(ctx context.Context, m *Mutation, call func(context.Context) (event.Event, error)) (event.Event, error) {
	m.State = StatePending
	m.IssuedAt = c.now()

	c.mu.Lock()
	c.pending = append(c.pending, m)
	c.mu.Unlock()
	c.notify()

	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	canonical, err := call(storeCtx)
	cancel()

	c.settle(m, canonical, err)
	c.notify()

	if err != nil {
		c.logger.Error("mutation rolled back",
			"mutation_id", m.ID, "kind", string(m.Kind), "event_id", m.EventID, "error", err)
		return event.Event{}, &MutationError{MutationID: m.ID, Kind: m.Kind, EventID: m.EventID, Err: err}
	}
	c.logger.Debug("mutation confirmed", "mutation_id", m.ID, "kind", string(m.Kind), "event_id", m.EventID)
	return canonical, nil
}

func (c *Controller) settle(m *Mutation, canonical event.Event, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = slices.DeleteFunc(c.pending, func(p *Mutation) bool { return p == m })
	m.SettledAt = c.now()

	if err != nil {
		m.State = StateRolledBack
		m.Result = mo.Err[event.Event](err)
	} else {
		m.State = StateConfirmed
		m.Result = mo.Ok(canonical)
		switch m.Kind {
		case MutationCreate, MutationUpdate:
			if _, deleted := c.tombstones[canonical.ID]; deleted {
				c.logger.Debug("confirmed event was deleted meanwhile", "event_id", canonical.ID)
			} else {
				c.base = upsert(c.base, canonical)
			}
		case MutationDelete:
			c.base = remove(c.base, m.EventID)
		}
	}
	if !c.pendingForLocked(m.EventID) {
		delete(c.tombstones, m.EventID)
	}

	c.settled[m.ID] = m
	c.history = append(c.history, m.ID)
	if len(c.history) > maxHistory {
		delete(c.settled, c.history[0])
		c.history = slices.Delete(c.history, 0, 1)
	}
}

// pendingForLocked reports whether an unsettled mutation targets id. Callers
// hold the lock.
func (c *Controller) pendingForLocked(id string) bool {
	return slices.ContainsFunc(c.pending, func(p *Mutation) bool { return p.EventID == id })
}

// Mutation returns a copy of the mutation with the given optimistic ID,
// pending or recently settled.
func (c *Controller) Mutation(id string) (Mutation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, m := range c.pending {
		if m.ID == id {
			return *m, true
		}
	}
	if m, ok := c.settled[id]; ok {
		return *m, true
	}
	return Mutation{}, false
}

// Pending returns copies of the unsettled mutations in issue order.
func (c *Controller) Pending() []Mutation {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Mutation, 0, len(c.pending))
	for _, m := range c.pending {
		out = append(out, *m)
	}
	return out
}

// Lookup returns the event with the given ID as currently shown, pending
// changes included.
func (c *Controller) Lookup(id string) (event.Event, bool) {
	c.mu.Lock()
	events := c.mergedLocked()
	c.mu.Unlock()

	for _, ev := range events {
		if ev.ID == id {
			return ev.Clone(), true
		}
	}
	return event.Event{}, false
}

// Events returns the confirmed collection with pending mutations applied.
func (c *Controller) Events() []event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mergedLocked()
}

// mergedLocked overlays the pending mutations, in issue order, on the
// confirmed collection. Callers hold the lock. The result never aliases
// c.base.
func (c *Controller) mergedLocked() []event.Event {
	events := slices.Clone(c.base)
	for _, m := range c.pending {
		switch m.Kind {
		case MutationCreate, MutationUpdate:
			events = upsert(events, m.Event)
		case MutationDelete:
			events = remove(events, m.EventID)
		}
	}
	return events
}

// upsert replaces the event with ev.ID or appends ev. It never writes into
// the backing array of events.
func upsert(events []event.Event, ev event.Event) []event.Event {
	i := slices.IndexFunc(events, func(e event.Event) bool { return e.ID == ev.ID })
	if i < 0 {
		return append(slices.Clip(events), ev)
	}
	out := slices.Clone(events)
	out[i] = ev
	return out
}

func remove(events []event.Event, id string) []event.Event {
	return slices.DeleteFunc(slices.Clone(events), func(e event.Event) bool { return e.ID == id })
}

// IsRolledBack reports whether err is a rejected mutation and, if so, whether
// the store rejected it as invalid input.
func IsRolledBack(err error) (rolledBack, invalidInput bool) {
	var merr *MutationError
	if !errors.As(err, &merr) {
		return false, false
	}
	return true, storage.IsInvalidInput(merr.Err)
}
