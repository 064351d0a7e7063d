// Package live carries change notifications from the event store to views:
// a typed in-process bus, the JSON wire messages and a server-sent events
// transport for remote subscribers.
package live

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cyp0633/lumencal/calendar/event"
)

// Kind tags a message.
type Kind string

const (
	KindCalendar Kind = "calendar"
	KindActivity Kind = "activity"
)

// Action is what happened to a calendar event.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// CalendarChange reports a created, updated or deleted event. Event is set
// for created and updated, EventID for deleted.
type CalendarChange struct {
	Action  Action       `json:"action"`
	Event   *event.Event `json:"event,omitempty"`
	EventID string       `json:"eventId,omitempty"`
}

// ID returns the ID of the affected event.
func (c CalendarChange) ID() string {
	if c.Event != nil {
		return c.Event.ID
	}
	return c.EventID
}

// Activity is an entry of the activity feed.
type Activity struct {
	ID          string     `json:"id"`
	Kind        event.Kind `json:"type"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	// Timestamp is RFC 3339 for generated entries; older feeds carry a
	// display label instead.
	Timestamp   string     `json:"timestamp"`
	User        string     `json:"user"`
}

// Message is one notification. Exactly one of Calendar and Activity is set,
// matching Kind.
type Message struct {
	Kind     Kind
	Calendar *CalendarChange
	Activity *Activity
}

// Created builds a calendar created message.
func Created(ev event.Event) Message {
	return Message{Kind: KindCalendar, Calendar: &CalendarChange{Action: ActionCreated, Event: &ev}}
}

// Updated builds a calendar updated message.
func Updated(ev event.Event) Message {
	return Message{Kind: KindCalendar, Calendar: &CalendarChange{Action: ActionUpdated, Event: &ev}}
}

// Deleted builds a calendar deleted message.
func Deleted(id string) Message {
	return Message{Kind: KindCalendar, Calendar: &CalendarChange{Action: ActionDeleted, EventID: id}}
}

// ActivityMessage builds an activity message.
func ActivityMessage(a Activity) Message {
	return Message{Kind: KindActivity, Activity: &a}
}

// ErrMalformed is returned by Decode and Validate for structurally valid JSON
// that is not a usable message.
var ErrMalformed = errors.New("malformed live message")

// Validate checks that m carries the payload its kind requires.
func (m Message) Validate() error {
	switch m.Kind {
	case KindActivity:
		if m.Activity == nil {
			return fmt.Errorf("%w: activity without payload", ErrMalformed)
		}
	case KindCalendar:
		c := m.Calendar
		if c == nil {
			return fmt.Errorf("%w: calendar without payload", ErrMalformed)
		}
		switch c.Action {
		case ActionCreated, ActionUpdated:
			if c.Event == nil || c.Event.ID == "" {
				return fmt.Errorf("%w: %s without event", ErrMalformed, c.Action)
			}
		case ActionDeleted:
			if c.EventID == "" {
				return fmt.Errorf("%w: deleted without eventId", ErrMalformed)
			}
		default:
			return fmt.Errorf("%w: unknown action %q", ErrMalformed, c.Action)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrMalformed, m.Kind)
	}
	return nil
}

type envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Encode marshals m to its wire form
// {"kind": ..., "payload": ...}.
func Encode(m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	var payload any = m.Activity
	if m.Kind == KindCalendar {
		payload = m.Calendar
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", m.Kind, err)
	}
	return json.Marshal(envelope{Kind: m.Kind, Payload: raw})
}

// Decode parses a wire message. Anything that is not a valid calendar or
// activity message yields an error wrapping ErrMalformed or the JSON error.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return Message{}, fmt.Errorf("%w: missing payload", ErrMalformed)
	}

	m := Message{Kind: env.Kind}
	switch env.Kind {
	case KindCalendar:
		var c CalendarChange
		if err := json.Unmarshal(env.Payload, &c); err != nil {
			return Message{}, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		m.Calendar = &c
	case KindActivity:
		var a Activity
		if err := json.Unmarshal(env.Payload, &a); err != nil {
			return Message{}, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		m.Activity = &a
	}

	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}
