package storage

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cyp0633/lumencal/calendar/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(day, hour, minute int) time.Time {
	return time.Date(2024, 3, day, hour, minute, 0, 0, time.UTC)
}

func TestValidate(t *testing.T) {
	valid := NewMockEvent("a", "Reunión con ventas", at(4, 9, 0))
	require.NoError(t, Validate(valid))

	tests := []struct {
		name   string
		mutate func(*event.Event)
		fields []string
	}{
		{"short title", func(e *event.Event) { e.Title = " ab " }, []string{"title"}},
		{"missing start", func(e *event.Event) { e.Start = time.Time{} }, []string{"start"}},
		{"missing end", func(e *event.Event) { e.End = time.Time{} }, []string{"end"}},
		{"end before start", func(e *event.Event) { e.End = e.Start.Add(-time.Minute) }, []string{"end"}},
		{"end equals start", func(e *event.Event) { e.End = e.Start }, []string{"end"}},
		{"no owner", func(e *event.Event) { e.Owner = "  " }, []string{"owner"}},
		{"no calendar", func(e *event.Event) { e.CalendarID = "" }, []string{"calendarId"}},
		{"bad kind", func(e *event.Event) { e.Kind = "party" }, []string{"type"}},
		{
			"bad recurrence",
			func(e *event.Event) { e.Recurrence = &event.RecurrenceRule{Frequency: "hourly", Count: -1} },
			[]string{"recurrence"},
		},
		{
			"several at once",
			func(e *event.Event) { e.Title = ""; e.Owner = "" },
			[]string{"owner", "title"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := valid.Clone()
			tt.mutate(&ev)

			err := Validate(ev)
			require.Error(t, err)
			assert.True(t, IsInvalidInput(err))

			var serr *Error
			require.True(t, errors.As(err, &serr))
			var got []string
			for field := range serr.Fields {
				got = append(got, field)
			}
			assert.ElementsMatch(t, tt.fields, got)
		})
	}
}

func TestNormalizePayload(t *testing.T) {
	ev := event.Event{
		ID:         "a",
		Title:      "  Demo producto ",
		Owner:      "Lucía",
		Start:      time.Date(2024, 3, 4, 9, 0, 0, 0, time.FixedZone("PET", -5*3600)),
		End:        at(4, 10, 0),
		Attendees:  []string{" Ana ", "", "  "},
		Recurrence: &event.RecurrenceRule{Frequency: event.FrequencyWeekly},
	}

	got := NormalizePayload(ev)

	assert.Equal(t, "Demo producto", got.Title)
	assert.Equal(t, "Lucía", got.Organizer)
	assert.Equal(t, event.KindMeeting, got.Kind)
	assert.Equal(t, []string{"Ana"}, got.Attendees)
	assert.Equal(t, at(4, 9, 0), got.Start)
	require.NotNil(t, got.Recurrence)
	assert.Equal(t, 1, got.Recurrence.Interval)
	assert.Equal(t, 0, ev.Recurrence.Interval, "input must not be mutated")

	ev.Recurrence = &event.RecurrenceRule{Frequency: event.FrequencyNone}
	assert.Nil(t, NormalizePayload(ev).Recurrence)
}

func TestErrorHelpers(t *testing.T) {
	err := fmt.Errorf("update: %w", NotFound("x"))
	assert.True(t, IsNotFound(err))
	assert.False(t, IsAlreadyExists(err))
	assert.True(t, IsAlreadyExists(AlreadyExists("x")))
	assert.False(t, IsNotFound(errors.New("plain")))

	wrapped := &Error{Type: ErrInvalidInput, Message: "bad", Err: errors.New("cause"), Fields: map[string][]string{"title": {"too short"}}}
	assert.Equal(t, "invalid_input: bad (title: too short): cause", wrapped.Error())
	assert.Equal(t, "cause", errors.Unwrap(wrapped).Error())
}

func TestListOptions_Match(t *testing.T) {
	ev := NewMockEvent("a", "Demo", at(4, 9, 0))
	start, end := at(4, 0, 0), at(4, 23, 0)
	later := at(5, 0, 0)

	var none *ListOptions
	assert.True(t, none.Match(ev))
	assert.True(t, (&ListOptions{Start: &start, End: &end}).Match(ev))
	assert.False(t, (&ListOptions{Start: &later}).Match(ev))
	assert.False(t, (&ListOptions{CalendarIDs: []string{"ventas"}}).Match(ev))
	assert.True(t, (&ListOptions{CalendarIDs: []string{"ventas", "mi-calendario"}}).Match(ev))
}

func TestICS_RoundTrip(t *testing.T) {
	until := at(31, 0, 0)
	events := []event.Event{
		{
			ID:          "evt-1",
			Kind:        event.KindCall,
			Title:       "Llamada con proveedor, seguimiento",
			Description: "Revisar precios; plazos",
			Start:       at(4, 9, 30),
			End:         at(4, 10, 15),
			Owner:       "Carlos",
			Organizer:   "Carlos",
			Attendees:   []string{"Ana María", "Luis"},
			CalendarID:  "compras",
			Location:    "Sala 2",
			Color:       "#f97316",
			Recurrence:  &event.RecurrenceRule{Frequency: event.FrequencyWeekly, Interval: 1, Until: &until},
		},
		{
			ID:         "evt-2",
			Kind:       event.KindDeal,
			Title:      "Feriado",
			Start:      at(6, 0, 0),
			End:        at(7, 0, 0),
			AllDay:     true,
			Owner:      "Sistema",
			CalendarID: "mi-calendario",
		},
	}

	ics, err := EventsToICS(events, at(1, 0, 0))
	require.NoError(t, err)
	assert.Contains(t, ics, "BEGIN:VCALENDAR")
	assert.Contains(t, ics, "DTSTART:20240304T093000")
	assert.Contains(t, ics, "DTSTART;VALUE=DATE:20240306")

	back, err := ICSToEvents(ics)
	require.NoError(t, err)
	require.Len(t, back, 2)

	first := back[0]
	assert.Equal(t, events[0].ID, first.ID)
	assert.Equal(t, events[0].Title, first.Title)
	assert.Equal(t, events[0].Description, first.Description)
	assert.Equal(t, events[0].Start, first.Start)
	assert.Equal(t, events[0].End, first.End)
	assert.Equal(t, events[0].Owner, first.Owner)
	assert.Equal(t, events[0].Organizer, first.Organizer)
	assert.Equal(t, events[0].Attendees, first.Attendees)
	assert.Equal(t, events[0].CalendarID, first.CalendarID)
	assert.Equal(t, events[0].Location, first.Location)
	assert.Equal(t, events[0].Color, first.Color)
	assert.Equal(t, event.KindCall, first.Kind)
	require.NotNil(t, first.Recurrence)
	assert.Equal(t, event.FrequencyWeekly, first.Recurrence.Frequency)
	require.NotNil(t, first.Recurrence.Until)
	assert.Equal(t, until, *first.Recurrence.Until)

	second := back[1]
	assert.True(t, second.AllDay)
	assert.Equal(t, at(6, 0, 0), second.Start)
	assert.Equal(t, at(7, 0, 0), second.End)
	assert.Nil(t, second.Recurrence)
}

func TestICS_DecodeSkipsBrokenComponents(t *testing.T) {
	ics := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//EN",
		"BEGIN:VEVENT",
		"UID:ok",
		"DTSTAMP:20240301T000000Z",
		"DTSTART:20240304T090000",
		"SUMMARY:Sin fin",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:broken",
		"DTSTAMP:20240301T000000Z",
		"SUMMARY:Sin inicio",
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}, "\r\n")

	events, err := ICSToEvents(ics)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	require.Len(t, events, 1)
	assert.Equal(t, "ok", events[0].ID)
	assert.Equal(t, at(4, 10, 0), events[0].End)
}

func TestICS_EmptyAndETag(t *testing.T) {
	ics, err := EventsToICS(nil, at(1, 0, 0))
	require.NoError(t, err)
	assert.Contains(t, ics, "BEGIN:VCALENDAR\r\n")
	assert.Contains(t, ics, "PRODID:"+productID)

	decoded, err := ICSToEvents(ics)
	require.NoError(t, err)
	assert.Empty(t, decoded)

	a := ETag([]byte("one"))
	assert.Equal(t, a, ETag([]byte("one")))
	assert.NotEqual(t, a, ETag([]byte("two")))
	assert.True(t, strings.HasPrefix(a, `"`) && strings.HasSuffix(a, `"`))
}
