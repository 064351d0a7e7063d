package event

import "encoding/json"

type wireRule struct {
	Frequency Frequency `json:"frequency"`
	Interval  int       `json:"interval,omitempty"`
	Count     int       `json:"count,omitempty"`
	Until     string    `json:"until,omitempty"`
}

type wireEvent struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"type,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        string    `json:"date,omitempty"`
	Time        string    `json:"time,omitempty"`
	Owner       string    `json:"owner"`
	Start       string    `json:"start"`
	End         string    `json:"end"`
	Location    string    `json:"location,omitempty"`
	Attendees   []string  `json:"attendees,omitempty"`
	Organizer   string    `json:"organizer,omitempty"`
	CalendarID  string    `json:"calendarId,omitempty"`
	Color       string    `json:"color,omitempty"`
	AllDay      bool      `json:"allDay,omitempty"`
	Recurrence  *wireRule `json:"recurrence,omitempty"`
}

// MarshalJSON encodes the event in the web client's shape: local wall-clock
// start/end plus the derived date and time fields.
func (e Event) MarshalJSON() ([]byte, error) {
	w := wireEvent{
		ID:          e.ID,
		Kind:        e.Kind,
		Title:       e.Title,
		Description: e.Description,
		Owner:       e.Owner,
		Location:    e.Location,
		Attendees:   e.Attendees,
		Organizer:   e.Organizer,
		CalendarID:  e.CalendarID,
		Color:       e.Color,
		AllDay:      e.AllDay,
	}
	if !e.Start.IsZero() {
		w.Start = e.Start.Format(DateTimeLayout)
		w.Date = e.DisplayDate()
		w.Time = e.DisplayTime()
	}
	if !e.End.IsZero() {
		w.End = e.End.Format(DateTimeLayout)
	}
	if r := e.Recurrence; r != nil {
		w.Recurrence = &wireRule{
			Frequency: r.Frequency,
			Interval:  r.Interval,
			Count:     r.Count,
		}
		if r.Until != nil {
			w.Recurrence.Until = r.Until.Format(DateTimeLayout)
		}
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the wire shape leniently. Unparseable instants decode
// to the zero time so Normalize can substitute defaults; only structurally
// invalid JSON is an error.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	start, ok := ParseTime(w.Start)
	if !ok && w.Date != "" {
		// Older payloads only carried date + time.
		value := w.Date
		if w.Time != "" {
			value += "T" + w.Time
		}
		start, _ = ParseTime(value)
	}
	end, _ := ParseTime(w.End)

	*e = Event{
		ID:          w.ID,
		Kind:        w.Kind,
		Title:       w.Title,
		Description: w.Description,
		Start:       start,
		End:         end,
		AllDay:      w.AllDay,
		CalendarID:  w.CalendarID,
		Owner:       w.Owner,
		Organizer:   w.Organizer,
		Attendees:   w.Attendees,
		Location:    w.Location,
		Color:       w.Color,
	}
	if w.Recurrence != nil {
		rule := &RecurrenceRule{
			Frequency: w.Recurrence.Frequency,
			Interval:  w.Recurrence.Interval,
			Count:     w.Recurrence.Count,
		}
		if until, ok := ParseTime(w.Recurrence.Until); ok {
			rule.Until = &until
		}
		e.Recurrence = rule
	}
	return nil
}
