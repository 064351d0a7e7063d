package server

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cyp0633/lumencal/calendar/event"
	"github.com/cyp0633/lumencal/calendar/layout"
	"github.com/cyp0633/lumencal/calendar/view"
)

type queryError struct {
	param string
	value string
}

func (e *queryError) Error() string {
	return fmt.Sprintf("invalid %s parameter %q", e.param, e.value)
}

func timeParam(q url.Values, name string) (*time.Time, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	t, ok := event.ParseTime(v)
	if !ok {
		return nil, &queryError{param: name, value: v}
	}
	return &t, nil
}

// positionedJSON is one laid out occurrence on the wire.
type positionedJSON struct {
	Event           event.Event `json:"event"`
	Key             string      `json:"key"`
	Index           int         `json:"index"`
	StartMinute     int         `json:"startMinute"`
	EndMinute       int         `json:"endMinute"`
	DurationMinutes int         `json:"durationMinutes"`
	Column          int         `json:"column"`
	Columns         int         `json:"columns"`
	Left            float64     `json:"left"`
	Width           float64     `json:"width"`
}

type dayJSON struct {
	Date    string           `json:"date"`
	InMonth bool             `json:"inMonth"`
	Events  []positionedJSON `json:"events"`
}

type viewJSON struct {
	Date       string              `json:"date"`
	Mode       view.Mode           `json:"mode"`
	RangeStart string              `json:"rangeStart"`
	RangeEnd   string              `json:"rangeEnd"`
	Calendars  []view.CalendarInfo `json:"calendars"`
	Days       []dayJSON           `json:"days"`
}

func toViewJSON(snap view.Snapshot, calendars []view.CalendarInfo) viewJSON {
	out := viewJSON{
		Date:       snap.Date.Format(event.DateLayout),
		Mode:       snap.Mode,
		RangeStart: snap.RangeStart.Format(event.DateTimeLayout),
		RangeEnd:   snap.RangeEnd.Format(event.DateTimeLayout),
		Calendars:  calendars,
		Days:       make([]dayJSON, 0, len(snap.Days)),
	}
	for _, d := range snap.Days {
		day := dayJSON{Date: d.Key, InMonth: d.InMonth, Events: make([]positionedJSON, 0, len(d.Positioned))}
		for _, p := range d.Positioned {
			day.Events = append(day.Events, toPositionedJSON(p))
		}
		out.Days = append(out.Days, day)
	}
	return out
}

func toPositionedJSON(p layout.PositionedEvent) positionedJSON {
	return positionedJSON{
		Event:           p.Event,
		Key:             p.Key(),
		Index:           p.Index,
		StartMinute:     p.StartMinute,
		EndMinute:       p.EndMinute,
		DurationMinutes: p.DurationMinutes,
		Column:          p.Column,
		Columns:         p.Columns,
		Left:            p.Left(),
		Width:           p.Width(),
	}
}

// controller builds a loaded controller for the navigation and filter state
// carried by the request query:
//
//	date=YYYY-MM-DD mode=day|week|month q=term owner= participant=
//	calendar=id (repeatable) from=YYYY-MM-DD to=YYYY-MM-DD
func (s *Server) controller(r *http.Request) (*view.Controller, error) {
	q := r.URL.Query()

	opts := append([]view.Option{
		view.WithLogger(s.logger),
		view.WithEngine(s.engine),
		view.WithClock(s.now),
	}, s.viewOpts...)

	if v := q.Get("mode"); v != "" {
		mode, err := view.ParseMode(v)
		if err != nil {
			return nil, &queryError{param: "mode", value: v}
		}
		opts = append(opts, view.WithMode(mode))
	}
	date, err := timeParam(q, "date")
	if err != nil {
		return nil, err
	}
	if date != nil {
		opts = append(opts, view.WithDate(event.StartOfDay(*date)))
	}
	from, err := timeParam(q, "from")
	if err != nil {
		return nil, err
	}
	to, err := timeParam(q, "to")
	if err != nil {
		return nil, err
	}

	c := view.New(s.store, opts...)
	if err := c.Load(r.Context()); err != nil {
		return nil, err
	}

	c.SetSearch(q.Get("q"))
	c.SetOwner(q.Get("owner"))
	c.SetParticipant(q.Get("participant"))
	if ids := q["calendar"]; len(ids) > 0 {
		st := c.Filter()
		st.Calendars = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			st.Calendars[id] = struct{}{}
		}
		c.SetFilter(st)
	}
	switch {
	case from != nil && to != nil:
		c.SetDateRange(*from, *to)
	case from != nil:
		c.SetDateRange(*from, *from)
	case to != nil:
		c.SetDateRange(*to, *to)
	}
	return c, nil
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	c, err := s.controller(r)
	if err != nil {
		s.writeRequestError(w, err)
		return
	}
	defer c.Close()

	writeJSON(w, http.StatusOK, toViewJSON(c.View(), c.Calendars()))
}

func (s *Server) handleCalendars(w http.ResponseWriter, r *http.Request) {
	c, err := s.controller(r)
	if err != nil {
		s.writeRequestError(w, err)
		return
	}
	defer c.Close()

	writeJSON(w, http.StatusOK, c.Calendars())
}

func (s *Server) writeRequestError(w http.ResponseWriter, err error) {
	if qerr, ok := err.(*queryError); ok {
		writeError(w, http.StatusBadRequest, qerr.Error())
		return
	}
	s.writeStoreError(w, err)
}
