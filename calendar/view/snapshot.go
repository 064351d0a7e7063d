package view

import (
	"strings"
	"time"
	"unicode"

	"github.com/cyp0633/lumencal/calendar/event"
	"github.com/cyp0633/lumencal/calendar/filter"
	"github.com/cyp0633/lumencal/calendar/layout"
)

// Day is one column of the timeline or one cell of the month grid.
type Day struct {
	Date time.Time
	// Key is the YYYY-MM-DD form of Date.
	Key string
	// InMonth is false for leading and trailing days of a month grid.
	InMonth     bool
	Occurrences []event.Occurrence
	// Layout is keyed by Occurrence.Key.
	Layout     map[string]layout.PositionedEvent
	Positioned []layout.PositionedEvent
}

// Snapshot is a render-ready view of the calendar at one instant.
type Snapshot struct {
	Date       time.Time
	Mode       Mode
	RangeStart time.Time
	RangeEnd   time.Time
	Filter     filter.State
	// Events is the collection with pending mutations applied, before
	// filtering.
	Events      []event.Event
	Occurrences []event.Occurrence
	Days        []Day
	Pending     []Mutation
}

// View computes a snapshot. State is copied under the lock and the pipeline
// runs outside it.
func (c *Controller) View() Snapshot {
	c.mu.Lock()
	date, mode := c.date, c.mode
	filters := c.filters.Clone()
	events := c.mergedLocked()
	pending := make([]Mutation, 0, len(c.pending))
	for _, m := range c.pending {
		pending = append(pending, *m)
	}
	c.mu.Unlock()

	rangeStart, rangeEnd := VisibleRange(date, mode, c.weekStart)
	now := c.now()
	normalized := make([]event.Event, 0, len(events))
	for _, ev := range events {
		normalized = append(normalized, event.Normalize(ev, now))
	}

	occs := c.engine.ExpandAll(normalized, rangeStart, rangeEnd)
	occs = filter.ApplyOccurrences(occs, filters, rangeStart, rangeEnd)
	grouped := layout.GroupByDay(occs, rangeStart, rangeEnd)

	var days []Day
	for _, d := range layout.Days(rangeStart, rangeEnd) {
		key := d.Format(event.DateLayout)
		dayOccs := grouped[key]
		positioned := layout.Layout(d, dayOccs, c.layoutOpts)
		days = append(days, Day{
			Date:        d,
			Key:         key,
			InMonth:     mode != ModeMonth || d.Month() == date.Month(),
			Occurrences: dayOccs,
			Layout:      positioned,
			Positioned:  layout.Sorted(positioned),
		})
	}

	c.logger.Debug("view computed",
		"mode", string(mode), "range_start", rangeStart, "range_end", rangeEnd,
		"events", len(events), "occurrences", len(occs))

	return Snapshot{
		Date:        date,
		Mode:        mode,
		RangeStart:  rangeStart,
		RangeEnd:    rangeEnd,
		Filter:      filters,
		Events:      events,
		Occurrences: occs,
		Days:        days,
		Pending:     pending,
	}
}

const (
	DefaultCalendarID    = "mi-calendario"
	DefaultCalendarLabel = "Mi calendario"
	DefaultCalendarColor = "#6366f1"
)

// CalendarInfo describes a calendar shown in the sidebar.
type CalendarInfo struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Color  string `json:"color"`
	Active bool   `json:"active"`
}

// Calendars derives the calendars present in the collection, in first-seen
// order. The color of a calendar is that of its first colored event. With
// no events the default calendar is returned.
func (c *Controller) Calendars() []CalendarInfo {
	c.mu.Lock()
	events := c.mergedLocked()
	filters := c.filters.Clone()
	c.mu.Unlock()

	active := func(id string) bool {
		if len(filters.Calendars) == 0 {
			return true
		}
		_, ok := filters.Calendars[id]
		return ok
	}

	var out []CalendarInfo
	index := make(map[string]int)
	for _, ev := range events {
		if ev.CalendarID == "" {
			continue
		}
		i, seen := index[ev.CalendarID]
		if !seen {
			index[ev.CalendarID] = len(out)
			out = append(out, CalendarInfo{
				ID:     ev.CalendarID,
				Label:  humanize(ev.CalendarID),
				Active: active(ev.CalendarID),
			})
			i = len(out) - 1
		}
		if out[i].Color == "" && ev.Color != "" {
			out[i].Color = ev.Color
		}
	}
	if len(out) == 0 {
		return []CalendarInfo{{
			ID:     DefaultCalendarID,
			Label:  DefaultCalendarLabel,
			Color:  DefaultCalendarColor,
			Active: active(DefaultCalendarID),
		}}
	}
	for i := range out {
		if out[i].Color == "" {
			out[i].Color = DefaultCalendarColor
		}
	}
	return out
}

// humanize turns "equipo-ventas" into "Equipo Ventas".
func humanize(id string) string {
	words := strings.Fields(strings.ReplaceAll(id, "-", " "))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
