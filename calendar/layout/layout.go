// Package layout places the events of one day into side-by-side columns so
// that overlapping events never share a column.
//
// Columns are assigned greedily (first free column in start order), which is
// optimal for interval graphs: a cluster whose peak concurrency is K gets
// exactly K columns. A second pass gives every member of a cluster the
// cluster's final column count so widths line up.
package layout

import (
	"sort"
	"time"

	"github.com/cyp0633/lumencal/calendar/event"
)

const (
	// MinutesPerDay is the height of a day column in minutes.
	MinutesPerDay = 24 * 60
	// DefaultMinEventMinutes is the visual floor for short events.
	DefaultMinEventMinutes = 30
)

// Options tunes the layout.
type Options struct {
	// MinEventMinutes is the minimum rendered duration (0 = default).
	MinEventMinutes int
}

func (o Options) floor() int {
	if o.MinEventMinutes <= 0 {
		return DefaultMinEventMinutes
	}
	return o.MinEventMinutes
}

// PositionedEvent is an occurrence with its place in the day grid.
type PositionedEvent struct {
	event.Occurrence

	// StartMinute and EndMinute are offsets from the start of the day. The end
	// reflects the visual floor, never the stored end.
	StartMinute     int
	EndMinute       int
	DurationMinutes int

	Column  int
	Columns int
}

// Left is the horizontal offset as a fraction of the day column width.
func (p PositionedEvent) Left() float64 {
	return float64(p.Column) / float64(p.Columns)
}

// Width is the event width as a fraction of the day column width.
func (p PositionedEvent) Width() float64 {
	return 1 / float64(p.Columns)
}

// Top is the vertical offset in pixels for the given minute height.
func (p PositionedEvent) Top(minuteHeight float64) float64 {
	return float64(p.StartMinute) * minuteHeight
}

// Height is the rendered height in pixels for the given minute height.
func (p PositionedEvent) Height(minuteHeight float64) float64 {
	return float64(p.DurationMinutes) * minuteHeight
}

type slot struct {
	occ   event.Occurrence
	start time.Time
	end   time.Time // occupancy end; degenerate spans occupy the floor
}

// Layout positions the occurrences of day. The result is keyed by
// Occurrence.Key. Zero occurrences give an empty map.
func Layout(day time.Time, occs []event.Occurrence, opts Options) map[string]PositionedEvent {
	out := make(map[string]PositionedEvent, len(occs))
	if len(occs) == 0 {
		return out
	}

	floor := opts.floor()
	dayStart := event.StartOfDay(day)

	slots := make([]slot, len(occs))
	for i, occ := range occs {
		s := slot{occ: occ, start: occ.Start, end: occ.End}
		if !s.end.After(s.start) {
			s.end = s.start.Add(time.Duration(floor) * time.Minute)
		}
		slots[i] = s
	}
	sort.SliceStable(slots, func(i, j int) bool {
		if !slots[i].start.Equal(slots[j].start) {
			return slots[i].start.Before(slots[j].start)
		}
		return slots[i].end.Before(slots[j].end)
	})

	columns := make([]int, len(slots))
	var (
		columnEnds   []time.Time
		clusterFirst int
		clusterEnd   time.Time
	)
	closeCluster := func(upTo int) {
		for i := clusterFirst; i < upTo; i++ {
			out[slots[i].occ.Key()] = position(slots[i], dayStart, columns[i], len(columnEnds), floor)
		}
	}

	for i, s := range slots {
		if i > 0 && !s.start.Before(clusterEnd) {
			closeCluster(i)
			columnEnds = columnEnds[:0]
			clusterFirst = i
		}

		col := -1
		for c, end := range columnEnds {
			if !end.After(s.start) {
				col = c
				break
			}
		}
		if col < 0 {
			col = len(columnEnds)
			columnEnds = append(columnEnds, s.end)
		} else {
			columnEnds[col] = s.end
		}
		columns[i] = col

		if i == clusterFirst || s.end.After(clusterEnd) {
			clusterEnd = s.end
		}
	}
	closeCluster(len(slots))

	return out
}

func position(s slot, dayStart time.Time, column, columns, floor int) PositionedEvent {
	startMin := minutesFrom(dayStart, s.occ.Start)
	endMin := minutesFrom(dayStart, s.occ.End)
	if endMin > MinutesPerDay {
		endMin = MinutesPerDay
	}
	if endMin-startMin < floor {
		endMin = startMin + floor
	}

	return PositionedEvent{
		Occurrence:      s.occ,
		StartMinute:     startMin,
		EndMinute:       endMin,
		DurationMinutes: endMin - startMin,
		Column:          column,
		Columns:         columns,
	}
}

// minutesFrom returns whole minutes between dayStart and t, clamped to the
// day's start.
func minutesFrom(dayStart, t time.Time) int {
	m := int(t.Sub(dayStart) / time.Minute)
	if m < 0 {
		return 0
	}
	return m
}

// Sorted returns the positioned events in render order: by start minute,
// then column, then key.
func Sorted(positioned map[string]PositionedEvent) []PositionedEvent {
	out := make([]PositionedEvent, 0, len(positioned))
	for _, p := range positioned {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.StartMinute != b.StartMinute {
			return a.StartMinute < b.StartMinute
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.Key() < b.Key()
	})
	return out
}
