// Package recurrence materializes the occurrences of recurring events inside
// a visible range.
//
// Occurrence n is always computed from the master start (start + n*interval
// units), never from the previous occurrence, so month clamping cannot drift
// and a rule can be evaluated from any index.
package recurrence

import (
	"io"
	"log/slog"
	"time"

	"github.com/cyp0633/lumencal/calendar/event"
)

const (
	opExpand        = "expand"
	opHasOccurrence = "has-occurrence"
)

// Engine provides recurrence expansion with optional caching
type Engine struct {
	cache  *Cache
	config EngineConfig
	logger *slog.Logger
}

// NewEngine creates an engine without a cache.
func NewEngine(opts ...Option) *Engine {
	return NewEngineWithConfig(DisabledCacheConfig, opts...)
}

// Close releases the cache, if any.
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// ClearCache drops every memoized result.
func (e *Engine) ClearCache() {
	if e.cache != nil {
		e.cache.Clear()
	}
}

// CacheStats returns cache statistics (zero when caching is disabled).
func (e *Engine) CacheStats() CacheStats {
	if e.cache == nil {
		return CacheStats{}
	}
	return e.cache.Stats()
}

// Config returns the engine configuration.
func (e *Engine) Config() EngineConfig {
	return e.config
}

// Expand returns the occurrences of ev that intersect [rangeStart, rangeEnd],
// ordered by start. A non-recurring event yields itself when it intersects
// the range. Every occurrence keeps the master ID and has the master
// duration. The returned occurrences must not be mutated.
func (e *Engine) Expand(ev event.Event, rangeStart, rangeEnd time.Time) []event.Occurrence {
	if !ev.Recurrence.Repeats() {
		if !ev.Intersects(rangeStart, rangeEnd) {
			return nil
		}
		return []event.Occurrence{{Event: ev}}
	}

	if e.cache != nil {
		if cached, ok := e.cache.Get(opExpand, ev, rangeStart, rangeEnd); ok {
			return cached.([]event.Occurrence)
		}
	}

	var out []event.Occurrence
	e.walk(ev, rangeStart, rangeEnd, func(occ event.Occurrence) bool {
		out = append(out, occ)
		return true
	})

	if e.cache != nil {
		e.cache.Set(opExpand, ev, rangeStart, rangeEnd, out)
	}
	return out
}

// ExpandAll expands every event of events into one slice, preserving input
// order per master.
func (e *Engine) ExpandAll(events []event.Event, rangeStart, rangeEnd time.Time) []event.Occurrence {
	var out []event.Occurrence
	for _, ev := range events {
		out = append(out, e.Expand(ev, rangeStart, rangeEnd)...)
	}
	return out
}

// HasOccurrenceInRange reports whether any occurrence of ev intersects the
// range. It stops at the first hit.
func (e *Engine) HasOccurrenceInRange(ev event.Event, rangeStart, rangeEnd time.Time) bool {
	if !ev.Recurrence.Repeats() {
		return ev.Intersects(rangeStart, rangeEnd)
	}

	if e.cache != nil {
		if cached, ok := e.cache.Get(opHasOccurrence, ev, rangeStart, rangeEnd); ok {
			return cached.(bool)
		}
	}

	found := false
	e.walk(ev, rangeStart, rangeEnd, func(event.Occurrence) bool {
		found = true
		return false
	})

	if e.cache != nil {
		e.cache.Set(opHasOccurrence, ev, rangeStart, rangeEnd, found)
	}
	return found
}

// walk steps through the repetitions of ev and calls visit for each one that
// intersects the range, until visit returns false or a stop condition holds:
// the occurrence starts after min(until, rangeEnd), Count is reached, the
// frequency is unsupported, or MaxIterations is exhausted.
func (e *Engine) walk(ev event.Event, rangeStart, rangeEnd time.Time, visit func(event.Occurrence) bool) {
	rule := *ev.Recurrence
	step := rule.Step()
	duration := ev.Duration()

	bound := rangeEnd
	if rule.Until != nil && rule.Until.Before(bound) {
		bound = *rule.Until
	}

	iterations := 0
	for n := e.firstCandidate(ev, rangeStart); ; n++ {
		if rule.Count > 0 && n >= rule.Count {
			return
		}
		if iterations >= e.config.MaxIterations {
			e.logger.Warn("recurrence iteration cap reached",
				"event_id", ev.ID, "max_iterations", e.config.MaxIterations)
			return
		}
		iterations++

		start, ok := e.shift(ev.Start, rule.Frequency, n*step)
		if !ok {
			e.logger.Warn("unsupported recurrence frequency",
				"event_id", ev.ID, "frequency", string(rule.Frequency))
			return
		}
		if start.After(bound) {
			return
		}

		end := start.Add(duration)
		if !event.Intersects(start, end, rangeStart, rangeEnd) {
			continue
		}

		occ := ev.Clone()
		occ.Start = start
		occ.End = end
		if !visit(event.Occurrence{Event: occ, Index: n}) {
			return
		}
	}
}

// firstCandidate skips the repetitions of fixed-length rules that end before
// rangeStart. Monthly rules always start from 0.
func (e *Engine) firstCandidate(ev event.Event, rangeStart time.Time) int {
	var unit time.Duration
	switch ev.Recurrence.Frequency {
	case event.FrequencyDaily:
		unit = 24 * time.Hour
	case event.FrequencyWeekly:
		unit = 7 * 24 * time.Hour
	default:
		return 0
	}

	gap := rangeStart.Sub(ev.End)
	if gap <= 0 {
		return 0
	}
	return int(gap / (unit * time.Duration(ev.Recurrence.Step())))
}

// shift returns start advanced by units of freq. Index 0 is the master itself
// for every frequency, so an unsupported rule still yields its first
// occurrence.
func (e *Engine) shift(start time.Time, freq event.Frequency, units int) (time.Time, bool) {
	if units == 0 {
		return start, true
	}
	switch freq {
	case event.FrequencyDaily:
		return start.AddDate(0, 0, units), true
	case event.FrequencyWeekly:
		return start.AddDate(0, 0, 7*units), true
	case event.FrequencyMonthly:
		return addMonths(start, units, e.config.MonthPolicy), true
	default:
		return time.Time{}, false
	}
}

// addMonths adds months to t. With MonthClamp the day is clamped to the
// length of the target month.
func addMonths(t time.Time, months int, policy MonthPolicy) time.Time {
	if policy == MonthRollOver {
		return t.AddDate(0, months, 0)
	}

	year, month, day := t.Date()
	first := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(first.Year(), first.Month(), t.Location()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
