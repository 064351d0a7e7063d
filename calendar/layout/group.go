package layout

import (
	"time"

	"github.com/cyp0633/lumencal/calendar/event"
)

// Days lists the midnights of every day in [rangeStart, rangeEnd].
func Days(rangeStart, rangeEnd time.Time) []time.Time {
	var days []time.Time
	for d := event.StartOfDay(rangeStart); !d.After(rangeEnd); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// GroupByDay buckets occurrences under the YYYY-MM-DD key of every day of
// [rangeStart, rangeEnd] they touch. An occurrence ending exactly at midnight
// does not touch the following day. Input order is kept within a bucket.
func GroupByDay(occs []event.Occurrence, rangeStart, rangeEnd time.Time) map[string][]event.Occurrence {
	out := make(map[string][]event.Occurrence)
	for _, occ := range occs {
		first := event.StartOfDay(occ.Start)
		last := first
		if occ.End.After(occ.Start) {
			last = event.StartOfDay(occ.End.Add(-time.Nanosecond))
		}
		if lo := event.StartOfDay(rangeStart); first.Before(lo) {
			first = lo
		}
		for d := first; !d.After(last) && !d.After(rangeEnd); d = d.AddDate(0, 0, 1) {
			key := d.Format(event.DateLayout)
			out[key] = append(out[key], occ)
		}
	}
	return out
}
