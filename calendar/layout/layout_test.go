package layout

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/cyp0633/lumencal/calendar/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func clock(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func occ(id string, start, end time.Time) event.Occurrence {
	return event.Occurrence{Event: event.Event{ID: id, Start: start, End: end}}
}

func TestLayout_Empty(t *testing.T) {
	got := Layout(day, nil, Options{})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLayout_OverlapScenario(t *testing.T) {
	got := Layout(day, []event.Occurrence{
		occ("C", clock(10, 0), clock(11, 0)),
		occ("B", clock(9, 30), clock(10, 30)),
		occ("A", clock(9, 0), clock(10, 0)),
	}, Options{})

	require.Len(t, got, 3)
	assert.Equal(t, 0, got["A"].Column)
	assert.Equal(t, 1, got["B"].Column)
	assert.Equal(t, 0, got["C"].Column)
	for _, id := range []string{"A", "B", "C"} {
		assert.Equal(t, 2, got[id].Columns, id)
	}

	assert.Equal(t, 540, got["A"].StartMinute)
	assert.Equal(t, 600, got["A"].EndMinute)
	assert.InDelta(t, 0.5, got["B"].Left(), 1e-9)
	assert.InDelta(t, 0.5, got["B"].Width(), 1e-9)
}

func TestLayout_BackToBackShareColumn(t *testing.T) {
	got := Layout(day, []event.Occurrence{
		occ("A", clock(9, 0), clock(10, 0)),
		occ("B", clock(10, 0), clock(11, 0)),
	}, Options{})

	assert.Equal(t, 0, got["A"].Column)
	assert.Equal(t, 0, got["B"].Column)
	assert.Equal(t, 1, got["A"].Columns)
	assert.Equal(t, 1, got["B"].Columns)
}

func TestLayout_ClustersAreIndependent(t *testing.T) {
	got := Layout(day, []event.Occurrence{
		occ("A", clock(9, 0), clock(10, 0)),
		occ("B", clock(9, 0), clock(10, 0)),
		occ("C", clock(9, 0), clock(10, 0)),
		occ("D", clock(14, 0), clock(15, 0)),
	}, Options{})

	assert.Equal(t, 3, got["A"].Columns)
	assert.Equal(t, 2, got["C"].Column)
	assert.Equal(t, 1, got["D"].Columns)
	assert.Equal(t, 0, got["D"].Column)
}

func TestLayout_LateColumnWidensWholeCluster(t *testing.T) {
	// A long event chains B and C into one cluster; C opens the third column.
	got := Layout(day, []event.Occurrence{
		occ("A", clock(9, 0), clock(12, 0)),
		occ("B", clock(9, 0), clock(9, 30)),
		occ("C", clock(11, 0), clock(11, 30)),
		occ("D", clock(11, 0), clock(11, 30)),
	}, Options{})

	for _, id := range []string{"A", "B", "C", "D"} {
		assert.Equal(t, 3, got[id].Columns, id)
	}
}

func TestLayout_VisualFloor(t *testing.T) {
	got := Layout(day, []event.Occurrence{
		occ("short", clock(9, 0), clock(9, 10)),
		occ("zero", clock(13, 0), clock(13, 0)),
		occ("late", clock(23, 50), clock(23, 55)),
	}, Options{})

	assert.Equal(t, 570, got["short"].EndMinute)
	assert.Equal(t, 30, got["short"].DurationMinutes)
	assert.Equal(t, 30, got["zero"].DurationMinutes)
	assert.Equal(t, 1430+30, got["late"].EndMinute)

	custom := Layout(day, []event.Occurrence{occ("short", clock(9, 0), clock(9, 10))}, Options{MinEventMinutes: 15})
	assert.Equal(t, 15, custom["short"].DurationMinutes)
}

func TestLayout_ClampsToDay(t *testing.T) {
	got := Layout(day, []event.Occurrence{
		occ("overnight", clock(-2, 0), clock(2, 0)),
		occ("allday", day, day.AddDate(0, 0, 1)),
	}, Options{})

	assert.Equal(t, 0, got["overnight"].StartMinute)
	assert.Equal(t, 120, got["overnight"].EndMinute)
	assert.Equal(t, MinutesPerDay, got["allday"].EndMinute)
	assert.Equal(t, 2, got["allday"].Columns)
}

func TestLayout_KeysOccurrences(t *testing.T) {
	a := occ("m", clock(-1, 0), clock(1, 0))
	b := occ("m", clock(23, 0), clock(25, 0))
	b.Index = 1

	got := Layout(day, []event.Occurrence{a, b}, Options{})

	assert.Contains(t, got, "m")
	assert.Contains(t, got, "m#1")
}

// peak returns the largest number of spans open at any instant.
func peak(occs []event.Occurrence) int {
	best := 0
	for _, o := range occs {
		n := 0
		for _, other := range occs {
			if !other.Start.After(o.Start) && other.End.After(o.Start) {
				n++
			}
		}
		if n > best {
			best = n
		}
	}
	return best
}

func TestLayout_RandomProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		var occs []event.Occurrence
		for i := 0; i < 1+rng.Intn(12); i++ {
			start := clock(8+rng.Intn(8), 15*rng.Intn(4))
			end := start.Add(time.Duration(1+rng.Intn(8)) * 15 * time.Minute)
			occs = append(occs, occ(fmt.Sprintf("e%d", i), start, end))
		}

		got := Layout(day, occs, Options{})
		require.Len(t, got, len(occs))

		maxColumns := 0
		for i, a := range occs {
			pa := got[a.Key()]
			assert.Less(t, pa.Column, pa.Columns)
			if pa.Columns > maxColumns {
				maxColumns = pa.Columns
			}
			for _, b := range occs[i+1:] {
				pb := got[b.Key()]
				if pa.Column == pb.Column {
					overlap := a.Start.Before(b.End) && b.Start.Before(a.End)
					assert.False(t, overlap, "round %d: %s and %s share column %d", round, a.ID, b.ID, pa.Column)
				}
			}
		}
		assert.Equal(t, peak(occs), maxColumns, "round %d", round)
	}
}

func TestLayout_Deterministic(t *testing.T) {
	occs := []event.Occurrence{
		occ("A", clock(9, 0), clock(10, 0)),
		occ("B", clock(9, 0), clock(10, 0)),
	}

	first := Layout(day, occs, Options{})
	second := Layout(day, occs, Options{})

	assert.Equal(t, first, second)
	assert.Equal(t, 0, first["A"].Column)
	assert.Equal(t, 1, first["B"].Column)
}

func TestSorted(t *testing.T) {
	got := Sorted(Layout(day, []event.Occurrence{
		occ("late", clock(15, 0), clock(16, 0)),
		occ("b", clock(9, 0), clock(10, 0)),
		occ("a", clock(9, 0), clock(9, 45)),
	}, Options{}))

	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, "late", got[2].ID)
}

func TestGroupByDay(t *testing.T) {
	rangeStart := day
	rangeEnd := event.EndOfDay(day.AddDate(0, 0, 2))

	groups := GroupByDay([]event.Occurrence{
		occ("single", clock(9, 0), clock(10, 0)),
		occ("overnight", clock(23, 0), clock(25, 0)),
		occ("until-midnight", clock(23, 0), clock(24, 0)),
		occ("before", clock(-30, 0), clock(-29, 0)),
		occ("spill", clock(-1, 0), clock(1, 0)),
	}, rangeStart, rangeEnd)

	keys := func(k string) []string {
		var out []string
		for _, o := range groups[k] {
			out = append(out, o.ID)
		}
		return out
	}

	assert.Equal(t, []string{"single", "overnight", "until-midnight", "spill"}, keys("2024-03-04"))
	assert.Equal(t, []string{"overnight"}, keys("2024-03-05"))
	assert.NotContains(t, groups, "2024-03-03")
	assert.Len(t, Days(rangeStart, rangeEnd), 3)
}
