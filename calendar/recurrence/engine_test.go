package recurrence

import (
	"testing"
	"time"

	"github.com/cyp0633/lumencal/calendar/event"
	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
}

func recurring(start time.Time, rule event.RecurrenceRule) event.Event {
	return event.Event{
		ID:         "master",
		Title:      "Reunión semanal",
		Start:      start,
		End:        start.Add(time.Hour),
		Recurrence: &rule,
	}
}

func starts(occs []event.Occurrence) []time.Time {
	out := make([]time.Time, 0, len(occs))
	for _, o := range occs {
		out = append(out, o.Start)
	}
	return out
}

func TestEngine_Expand(t *testing.T) {
	engine := NewEngine()

	until := date(2024, 3, 7, 9)

	tests := []struct {
		name       string
		ev         event.Event
		rangeStart time.Time
		rangeEnd   time.Time
		expected   []time.Time
	}{
		{
			name: "Weekly with count",
			ev: recurring(date(2024, 3, 4, 9), event.RecurrenceRule{
				Frequency: event.FrequencyWeekly, Interval: 1, Count: 3,
			}),
			rangeStart: date(2024, 3, 1, 0),
			rangeEnd:   date(2024, 3, 31, 23),
			expected:   []time.Time{date(2024, 3, 4, 9), date(2024, 3, 11, 9), date(2024, 3, 18, 9)},
		},
		{
			name: "Every other day until inclusive",
			ev: recurring(date(2024, 3, 1, 9), event.RecurrenceRule{
				Frequency: event.FrequencyDaily, Interval: 2, Until: &until,
			}),
			rangeStart: date(2024, 3, 1, 0),
			rangeEnd:   date(2024, 3, 31, 0),
			expected:   []time.Time{date(2024, 3, 1, 9), date(2024, 3, 3, 9), date(2024, 3, 5, 9), date(2024, 3, 7, 9)},
		},
		{
			name: "Monthly clamps to month end",
			ev: recurring(date(2024, 1, 31, 9), event.RecurrenceRule{
				Frequency: event.FrequencyMonthly,
			}),
			rangeStart: date(2024, 1, 1, 0),
			rangeEnd:   date(2024, 5, 31, 23),
			expected: []time.Time{
				date(2024, 1, 31, 9), date(2024, 2, 29, 9), date(2024, 3, 31, 9),
				date(2024, 4, 30, 9), date(2024, 5, 31, 9),
			},
		},
		{
			name: "Count is counted from the master start",
			ev: recurring(date(2024, 3, 1, 9), event.RecurrenceRule{
				Frequency: event.FrequencyDaily, Count: 10,
			}),
			rangeStart: date(2024, 3, 8, 0),
			rangeEnd:   date(2024, 3, 31, 0),
			expected:   []time.Time{date(2024, 3, 8, 9), date(2024, 3, 9, 9), date(2024, 3, 10, 9)},
		},
		{
			name: "Unbounded rule stops at range end",
			ev: recurring(date(2020, 1, 6, 9), event.RecurrenceRule{
				Frequency: event.FrequencyWeekly,
			}),
			rangeStart: date(2024, 3, 1, 0),
			rangeEnd:   date(2024, 3, 15, 0),
			expected:   []time.Time{date(2024, 3, 4, 9), date(2024, 3, 11, 9)},
		},
		{
			name: "Unsupported frequency yields the master only",
			ev: recurring(date(2024, 3, 4, 9), event.RecurrenceRule{
				Frequency: event.Frequency("yearly"),
			}),
			rangeStart: date(2024, 3, 1, 0),
			rangeEnd:   date(2024, 3, 31, 0),
			expected:   []time.Time{date(2024, 3, 4, 9)},
		},
		{
			name:       "Non-recurring in range",
			ev:         recurring(date(2024, 3, 4, 9), event.RecurrenceRule{Frequency: event.FrequencyNone}),
			rangeStart: date(2024, 3, 4, 0),
			rangeEnd:   date(2024, 3, 4, 23),
			expected:   []time.Time{date(2024, 3, 4, 9)},
		},
		{
			name:       "Non-recurring out of range",
			ev:         event.Event{ID: "x", Start: date(2024, 3, 4, 9), End: date(2024, 3, 4, 10)},
			rangeStart: date(2024, 3, 5, 0),
			rangeEnd:   date(2024, 3, 5, 23),
			expected:   []time.Time{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			occs := engine.Expand(tt.ev, tt.rangeStart, tt.rangeEnd)
			assert.Equal(t, tt.expected, starts(occs))
			for _, o := range occs {
				assert.Equal(t, tt.ev.ID, o.ID)
				assert.Equal(t, tt.ev.Duration(), o.Duration())
			}
		})
	}
}

func TestEngine_ExpandKeepsIndex(t *testing.T) {
	engine := NewEngine()
	ev := recurring(date(2024, 3, 1, 9), event.RecurrenceRule{Frequency: event.FrequencyDaily})

	occs := engine.Expand(ev, date(2024, 3, 5, 0), date(2024, 3, 6, 0))

	require.Len(t, occs, 1)
	assert.Equal(t, 4, occs[0].Index)
}

func TestEngine_ExpandIncludesOvernightSpill(t *testing.T) {
	engine := NewEngine()
	ev := recurring(date(2024, 3, 1, 23), event.RecurrenceRule{Frequency: event.FrequencyDaily})
	ev.End = ev.Start.Add(2 * time.Hour)

	occs := engine.Expand(ev, date(2024, 3, 3, 0), event.EndOfDay(date(2024, 3, 3, 0)))

	// The Mar 2 occurrence ends at 01:00 on Mar 3.
	assert.Equal(t, []time.Time{date(2024, 3, 2, 23), date(2024, 3, 3, 23)}, starts(occs))
}

func TestEngine_MonthRollOver(t *testing.T) {
	cfg := DisabledCacheConfig
	cfg.MonthPolicy = MonthRollOver
	engine := NewEngineWithConfig(cfg)

	ev := recurring(date(2024, 1, 31, 9), event.RecurrenceRule{
		Frequency: event.FrequencyMonthly, Count: 3,
	})

	occs := engine.Expand(ev, date(2024, 1, 1, 0), date(2024, 12, 31, 0))

	assert.Equal(t, []time.Time{date(2024, 1, 31, 9), date(2024, 3, 2, 9), date(2024, 3, 31, 9)}, starts(occs))
}

func TestEngine_MaxIterations(t *testing.T) {
	cfg := DisabledCacheConfig
	cfg.MaxIterations = 5
	engine := NewEngineWithConfig(cfg)

	ev := recurring(date(2024, 3, 1, 9), event.RecurrenceRule{Frequency: event.FrequencyDaily})

	assert.Len(t, engine.Expand(ev, date(2024, 3, 1, 0), date(2024, 3, 31, 0)), 5)
}

func TestEngine_AllDay(t *testing.T) {
	engine := NewEngine()
	ev := event.Event{
		ID:         "feriado",
		AllDay:     true,
		Start:      date(2024, 3, 4, 0),
		End:        date(2024, 3, 5, 0),
		Recurrence: &event.RecurrenceRule{Frequency: event.FrequencyWeekly, Count: 2},
	}

	occs := engine.Expand(ev, date(2024, 3, 11, 0), event.EndOfDay(date(2024, 3, 11, 0)))

	require.Len(t, occs, 1)
	assert.True(t, occs[0].AllDay)
	assert.Equal(t, date(2024, 3, 12, 0), occs[0].End)
}

func TestEngine_HasOccurrenceInRange(t *testing.T) {
	engine := NewEngine()
	ev := recurring(date(2024, 1, 1, 9), event.RecurrenceRule{Frequency: event.FrequencyDaily, Count: 3})

	assert.True(t, engine.HasOccurrenceInRange(ev, date(2024, 1, 3, 0), date(2024, 1, 4, 0)))
	assert.False(t, engine.HasOccurrenceInRange(ev, date(2024, 1, 10, 0), date(2024, 1, 11, 0)))

	single := event.Event{ID: "x", Start: date(2024, 1, 1, 9), End: date(2024, 1, 1, 10)}
	assert.True(t, engine.HasOccurrenceInRange(single, date(2023, 12, 31, 0), date(2024, 1, 2, 0)))
}

func TestEngine_ExpandAll(t *testing.T) {
	engine := NewEngine()
	events := []event.Event{
		recurring(date(2024, 3, 4, 9), event.RecurrenceRule{Frequency: event.FrequencyDaily, Count: 2}),
		{ID: "single", Start: date(2024, 3, 4, 12), End: date(2024, 3, 4, 13)},
	}

	occs := engine.ExpandAll(events, date(2024, 3, 4, 0), date(2024, 3, 10, 0))

	require.Len(t, occs, 3)
	assert.Equal(t, "single", occs[2].ID)
}

func TestEngine_Cache(t *testing.T) {
	engine := NewEngineWithConfig(DefaultEngineConfig)
	defer engine.Close()

	ev := recurring(date(2024, 3, 4, 9), event.RecurrenceRule{Frequency: event.FrequencyWeekly, Count: 3})
	rangeStart, rangeEnd := date(2024, 3, 1, 0), date(2024, 3, 31, 0)

	first := engine.Expand(ev, rangeStart, rangeEnd)
	second := engine.Expand(ev, rangeStart, rangeEnd)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, engine.CacheStats().TotalEntries)

	edited := ev.Clone()
	edited.Recurrence.Count = 2
	assert.Len(t, engine.Expand(edited, rangeStart, rangeEnd), 2)
	assert.Equal(t, 2, engine.CacheStats().TotalEntries)

	engine.ClearCache()
	assert.Equal(t, 0, engine.CacheStats().TotalEntries)
}

func TestParseMonthPolicy(t *testing.T) {
	p, err := ParseMonthPolicy("")
	require.NoError(t, err)
	assert.Equal(t, MonthClamp, p)

	p, err = ParseMonthPolicy("RollOver")
	require.NoError(t, err)
	assert.Equal(t, MonthRollOver, p)
	assert.Equal(t, "rollover", p.String())

	_, err = ParseMonthPolicy("sideways")
	assert.Error(t, err)
}

func TestRuleRoundTrip(t *testing.T) {
	until := date(2024, 6, 30, 0)
	comp := ical.NewComponent(ical.CompEvent)

	require.NoError(t, ApplyRule(comp, &event.RecurrenceRule{
		Frequency: event.FrequencyMonthly,
		Interval:  2,
		Until:     &until,
	}))

	rule, err := RuleFromComponent(comp)
	require.NoError(t, err)
	require.NotNil(t, rule)
	assert.Equal(t, event.FrequencyMonthly, rule.Frequency)
	assert.Equal(t, 2, rule.Interval)
	require.NotNil(t, rule.Until)
	assert.Equal(t, until, *rule.Until)

	require.NoError(t, ApplyRule(comp, nil))
	rule, err = RuleFromComponent(comp)
	require.NoError(t, err)
	assert.Nil(t, rule)
}

func TestRuleFromComponent_Unsupported(t *testing.T) {
	comp := ical.NewComponent(ical.CompEvent)
	prop := ical.NewProp(ical.PropRecurrenceRule)
	prop.Value = "FREQ=YEARLY"
	comp.Props.Set(prop)

	_, err := RuleFromComponent(comp)
	assert.Error(t, err)
}
