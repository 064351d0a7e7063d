package recurrence

import (
	"testing"
	"time"

	"github.com/cyp0633/lumencal/calendar/event"
	"github.com/stretchr/testify/assert"
)

func newTestCache(maxEntries int, clock *time.Time) *Cache {
	c := NewCache(CacheConfig{TTL: time.Minute, MaxEntries: maxEntries, CleanupInterval: time.Hour})
	c.now = func() time.Time { return *clock }
	return c
}

func TestCache_Expiry(t *testing.T) {
	clock := date(2024, 3, 1, 9)
	c := newTestCache(10, &clock)
	defer c.Close()

	ev := event.Event{ID: "a"}
	c.Set(opExpand, ev, clock, clock, "value")

	got, ok := c.Get(opExpand, ev, clock, clock)
	assert.True(t, ok)
	assert.Equal(t, "value", got)

	clock = clock.Add(2 * time.Minute)
	assert.Equal(t, 1, c.Stats().ExpiredEntries)

	_, ok = c.Get(opExpand, ev, date(2024, 3, 1, 9), date(2024, 3, 1, 9))
	assert.False(t, ok)
	assert.Equal(t, 0, c.Stats().TotalEntries)
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	clock := date(2024, 3, 1, 9)
	c := newTestCache(2, &clock)
	defer c.Close()

	a, b, d := event.Event{ID: "a"}, event.Event{ID: "b"}, event.Event{ID: "d"}
	rs, re := date(2024, 3, 1, 0), date(2024, 3, 2, 0)

	c.Set(opExpand, a, rs, re, 1)
	clock = clock.Add(time.Second)
	c.Set(opExpand, b, rs, re, 2)
	clock = clock.Add(time.Second)
	c.Get(opExpand, a, rs, re) // a is now more recent than b
	clock = clock.Add(time.Second)
	c.Set(opExpand, d, rs, re, 3)

	_, okA := c.Get(opExpand, a, rs, re)
	_, okB := c.Get(opExpand, b, rs, re)
	_, okD := c.Get(opExpand, d, rs, re)
	assert.True(t, okA)
	assert.False(t, okB)
	assert.True(t, okD)
}

func TestCache_KeyCoversOperationAndRange(t *testing.T) {
	ev := event.Event{ID: "a", Title: "Demo"}
	rs, re := date(2024, 3, 1, 0), date(2024, 3, 2, 0)

	base := cacheKey(opExpand, ev, rs, re)
	assert.Equal(t, base, cacheKey(opExpand, ev.Clone(), rs, re))
	assert.NotEqual(t, base, cacheKey(opHasOccurrence, ev, rs, re))
	assert.NotEqual(t, base, cacheKey(opExpand, ev, rs, re.Add(time.Hour)))

	ev.Attendees = []string{"Ana"}
	assert.NotEqual(t, base, cacheKey(opExpand, ev, rs, re))
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	c := NewCache(DefaultCacheConfig)
	c.Close()
	c.Close()
	assert.Equal(t, 0, c.Stats().TotalEntries)
}
