package recurrence

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cyp0633/lumencal/calendar/event"
)

// CacheEntry represents a cached expansion result
type CacheEntry struct {
	Result     any // []event.Occurrence for Expand, bool for HasOccurrenceInRange
	ExpiresAt  time.Time
	AccessedAt time.Time
}

// Cache memoizes expansion results keyed by the master event and the range.
type Cache struct {
	entries         map[string]*CacheEntry
	mutex           sync.RWMutex
	ttl             time.Duration
	maxEntries      int
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	closeOnce       sync.Once
	now             func() time.Time
}

// CacheConfig holds configuration for the recurrence cache
type CacheConfig struct {
	TTL             time.Duration // How long entries stay valid
	MaxEntries      int           // Maximum number of entries before eviction
	CleanupInterval time.Duration // How often to sweep expired entries
}

// DefaultCacheConfig keeps a view's worth of ranges warm while navigating.
var DefaultCacheConfig = CacheConfig{
	TTL:             5 * time.Minute,
	MaxEntries:      1000,
	CleanupInterval: time.Minute,
}

// NewCache creates a cache and starts its cleanup goroutine. Call Close to
// stop it.
func NewCache(config CacheConfig) *Cache {
	config = config.withDefaults()
	cache := &Cache{
		entries:         make(map[string]*CacheEntry),
		ttl:             config.TTL,
		maxEntries:      config.MaxEntries,
		cleanupInterval: config.CleanupInterval,
		stopCleanup:     make(chan struct{}),
		now:             time.Now,
	}

	go cache.cleanupLoop()

	return cache
}

func writeString(h hash.Hash, s string) {
	h.Write([]byte(s))
	h.Write([]byte{0})
}

func writeTime(h hash.Hash, t time.Time) {
	writeString(h, t.Format(time.RFC3339Nano))
}

// cacheKey hashes every field of ev that can influence an expansion result.
// Any edit to the master therefore misses the cache.
func cacheKey(operation string, ev event.Event, rangeStart, rangeEnd time.Time) string {
	h := sha256.New()

	writeString(h, operation)
	writeTime(h, rangeStart)
	writeTime(h, rangeEnd)

	writeString(h, ev.ID)
	writeString(h, string(ev.Kind))
	writeString(h, ev.Title)
	writeString(h, ev.Description)
	writeTime(h, ev.Start)
	writeTime(h, ev.End)
	writeString(h, strconv.FormatBool(ev.AllDay))
	writeString(h, ev.CalendarID)
	writeString(h, ev.Owner)
	writeString(h, ev.Organizer)
	writeString(h, ev.Location)
	writeString(h, ev.Color)
	writeString(h, strconv.Itoa(len(ev.Attendees)))
	for _, a := range ev.Attendees {
		writeString(h, a)
	}

	if r := ev.Recurrence; r != nil {
		writeString(h, string(r.Frequency))
		writeString(h, strconv.Itoa(r.Interval))
		writeString(h, strconv.Itoa(r.Count))
		if r.Until != nil {
			writeTime(h, *r.Until)
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves a cached result if it exists and hasn't expired
func (c *Cache) Get(operation string, ev event.Event, rangeStart, rangeEnd time.Time) (any, bool) {
	key := cacheKey(operation, ev, rangeStart, rangeEnd)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		return nil, false
	}

	now := c.now()
	if now.After(entry.ExpiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	entry.AccessedAt = now

	return entry.Result, true
}

// Set stores a result in the cache
func (c *Cache) Set(operation string, ev event.Event, rangeStart, rangeEnd time.Time, result any) {
	key := cacheKey(operation, ev, rangeStart, rangeEnd)
	now := c.now()

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = &CacheEntry{
		Result:     result,
		ExpiresAt:  now.Add(c.ttl),
		AccessedAt: now,
	}

	if len(c.entries) > c.maxEntries {
		c.cleanup()
	}
}

// cleanup removes expired entries, then the least recently accessed ones
// while over the limit. Callers hold the write lock.
func (c *Cache) cleanup() {
	now := c.now()

	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
		}
	}

	excess := len(c.entries) - c.maxEntries
	if excess <= 0 {
		return
	}

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return c.entries[keys[i]].AccessedAt.Before(c.entries[keys[j]].AccessedAt)
	})
	for _, key := range keys[:excess] {
		delete(c.entries, key)
	}
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mutex.Lock()
			c.cleanup()
			c.mutex.Unlock()
		case <-c.stopCleanup:
			return
		}
	}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mutex.Lock()
	c.entries = make(map[string]*CacheEntry)
	c.mutex.Unlock()
}

// Close stops the cleanup goroutine and clears the cache. It is safe to call
// more than once.
func (c *Cache) Close() {
	c.closeOnce.Do(func() { close(c.stopCleanup) })
	c.Clear()
}

// Stats returns cache statistics
func (c *Cache) Stats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	now := c.now()
	stats := CacheStats{TotalEntries: len(c.entries)}
	for _, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			stats.ExpiredEntries++
		}
	}
	stats.ActiveEntries = stats.TotalEntries - stats.ExpiredEntries

	return stats
}

// CacheStats provides information about cache occupancy
type CacheStats struct {
	TotalEntries   int
	ExpiredEntries int
	ActiveEntries  int
}
