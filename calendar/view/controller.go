// Package view drives the calendar pipeline for one user session: it owns
// navigation and filter state, keeps the event collection in sync with the
// store and the live feed, and renders snapshots through
// expansion, filtering, day grouping and layout.
package view

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cyp0633/lumencal/calendar/event"
	"github.com/cyp0633/lumencal/calendar/filter"
	"github.com/cyp0633/lumencal/calendar/layout"
	"github.com/cyp0633/lumencal/calendar/live"
	"github.com/cyp0633/lumencal/calendar/recurrence"
	"github.com/cyp0633/lumencal/calendar/storage"
	"github.com/samber/mo"
)

// DefaultStoreTimeout bounds every store call issued by the controller.
const DefaultStoreTimeout = 10 * time.Second

// Feed is the live update channel.
type Feed interface {
	Subscribe(buffer int) *live.Subscription
}

// Option customizes a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides time.Now. The clock decides "today" and the default
// start of events with a broken start.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithEngine sets the recurrence engine. The controller does not close it.
func WithEngine(engine *recurrence.Engine) Option {
	return func(c *Controller) { c.engine = engine }
}

// WithFeed sets the live update channel used by Listen.
func WithFeed(feed Feed) Option {
	return func(c *Controller) { c.feed = feed }
}

// WithStoreTimeout sets the timeout of store calls.
func WithStoreTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithWeekStart sets the first day of the week (default Monday).
func WithWeekStart(d time.Weekday) Option {
	return func(c *Controller) { c.weekStart = d }
}

// WithSnapMinutes rounds Move and Resize deltas to multiples of n minutes.
// Zero disables snapping.
func WithSnapMinutes(n int) Option {
	return func(c *Controller) { c.snap = n }
}

// WithLayout sets the day layout options.
func WithLayout(opts layout.Options) Option {
	return func(c *Controller) { c.layoutOpts = opts }
}

// WithMode sets the initial view mode.
func WithMode(m Mode) Option {
	return func(c *Controller) { c.mode = m }
}

// WithDate sets the initial selected date.
func WithDate(t time.Time) Option {
	return func(c *Controller) { c.date = event.WallClock(t) }
}

// Controller is safe for concurrent use. Its lock is never held across a
// store call or an observer callback.
type Controller struct {
	store  storage.EventStore
	feed   Feed
	engine *recurrence.Engine
	logger *slog.Logger
	now    func() time.Time

	timeout    time.Duration
	weekStart  time.Weekday
	snap       int
	layoutOpts layout.Options

	mu       sync.Mutex
	date     time.Time
	mode     Mode
	filters  filter.State
	base     []event.Event
	pending  []*Mutation
	settled  map[string]*Mutation
	history  []string
	watchers map[int]func(Snapshot)
	nextID   int

	// tombstones holds IDs deleted by a push while a mutation on them was
	// pending.
	tombstones map[string]struct{}

	listening  bool
	stopListen context.CancelFunc
	listenDone chan struct{}
}

// New creates a controller over store.
func New(store storage.EventStore, opts ...Option) *Controller {
	c := &Controller{
		store:      store,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:        time.Now,
		timeout:    DefaultStoreTimeout,
		weekStart:  time.Monday,
		mode:       ModeWeek,
		settled:    make(map[string]*Mutation),
		watchers:   make(map[int]func(Snapshot)),
		tombstones: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.engine == nil {
		c.engine = recurrence.NewEngine(recurrence.WithLogger(c.logger))
	}
	if c.date.IsZero() {
		c.date = event.StartOfDay(event.WallClock(c.now()))
	}
	return c
}

// Load replaces the confirmed collection with the store contents. Pending
// mutations stay on top.
func (c *Controller) Load(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	events, err := c.store.List(ctx, nil)
	if err != nil {
		c.logger.Error("failed to load events", "error", err)
		return err
	}

	c.mu.Lock()
	c.base = events
	c.mu.Unlock()

	c.logger.Debug("events loaded", "count", len(events))
	c.notify()
	return nil
}

// Date returns the selected date.
func (c *Controller) Date() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.date
}

// Mode returns the view mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// VisibleRange returns the window of the current date and mode.
func (c *Controller) VisibleRange() (time.Time, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return VisibleRange(c.date, c.mode, c.weekStart)
}

func (c *Controller) update(fn func()) {
	c.mu.Lock()
	fn()
	c.mu.Unlock()
	c.notify()
}

// SetDate selects a date.
func (c *Controller) SetDate(t time.Time) {
	c.update(func() { c.date = event.WallClock(t) })
}

// SetMode switches the view mode.
func (c *Controller) SetMode(m Mode) {
	c.update(func() { c.mode = m })
}

// Navigate moves the selected date by step days, weeks or months depending
// on the mode.
func (c *Controller) Navigate(step int) {
	c.update(func() { c.date = Shift(c.date, c.mode, step) })
}

// Today selects the current day.
func (c *Controller) Today() {
	c.update(func() { c.date = event.StartOfDay(event.WallClock(c.now())) })
}

// Filter returns a copy of the filter state.
func (c *Controller) Filter() filter.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters.Clone()
}

// SetFilter replaces the filter state.
func (c *Controller) SetFilter(s filter.State) {
	c.update(func() { c.filters = s.Clone() })
}

// SetSearch sets the free-text term.
func (c *Controller) SetSearch(term string) {
	c.update(func() { c.filters.Term = term })
}

// SetOwner narrows to one owner; "" clears it.
func (c *Controller) SetOwner(owner string) {
	c.update(func() { c.filters.Owner = optional(owner) })
}

// SetParticipant narrows to one attendee; "" clears it.
func (c *Controller) SetParticipant(name string) {
	c.update(func() { c.filters.Participant = optional(name) })
}

// SetDateRange narrows to an inclusive range of days.
func (c *Controller) SetDateRange(from, to time.Time) {
	c.update(func() {
		c.filters.Dates = mo.Some(filter.DateRange{From: event.WallClock(from), To: event.WallClock(to)})
	})
}

// ClearDateRange removes the date range facet.
func (c *Controller) ClearDateRange() {
	c.update(func() { c.filters.Dates = mo.None[filter.DateRange]() })
}

// ToggleCalendar toggles a calendar in the active set.
func (c *Controller) ToggleCalendar(id string) {
	c.update(func() { c.filters.ToggleCalendar(id) })
}

// ResetFilters clears every facet.
func (c *Controller) ResetFilters() {
	c.update(func() { c.filters = filter.State{} })
}

func optional(value string) mo.Option[string] {
	if value == "" {
		return mo.None[string]()
	}
	return mo.Some(value)
}

// Watch registers fn to receive a fresh snapshot after every change. Calls
// happen on the goroutine that made the change. The returned function
// unregisters fn.
func (c *Controller) Watch(fn func(Snapshot)) (cancel func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.watchers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.watchers, id)
		c.mu.Unlock()
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	watchers := make([]func(Snapshot), 0, len(c.watchers))
	for _, fn := range c.watchers {
		watchers = append(watchers, fn)
	}
	c.mu.Unlock()

	if len(watchers) == 0 {
		return
	}
	snap := c.View()
	for _, fn := range watchers {
		fn(snap)
	}
}
