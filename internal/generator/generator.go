// Package generator produces synthetic team activity: on every tick it
// records an activity entry and a matching calendar event, so a live view
// has something to show.
package generator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/cyp0633/lumencal/calendar/event"
	"github.com/cyp0633/lumencal/calendar/live"
	"github.com/cyp0633/lumencal/calendar/storage"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

const (
	// User is the author of generated entries.
	User = "Sistema Lumen"
	// CalendarID receives the generated events.
	CalendarID  = "mi-calendario"
	description = "Evento generado automáticamente"
)

var (
	kinds  = []event.Kind{event.KindDeal, event.KindMeeting, event.KindEmail, event.KindCall}
	titles = map[event.Kind]string{
		event.KindDeal:    "Actualización de negocio",
		event.KindMeeting: "Reunión programada",
		event.KindEmail:   "Email enviado",
		event.KindCall:    "Llamada registrada",
	}
)

// ActivityLog records activity entries.
type ActivityLog interface {
	AppendActivity(a live.Activity) live.Activity
}

// Option customizes a Generator.
type Option func(*Generator)

// WithLogger sets the generator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithRand sets the random source, for reproducible output.
func WithRand(r *rand.Rand) Option {
	return func(g *Generator) { g.rand = r }
}

// Generator writes synthetic activity to a store.
type Generator struct {
	store   storage.EventStore
	log     ActivityLog
	logger  *slog.Logger
	now     func() time.Time
	rand    *rand.Rand
	timeout time.Duration
}

// New creates a generator writing events to store and activities to log.
func New(store storage.EventStore, log ActivityLog, opts ...Option) *Generator {
	g := &Generator{
		store:   store,
		log:     log,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
		rand:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Tick records one activity and creates the matching one-hour event that
// starts now.
func (g *Generator) Tick(ctx context.Context) (live.Activity, event.Event, error) {
	now := event.WallClock(g.now())
	kind := kinds[g.rand.IntN(len(kinds))]
	title := fmt.Sprintf("%s • %s", titles[kind], now.Format("15:04:05"))

	activity := g.log.AppendActivity(live.Activity{
		ID:          uuid.NewString(),
		Kind:        kind,
		Title:       title,
		Description: description,
		Timestamp:   now.Format(time.RFC3339),
		User:        User,
	})

	start := now.Truncate(time.Minute)
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	created, err := g.store.Create(ctx, event.Event{
		Kind:        kind,
		Title:       title,
		Description: description,
		Start:       start,
		End:         start.Add(event.DefaultDuration),
		Owner:       User,
		CalendarID:  CalendarID,
	})
	if err != nil {
		g.logger.Error("failed to create generated event", "error", err)
		return activity, event.Event{}, fmt.Errorf("generate event: %w", err)
	}

	g.logger.Debug("generated activity", "kind", string(kind), "event_id", created.ID)
	return activity, created, nil
}

// Schedule registers Tick on c with the given cron spec. Descriptors such as
// "@every 10s" are accepted.
func (g *Generator) Schedule(ctx context.Context, c *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() {
		if ctx.Err() != nil {
			return
		}
		_, _, _ = g.Tick(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("schedule generator %q: %w", spec, err)
	}
	g.logger.Info("activity generator scheduled", "schedule", spec)
	return id, nil
}
