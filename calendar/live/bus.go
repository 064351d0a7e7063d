package live

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the subscription buffer used when Subscribe gets a
// non-positive size.
const DefaultBuffer = 64

// Bus fans messages out to subscribers. Each subscriber has its own buffered
// channel; a subscriber whose buffer is full misses the message instead of
// stalling the publisher.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
	logger *slog.Logger
}

// BusOption customizes a Bus.
type BusOption func(*Bus)

// WithLogger sets the logger used to report dropped messages.
func WithLogger(logger *slog.Logger) BusOption {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBus creates an empty bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		subs:   make(map[*Subscription]struct{}),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscription is one subscriber's view of the bus.
type Subscription struct {
	bus     *Bus
	ch      chan Message
	once    sync.Once
	dropped atomic.Int64
}

// C delivers messages in publish order. It is closed by Close or when the
// bus closes.
func (s *Subscription) C() <-chan Message {
	return s.ch
}

// Dropped returns how many messages were discarded because the buffer was
// full.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Close unsubscribes and closes C. It is safe to call more than once.
func (s *Subscription) Close() {
	s.bus.remove(s)
}

// Subscribe registers a subscriber with the given buffer size. Subscribing
// to a closed bus returns an already closed subscription.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	s := &Subscription{bus: b, ch: make(chan Message, buffer)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.once.Do(func() { close(s.ch) })
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, s)
	s.once.Do(func() { close(s.ch) })
}

// Publish delivers m to every current subscriber without blocking.
func (b *Bus) Publish(m Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for s := range b.subs {
		select {
		case s.ch <- m:
		default:
			s.dropped.Add(1)
			b.logger.Warn("live subscriber buffer full, message dropped",
				"kind", string(m.Kind), "buffer", cap(s.ch))
		}
	}
}

// Subscribers returns the number of open subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscription. Later publishes are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for s := range b.subs {
		delete(b.subs, s)
		s.once.Do(func() { close(s.ch) })
	}
}
