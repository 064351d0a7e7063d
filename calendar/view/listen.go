package view

import (
	"context"
	"errors"

	"github.com/cyp0633/lumencal/calendar/live"
)

var (
	// ErrNoFeed is returned by Listen when the controller has no feed.
	ErrNoFeed = errors.New("view: no live feed configured")
	// ErrAlreadyListening is returned by a second Listen while the first
	// listener runs.
	ErrAlreadyListening = errors.New("view: already listening")
)

// listenBuffer is the subscription buffer of the live listener.
const listenBuffer = 128

// Listen subscribes to the live feed and applies pushed changes to the
// confirmed collection until ctx is done or Close is called. Pending
// mutations stay on top of pushed changes.
func (c *Controller) Listen(ctx context.Context) error {
	if c.feed == nil {
		return ErrNoFeed
	}

	c.mu.Lock()
	if c.listening {
		c.mu.Unlock()
		return ErrAlreadyListening
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.listening = true
	c.stopListen = cancel
	c.listenDone = done
	c.mu.Unlock()

	sub := c.feed.Subscribe(listenBuffer)
	go func() {
		defer close(done)
		defer sub.Close()
		defer c.stopped(done)
		c.listen(ctx, sub)
	}()
	return nil
}

// stopped clears the listener state once the listener identified by done
// exits on its own, so Listen can be called again.
func (c *Controller) stopped(done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listenDone != done {
		return
	}
	c.stopListen()
	c.listening = false
	c.stopListen = nil
	c.listenDone = nil
}

func (c *Controller) listen(ctx context.Context, sub *live.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-sub.C():
			if !ok {
				c.logger.Debug("live feed closed")
				return
			}
			if c.apply(m) {
				c.notify()
			}
		}
	}
}

// apply merges one pushed message and reports whether the collection
// changed.
func (c *Controller) apply(m live.Message) bool {
	if err := m.Validate(); err != nil {
		c.logger.Warn("discarding malformed live message", "error", err)
		return false
	}
	if m.Kind != live.KindCalendar {
		return false
	}

	change := m.Calendar
	c.mu.Lock()
	defer c.mu.Unlock()

	switch change.Action {
	case live.ActionCreated, live.ActionUpdated:
		c.base = upsert(c.base, change.Event.Clone())
		delete(c.tombstones, change.Event.ID)
	case live.ActionDeleted:
		c.base = remove(c.base, change.EventID)
		// A mutation in flight must not bring the event back when it settles.
		if c.pendingForLocked(change.EventID) {
			c.tombstones[change.EventID] = struct{}{}
		}
	}
	c.logger.Debug("live change applied", "action", string(change.Action), "event_id", change.ID())
	return true
}

// Close stops the live listener and waits for it to exit. Store calls
// already issued still complete.
func (c *Controller) Close() {
	c.mu.Lock()
	cancel, done := c.stopListen, c.listenDone
	c.listening = false
	c.stopListen = nil
	c.listenDone = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
