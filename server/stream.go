package server

import (
	"net/http"
	"time"

	"github.com/cyp0633/lumencal/calendar/event"
	"github.com/cyp0633/lumencal/calendar/live"
	"github.com/google/uuid"
)

// streamBuffer is the bus buffer of one SSE client.
const streamBuffer = 64

// connectedActivity greets a new stream subscriber.
func connectedActivity() live.Activity {
	return live.Activity{
		ID:          uuid.NewString(),
		Kind:        event.KindEmail,
		Title:       "Canal en vivo conectado",
		Description: "Recibirás actualizaciones del equipo en tiempo real",
		Timestamp:   "Ahora",
		User:        "Sistema Lumen",
	}
}

// handleStream forwards bus messages to the client as server-sent events
// until the client goes away or the bus closes.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sub := s.bus.Subscribe(streamBuffer)
	defer sub.Close()

	sw, err := live.NewWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := sw.Send(live.ActivityMessage(connectedActivity())); err != nil {
		return
	}
	s.logger.Info("stream client connected", "remote", r.RemoteAddr, "subscribers", s.bus.Subscribers())

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("stream client disconnected", "remote", r.RemoteAddr, "dropped", sub.Dropped())
			return
		case <-ticker.C:
			if err := sw.KeepAlive(); err != nil {
				return
			}
		case m, ok := <-sub.C():
			if !ok {
				return
			}
			if err := sw.Send(m); err != nil {
				s.logger.Warn("stream write failed", "remote", r.RemoteAddr, "error", err)
				return
			}
		}
	}
}
