package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cyp0633/lumencal/calendar/event"
	"github.com/cyp0633/lumencal/calendar/storage"
)

// maxBody bounds request bodies.
const maxBody = 1 << 20

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	events, err := s.store.List(r.Context(), opts)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if events == nil {
		events = []event.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// listOptions reads the optional start, end and calendar query parameters.
func listOptions(r *http.Request) (*storage.ListOptions, error) {
	q := r.URL.Query()
	opts := &storage.ListOptions{CalendarIDs: q["calendar"]}
	var err error
	if opts.Start, err = timeParam(q, "start"); err != nil {
		return nil, err
	}
	if opts.End, err = timeParam(q, "end"); err != nil {
		return nil, err
	}
	return opts, nil
}

func decodeEvent(w http.ResponseWriter, r *http.Request) (event.Event, error) {
	var ev event.Event
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(&ev); err != nil {
		return event.Event{}, err
	}
	return ev, nil
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := decodeEvent(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event payload: "+err.Error())
		return
	}
	created, err := s.store.Create(r.Context(), ev)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.logger.Info("event created", "event_id", created.ID, "calendar_id", created.CalendarID)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := decodeEvent(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event payload: "+err.Error())
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if ev.ID != "" && ev.ID != id {
		writeError(w, http.StatusBadRequest, "event id does not match the path")
		return
	}
	ev.ID = id

	updated, err := s.store.Update(r.Context(), ev)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.logger.Info("event updated", "event_id", updated.ID)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.logger.Info("event deleted", "event_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleActivities(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Activities())
}
