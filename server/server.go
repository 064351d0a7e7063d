// Package server exposes the calendar over HTTP: a JSON API for views and
// event CRUD, a server-sent events stream of live changes, iCalendar export
// and a read-only CalDAV collection answering calendar-query REPORTs.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cyp0633/lumencal/calendar/event"
	"github.com/cyp0633/lumencal/calendar/live"
	"github.com/cyp0633/lumencal/calendar/recurrence"
	"github.com/cyp0633/lumencal/calendar/storage"
	"github.com/cyp0633/lumencal/calendar/view"
)

const (
	// HTTP headers
	headerContentType = "Content-Type"
	headerDAV         = "DAV"
	headerAllow       = "Allow"

	// MIME types
	mimeTypeCalendar = "text/calendar; charset=utf-8"
	mimeTypeJSON     = "application/json; charset=utf-8"

	// DAV capability values
	davCapabilities = "1, calendar-access"
	allowedMethods  = "OPTIONS, GET, REPORT"

	// DefaultKeepAlive is the interval of SSE keep-alive comments.
	DefaultKeepAlive = 15 * time.Second
)

// Store is the event store the server works against.
type Store interface {
	storage.EventStore
	Get(ctx context.Context, id string) (event.Event, error)
	Activities() []live.Activity
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEngine sets the recurrence engine shared by all requests.
func WithEngine(engine *recurrence.Engine) Option {
	return func(s *Server) { s.engine = engine }
}

// WithViewOptions sets options applied to the controller of every view
// request.
func WithViewOptions(opts ...view.Option) Option {
	return func(s *Server) { s.viewOpts = append(s.viewOpts, opts...) }
}

// WithKeepAlive sets the SSE keep-alive interval.
func WithKeepAlive(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.keepAlive = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// Server is the HTTP front end of the calendar.
type Server struct {
	store     Store
	bus       *live.Bus
	engine    *recurrence.Engine
	logger    *slog.Logger
	viewOpts  []view.Option
	keepAlive time.Duration
	now       func() time.Time
	mux       *http.ServeMux
}

// New creates a server over store. Live changes are read from bus.
func New(store Store, bus *live.Bus, opts ...Option) (*Server, error) {
	if store == nil {
		return nil, errors.New("storage is required")
	}
	if bus == nil {
		return nil, errors.New("live bus is required")
	}

	s := &Server{
		store:     store,
		bus:       bus,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		keepAlive: DefaultKeepAlive,
		now:       time.Now,
		mux:       http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = recurrence.NewEngine(recurrence.WithLogger(s.logger))
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/view", s.handleView)
	s.mux.HandleFunc("GET /api/calendars", s.handleCalendars)
	s.mux.HandleFunc("GET /api/events", s.handleListEvents)
	s.mux.HandleFunc("POST /api/events", s.handleCreateEvent)
	s.mux.HandleFunc("PUT /api/events/{id}", s.handleUpdateEvent)
	s.mux.HandleFunc("DELETE /api/events/{id}", s.handleDeleteEvent)
	s.mux.HandleFunc("GET /api/activities", s.handleActivities)
	s.mux.HandleFunc("GET /api/stream", s.handleStream)
	s.mux.HandleFunc("GET /calendar.ics", s.handleExport)
	s.mux.HandleFunc("GET /calendar/{object}", s.handleGetObject)
	s.mux.HandleFunc("OPTIONS /calendar/", s.handleOptions)
	s.mux.HandleFunc("REPORT /calendar/", s.handleReport)

	return s, nil
}

// ServeHTTP implements http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("request", "method", r.Method, "path", r.URL.Path)
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set(headerContentType, "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok\n")
}

func (s *Server) handleOptions(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set(headerDAV, davCapabilities)
	w.Header().Set(headerAllow, allowedMethods)
	w.WriteHeader(http.StatusOK)
}

// errorBody is the JSON error response.
type errorBody struct {
	Error  string              `json:"error"`
	Type   storage.ErrorType   `json:"type,omitempty"`
	Fields map[string][]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(headerContentType, mimeTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeStoreError maps a store rejection to its HTTP status.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	var serr *storage.Error
	if !errors.As(err, &serr) {
		s.logger.Error("store call failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	status := http.StatusInternalServerError
	switch serr.Type {
	case storage.ErrNotFound:
		status = http.StatusNotFound
	case storage.ErrAlreadyExists:
		status = http.StatusConflict
	case storage.ErrInvalidInput:
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, errorBody{Error: serr.Message, Type: serr.Type, Fields: serr.Fields})
}
