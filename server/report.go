package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cyp0633/lumencal/calendar/event"
	"github.com/cyp0633/lumencal/calendar/filter"
	"github.com/cyp0633/lumencal/calendar/storage"
	"github.com/cyp0633/lumencal/internal/xml/calquery"
	"github.com/cyp0633/lumencal/internal/xml/multistatus"
)

const (
	mimeTypeXML = "application/xml; charset=utf-8"

	calendarPrefix = "/calendar/"
	objectSuffix   = ".ics"
)

// objectStamp is the DTSTAMP of single-object bodies. It is fixed so the
// body, and with it the entity tag, only changes when the event does.
var objectStamp = time.Unix(0, 0).UTC()

// openStart and openEnd bound a query without a time-range.
var (
	openStart = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	openEnd   = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
)

// objectHref is the resource path of one event.
func objectHref(id string) string {
	return calendarPrefix + url.PathEscape(id) + objectSuffix
}

// encodeObject renders one event as a standalone iCalendar object with its
// entity tag.
func (s *Server) encodeObject(ev event.Event) ([]byte, string, error) {
	ics, err := storage.EventsToICS([]event.Event{ev}, objectStamp)
	if err != nil {
		return nil, "", err
	}
	data := []byte(ics)
	return data, storage.ETag(data), nil
}

// handleReport answers a CalDAV calendar-query with one multistatus
// response per matching event. A recurring event matches when any
// occurrence in the query range passes the filter.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	q, err := calquery.Parse(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, calquery.ErrUnsupported) {
			status = http.StatusNotImplemented
		}
		s.logger.Warn("rejected calendar-query", "error", err)
		http.Error(w, err.Error(), status)
		return
	}

	events, err := s.store.List(r.Context(), nil)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	start, end := q.Window(openStart, openEnd)
	matched := s.match(events, q.Filter, start, end)
	s.logger.Debug("calendar-query evaluated", "events", len(events), "matched", len(matched))

	ms := &multistatus.Multistatus{}
	for _, ev := range matched {
		resp, err := s.objectResponse(ev, q.Props)
		if err != nil {
			s.logger.Error("failed to encode event", "event_id", ev.ID, "error", err)
			http.Error(w, "failed to encode event", http.StatusInternalServerError)
			return
		}
		ms.Responses = append(ms.Responses, resp)
	}

	w.Header().Set(headerContentType, mimeTypeXML)
	w.WriteHeader(http.StatusMultiStatus)
	if _, err := ms.WriteTo(w); err != nil {
		s.logger.Error("failed to write multistatus", "error", err)
	}
}

// objectResponse builds the multistatus entry of ev. Without requested
// properties the entity tag and calendar data are returned; unknown
// properties are reported with 404.
func (s *Server) objectResponse(ev event.Event, requested []string) (multistatus.Response, error) {
	data, etag, err := s.encodeObject(ev)
	if err != nil {
		return multistatus.Response{}, err
	}
	if len(requested) == 0 {
		requested = []string{multistatus.PropGetETag, multistatus.PropCalendarData}
	}

	found := multistatus.PropStat{Status: http.StatusOK}
	missing := multistatus.PropStat{Status: http.StatusNotFound}
	for _, name := range requested {
		switch strings.ToLower(name) {
		case multistatus.PropGetETag:
			found.Props = append(found.Props, multistatus.Prop{Namespace: multistatus.DAV, Name: multistatus.PropGetETag, Value: etag})
		case multistatus.PropGetContentType:
			found.Props = append(found.Props, multistatus.Prop{Namespace: multistatus.DAV, Name: multistatus.PropGetContentType, Value: mimeTypeCalendar})
		case multistatus.PropCalendarData:
			found.Props = append(found.Props, multistatus.Prop{Namespace: multistatus.CalDAV, Name: multistatus.PropCalendarData, Value: string(data)})
		default:
			missing.Props = append(missing.Props, multistatus.Prop{Namespace: multistatus.DAV, Name: name})
		}
	}

	resp := multistatus.Response{Href: objectHref(ev.ID)}
	for _, ps := range []multistatus.PropStat{found, missing} {
		if len(ps.Props) > 0 {
			resp.PropStats = append(resp.PropStats, ps)
		}
	}
	return resp, nil
}

// match returns the masters having at least one occurrence that passes the
// filter, in input order.
func (s *Server) match(events []event.Event, st filter.State, start, end time.Time) []event.Event {
	now := s.now()
	normalized := make([]event.Event, 0, len(events))
	for _, ev := range events {
		normalized = append(normalized, event.Normalize(ev, now))
	}

	occs := filter.ApplyOccurrences(s.engine.ExpandAll(normalized, start, end), st, start, end)
	hit := make(map[string]struct{}, len(occs))
	for _, occ := range occs {
		hit[occ.ID] = struct{}{}
	}

	var out []event.Event
	for _, ev := range events {
		if _, ok := hit[ev.ID]; ok {
			out = append(out, ev)
			delete(hit, ev.ID)
		}
	}
	return out
}

// handleGetObject serves one event as iCalendar. If-None-Match with the
// current entity tag yields 304.
func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request) {
	id, ok := strings.CutSuffix(r.PathValue("object"), objectSuffix)
	if !ok || id == "" {
		http.NotFound(w, r)
		return
	}

	ev, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	data, etag, err := s.encodeObject(ev)
	if err != nil {
		s.logger.Error("failed to encode event", "event_id", id, "error", err)
		http.Error(w, "failed to encode event", http.StatusInternalServerError)
		return
	}

	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set(headerContentType, mimeTypeCalendar)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("failed to write event", "event_id", id, "error", err)
	}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
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

	w.Header().Set(headerContentType, mimeTypeCalendar)
	w.Header().Set("Content-Disposition", `attachment; filename="lumencal.ics"`)
	w.WriteHeader(http.StatusOK)
	if err := storage.EncodeEvents(w, events, s.now()); err != nil {
		s.logger.Error("failed to encode export", "error", err)
	}
}
