// Package calquery decodes CalDAV calendar-query REPORT bodies (RFC 4791
// section 7.8) into calendar filter state.
package calquery

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/cyp0633/lumencal/calendar/event"
	"github.com/cyp0633/lumencal/calendar/filter"
	"github.com/samber/mo"
)

var (
	// ErrNotCalendarQuery is returned when the root element is not
	// calendar-query.
	ErrNotCalendarQuery = errors.New("calquery: root element is not calendar-query")
	// ErrUnsupported is returned for filters the calendar cannot express.
	ErrUnsupported = errors.New("calquery: unsupported filter")
)

// TimeRange is a half-open interval [Start, End) of wall-clock instants.
// A zero bound is open.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// openEnd stands in for a missing end bound.
var openEnd = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// Dates converts the range to the inclusive day range used by filter.State.
func (r TimeRange) Dates() filter.DateRange {
	from, to := time.Time{}, openEnd
	if !r.Start.IsZero() {
		from = r.Start
	}
	if !r.End.IsZero() {
		to = r.End.Add(-time.Nanosecond)
	}
	return filter.DateRange{From: event.StartOfDay(from), To: event.StartOfDay(to)}
}

// Query is a decoded calendar-query.
type Query struct {
	// Props lists the requested properties by local name.
	Props []string
	// Filter carries the term, owner, participant and calendar facets. Its
	// date range is set when the query has a time-range.
	Filter filter.State
	Range  mo.Option[TimeRange]
}

const (
	utcLayout      = "20060102T150405Z"
	floatingLayout = "20060102T150405"
	dateLayout     = "20060102"
)

// Parse reads a calendar-query REPORT body.
func Parse(r io.Reader) (*Query, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("calquery: read body: %w", err)
	}
	root := doc.Root()
	if root == nil || !strings.EqualFold(localName(root), "calendar-query") {
		return nil, ErrNotCalendarQuery
	}

	q := &Query{}
	if prop := findElementIgnoreNS(root, "prop"); prop != nil {
		for _, p := range prop.ChildElements() {
			q.Props = append(q.Props, localName(p))
		}
	}

	filterElem := findElementIgnoreNS(root, "filter")
	if filterElem == nil {
		return q, nil
	}
	if err := ParseFilterElement(filterElem, q); err != nil {
		return nil, err
	}
	return q, nil
}

// ParseFilterElement applies a <filter> element to q. The outer VCALENDAR
// comp-filter is optional; VEVENT filters found at any depth are applied.
func ParseFilterElement(filterElem *etree.Element, q *Query) error {
	for _, comp := range getElementsIgnoreNS(filterElem, "comp-filter") {
		if err := parseCompFilter(comp, q); err != nil {
			return err
		}
	}
	return nil
}

func parseCompFilter(comp *etree.Element, q *Query) error {
	name := strings.ToUpper(comp.SelectAttrValue("name", ""))
	if findElementIgnoreNS(comp, "is-not-defined") != nil {
		return fmt.Errorf("%w: is-not-defined on %s", ErrUnsupported, name)
	}

	switch name {
	case "VCALENDAR":
		for _, nested := range getElementsIgnoreNS(comp, "comp-filter") {
			if err := parseCompFilter(nested, q); err != nil {
				return err
			}
		}
		return nil
	case "VEVENT":
	default:
		return fmt.Errorf("%w: component %s", ErrUnsupported, name)
	}

	if tr := findElementIgnoreNS(comp, "time-range"); tr != nil {
		r, err := parseTimeRange(tr)
		if err != nil {
			return err
		}
		q.Range = mo.Some(r)
		q.Filter.Dates = mo.Some(r.Dates())
	}

	for _, pf := range getElementsIgnoreNS(comp, "prop-filter") {
		if err := parsePropFilter(pf, q); err != nil {
			return err
		}
	}
	return nil
}

func parsePropFilter(pf *etree.Element, q *Query) error {
	name := strings.ToUpper(pf.SelectAttrValue("name", ""))
	if findElementIgnoreNS(pf, "is-not-defined") != nil {
		return fmt.Errorf("%w: is-not-defined on %s", ErrUnsupported, name)
	}
	tm := findElementIgnoreNS(pf, "text-match")
	if tm == nil {
		return nil
	}
	if tm.SelectAttrValue("negate-condition", "no") == "yes" {
		return fmt.Errorf("%w: negated text-match on %s", ErrUnsupported, name)
	}
	mt := tm.SelectAttrValue("match-type", "contains")
	if mt != "contains" && mt != "equals" {
		return fmt.Errorf("%w: match-type %q", ErrUnsupported, mt)
	}
	value := strings.TrimSpace(tm.Text())
	if value == "" {
		return nil
	}

	switch name {
	case "SUMMARY", "DESCRIPTION", "LOCATION":
		// The term is a substring match over several fields.
		if mt == "equals" {
			return fmt.Errorf("%w: equals match on %s", ErrUnsupported, name)
		}
		if q.Filter.Term != "" && !strings.EqualFold(q.Filter.Term, value) {
			return fmt.Errorf("%w: more than one text term", ErrUnsupported)
		}
		q.Filter.Term = value
	case "ORGANIZER":
		q.Filter.Owner = mo.Some(personName(value))
	case "ATTENDEE":
		q.Filter.Participant = mo.Some(personName(value))
	case "CATEGORIES":
		for _, id := range strings.Split(value, ",") {
			if id = strings.TrimSpace(id); id != "" {
				if _, ok := q.Filter.Calendars[id]; !ok {
					q.Filter.ToggleCalendar(id)
				}
			}
		}
	default:
		return fmt.Errorf("%w: property %s", ErrUnsupported, name)
	}
	return nil
}

// personName strips a calendar user address scheme.
func personName(value string) string {
	for _, prefix := range []string{"urn:lumencal:", "mailto:"} {
		if len(value) >= len(prefix) && strings.EqualFold(value[:len(prefix)], prefix) {
			return value[len(prefix):]
		}
	}
	return value
}

func parseTimeRange(tr *etree.Element) (TimeRange, error) {
	var r TimeRange
	var err error
	if r.Start, err = parseInstant(tr.SelectAttrValue("start", "")); err != nil {
		return r, fmt.Errorf("calquery: time-range start: %w", err)
	}
	if r.End, err = parseInstant(tr.SelectAttrValue("end", "")); err != nil {
		return r, fmt.Errorf("calquery: time-range end: %w", err)
	}
	if r.Start.IsZero() && r.End.IsZero() {
		return r, errors.New("calquery: time-range without bounds")
	}
	if !r.Start.IsZero() && !r.End.IsZero() && !r.End.After(r.Start) {
		return r, fmt.Errorf("calquery: time-range end %s is not after start %s", r.End, r.Start)
	}
	return r, nil
}

func parseInstant(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{utcLayout, floatingLayout, dateLayout} {
		if t, err := time.Parse(layout, value); err == nil {
			return event.WallClock(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid instant %q", value)
}

func localName(elem *etree.Element) string {
	tag := elem.Tag
	if i := strings.IndexByte(tag, ':'); i >= 0 {
		tag = tag[i+1:]
	}
	return tag
}

// getElementsIgnoreNS returns all child elements with the given local name, ignoring namespace
func getElementsIgnoreNS(parent *etree.Element, name string) []*etree.Element {
	var elements []*etree.Element
	for _, child := range parent.ChildElements() {
		if strings.EqualFold(localName(child), name) {
			elements = append(elements, child)
		}
	}
	return elements
}

// findElementIgnoreNS finds the first child element with the given local name, ignoring namespace
func findElementIgnoreNS(parent *etree.Element, name string) *etree.Element {
	if elements := getElementsIgnoreNS(parent, name); len(elements) > 0 {
		return elements[0]
	}
	return nil
}

// Window returns the query time range, falling back to the given bounds
// where the range is open or absent. The end is inclusive.
func (q *Query) Window(start, end time.Time) (time.Time, time.Time) {
	r, ok := q.Range.Get()
	if !ok {
		return start, end
	}
	if !r.Start.IsZero() {
		start = r.Start
	}
	if !r.End.IsZero() {
		end = r.End.Add(-time.Nanosecond)
	}
	return start, end
}
