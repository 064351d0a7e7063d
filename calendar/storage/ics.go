package storage

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/cyp0633/lumencal/calendar/event"
	"github.com/cyp0633/lumencal/calendar/recurrence"
	"github.com/emersion/go-ical"
)

const (
	productID = "-//lumencal//Go Calendar//EN"

	propOwner = "X-LUMENCAL-OWNER"
	propKind  = "X-LUMENCAL-KIND"
	propColor = "COLOR"

	floatingLayout = "20060102T150405"
	dateLayout     = "20060102"
	attendeeScheme = "urn:lumencal:"
)

// EventToComponent converts an event into a VEVENT. Timed events use
// floating DTSTART/DTEND, all-day events use DATE values. The calendar ID is
// written as CATEGORIES.
func EventToComponent(ev event.Event, stamp time.Time) (*ical.Component, error) {
	comp := ical.NewComponent(ical.CompEvent)
	comp.Props.SetText(ical.PropUID, ev.ID)
	comp.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	comp.Props.SetText(ical.PropSummary, ev.Title)
	if ev.Description != "" {
		comp.Props.SetText(ical.PropDescription, ev.Description)
	}
	if ev.Location != "" {
		comp.Props.SetText(ical.PropLocation, ev.Location)
	}
	if ev.CalendarID != "" {
		comp.Props.SetText(ical.PropCategories, ev.CalendarID)
	}
	if ev.Color != "" {
		comp.Props.SetText(propColor, ev.Color)
	}
	if ev.Owner != "" {
		comp.Props.SetText(propOwner, ev.Owner)
	}
	if ev.Kind != "" {
		comp.Props.SetText(propKind, string(ev.Kind))
	}

	comp.Props.Set(timeProp(ical.PropDateTimeStart, ev.Start, ev.AllDay))
	comp.Props.Set(timeProp(ical.PropDateTimeEnd, ev.End, ev.AllDay))

	if ev.Organizer != "" {
		comp.Props.Set(personProp(ical.PropOrganizer, ev.Organizer))
	}
	for _, a := range ev.Attendees {
		comp.Props.Add(personProp(ical.PropAttendee, a))
	}

	if err := recurrence.ApplyRule(comp, ev.Recurrence); err != nil {
		return nil, fmt.Errorf("event %s: %w", ev.ID, err)
	}
	return comp, nil
}

func timeProp(name string, t time.Time, allDay bool) *ical.Prop {
	prop := ical.NewProp(name)
	if allDay {
		prop.SetValueType(ical.ValueDate)
		prop.Value = t.Format(dateLayout)
	} else {
		prop.Value = t.Format(floatingLayout)
	}
	return prop
}

func personProp(name, person string) *ical.Prop {
	prop := ical.NewProp(name)
	prop.Params.Set(ical.ParamCommonName, person)
	prop.Value = attendeeScheme + url.PathEscape(person)
	return prop
}

func personName(prop ical.Prop) string {
	if cn := prop.Params.Get(ical.ParamCommonName); cn != "" {
		return cn
	}
	value := strings.TrimPrefix(prop.Value, "mailto:")
	if rest, ok := strings.CutPrefix(value, attendeeScheme); ok {
		if name, err := url.PathUnescape(rest); err == nil {
			return name
		}
	}
	return value
}

// ComponentToEvent converts a VEVENT into an event. UID and DTSTART are
// required. A missing DTEND falls back to DURATION, then to one day for
// all-day events or event.DefaultDuration otherwise. An RRULE that cannot be
// represented is dropped.
func ComponentToEvent(comp *ical.Component) (event.Event, error) {
	var ev event.Event

	uid, err := comp.Props.Text(ical.PropUID)
	if err != nil || uid == "" {
		return ev, errors.New("VEVENT without UID")
	}
	ev.ID = uid

	startProp := comp.Props.Get(ical.PropDateTimeStart)
	if startProp == nil {
		return ev, fmt.Errorf("event %s: missing DTSTART", uid)
	}
	start, err := startProp.DateTime(time.UTC)
	if err != nil {
		return ev, fmt.Errorf("event %s: invalid DTSTART: %w", uid, err)
	}
	ev.Start = event.WallClock(start)
	ev.AllDay = startProp.ValueType() == ical.ValueDate

	switch endProp := comp.Props.Get(ical.PropDateTimeEnd); {
	case endProp != nil:
		end, err := endProp.DateTime(time.UTC)
		if err != nil {
			return ev, fmt.Errorf("event %s: invalid DTEND: %w", uid, err)
		}
		ev.End = event.WallClock(end)
	case comp.Props.Get(ical.PropDuration) != nil:
		d, err := comp.Props.Get(ical.PropDuration).Duration()
		if err != nil {
			return ev, fmt.Errorf("event %s: invalid DURATION: %w", uid, err)
		}
		ev.End = ev.Start.Add(d)
	case ev.AllDay:
		ev.End = ev.Start.AddDate(0, 0, 1)
	default:
		ev.End = ev.Start.Add(event.DefaultDuration)
	}

	ev.Title = text(comp, ical.PropSummary)
	ev.Description = text(comp, ical.PropDescription)
	ev.Location = text(comp, ical.PropLocation)
	ev.CalendarID = text(comp, ical.PropCategories)
	ev.Color = text(comp, propColor)
	ev.Owner = text(comp, propOwner)
	ev.Kind = event.Kind(text(comp, propKind))

	if prop := comp.Props.Get(ical.PropOrganizer); prop != nil {
		ev.Organizer = personName(*prop)
	}
	for _, prop := range comp.Props.Values(ical.PropAttendee) {
		ev.Attendees = append(ev.Attendees, personName(prop))
	}

	if rule, err := recurrence.RuleFromComponent(comp); err == nil {
		ev.Recurrence = rule
	}
	return ev, nil
}

func text(comp *ical.Component, name string) string {
	value, err := comp.Props.Text(name)
	if err != nil {
		return ""
	}
	return value
}

// EncodeEvents writes events as one VCALENDAR.
func EncodeEvents(w io.Writer, events []event.Event, stamp time.Time) error {
	if len(events) == 0 {
		// go-ical refuses to encode a calendar without components.
		_, err := fmt.Fprintf(w, "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:%s\r\nEND:VCALENDAR\r\n", productID)
		return err
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	for _, ev := range events {
		comp, err := EventToComponent(ev, stamp)
		if err != nil {
			return err
		}
		cal.Children = append(cal.Children, comp)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

// EventsToICS is EncodeEvents into a string.
func EventsToICS(events []event.Event, stamp time.Time) (string, error) {
	var buf bytes.Buffer
	if err := EncodeEvents(&buf, events, stamp); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// DecodeEvents reads every VEVENT of every VCALENDAR in r. Components that
// cannot be converted are skipped; the returned error then joins the reasons
// while the events that did convert are still returned.
func DecodeEvents(r io.Reader) ([]event.Event, error) {
	dec := ical.NewDecoder(r)

	var (
		events  []event.Event
		skipped []error
	)
	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return events, fmt.Errorf("failed to decode calendar: %w", err)
		}
		for _, child := range cal.Children {
			if child.Name != ical.CompEvent {
				continue
			}
			ev, err := ComponentToEvent(child)
			if err != nil {
				skipped = append(skipped, err)
				continue
			}
			events = append(events, ev)
		}
	}
	return events, errors.Join(skipped...)
}

// ICSToEvents is DecodeEvents over a string.
func ICSToEvents(ics string) ([]event.Event, error) {
	return DecodeEvents(strings.NewReader(ics))
}

// ETag returns a strong entity tag for an encoded resource.
func ETag(data []byte) string {
	hash := sha1.Sum(data)
	return `"` + hex.EncodeToString(hash[:]) + `"`
}
