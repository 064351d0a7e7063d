package recurrence

import (
	"fmt"

	"github.com/cyp0633/lumencal/calendar/event"
	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"
)

// RuleFromComponent extracts the RRULE of an iCal component. It returns nil
// without error when the component does not repeat. Only FREQ, INTERVAL,
// COUNT and UNTIL are kept; other rule parts are dropped.
func RuleFromComponent(comp *ical.Component) (*event.RecurrenceRule, error) {
	prop := comp.Props.Get(ical.PropRecurrenceRule)
	if prop == nil || prop.Value == "" {
		return nil, nil
	}

	opt, err := rrule.StrToROption(prop.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RRULE '%s': %w", prop.Value, err)
	}

	rule := &event.RecurrenceRule{
		Interval: opt.Interval,
		Count:    opt.Count,
	}
	switch opt.Freq {
	case rrule.DAILY:
		rule.Frequency = event.FrequencyDaily
	case rrule.WEEKLY:
		rule.Frequency = event.FrequencyWeekly
	case rrule.MONTHLY:
		rule.Frequency = event.FrequencyMonthly
	default:
		return nil, fmt.Errorf("unsupported RRULE frequency %v", opt.Freq)
	}
	if !opt.Until.IsZero() {
		until := event.WallClock(opt.Until)
		rule.Until = &until
	}

	return rule, nil
}

// ApplyRule writes rule as the RRULE of comp, or removes the property when
// the rule does not repeat.
func ApplyRule(comp *ical.Component, rule *event.RecurrenceRule) error {
	if !rule.Repeats() {
		delete(comp.Props, ical.PropRecurrenceRule)
		return nil
	}

	opt := rrule.ROption{
		Interval: rule.Step(),
		Count:    rule.Count,
	}
	switch rule.Frequency {
	case event.FrequencyDaily:
		opt.Freq = rrule.DAILY
	case event.FrequencyWeekly:
		opt.Freq = rrule.WEEKLY
	case event.FrequencyMonthly:
		opt.Freq = rrule.MONTHLY
	default:
		return fmt.Errorf("unsupported recurrence frequency %q", rule.Frequency)
	}
	if rule.Until != nil {
		opt.Until = *rule.Until
	}

	prop := ical.NewProp(ical.PropRecurrenceRule)
	prop.Value = opt.RRuleString()
	comp.Props.Set(prop)
	return nil
}
