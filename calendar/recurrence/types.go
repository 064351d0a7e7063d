package recurrence

import (
	"fmt"
	"strings"
)

// MonthPolicy decides what happens when a monthly step lands on a day the
// target month does not have (for example Jan 31 + 1 month).
type MonthPolicy int

const (
	// MonthClamp moves the occurrence to the last day of the target month
	// (Jan 31 -> Feb 29 -> Mar 31). Occurrences are always computed from the
	// master start, so clamping never drifts.
	MonthClamp MonthPolicy = iota
	// MonthRollOver lets the overflow spill into the next month the way
	// time.AddDate does (Jan 31 + 1 month -> Mar 2 in a leap year).
	MonthRollOver
)

// String provides a human-readable representation of the MonthPolicy.
func (p MonthPolicy) String() string {
	switch p {
	case MonthRollOver:
		return "rollover"
	default:
		return "clamp"
	}
}

// ParseMonthPolicy parses "clamp" or "rollover". Empty means clamp.
func ParseMonthPolicy(value string) (MonthPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "clamp":
		return MonthClamp, nil
	case "rollover", "roll-over", "roll":
		return MonthRollOver, nil
	default:
		return MonthClamp, fmt.Errorf("unknown month policy %q", value)
	}
}
