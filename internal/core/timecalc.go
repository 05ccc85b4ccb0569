package core

import (
	"fmt"
	"time"
)

const clockLayout = "15:04"

// ComputeHours derives billable hours from a start and end wall-clock time on
// the same calendar day, minus the break. A negative result (end before
// start, or a break longer than the shift) is clamped to zero rather than
// rejected: a data-entry error should not block registration.
func ComputeHours(start, end string, breakMinutes float64) (float64, error) {
	s, err := time.Parse(clockLayout, start)
	if err != nil {
		return 0, fmt.Errorf("parse start time %q: %w", start, err)
	}
	e, err := time.Parse(clockLayout, end)
	if err != nil {
		return 0, fmt.Errorf("parse end time %q: %w", end, err)
	}

	minutes := e.Sub(s).Minutes() - breakMinutes
	if minutes < 0 {
		minutes = 0
	}
	return minutes / 60, nil
}
