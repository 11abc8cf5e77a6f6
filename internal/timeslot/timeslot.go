package timeslot

import (
	"fmt"
	"time"
)

// MonthSlots returns the ordered, gap-free sequence of UTC timeslots for the
// given month, starting at day 1 00:00:00 and stepping by stepSeconds while
// the month component is unchanged.
func MonthSlots(year, month, stepSeconds int) ([]time.Time, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("timeslot: month out of range: %d", month)
	}
	if year < 1 {
		return nil, fmt.Errorf("timeslot: year out of range: %d", year)
	}
	if stepSeconds <= 0 {
		return nil, fmt.Errorf("timeslot: step must be positive, got %d", stepSeconds)
	}
	step := time.Duration(stepSeconds) * time.Second
	slot := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	var out []time.Time
	for slot.Month() == time.Month(month) {
		out = append(out, slot)
		slot = slot.Add(step)
	}
	return out, nil
}
