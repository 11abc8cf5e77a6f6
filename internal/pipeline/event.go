package pipeline

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is one product-completion message from the processing chain: the
// product finished rendering for a timeslot. Latency is measured from the
// end of segment reception (epi) to completion.
type Event struct {
	Product        string    `json:"product"`
	SlotTime       time.Time `json:"slot_time"`
	EpiTime        time.Time `json:"epi_time"`
	CompletionTime time.Time `json:"completion_time"`
}

func ParseEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("pipeline: decode event: %w", err)
	}
	if ev.Product == "" {
		return Event{}, fmt.Errorf("pipeline: event without product")
	}
	if ev.SlotTime.IsZero() || ev.CompletionTime.IsZero() {
		return Event{}, fmt.Errorf("pipeline: event %s without timestamps", ev.Product)
	}
	if ev.CompletionTime.Before(ev.EpiTime) {
		return Event{}, fmt.Errorf("pipeline: event %s completed before reception", ev.Product)
	}
	return ev, nil
}

// Latency is the epi-to-product processing time in seconds.
func (ev Event) Latency() float64 {
	return ev.CompletionTime.Sub(ev.EpiTime).Seconds()
}
