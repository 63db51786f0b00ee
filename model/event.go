package model

import "time"

// Event is one normalized kernel trace record. Raw tracer lines are parsed
// into Event by the collector; fields absent from the wire JSON take the
// defaults described in the wire format (ts -> ingestion time, provider ->
// "unknown", task -> "", payload -> {}). Any top-level JSON key the collector
// doesn't decode explicitly is preserved in Extra; nothing in this repo reads
// it back out yet.
type Event struct {
	TS        time.Time      `json:"ts"`
	PID       *int32         `json:"pid,omitempty"`
	TID       *int32         `json:"tid,omitempty"`
	Provider  string         `json:"provider"`
	EventType string         `json:"event_type"`
	EventName string         `json:"event_name"`
	Task      string         `json:"task"`
	Payload   map[string]any `json:"payload"`
	NetBytes  float64        `json:"net_bytes,omitempty"`
	DiskBytes float64        `json:"disk_bytes,omitempty"`
	Extra     map[string]any `json:"-"`
}

// HasPID reports whether the event carries a process id.
func (e Event) HasPID() bool { return e.PID != nil }

// PIDValue returns the event's pid, or 0 if the event is pidless.
func (e Event) PIDValue() int32 {
	if e.PID == nil {
		return 0
	}
	return *e.PID
}
