package model

import "time"

// TelemetrySample is one host CPU%/RAM% observation taken at the sampler's
// fixed cadence.
type TelemetrySample struct {
	TS  time.Time `json:"ts"`
	CPU float64   `json:"cpu"`
	RAM float64   `json:"ram"`
}
