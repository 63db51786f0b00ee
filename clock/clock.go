// Package clock supplies the agent's single source of time so every
// timestamp in an event, telemetry sample or spike record comes from one
// place and can be swapped for a fake in tests.
package clock

import "time"

// Clock returns the current instant. The production implementation wraps
// time.Now; tests substitute a Fake to drive the detector and state store
// deterministically.
type Clock interface {
	Now() time.Time
}

// System is the production Clock, backed by the wall clock in UTC.
type System struct{}

// Now returns time.Now().UTC().
func (System) Now() time.Time { return time.Now().UTC() }

// ISO formats t the way every wire format and API response in this agent
// expects: RFC 3339 with a UTC offset.
func ISO(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

// Fake is a manually advanced Clock for tests.
type Fake struct {
	t time.Time
}

// NewFake returns a Fake starting at t.
func NewFake(t time.Time) *Fake { return &Fake{t: t.UTC()} }

// Now returns the fake's current instant.
func (f *Fake) Now() time.Time { return f.t }

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) { f.t = f.t.Add(d) }

// Set pins the fake clock to t.
func (f *Fake) Set(t time.Time) { f.t = t.UTC() }
