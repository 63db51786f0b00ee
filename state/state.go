// Package state is the agent's thread-safe in-memory State Store: a
// bounded telemetry ring, a bounded spike ring, and the two-step mutation
// (event attachment, then RCA attachment) that turns a freshly confirmed
// spike into forensic evidence plus its root-cause analysis. Ported from
// original_source/state.py's MonitorState, constructed per spec.md §9
// rather than kept as a module-level singleton.
package state

import (
	"sync"
	"time"

	"github.com/ftahirops/tracewatch/clock"
	"github.com/ftahirops/tracewatch/model"
)

// Config holds the store's ring capacities.
type Config struct {
	TelemetryRingSize int
	SpikeRingSize     int
	MaxAttachedEvents int
}

// Store is the agent's single shared mutable state, guarded by one mutex —
// the same coarse-locking discipline the original's MonitorState uses,
// which is adequate here since every operation is O(ring size) and the
// ring sizes are small.
type Store struct {
	cfg   Config
	clock clock.Clock

	mu          sync.Mutex
	telemetry   []model.TelemetrySample
	spikes      []*model.SpikeRecord
	nextSpikeID int64
}

// New constructs an empty Store.
func New(cfg Config, c clock.Clock) *Store {
	return &Store{cfg: cfg, clock: c, nextSpikeID: 1}
}

// AddTelemetry appends a sample to the rolling telemetry ring, evicting the
// oldest entry once at capacity.
func (s *Store) AddTelemetry(cpu, ram float64) {
	sample := model.TelemetrySample{TS: s.clock.Now(), CPU: cpu, RAM: ram}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telemetry = append(s.telemetry, sample)
	if len(s.telemetry) > s.cfg.TelemetryRingSize {
		s.telemetry = s.telemetry[len(s.telemetry)-s.cfg.TelemetryRingSize:]
	}
}

// LatestTelemetry returns the most recent sample, or false if none exists
// yet.
func (s *Store) LatestTelemetry() (model.TelemetrySample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.telemetry) == 0 {
		return model.TelemetrySample{}, false
	}
	return s.telemetry[len(s.telemetry)-1], true
}

// TelemetryWindow returns every sample whose timestamp is within the last
// `seconds` of now, oldest first.
func (s *Store) TelemetryWindow(seconds int) []model.TelemetrySample {
	cutoff := s.clock.Now().Add(-time.Duration(seconds) * time.Second)
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.TelemetrySample, 0, len(s.telemetry))
	for i := len(s.telemetry) - 1; i >= 0; i-- {
		if s.telemetry[i].TS.Before(cutoff) {
			break
		}
		out = append(out, s.telemetry[i])
	}
	// reverse back into chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// AddSpike inserts a new spike record built from info, assigns it the next
// sequential id, and evicts the oldest spike once the ring is at capacity.
func (s *Store) AddSpike(info model.SpikeInfo, reason string) *model.SpikeRecord {
	now := clock.ISO(s.clock.Now())
	if reason == "" {
		reason = "threshold exceeded"
	}
	spikeType := info.SpikeType
	if spikeType == "" {
		spikeType = model.SpikeUnknown
	}
	startTime := info.StartTime
	if startTime == "" {
		startTime = now
	}
	confirmTime := info.ConfirmTime
	if confirmTime == "" {
		confirmTime = now
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	spike := &model.SpikeRecord{
		ID:            s.nextSpikeID,
		DetectedAt:    now,
		StartTime:     startTime,
		ConfirmTime:   confirmTime,
		CPUAtConfirm:  info.CPUAtConfirm,
		RAMAtConfirm:  info.RAMAtConfirm,
		Reason:        reason,
		SpikeType:     spikeType,
		SeverityScore: info.SeverityScore,
	}
	s.nextSpikeID++
	s.spikes = append(s.spikes, spike)
	if len(s.spikes) > s.cfg.SpikeRingSize {
		s.spikes = s.spikes[len(s.spikes)-s.cfg.SpikeRingSize:]
	}
	return spike
}

// AttachEvents records the full snapshot size on the spike but stores only
// the most recent MaxAttachedEvents of it, matching the original's
// events[-MAX_ATTACHED_EVENTS:] truncation.
func (s *Store) AttachEvents(spikeID int64, events []model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	spike := s.find(spikeID)
	if spike == nil {
		return
	}
	spike.AttachedEventCount = len(events)
	limited := events
	if len(limited) > s.cfg.MaxAttachedEvents {
		limited = limited[len(limited)-s.cfg.MaxAttachedEvents:]
	}
	spike.ETWEvents = limited
}

// AttachRCA records rca on the spike with the given id.
func (s *Store) AttachRCA(spikeID int64, rca *model.RCA) {
	if rca == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	spike := s.find(spikeID)
	if spike == nil {
		return
	}
	spike.RCA = rca
}

func (s *Store) find(spikeID int64) *model.SpikeRecord {
	for _, sp := range s.spikes {
		if sp.ID == spikeID {
			return sp
		}
	}
	return nil
}

// Spikes returns every spike record, newest first.
func (s *Store) Spikes() []model.SpikeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.SpikeRecord, len(s.spikes))
	for i, sp := range s.spikes {
		out[len(s.spikes)-1-i] = *sp
	}
	return out
}

// Spike returns a single spike record by id.
func (s *Store) Spike(spikeID int64) (model.SpikeRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp := s.find(spikeID)
	if sp == nil {
		return model.SpikeRecord{}, false
	}
	return *sp, true
}

// LatestRCA returns the RCA attached to the newest spike that has one.
func (s *Store) LatestRCA() (model.RCA, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.spikes) - 1; i >= 0; i-- {
		if s.spikes[i].RCA != nil {
			return *s.spikes[i].RCA, true
		}
	}
	return model.RCA{}, false
}
