// Package detector is the agent's Spike Detector: a rolling-baseline state
// machine over CPU%/RAM% samples that fires on sustained threshold overrun,
// confirmed by either a z-score or a derivative candidate. Ported from
// original_source/spike_detector.py, with spec.md's parameter defaults
// (cpu_threshold=75.0, confirm_seconds=20s) in place of the original
// script's looser 90.0/30s tuning.
package detector

import (
	"math"
	"time"

	"github.com/ftahirops/tracewatch/clock"
	"github.com/ftahirops/tracewatch/model"
)

type sample struct {
	ts       time.Time
	cpu, ram float64
}

// Config holds the detector's tunables, mirroring spec.md's parameter
// table.
type Config struct {
	BaselineWindow      time.Duration
	SampleInterval      time.Duration
	ZScore              float64
	DerivativeThreshold float64
	DerivativeLen       int
	ConfirmSeconds      time.Duration
	CPUThreshold        float64
	RAMThreshold        float64
	CooldownSeconds     time.Duration
}

// Detector holds the rolling window, the short CPU tail used for the
// derivative candidate, the confirm buffer, and the last-fire timestamp.
// Not safe for concurrent use — the orchestrator drives it from a single
// goroutine, same as the state store's single-writer sampler loop.
type Detector struct {
	cfg   Config
	clock clock.Clock

	window       []sample
	windowCap    int
	lastCPU      []float64
	lastCPUCap   int
	confirmBuf   []bool
	confirmCap   int
	lastSpikeAt  *time.Time
}

// New constructs a Detector. windowCap and confirmCap are derived from the
// configured durations divided by the sample interval, exactly as the
// original sizes its deques.
func New(cfg Config, c clock.Clock) *Detector {
	windowCap := durSamples(cfg.BaselineWindow, cfg.SampleInterval)
	confirmCap := durSamples(cfg.ConfirmSeconds, cfg.SampleInterval)
	return &Detector{
		cfg:        cfg,
		clock:      c,
		windowCap:  windowCap,
		lastCPUCap: cfg.DerivativeLen + 2,
		confirmCap: confirmCap,
	}
}

func durSamples(d, interval time.Duration) int {
	if interval <= 0 {
		return 1
	}
	n := int(d / interval)
	if n < 1 {
		n = 1
	}
	return n
}

// AddSample pushes one telemetry reading into the rolling window, the CPU
// tail, and the confirm buffer, evicting the oldest entry once each is at
// capacity — the Go equivalent of the original's deque(maxlen=N).
func (d *Detector) AddSample(ts time.Time, cpu, ram float64) {
	d.window = pushBounded(d.window, sample{ts: ts, cpu: cpu, ram: ram}, d.windowCap)
	d.lastCPU = pushBounded(d.lastCPU, cpu, d.lastCPUCap)
	confirmed := cpu >= d.cfg.CPUThreshold || ram >= d.cfg.RAMThreshold
	d.confirmBuf = pushBounded(d.confirmBuf, confirmed, d.confirmCap)
}

func pushBounded[T any](s []T, v T, capN int) []T {
	s = append(s, v)
	if len(s) > capN {
		s = s[len(s)-capN:]
	}
	return s
}

// Check evaluates the detector's fire condition against the current
// window. It returns (true, info) on a confirmed spike and clears the
// confirm buffer and resets the cooldown clock as a side effect, matching
// the original's check().
func (d *Detector) Check() (bool, model.SpikeInfo) {
	if len(d.window) < 10 || !d.cooldownPassed() {
		return false, model.SpikeInfo{}
	}

	candCPU := d.candidateZScore(true)
	candRAM := d.candidateZScore(false)
	cand := candCPU
	if cand == nil {
		cand = candRAM
	}
	if cand == nil {
		cand = d.candidateDerivative()
	}

	if cand == nil || len(d.confirmBuf) != d.confirmCap || !allTrue(d.confirmBuf) {
		return false, model.SpikeInfo{}
	}

	latest := d.window[len(d.window)-1]

	var spikeType model.SpikeType
	switch {
	case latest.cpu >= d.cfg.CPUThreshold && latest.ram >= d.cfg.RAMThreshold:
		spikeType = model.SpikeMixed
	case latest.cpu >= d.cfg.CPUThreshold:
		spikeType = model.SpikeCPU
	case latest.ram >= d.cfg.RAMThreshold:
		spikeType = model.SpikeRAM
	default:
		spikeType = model.SpikeUnknown
	}

	severity := (latest.cpu - d.cfg.CPUThreshold) + (latest.ram - d.cfg.RAMThreshold)
	if severity < 0 {
		severity = 0
	}

	now := d.clock.Now()
	d.lastSpikeAt = &now
	d.confirmBuf = d.confirmBuf[:0]

	info := model.SpikeInfo{
		StartTime:     clock.ISO(cand.ts),
		ConfirmTime:   clock.ISO(now),
		SpikeType:     spikeType,
		SeverityScore: math.Round(severity*100) / 100,
		CPUAtConfirm:  latest.cpu,
		RAMAtConfirm:  latest.ram,
	}
	return true, info
}

func (d *Detector) cooldownPassed() bool {
	if d.lastSpikeAt == nil {
		return true
	}
	return d.clock.Now().Sub(*d.lastSpikeAt) > d.cfg.CooldownSeconds
}

// candidateZScore scans the window backwards for the earliest-from-the-end
// sample whose value crosses mean + z*stdev, for whichever key (cpu or
// ram) isCPU selects. Requires at least 10 samples and nonzero variance,
// matching the original's guard.
func (d *Detector) candidateZScore(isCPU bool) *sample {
	if len(d.window) < 10 {
		return nil
	}
	mu, sigma := d.muSigma(isCPU)
	if sigma <= 0.001 {
		return nil
	}
	threshold := mu + d.cfg.ZScore*sigma
	for i := len(d.window) - 1; i >= 0; i-- {
		v := d.window[i].cpu
		if !isCPU {
			v = d.window[i].ram
		}
		if v >= threshold {
			s := d.window[i]
			return &s
		}
	}
	return nil
}

func (d *Detector) muSigma(isCPU bool) (mu, sigma float64) {
	n := float64(len(d.window))
	sum := 0.0
	for _, s := range d.window {
		v := s.cpu
		if !isCPU {
			v = s.ram
		}
		sum += v
	}
	mu = sum / n
	var sq float64
	for _, s := range d.window {
		v := s.cpu
		if !isCPU {
			v = s.ram
		}
		d := v - mu
		sq += d * d
	}
	sigma = math.Sqrt(sq / n)
	return mu, sigma
}

// candidateDerivative checks whether the mean of the last DerivativeLen
// first-differences of the CPU tail exceeds DerivativeThreshold, then
// locates the earliest window sample whose CPU reached the slope's
// starting value.
func (d *Detector) candidateDerivative() *sample {
	lv := d.lastCPU
	if len(lv) < d.cfg.DerivativeLen+1 {
		return nil
	}
	deltas := make([]float64, 0, len(lv)-1)
	for i := 1; i < len(lv); i++ {
		deltas = append(deltas, lv[i]-lv[i-1])
	}
	tail := deltas[len(deltas)-d.cfg.DerivativeLen:]
	var sum float64
	for _, v := range tail {
		sum += v
	}
	avgSlope := sum / float64(len(tail))
	if avgSlope <= d.cfg.DerivativeThreshold {
		return nil
	}
	startValue := lv[len(lv)-(d.cfg.DerivativeLen+1)]
	for i := 0; i < len(d.window); i++ {
		if d.window[i].cpu >= startValue {
			s := d.window[i]
			return &s
		}
	}
	return nil
}

func allTrue(bs []bool) bool {
	for _, b := range bs {
		if !b {
			return false
		}
	}
	return true
}
