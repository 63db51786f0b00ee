// Package collector is the agent's Event Collector: it spawns the tracer
// subprocess, parses one JSON event per stdout line, normalizes it per the
// wire format, and maintains a time-bounded global ring plus per-PID rings.
// Ported from original_source/etw_stream_collector.py's EtwStreamCollector,
// restructured around two errgroup-managed reader goroutines (stdout,
// stderr) the way a subprocess-driven worker pool is normally shaped in
// this codebase's sibling examples, and a SIGTERM-then-kill shutdown
// grounded on x/sys/unix signal delivery.
package collector

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/ftahirops/tracewatch/clock"
	"github.com/ftahirops/tracewatch/logging"
	"github.com/ftahirops/tracewatch/model"
)

// Config holds the collector's tunables.
type Config struct {
	TracerPath       string
	GlobalRingSize   int
	PerPIDRingSize   int
	RetentionSeconds int
}

// Collector owns the tracer subprocess and the event rings it feeds. All
// mutation happens from the stdout reader goroutine; all reads (including
// the aggregate package's pure functions) go through the snapshot methods
// below, which copy under the lock rather than exposing the live slices.
type Collector struct {
	cfg   Config
	clock clock.Clock
	log   logging.Logger

	mu      sync.Mutex
	events  []model.Event
	byPID   map[int32][]model.Event
	onEvict func(pid int32)

	cmd      *exec.Cmd
	stopOnce sync.Once
	stopped  chan struct{}
}

// New constructs a Collector. The tracer is not started until Start is
// called.
func New(cfg Config, c clock.Clock, log logging.Logger) *Collector {
	return &Collector{
		cfg:     cfg,
		clock:   c,
		log:     log,
		byPID:   make(map[int32][]model.Event),
		stopped: make(chan struct{}),
	}
}

// OnPIDEvicted registers fn to be called, synchronously from the stdout
// reader goroutine, whenever a PID's per-PID ring ages out entirely. Wired
// to procinfo.Reader.Forget so its CPU-delta baselines don't grow unbounded
// across a long-lived agent process. Must be called before Start.
func (c *Collector) OnPIDEvicted(fn func(pid int32)) {
	c.onEvict = fn
}

// Start spawns the tracer executable and launches the stdout/stderr reader
// goroutines under an errgroup. It returns once both readers have exited
// (tracer process end-of-life) or ctx is canceled. Per spec, a tracer
// binary missing at the configured path is fatal at construction time — it
// is surfaced here as Start's error since exec.LookPath only resolves at
// spawn time.
func (c *Collector) Start(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, c.cfg.TracerPath)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("tracer stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("tracer stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start tracer %s: %w", c.cfg.TracerPath, err)
	}
	c.cmd = cmd

	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return c.readStdout(egctx, stdout) })
	eg.Go(func() error { return c.readStderr(egctx, stderr) })

	err = eg.Wait()
	_ = cmd.Wait()
	return err
}

func (c *Collector) readStdout(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		ev, ok := parseLine(line, c.clock.Now())
		if !ok {
			c.log.WarnCtx(ctx, "dropped malformed tracer event", "line", line)
			continue
		}
		c.ingest(ev)
	}
	return nil
}

func (c *Collector) readStderr(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	tlog := c.log.Tracer()
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			tlog.InfoCtx(ctx, "[TRACER STDERR] "+line)
		}
	}
	return nil
}

// ingest appends ev to the global ring and, if it carries a pid, to that
// pid's ring, then purges anything older than RetentionSeconds from both —
// preserving the invariant that an event evicted from the global ring is
// also evicted from its per-PID ring.
func (c *Collector) ingest(ev model.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events = append(c.events, ev)
	if len(c.events) > c.cfg.GlobalRingSize {
		c.events = c.events[len(c.events)-c.cfg.GlobalRingSize:]
	}
	if ev.HasPID() {
		pid := ev.PIDValue()
		bucket := append(c.byPID[pid], ev)
		if len(bucket) > c.cfg.PerPIDRingSize {
			bucket = bucket[len(bucket)-c.cfg.PerPIDRingSize:]
		}
		c.byPID[pid] = bucket
	}
	c.purgeLocked()
}

func (c *Collector) purgeLocked() {
	cutoff := c.clock.Now().Add(-time.Duration(c.cfg.RetentionSeconds) * time.Second)

	i := 0
	for i < len(c.events) && c.events[i].TS.Before(cutoff) {
		i++
	}
	if i > 0 {
		c.events = c.events[i:]
	}

	for pid, bucket := range c.byPID {
		j := 0
		for j < len(bucket) && bucket[j].TS.Before(cutoff) {
			j++
		}
		if j == len(bucket) {
			delete(c.byPID, pid)
			if c.onEvict != nil {
				c.onEvict(pid)
			}
			continue
		}
		if j > 0 {
			c.byPID[pid] = bucket[j:]
		}
	}
}

// RecentEvents returns a snapshot copy of the last limit events from the
// global ring, newest last.
func (c *Collector) RecentEvents(limit int) []model.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return snapshotTail(c.events, limit)
}

// EventsByPID returns a snapshot copy of the last limit events for pid, or
// an empty slice if the pid has no tracked events.
func (c *Collector) EventsByPID(pid int32, limit int) []model.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return snapshotTail(c.byPID[pid], limit)
}

func snapshotTail(src []model.Event, limit int) []model.Event {
	if limit <= 0 || limit > len(src) {
		limit = len(src)
	}
	out := make([]model.Event, limit)
	copy(out, src[len(src)-limit:])
	return out
}

// Stop requests termination of the tracer subprocess: SIGTERM first, then
// SIGKILL if it hasn't exited within a bounded grace period. Idempotent —
// a second call is a no-op.
func (c *Collector) Stop() error {
	var err error
	c.stopOnce.Do(func() {
		close(c.stopped)
		if c.cmd == nil || c.cmd.Process == nil {
			return
		}
		if sigErr := c.cmd.Process.Signal(unix.SIGTERM); sigErr != nil && sigErr != syscall.ESRCH {
			err = sigErr
			return
		}
		done := make(chan struct{})
		go func() { c.cmd.Wait(); close(done) }()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			_ = c.cmd.Process.Kill()
		}
	})
	return err
}

// knownEventFields are the wire keys parseLine decodes explicitly; anything
// else in the line's top-level JSON object is preserved verbatim in Extra.
var knownEventFields = map[string]bool{
	"ts": true, "pid": true, "tid": true, "provider": true,
	"event_type": true, "event_name": true, "task": true,
	"payload": true, "net_bytes": true, "disk_bytes": true,
}

func parseLine(line string, ingestTime time.Time) (model.Event, bool) {
	var raw struct {
		TS        string         `json:"ts"`
		PID       *int32         `json:"pid"`
		TID       *int32         `json:"tid"`
		Provider  string         `json:"provider"`
		EventType string         `json:"event_type"`
		EventName string         `json:"event_name"`
		Task      string         `json:"task"`
		Payload   map[string]any `json:"payload"`
		NetBytes  float64        `json:"net_bytes"`
		DiskBytes float64        `json:"disk_bytes"`
	}
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return model.Event{}, false
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return model.Event{}, false
	}
	var extra map[string]any
	for k, v := range fields {
		if knownEventFields[k] {
			continue
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[k] = v
	}

	ts, err := time.Parse(time.RFC3339Nano, raw.TS)
	if err != nil {
		ts = ingestTime
	}
	provider := raw.Provider
	if provider == "" {
		provider = "unknown"
	}
	payload := raw.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	return model.Event{
		TS:        ts.UTC(),
		PID:       raw.PID,
		TID:       raw.TID,
		Provider:  provider,
		EventType: raw.EventType,
		EventName: raw.EventName,
		Task:      raw.Task,
		Payload:   payload,
		NetBytes:  raw.NetBytes,
		DiskBytes: raw.DiskBytes,
		Extra:     extra,
	}, true
}
