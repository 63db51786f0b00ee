package collector

import (
	"testing"
	"time"

	"github.com/ftahirops/tracewatch/clock"
	"github.com/ftahirops/tracewatch/logging"
)

func newTestCollector(c clock.Clock) *Collector {
	return New(Config{GlobalRingSize: 3, PerPIDRingSize: 2, RetentionSeconds: 10}, c, logging.New(nil))
}

func TestParseLineDefaultsMissingFields(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ev, ok := parseLine(`{"event_name":"Foo"}`, now)
	if !ok {
		t.Fatal("expected line to parse")
	}
	if ev.Provider != "unknown" {
		t.Errorf("provider = %q, want unknown", ev.Provider)
	}
	if ev.Payload == nil {
		t.Error("expected non-nil payload default")
	}
	if !ev.TS.Equal(now) {
		t.Errorf("ts = %v, want ingest time %v", ev.TS, now)
	}
}

func TestParseLinePreservesUnknownFieldsInExtra(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ev, ok := parseLine(`{"event_name":"Foo","provider":"p","stack_trace":"abc","cpu_id":3}`, now)
	if !ok {
		t.Fatal("expected line to parse")
	}
	if ev.Extra["stack_trace"] != "abc" {
		t.Errorf("extra[stack_trace] = %v, want abc", ev.Extra["stack_trace"])
	}
	if ev.Extra["cpu_id"] != float64(3) {
		t.Errorf("extra[cpu_id] = %v, want 3", ev.Extra["cpu_id"])
	}
	if _, known := ev.Extra["provider"]; known {
		t.Error("known field provider leaked into Extra")
	}
}

func TestParseLineRejectsMalformedJSON(t *testing.T) {
	if _, ok := parseLine("not json", time.Now()); ok {
		t.Error("expected malformed line to be rejected")
	}
}

func TestParseLineSkipsEmptyLine(t *testing.T) {
	if _, ok := parseLine("", time.Now()); ok {
		t.Error("expected empty line to be rejected")
	}
}

func TestIngestEvictsGlobalRingOldestFirst(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c := newTestCollector(fc)
	for i := 0; i < 4; i++ {
		ev, _ := parseLine(`{"event_name":"e"}`, fc.Now())
		c.ingest(ev)
		fc.Advance(time.Second)
	}
	got := c.RecentEvents(0)
	if len(got) != 3 {
		t.Fatalf("expected ring capped at 3, got %d", len(got))
	}
	if want := time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC); !got[0].TS.Equal(want) {
		t.Errorf("oldest surviving event ts = %v, want %v", got[0].TS, want)
	}
}

func TestIngestPurgesEventsOlderThanRetention(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c := newTestCollector(fc)

	ev, _ := parseLine(`{"event_name":"old"}`, fc.Now())
	c.ingest(ev)

	fc.Advance(20 * time.Second)
	ev2, _ := parseLine(`{"event_name":"new"}`, fc.Now())
	c.ingest(ev2)

	got := c.RecentEvents(0)
	if len(got) != 1 || got[0].EventName != "new" {
		t.Fatalf("expected only the fresh event to survive purge, got %+v", got)
	}
}

func TestEventsByPIDEvictsWithGlobalPurge(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c := newTestCollector(fc)
	pid := int32(42)

	ev, _ := parseLine(`{"event_name":"a","pid":42}`, fc.Now())
	c.ingest(ev)

	fc.Advance(20 * time.Second)
	ev2, _ := parseLine(`{"event_name":"b"}`, fc.Now())
	c.ingest(ev2)

	if got := c.EventsByPID(pid, 0); len(got) != 0 {
		t.Errorf("expected per-pid ring purged along with global ring, got %d events", len(got))
	}
}

func TestEventsByPIDRingCapsAtPerPIDSize(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c := newTestCollector(fc)
	for i := 0; i < 5; i++ {
		ev, _ := parseLine(`{"event_name":"a","pid":42}`, fc.Now())
		c.ingest(ev)
	}
	if got := c.EventsByPID(42, 0); len(got) != 2 {
		t.Errorf("expected per-pid ring capped at 2, got %d", len(got))
	}
}

func TestOnPIDEvictedFiresWhenPerPIDRingAgesOut(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c := newTestCollector(fc)
	var evicted []int32
	c.OnPIDEvicted(func(pid int32) { evicted = append(evicted, pid) })

	ev, _ := parseLine(`{"event_name":"a","pid":42}`, fc.Now())
	c.ingest(ev)

	fc.Advance(20 * time.Second)
	ev2, _ := parseLine(`{"event_name":"b"}`, fc.Now())
	c.ingest(ev2)

	if len(evicted) != 1 || evicted[0] != 42 {
		t.Fatalf("expected eviction hook to fire once for pid 42, got %v", evicted)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	c := newTestCollector(clock.System{})
	if err := c.Stop(); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("second stop should be a no-op, got: %v", err)
	}
}
