// Package aggregate holds the pure analysis functions that run over a
// snapshot of collected events: contention/GC/page-fault detection and the
// per-PID network, disk and thread-spike rollups. Ported from
// original_source/etw_stream_collector.py's detect_*/aggregate_* methods,
// split out of the collector itself so they operate on plain []model.Event
// snapshots rather than reaching into the collector's internal rings.
package aggregate

import (
	"sort"
	"strings"

	"github.com/ftahirops/tracewatch/model"
)

// Contention summarizes context-switch pressure over the retention window.
type Contention struct {
	ContextSwitchRate float64 `json:"context_switch_rate"`
	BurstDetected     bool    `json:"burst_detected"`
}

// DetectCPUContention counts context-switch events in events and reports
// their rate over retentionSeconds, flagging a burst when the raw count
// exceeds 1000 — matching the original's fixed threshold.
func DetectCPUContention(events []model.Event, retentionSeconds int) Contention {
	count := 0
	for _, ev := range events {
		if isContextSwitch(ev) {
			count++
		}
	}
	denom := retentionSeconds
	if denom < 1 {
		denom = 1
	}
	return Contention{
		ContextSwitchRate: float64(count) / float64(denom),
		BurstDetected:     count > 1000,
	}
}

func isContextSwitch(ev model.Event) bool {
	return strings.Contains(strings.ToLower(ev.EventName), "context") ||
		strings.Contains(strings.ToLower(ev.EventType), "context_switch")
}

// DetectGCEvents returns the .NET runtime garbage-collection events in
// events: provider "Microsoft-Windows-DotNETRuntime" and "GC" in the event
// name.
func DetectGCEvents(events []model.Event) []model.Event {
	var out []model.Event
	for _, ev := range events {
		if ev.Provider == "Microsoft-Windows-DotNETRuntime" && strings.Contains(ev.EventName, "GC") {
			out = append(out, ev)
		}
	}
	return out
}

// DetectPageFaults returns the events whose task is "Memory".
func DetectPageFaults(events []model.Event) []model.Event {
	var out []model.Event
	for _, ev := range events {
		if ev.Task == "Memory" {
			out = append(out, ev)
		}
	}
	return out
}

// PIDTotal is one entry of a pid-keyed byte-total rollup, kept in
// descending-total order.
type PIDTotal struct {
	PID   int32   `json:"pid"`
	Bytes float64 `json:"bytes"`
}

// AggregateNetworkUsage sums NetBytes per pid, descending.
func AggregateNetworkUsage(events []model.Event) []PIDTotal {
	return sumByPID(events, func(ev model.Event) float64 { return ev.NetBytes })
}

// AggregateDiskUsage sums DiskBytes per pid, descending.
func AggregateDiskUsage(events []model.Event) []PIDTotal {
	return sumByPID(events, func(ev model.Event) float64 { return ev.DiskBytes })
}

func sumByPID(events []model.Event, value func(model.Event) float64) []PIDTotal {
	totals := make(map[int32]float64)
	for _, ev := range events {
		if !ev.HasPID() {
			continue
		}
		totals[ev.PIDValue()] += value(ev)
	}
	out := make([]PIDTotal, 0, len(totals))
	for pid, total := range totals {
		out = append(out, PIDTotal{PID: pid, Bytes: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Bytes != out[j].Bytes {
			return out[i].Bytes > out[j].Bytes
		}
		return out[i].PID < out[j].PID
	})
	return out
}

// PIDCount is one entry of a pid-keyed event-count rollup, kept in
// descending-count order.
type PIDCount struct {
	PID   int32 `json:"pid"`
	Count int   `json:"count"`
}

// DetectThreadSpikes counts "thread_start" events per pid, descending.
func DetectThreadSpikes(events []model.Event) []PIDCount {
	counts := make(map[int32]int)
	for _, ev := range events {
		if !ev.HasPID() || ev.EventType != "thread_start" {
			continue
		}
		counts[ev.PIDValue()]++
	}
	out := make([]PIDCount, 0, len(counts))
	for pid, count := range counts {
		out = append(out, PIDCount{PID: pid, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].PID < out[j].PID
	})
	return out
}
