// Package orchestrator runs the agent's 1Hz tick loop: sample host CPU/RAM,
// feed the detector, and on a confirmed spike pull the collector's recent
// events, rank candidate culprit PIDs, and dispatch evidence to the RCA
// client. Grounded on engine's RunDaemon ticker-plus-signal-select shape,
// retargeted at this agent's sample-detect-rank-analyze pipeline.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ftahirops/tracewatch/aggregate"
	"github.com/ftahirops/tracewatch/clock"
	"github.com/ftahirops/tracewatch/collector"
	"github.com/ftahirops/tracewatch/config"
	"github.com/ftahirops/tracewatch/detector"
	"github.com/ftahirops/tracewatch/logging"
	"github.com/ftahirops/tracewatch/model"
	"github.com/ftahirops/tracewatch/ranker"
	"github.com/ftahirops/tracewatch/rca"
	"github.com/ftahirops/tracewatch/state"
)

// spikeEventSnapshotSize is the number of most-recently-inserted events
// taken as forensic evidence on a confirmed spike, per spec's resolution of
// "last N by insertion" over "events within the confirm window".
const spikeEventSnapshotSize = 1500

// Sampler is the host telemetry source. sampler.Sampler satisfies this.
type Sampler interface {
	Sample() (cpuPct, ramPct float64)
}

// EventSource is the subset of collector.Collector the orchestrator reads
// from on a confirmed spike.
type EventSource interface {
	RecentEvents(limit int) []model.Event
}

// Orchestrator wires the sampler, detector, state store, ranker, and RCA
// client into the agent's main loop.
type Orchestrator struct {
	cfg   config.Config
	clock clock.Clock
	log   logging.Logger

	sampler  Sampler
	detector *detector.Detector
	store    *state.Store
	events   EventSource
	identity ranker.Identity
	rcaClient rca.Client
}

// New constructs an Orchestrator from its fully-built collaborators.
func New(cfg config.Config, c clock.Clock, log logging.Logger, sampler Sampler, det *detector.Detector,
	store *state.Store, events EventSource, identity ranker.Identity, rcaClient rca.Client) *Orchestrator {
	return &Orchestrator{
		cfg: cfg, clock: c, log: log,
		sampler: sampler, detector: det, store: store,
		events: events, identity: identity, rcaClient: rcaClient,
	}
}

// Run ticks at cfg.SampleInterval until ctx is canceled or SIGINT/SIGTERM is
// received.
func (o *Orchestrator) Run(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(o.cfg.SampleInterval)
	defer ticker.Stop()

	o.log.InfoCtx(ctx, "orchestrator started", "interval", o.cfg.SampleInterval)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sigCh:
			o.log.InfoCtx(ctx, "orchestrator shutting down")
			return nil
		case <-ticker.C:
			o.tick(ctx)
		}
	}
}

func (o *Orchestrator) tick(ctx context.Context) {
	cpu, ram := o.sampler.Sample()
	o.store.AddTelemetry(cpu, ram)

	now := o.clock.Now()
	o.detector.AddSample(now, cpu, ram)

	fired, info := o.detector.Check()
	if !fired {
		return
	}

	spike := o.store.AddSpike(info, "threshold exceeded")
	o.log.WarnCtx(ctx, "spike confirmed",
		"spike_id", spike.ID, "type", spike.SpikeType, "cpu", spike.CPUAtConfirm, "ram", spike.RAMAtConfirm)

	events := o.events.RecentEvents(spikeEventSnapshotSize)
	o.store.AttachEvents(spike.ID, events)

	candidates := ranker.Rank(ranker.Config{Ridge: o.cfg.RankerRidge, TopK: o.cfg.RankerTopN},
		o.identity, events, spike.CPUAtConfirm, spike.RAMAtConfirm, nil, nil)

	evidence := o.buildEvidence(spike, events, candidates)
	result := o.rcaClient.Analyze(ctx, evidence)
	o.store.AttachRCA(spike.ID, &result)

	o.log.InfoCtx(ctx, "rca attached", "spike_id", spike.ID, "confidence", result.Confidence)
}

func (o *Orchestrator) buildEvidence(spike *model.SpikeRecord, events []model.Event, candidates []model.RankedCandidate) rca.Evidence {
	contention := aggregate.DetectCPUContention(events, o.cfg.RetentionSeconds)
	gcEvents := aggregate.DetectGCEvents(events)
	pageFaults := aggregate.DetectPageFaults(events)
	netUsage := aggregate.AggregateNetworkUsage(events)
	diskUsage := aggregate.AggregateDiskUsage(events)
	threadSpikes := aggregate.DetectThreadSpikes(events)

	return rca.Evidence{
		CollectedAt:         clock.ISO(o.clock.Now()),
		SpikeType:           string(spike.SpikeType),
		SeverityScore:       spike.SeverityScore,
		CPUAtConfirm:        spike.CPUAtConfirm,
		RAMAtConfirm:        spike.RAMAtConfirm,
		ContextSwitchRate:   contention.ContextSwitchRate,
		GCEventCount:        len(gcEvents),
		PageFaultCount:      len(pageFaults),
		ETWEventsCount:      len(events),
		NetworkUsageTopPIDs: pidTotalsToMap(netUsage),
		DiskUsageTopPIDs:    pidTotalsToMap(diskUsage),
		ThreadSpikes:        pidCountsToMap(threadSpikes),
		RankedPIDCandidates: candidates,
	}
}

// topPIDsInEvidence caps each evidence map to its 10 heaviest PIDs, matching
// monitor_loop.py's dict(list(...)[:10]) truncation before handing usage
// breakdowns to the RCA prompt.
const topPIDsInEvidence = 10

func pidTotalsToMap(totals []aggregate.PIDTotal) map[string]any {
	if len(totals) > topPIDsInEvidence {
		totals = totals[:topPIDsInEvidence]
	}
	out := make(map[string]any, len(totals))
	for _, t := range totals {
		out[fmt.Sprint(t.PID)] = t.Bytes
	}
	return out
}

func pidCountsToMap(counts []aggregate.PIDCount) map[string]any {
	if len(counts) > topPIDsInEvidence {
		counts = counts[:topPIDsInEvidence]
	}
	out := make(map[string]any, len(counts))
	for _, c := range counts {
		out[fmt.Sprint(c.PID)] = c.Count
	}
	return out
}
