package rca

import "github.com/ftahirops/tracewatch/model"

// Evidence is the forensic bundle the orchestrator assembles around a
// confirmed spike and hands to the RCA client, matching the evidence dict
// original_source/monitor_loop.py builds before calling analyze_root_cause.
type Evidence struct {
	CollectedAt string

	SpikeType     string
	SeverityScore float64

	CPUAtConfirm float64
	RAMAtConfirm float64

	ContextSwitchRate float64
	GCEventCount      int
	PageFaultCount    int
	ETWEventsCount    int

	NetworkUsageTopPIDs map[string]any
	DiskUsageTopPIDs    map[string]any
	ThreadSpikes        map[string]any

	RankedPIDCandidates []model.RankedCandidate
}
