package rca

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// buildPrompt renders the evidence bundle into the human-readable diagnostic
// brief the RCA service is prompted with, following the Markdown layout
// original_source/gemini_client.py builds (collected-at header, spike
// summary, network/disk/thread JSON blocks, ranked candidate table).
// Byte counts are rendered with humanize.Bytes instead of raw integers so
// the brief stays readable for the largest candidates.
func buildPrompt(schemaName string, ev Evidence) string {
	var ranked strings.Builder
	top := ev.RankedPIDCandidates
	if len(top) > 15 {
		top = top[:15]
	}
	if len(top) == 0 {
		ranked.WriteString("No ranked PID candidates available.")
	}
	for i, p := range top {
		fmt.Fprintf(&ranked,
			"%d. PID %d | %s | Score=%.4f | CPU=%.2f%% | RAM=%.2f%% | Events=%d | Threads=%d | Net=%s | Disk=%s\n",
			i+1, p.PID, p.Name, p.FinalScore, p.CPUPct, p.RAMPct, p.EventRate, p.ThreadRate,
			humanize.Bytes(uint64(maxFloat(p.NetBytes, 0))),
			humanize.Bytes(uint64(maxFloat(p.DiskBytes, 0))),
		)
	}

	netJSON, _ := json.MarshalIndent(ev.NetworkUsageTopPIDs, "", "  ")
	diskJSON, _ := json.MarshalIndent(ev.DiskUsageTopPIDs, "", "  ")
	threadJSON, _ := json.MarshalIndent(ev.ThreadSpikes, "", "  ")

	summary := fmt.Sprintf(`
* **Collected At:** %s
* **Spike Type:** %s
* **Severity Score:** %.2f
* **CPU at Spike Confirmation:** %.1f%%
* **RAM at Spike Confirmation:** %.1f%%
* **Context Switch Rate:** %v
* **GC Events (window):** %d
* **Page Fault Events:** %d
* **Total ETW Events Analyzed:** %d

---

### Network Usage
%s

### Disk Usage
%s

### Thread Spikes
%s

### Ranked Candidate Processes
%s
`, ev.CollectedAt, ev.SpikeType, ev.SeverityScore, ev.CPUAtConfirm, ev.RAMAtConfirm,
		ev.ContextSwitchRate, ev.GCEventCount, ev.PageFaultCount, ev.ETWEventsCount,
		string(netJSON), string(diskJSON), string(threadJSON), ranked.String())

	return fmt.Sprintf(`
You are a host Root Cause Analysis assistant operating in DIAGNOSTIC MODE.

Return ONLY a function call to: "%s"

Output must match the schema exactly.

%s
`, schemaName, summary)
}

func maxFloat(v, floor float64) float64 {
	if v < floor {
		return floor
	}
	return v
}
