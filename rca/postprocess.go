package rca

import (
	"fmt"
	"math"

	"github.com/ftahirops/tracewatch/model"
)

// Fallback is the guaranteed RCA returned when the external service never
// produces a usable response, so the read API and UI never show an empty
// state. Matches original_source/gemini_client.py's _fallback_rca exactly:
// confidence 0.40, severity 0.25, three generic recommendations.
func Fallback(reason string) model.RCA {
	return model.RCA{
		CauseSummary:  fmt.Sprintf("Automated RCA temporarily unavailable. Reason: %s", reason),
		Confidence:    0.40,
		SpikeType:     "unknown",
		SeverityScore: 0.25,
		ResourceImpact: model.ResourceImpact{
			CPUSpikePercent: 0,
			RAMSpikePercent: 0,
		},
		CulpritProcess: model.CulpritProcess{
			PID:  -1,
			Name: "unknown",
		},
		RankedSuspects: []any{},
		Timeline:       []any{},
		Recs: []string{
			"Verify RCA service connectivity.",
			"Inspect prompt schema compatibility.",
			"Retry RCA manually once stability is restored.",
		},
	}
}

// PostProcess applies the same safety normalization the original runs on a
// successful Gemini response: confidence clamped to [0.40, 0.95], severity
// floored by a RAM-spike-percent threshold (>70 -> 0.8, >50 -> 0.5, else
// 0.25) and never lowered below that floor, and recs replaced by three
// generic recommendations if the model returned fewer than three.
func PostProcess(r model.RCA) model.RCA {
	r.Confidence = round2(clamp(r.Confidence, 0.40, 0.95))

	floor := 0.25
	switch {
	case r.ResourceImpact.RAMSpikePercent > 70:
		floor = 0.8
	case r.ResourceImpact.RAMSpikePercent > 50:
		floor = 0.5
	}
	r.SeverityScore = round2(math.Max(r.SeverityScore, floor))

	if len(r.Recs) < 3 {
		r.Recs = []string{
			"Investigate memory usage of top-ranked processes.",
			"Apply resource limits or scheduling constraints.",
			"Improve alert-response workflows.",
		}
	}
	return r
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
