// Package ranker is the agent's PID Ranker: given a spike's event snapshot
// and the host's spike-time CPU/RAM, it scores every candidate PID across
// four statistical dimensions (robust z-anomaly, Mahalanobis distance,
// energy contribution, correlation) and blends them into one ranked list.
// Ported field-for-field from original_source/pid_ranker.py, with the
// Mahalanobis ridge constant and energy-contribution clip range taken from
// spec.md (1e-3 ridge, [0, 1.5] clip) rather than the original's looser
// 1e-6/unbounded values.
package ranker

import (
	"math"
	"sort"
	"strings"

	"github.com/ftahirops/tracewatch/model"
	"github.com/ftahirops/tracewatch/procinfo"
)

// Config holds the ranker's tunables.
type Config struct {
	Ridge float64
	TopK  int
}

// Identity resolves a PID's name/cmdline/cpu%/ram%, the job procinfo.Reader
// does in production; tests substitute a stub.
type Identity interface {
	Lookup(pid int32) (procinfo.Info, bool)
}

type row struct {
	pid     int32
	name    string
	cmdline string

	cpuPct, ramPct                    float64
	eventRate, threadRate, cpuSamples int
	pageFaults, gcEvents              int
	netBytes, diskBytes               float64
	netBytesLog, diskBytesLog         float64

	zAnomaly, mahalanobis           float64
	energyRaw, correlationRaw       float64
	anomalyScore, energyScore       float64
	cosineCorrelation, leadLagScore float64
	correlationScore, finalScore    float64
}

// Rank buckets events by PID, computes per-PID features, and returns up to
// Config.TopK candidates sorted by descending final score. globalCPUSeries
// and pidCPUSeries feed the lead/lag correlation component; either may be
// nil, in which case that component contributes 0.
func Rank(cfg Config, identity Identity, events []model.Event, spikeCPU, spikeRAM float64,
	globalCPUSeries []float64, pidCPUSeries map[int32][]float64) []model.RankedCandidate {

	buckets := make(map[int32][]model.Event)
	order := make([]int32, 0)
	for _, ev := range events {
		if !ev.HasPID() {
			continue
		}
		pid := ev.PIDValue()
		if _, seen := buckets[pid]; !seen {
			order = append(order, pid)
		}
		buckets[pid] = append(buckets[pid], ev)
	}
	if len(buckets) == 0 {
		return nil
	}

	rows := make([]*row, 0, len(order))
	var totalDisk, totalNet float64

	for _, pid := range order {
		r := &row{pid: pid, name: "Unknown"}

		if identity != nil {
			if info, ok := identity.Lookup(pid); ok {
				r.name, r.cmdline, r.cpuPct, r.ramPct = info.Name, info.Cmdline, info.CPUPct, info.RAMPct
			}
		}

		for _, ev := range buckets[pid] {
			r.eventRate++
			if strings.Contains(strings.ToLower(ev.EventType), "thread") {
				r.threadRate++
			}
			if strings.Contains(ev.Task, "Profile") {
				r.cpuSamples++
			}
			if ev.Task == "Memory" {
				r.pageFaults++
			}
			if strings.Contains(ev.EventName, "GC") {
				r.gcEvents++
			}
			r.netBytes += ev.NetBytes
			r.diskBytes += ev.DiskBytes
		}
		totalDisk += r.diskBytes
		totalNet += r.netBytes

		r.netBytesLog = math.Log1p(r.netBytes)
		r.diskBytesLog = math.Log1p(r.diskBytes)

		rows = append(rows, r)
	}

	computeZAnomaly(rows)
	computeMahalanobis(rows, cfg.Ridge)
	computeEnergy(rows, spikeCPU, spikeRAM, totalDisk, totalNet)
	computeCorrelation(rows, spikeCPU, spikeRAM, globalCPUSeries, pidCPUSeries)

	zNorm := normalize(pluck(rows, func(r *row) float64 { return r.zAnomaly }))
	mNorm := normalize(pluck(rows, func(r *row) float64 { return r.mahalanobis }))
	eNorm := normalize(pluck(rows, func(r *row) float64 { return r.energyRaw }))
	cNorm := normalize(pluck(rows, func(r *row) float64 { return r.correlationRaw }))

	boost := 1.0
	if spikeCPU > 85 || spikeRAM > 80 {
		boost = 1.25
	}

	finalRaw := make([]float64, len(rows))
	for i, r := range rows {
		anomaly := 0.5*zNorm[i] + 0.5*mNorm[i]
		r.anomalyScore = round4(anomaly)
		r.energyScore = round4(eNorm[i])
		r.correlationScore = round4(cNorm[i])
		finalRaw[i] = boost * (0.4*anomaly + 0.4*eNorm[i] + 0.2*cNorm[i])
	}

	maxFinal := maxOf(finalRaw)
	if maxFinal <= 0 {
		maxFinal = 1.0
	}

	out := make([]model.RankedCandidate, len(rows))
	for i, r := range rows {
		final := finalRaw[i] / maxFinal
		if final > 1.0 {
			final = 1.0
		}
		r.finalScore = round4(final)
		out[i] = r.toCandidate()
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].FinalScore > out[j].FinalScore })

	if cfg.TopK > 0 && len(out) > cfg.TopK {
		out = out[:cfg.TopK]
	}
	return out
}

func (r *row) toCandidate() model.RankedCandidate {
	return model.RankedCandidate{
		PID: r.pid, Name: r.name, Cmdline: r.cmdline,
		CPUPct: round2(r.cpuPct), RAMPct: round2(r.ramPct),
		EventRate: r.eventRate, ThreadRate: r.threadRate, CPUSamples: r.cpuSamples,
		PageFaults: r.pageFaults, GCEvents: r.gcEvents,
		NetBytes: round2(r.netBytes), DiskBytes: round2(r.diskBytes),
		ZAnomaly: r.zAnomaly, Mahalanobis: r.mahalanobis,
		AnomalyScore: r.anomalyScore, EnergyScore: r.energyScore,
		CosineCorrelation: r.cosineCorrelation, LeadLagScore: r.leadLagScore,
		CorrelationScore: r.correlationScore, FinalScore: r.finalScore,
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

func pluck(rows []*row, f func(*row) float64) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = f(r)
	}
	return out
}

func maxOf(vals []float64) float64 {
	m := 0.0
	for i, v := range vals {
		if i == 0 || v > m {
			m = v
		}
	}
	return m
}

func normalize(vals []float64) []float64 {
	out := make([]float64, len(vals))
	if len(vals) == 0 {
		return out
	}
	max := maxOf(vals)
	if max <= 0 {
		return out
	}
	for i, v := range vals {
		out[i] = v / max
	}
	return out
}
