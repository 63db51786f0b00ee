package ranker

import "math"

const maxLag = 5

// computeCorrelation fills each row's cosineCorrelation, leadLagScore and
// correlationRaw (0.7*cosine + 0.3*lead/lag), per spec.md §4.3 step 7.
func computeCorrelation(rows []*row, spikeCPU, spikeRAM float64, globalSeries []float64, pidSeries map[int32][]float64) {
	spikeVec := []float64{spikeCPU, spikeRAM, 1, 1, 1, 1, 1, 1, 1}

	for _, r := range rows {
		pidVec := []float64{
			r.cpuPct, r.ramPct,
			float64(r.eventRate), float64(r.threadRate), float64(r.cpuSamples),
			float64(r.pageFaults), float64(r.gcEvents),
			r.netBytesLog, r.diskBytesLog,
		}
		cos := cosineSimilarity(pidVec, spikeVec)

		var lead float64
		if pidSeries != nil {
			lead = leadLagScore(globalSeries, pidSeries[r.pid])
		}

		r.cosineCorrelation = cos
		r.leadLagScore = lead
		r.correlationRaw = 0.7*cos + 0.3*lead
	}
}

func cosineSimilarity(a, b []float64) float64 {
	na, nb := norm(a), norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot / (na * nb)
}

func norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// leadLagScore is a cross-correlation based lead/lag score in [0,1]:
// strongest positive correlation across lags in [-maxLag, maxLag], scaled
// down the more the candidate lags (rather than leads) the global series.
func leadLagScore(global, pid []float64) float64 {
	if global == nil || pid == nil {
		return 0
	}
	n := len(global)
	if len(pid) < n {
		n = len(pid)
	}
	if n < 4 {
		return 0
	}
	g := centered(global[:n])
	p := centered(pid[:n])
	if norm(g) == 0 || norm(p) == 0 {
		return 0
	}

	bestCorr := 0.0
	bestLag := 0

	for lag := -maxLag; lag <= maxLag; lag++ {
		var gSeg, pSeg []float64
		switch {
		case lag < 0:
			gSeg = g[-lag:]
			pSeg = p[:n+lag]
		case lag > 0:
			gSeg = g[:n-lag]
			pSeg = p[lag:]
		default:
			gSeg, pSeg = g, p
		}
		if len(gSeg) < 3 {
			continue
		}
		den := norm(gSeg) * norm(pSeg)
		if den == 0 {
			continue
		}
		var num float64
		for i := range gSeg {
			num += gSeg[i] * pSeg[i]
		}
		corr := num / den
		if corr > bestCorr {
			bestCorr = corr
			bestLag = lag
		}
	}

	if bestCorr <= 0 {
		return 0
	}

	lagFactor := 0.8
	switch {
	case bestLag < 0:
		lagFactor = 1.0
	case bestLag > 0:
		lagFactor = 0.5
	}

	score := bestCorr * lagFactor
	return clip(score, 0, 1)
}

func centered(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x
	}
	mean := sum / float64(len(v))
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x - mean
	}
	return out
}
