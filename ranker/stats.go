package ranker

import (
	"math"
	"sort"
)

// anomalyFeature extracts the zAnomaly feature's value from a row.
type anomalyFeature func(*row) float64

var zAnomalyFeatures = []anomalyFeature{
	func(r *row) float64 { return r.ramPct },
	func(r *row) float64 { return float64(r.eventRate) },
	func(r *row) float64 { return float64(r.threadRate) },
	func(r *row) float64 { return float64(r.cpuSamples) },
	func(r *row) float64 { return float64(r.pageFaults) },
	func(r *row) float64 { return float64(r.gcEvents) },
	func(r *row) float64 { return r.netBytesLog },
	func(r *row) float64 { return r.diskBytesLog },
}

// computeZAnomaly fills each row's zAnomaly: the mean, across
// zAnomalyFeatures, of the robust z-score |x-median|/MAD (MAD floored at
// 0.01) computed across all rows for that feature.
func computeZAnomaly(rows []*row) {
	if len(rows) == 0 {
		return
	}
	medians := make([]float64, len(zAnomalyFeatures))
	mads := make([]float64, len(zAnomalyFeatures))
	for fi, feat := range zAnomalyFeatures {
		vals := pluck(rows, feat)
		med := median(vals)
		devs := make([]float64, len(vals))
		for i, v := range vals {
			devs[i] = math.Abs(v - med)
		}
		mad := median(devs)
		if mad < 0.01 {
			mad = 0.01
		}
		medians[fi] = med
		mads[fi] = mad
	}
	for _, r := range rows {
		var sum float64
		for fi, feat := range zAnomalyFeatures {
			sum += math.Abs(feat(r)-medians[fi]) / mads[fi]
		}
		r.zAnomaly = sum / float64(len(zAnomalyFeatures))
	}
}

var mahalanobisFeatures = []anomalyFeature{
	func(r *row) float64 { return r.cpuPct },
	func(r *row) float64 { return r.ramPct },
	func(r *row) float64 { return float64(r.eventRate) },
	func(r *row) float64 { return float64(r.threadRate) },
	func(r *row) float64 { return float64(r.cpuSamples) },
	func(r *row) float64 { return float64(r.pageFaults) },
	func(r *row) float64 { return float64(r.gcEvents) },
	func(r *row) float64 { return r.netBytesLog },
	func(r *row) float64 { return r.diskBytesLog },
}

// computeMahalanobis fills each row's mahalanobis: the per-row distance
// from the per-column median using a ridge-regularized pseudo-inverse
// covariance, per spec.md's numerical-stability note. With fewer than 2
// rows there is no covariance to estimate, so every distance is 0.
func computeMahalanobis(rows []*row, ridge float64) {
	n := len(rows)
	if n < 2 {
		return
	}
	dim := len(mahalanobisFeatures)

	X := make([][]float64, n)
	for i, r := range rows {
		X[i] = make([]float64, dim)
		for j, feat := range mahalanobisFeatures {
			X[i][j] = feat(r)
		}
	}

	center := make([]float64, dim)
	for j := 0; j < dim; j++ {
		col := make([]float64, n)
		for i := 0; i < n; i++ {
			col[i] = X[i][j]
		}
		center[j] = median(col)
	}

	Xc := make([][]float64, n)
	for i := range X {
		Xc[i] = make([]float64, dim)
		for j := 0; j < dim; j++ {
			Xc[i][j] = X[i][j] - center[j]
		}
	}

	cov := covariance(Xc, dim)
	for j := 0; j < dim; j++ {
		cov[j][j] += ridge
	}
	inv, ok := pseudoInverse(cov)
	if !ok {
		return
	}

	for i, r := range rows {
		m2 := quadForm(Xc[i], inv)
		if m2 < 0 {
			m2 = 0
		}
		r.mahalanobis = math.Sqrt(m2)
	}
}

func covariance(Xc [][]float64, dim int) [][]float64 {
	n := float64(len(Xc))
	cov := make([][]float64, dim)
	for i := range cov {
		cov[i] = make([]float64, dim)
	}
	denom := n - 1
	if denom < 1 {
		denom = 1
	}
	for a := 0; a < dim; a++ {
		for b := a; b < dim; b++ {
			var sum float64
			for _, row := range Xc {
				sum += row[a] * row[b]
			}
			v := sum / denom
			cov[a][b] = v
			cov[b][a] = v
		}
	}
	return cov
}

// quadForm computes row · inv · rowᵀ.
func quadForm(r []float64, inv [][]float64) float64 {
	dim := len(r)
	tmp := make([]float64, dim)
	for i := 0; i < dim; i++ {
		var s float64
		for j := 0; j < dim; j++ {
			s += r[j] * inv[j][i]
		}
		tmp[i] = s
	}
	var out float64
	for i := 0; i < dim; i++ {
		out += tmp[i] * r[i]
	}
	return out
}

// pseudoInverse inverts a square matrix via Gauss-Jordan elimination with
// partial pivoting. A diagonal ridge makes the covariance matrix
// well-conditioned in practice, so a direct inverse stands in for the
// Moore-Penrose pseudo-inverse the original computes with numpy's pinv.
func pseudoInverse(m [][]float64) ([][]float64, bool) {
	n := len(m)
	aug := make([][]float64, n)
	for i := range m {
		aug[i] = make([]float64, 2*n)
		copy(aug[i], m[i])
		aug[i][n+i] = 1
	}

	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(aug[r][col]) > math.Abs(aug[pivot][col]) {
				pivot = r
			}
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]
		if math.Abs(aug[col][col]) < 1e-12 {
			return nil, false
		}
		pv := aug[col][col]
		for k := 0; k < 2*n; k++ {
			aug[col][k] /= pv
		}
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			factor := aug[r][col]
			for k := 0; k < 2*n; k++ {
				aug[r][k] -= factor * aug[col][k]
			}
		}
	}

	inv := make([][]float64, n)
	for i := range inv {
		inv[i] = make([]float64, n)
		copy(inv[i], aug[i][n:])
	}
	return inv, true
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// computeEnergy fills each row's energyRaw: the weighted sum of its
// CPU/RAM/disk/net contribution to the spike, each fraction clipped to
// [0, 1.5] per spec.md (the original only floors at 0).
func computeEnergy(rows []*row, spikeCPU, spikeRAM, totalDisk, totalNet float64) {
	denomCPU := math.Max(spikeCPU, 1.0)
	denomRAM := math.Max(spikeRAM, 1.0)
	denomDisk := math.Max(totalDisk, 1.0)
	denomNet := math.Max(totalNet, 1.0)

	for _, r := range rows {
		cpuContrib := clip(r.cpuPct/denomCPU, 0, 1.5)
		ramContrib := clip(r.ramPct/denomRAM, 0, 1.5)
		diskContrib := clip(r.diskBytes/denomDisk, 0, 1.5)
		netContrib := clip(r.netBytes/denomNet, 0, 1.5)

		r.energyRaw = 0.4*cpuContrib + 0.3*ramContrib + 0.15*diskContrib + 0.15*netContrib
	}
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
