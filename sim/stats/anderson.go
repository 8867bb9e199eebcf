package stats

import (
	"math"
	"sort"
)

// ADResult holds a k-sample Anderson–Darling outcome: the standardized
// statistic and the approximate significance level of the observed value.
// The significance level is clamped to [0.001, 0.25]; values outside the
// published critical-value table are not resolved further.
type ADResult struct {
	Statistic         float64
	SignificanceLevel float64
}

// undefinedAD marks a degenerate Anderson–Darling input.
func undefinedAD() ADResult {
	return ADResult{Statistic: math.NaN(), SignificanceLevel: math.NaN()}
}

// adSigLevels and adB0..adB2 are the Scholz–Stephens (1987) critical-value
// coefficients: critical = b0 + b1/√m + b2/m at each significance level.
var (
	adSigLevels = []float64{0.25, 0.1, 0.05, 0.025, 0.01, 0.005, 0.001}
	adB0        = []float64{0.675, 1.281, 1.645, 1.960, 2.326, 2.573, 3.085}
	adB1        = []float64{-0.245, 0.250, 0.678, 1.149, 1.822, 2.364, 3.615}
	adB2        = []float64{-0.105, -0.305, -0.362, -0.391, -0.396, -0.345, -0.154}
)

// KSampleAD runs the k-sample Anderson–Darling test (Scholz–Stephens,
// midrank version) over two or more samples. More sensitive to tail
// divergence than Kolmogorov–Smirnov. Degenerate inputs — an empty sample,
// or a pooled sample with fewer than two distinct values — yield an
// undefined (NaN) result.
func KSampleAD(samples [][]float64) ADResult {
	k := len(samples)
	if k < 2 {
		return undefinedAD()
	}

	n := make([]int, k)
	pooled := make([]float64, 0)
	for i, s := range samples {
		if len(s) == 0 {
			return undefinedAD()
		}
		n[i] = len(s)
		pooled = append(pooled, s...)
	}
	sort.Float64s(pooled)
	N := len(pooled)
	if N < 4 {
		return undefinedAD()
	}

	// Distinct pooled values, collected into a fresh slice so appends never
	// write back into the sorted pool.
	zstar := []float64{pooled[0]}
	for _, v := range pooled[1:] {
		if v != zstar[len(zstar)-1] {
			zstar = append(zstar, v)
		}
	}
	if len(zstar) < 2 {
		return undefinedAD()
	}

	// Midrank statistic A²akN over the distinct values.
	a2 := 0.0
	sorted := make([][]float64, k)
	for i, s := range samples {
		sorted[i] = append([]float64(nil), s...)
		sort.Float64s(sorted[i])
	}
	for _, s := range sorted {
		inner := 0.0
		for _, z := range zstar {
			lj := float64(countLessEq(pooled, z) - countLess(pooled, z))
			bj := float64(countLess(pooled, z)) + lj/2
			fij := float64(countLessEq(s, z) - countLess(s, z))
			mij := float64(countLessEq(s, z)) - fij/2

			denom := bj*(float64(N)-bj) - float64(N)*lj/4
			if denom <= 0 {
				continue
			}
			diff := float64(N)*mij - bj*float64(len(s))
			inner += lj / float64(N) * diff * diff / denom
		}
		a2 += inner / float64(len(s))
	}
	a2 *= (float64(N) - 1) / float64(N)

	// Standardize: T = (A² - (k-1)) / σ_N with the exact variance.
	fN := float64(N)
	var bigH float64
	for _, ni := range n {
		bigH += 1 / float64(ni)
	}
	var h float64
	for i := 1; i <= N-1; i++ {
		h += 1 / float64(i)
	}
	var g float64
	for i := 1; i <= N-2; i++ {
		for j := i + 1; j <= N-1; j++ {
			g += 1 / ((fN - float64(i)) * float64(j))
		}
	}
	fk := float64(k)
	a := (4*g-6)*(fk-1) + (10-6*g)*bigH
	b := (2*g-4)*fk*fk + 8*h*fk + (2*g-14*h-4)*bigH - 8*h + 4*g - 6
	c := (6*h+2*g-2)*fk*fk + (4*h-4*g+6)*fk + (2*h-6)*bigH + 4*h
	d := (2*h+6)*fk*fk - 4*h*fk
	sigmaSq := (a*fN*fN*fN + b*fN*fN + c*fN + d) / ((fN - 1) * (fN - 2) * (fN - 3))
	if sigmaSq <= 0 {
		return undefinedAD()
	}

	m := fk - 1
	t := (a2 - m) / math.Sqrt(sigmaSq)

	return ADResult{Statistic: t, SignificanceLevel: adSignificance(t, m)}
}

// adSignificance interpolates log(significance) over the critical-value
// table for m = k-1, clamping outside the table's range.
func adSignificance(t, m float64) float64 {
	critical := make([]float64, len(adSigLevels))
	for i := range adSigLevels {
		critical[i] = adB0[i] + adB1[i]/math.Sqrt(m) + adB2[i]/m
	}
	if t <= critical[0] {
		return adSigLevels[0]
	}
	last := len(critical) - 1
	if t >= critical[last] {
		return adSigLevels[last]
	}
	for i := 0; i < last; i++ {
		if t >= critical[i] && t <= critical[i+1] {
			frac := (t - critical[i]) / (critical[i+1] - critical[i])
			logSig := math.Log(adSigLevels[i]) + frac*(math.Log(adSigLevels[i+1])-math.Log(adSigLevels[i]))
			return math.Exp(logSig)
		}
	}
	return adSigLevels[last]
}

// countLess returns how many values in the sorted slice are < v.
func countLess(sorted []float64, v float64) int {
	return sort.SearchFloat64s(sorted, v)
}

// countLessEq returns how many values in the sorted slice are <= v.
func countLessEq(sorted []float64, v float64) int {
	return sort.Search(len(sorted), func(i int) bool { return sorted[i] > v })
}
