package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// ErrSizeMismatch reports paired samples of differing lengths.
var ErrSizeMismatch = errors.New("sample size mismatch")

// ComparisonResult labels one scenario-comparison test outcome so callers
// can render results keyed by the variable/scenario pair being compared.
type ComparisonResult struct {
	Label     string
	Statistic float64
	PValue    float64
}

// Wilcoxon runs the signed-rank test over two paired, equal-length samples
// (same patients, two experiment configurations). Zero differences are
// dropped before ranking; identical samples therefore yield statistic 0 and
// p-value 1. The p-value uses the normal approximation with tie correction.
func Wilcoxon(label string, x, y []float64) (ComparisonResult, error) {
	if len(x) != len(y) {
		return ComparisonResult{}, fmt.Errorf("%w: paired samples have lengths %d and %d", ErrSizeMismatch, len(x), len(y))
	}
	if len(x) == 0 {
		return ComparisonResult{}, fmt.Errorf("%w: paired samples are empty", ErrSizeMismatch)
	}

	diffs := make([]float64, 0, len(x))
	for i := range x {
		if d := x[i] - y[i]; d != 0 {
			diffs = append(diffs, d)
		}
	}
	if len(diffs) == 0 {
		// No detectable difference anywhere.
		return ComparisonResult{Label: label, Statistic: 0, PValue: 1}, nil
	}

	abs := make([]float64, len(diffs))
	for i, d := range diffs {
		abs[i] = math.Abs(d)
	}
	ranks, ties := midranks(abs)

	var wPlus, wMinus float64
	for i, d := range diffs {
		if d > 0 {
			wPlus += ranks[i]
		} else {
			wMinus += ranks[i]
		}
	}
	w := math.Min(wPlus, wMinus)

	n := float64(len(diffs))
	mean := n * (n + 1) / 4
	variance := n*(n+1)*(2*n+1)/24 - ties/48
	if variance <= 0 {
		return ComparisonResult{Label: label, Statistic: w, PValue: 1}, nil
	}
	z := (w - mean) / math.Sqrt(variance)
	p := math.Min(1, 2*distuv.UnitNormal.Survival(math.Abs(z)))

	return ComparisonResult{Label: label, Statistic: w, PValue: p}, nil
}

// Friedman runs the rank test over three or more related samples (same
// patients, k experiment configurations) using the chi-square approximation
// with tie correction.
func Friedman(label string, samples [][]float64) (ComparisonResult, error) {
	k := len(samples)
	if k < 3 {
		return ComparisonResult{}, fmt.Errorf("friedman requires at least 3 related samples, got %d", k)
	}
	n := len(samples[0])
	for i, s := range samples {
		if len(s) != n {
			return ComparisonResult{}, fmt.Errorf("%w: sample %d has length %d, want %d", ErrSizeMismatch, i, len(s), n)
		}
	}
	if n == 0 {
		return ComparisonResult{}, fmt.Errorf("%w: samples are empty", ErrSizeMismatch)
	}

	// Rank each subject's k values across configurations.
	rankSums := make([]float64, k)
	var tieSum float64
	row := make([]float64, k)
	for j := 0; j < n; j++ {
		for i := 0; i < k; i++ {
			row[i] = samples[i][j]
		}
		ranks, ties := midranks(row)
		tieSum += ties
		for i := 0; i < k; i++ {
			rankSums[i] += ranks[i]
		}
	}

	fk, fn := float64(k), float64(n)
	var ssbn float64
	for _, r := range rankSums {
		ssbn += r * r
	}
	correction := 1 - tieSum/(fn*(fk*fk*fk-fk))
	if correction <= 0 {
		// every subject's values tied across all configurations
		return ComparisonResult{Label: label, Statistic: 0, PValue: 1}, nil
	}
	chi2 := (12/(fk*fn*(fk+1))*ssbn - 3*fn*(fk+1)) / correction

	chiDist := distuv.ChiSquared{K: fk - 1}
	return ComparisonResult{Label: label, Statistic: chi2, PValue: chiDist.Survival(chi2)}, nil
}

// midranks assigns average ranks (1-based) to values, sharing ranks among
// ties. It also returns the tie-correction term Σ(t³ - t) over tie groups.
func midranks(values []float64) ([]float64, float64) {
	type indexed struct {
		v float64
		i int
	}
	order := make([]indexed, len(values))
	for i, v := range values {
		order[i] = indexed{v: v, i: i}
	}
	sort.Slice(order, func(a, b int) bool { return order[a].v < order[b].v })

	ranks := make([]float64, len(values))
	var tieTerm float64
	for start := 0; start < len(order); {
		end := start
		for end < len(order) && order[end].v == order[start].v {
			end++
		}
		avg := float64(start+end+1) / 2 // average of 1-based ranks start+1..end
		for j := start; j < end; j++ {
			ranks[order[j].i] = avg
		}
		t := float64(end - start)
		tieTerm += t*t*t - t
		start = end
	}
	return ranks, tieTerm
}
