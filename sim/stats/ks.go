package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// TestResult holds one distribution-equality test outcome.
type TestResult struct {
	Statistic float64
	PValue    float64
}

// undefinedTest marks a degenerate test input (e.g. an empty sample).
func undefinedTest() TestResult {
	return TestResult{Statistic: math.NaN(), PValue: math.NaN()}
}

// TwoSampleKS runs the two-sample Kolmogorov–Smirnov test: the maximum
// discrepancy between the empirical CDFs of x and y, with the asymptotic
// p-value. Empty samples yield an undefined (NaN) result.
func TwoSampleKS(x, y []float64) TestResult {
	if len(x) == 0 || len(y) == 0 {
		return undefinedTest()
	}

	xs := append([]float64(nil), x...)
	ys := append([]float64(nil), y...)
	sort.Float64s(xs)
	sort.Float64s(ys)

	d := stat.KolmogorovSmirnov(xs, nil, ys, nil)

	// Asymptotic p-value with the effective-n small-sample correction.
	en := float64(len(xs)) * float64(len(ys)) / float64(len(xs)+len(ys))
	lambda := (math.Sqrt(en) + 0.12 + 0.11/math.Sqrt(en)) * d
	return TestResult{Statistic: d, PValue: kolmogorovSurvival(lambda)}
}

// kolmogorovSurvival evaluates Q_KS(λ) = 2 Σ_{j≥1} (-1)^{j-1} exp(-2 j² λ²).
// The series alternates and converges fast for λ not near zero.
func kolmogorovSurvival(lambda float64) float64 {
	if lambda <= 0 {
		return 1
	}
	sum := 0.0
	sign := 1.0
	for j := 1; j <= 100; j++ {
		term := sign * math.Exp(-2*float64(j)*float64(j)*lambda*lambda)
		sum += term
		if math.Abs(term) < 1e-12 {
			break
		}
		sign = -sign
	}
	p := 2 * sum
	return math.Min(1, math.Max(0, p))
}
