package stats

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKSampleAD_IdenticalSamples(t *testing.T) {
	x := sequence(50, func(i int) float64 { return float64(i) })
	res := KSampleAD([][]float64{x, x})
	// No divergence: the observed statistic sits below the lowest critical
	// value, so the significance clamps at the table's upper end.
	assert.InDelta(t, 0.25, res.SignificanceLevel, 1e-12)
}

func TestKSampleAD_DisjointSamples(t *testing.T) {
	x := sequence(50, func(i int) float64 { return float64(i) })
	y := sequence(50, func(i int) float64 { return float64(i) + 1000 })
	res := KSampleAD([][]float64{x, y})
	assert.Greater(t, res.Statistic, 5.0)
	assert.InDelta(t, 0.001, res.SignificanceLevel, 1e-12)
}

func TestKSampleAD_SameDistribution(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	samples := [][]float64{
		sequence(300, func(int) float64 { return rng.ExpFloat64() * 100 }),
		sequence(300, func(int) float64 { return rng.ExpFloat64() * 100 }),
		sequence(300, func(int) float64 { return rng.ExpFloat64() * 100 }),
	}
	res := KSampleAD(samples)
	assert.Greater(t, res.SignificanceLevel, 0.001)
}

func TestKSampleAD_TiedSamples(t *testing.T) {
	// Integer-valued hours make heavily tied pools the normal case. Two
	// similar samples with repeated values must still land well below the
	// lowest critical value, not be flagged as divergent.
	x := []float64{1, 1, 1, 2, 3, 3, 4, 5}
	y := []float64{1, 2, 2, 2, 3, 4, 4, 6}
	res := KSampleAD([][]float64{x, y})
	assert.Less(t, res.Statistic, 0.0)
	assert.InDelta(t, 0.25, res.SignificanceLevel, 1e-12)
}

func TestKSampleAD_IdenticalTiedSamples(t *testing.T) {
	x := []float64{1, 1, 2, 2, 3, 3, 4, 4}
	res := KSampleAD([][]float64{x, x})
	assert.Less(t, res.Statistic, 0.0)
	assert.InDelta(t, 0.25, res.SignificanceLevel, 1e-12)
}

func TestKSampleAD_DegenerateInputs(t *testing.T) {
	cases := map[string][][]float64{
		"single sample":   {{1, 2, 3}},
		"empty sample":    {{1, 2, 3}, {}},
		"too few pooled":  {{1}, {2}},
		"all values tied": {{5, 5, 5}, {5, 5, 5}},
	}
	for name, samples := range cases {
		res := KSampleAD(samples)
		assert.True(t, math.IsNaN(res.Statistic), name)
		assert.True(t, math.IsNaN(res.SignificanceLevel), name)
	}
}
