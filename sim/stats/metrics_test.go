package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var varNames = []string{"pre_vam", "vam", "post_vam", "icu_stay", "post_icu"}

// symmetricSimData builds runs alternating true±spread per variable, so each
// patient's run mean equals the true value exactly.
func symmetricSimData(trueRows [][]float64, runs int, spread float64) [][][]float64 {
	sim := make([][][]float64, len(trueRows))
	for i, row := range trueRows {
		sim[i] = make([][]float64, runs)
		for j := 0; j < runs; j++ {
			r := make([]float64, len(row))
			for v, tv := range row {
				if j%2 == 0 {
					r[v] = tv + spread
				} else {
					r[v] = tv - spread
				}
			}
			sim[i][j] = r
		}
	}
	return sim
}

func TestNewSimulationMetrics_ShapeErrors(t *testing.T) {
	ok := [][][]float64{{{1, 2}, {3, 4}}}
	cases := map[string]struct {
		trueData [][]float64
		simData  [][][]float64
		names    []string
	}{
		"empty sim":          {[][]float64{{1, 2}}, nil, nil},
		"ragged runs":        {[][]float64{{1, 2}}, [][][]float64{{{1, 2}}, {{1, 2}, {3, 4}}}, nil},
		"ragged variables":   {[][]float64{{1, 2}}, [][][]float64{{{1, 2}, {3}}}, nil},
		"true row count":     {[][]float64{{1, 2}, {3, 4}, {5, 6}}, [][][]float64{{{1, 2}}, {{1, 2}}}, nil},
		"true row width":     {[][]float64{{1, 2, 3}}, ok, nil},
		"name count":         {[][]float64{{1, 2}}, ok, []string{"only_one"}},
	}
	for name, c := range cases {
		_, err := NewSimulationMetrics(c.trueData, c.simData, c.names)
		require.Error(t, err, name)
		assert.ErrorIs(t, err, ErrShapeMismatch, name)
	}
}

func TestNewSimulationMetrics_BroadcastsSingleTrueRow(t *testing.T) {
	trueData := [][]float64{{100, 50, 30, 120, 200}}
	sim := symmetricSimData([][]float64{{100, 50, 30, 120, 200}, {100, 50, 30, 120, 200}, {100, 50, 30, 120, 200}}, 10, 1)

	m, err := NewSimulationMetrics(trueData, sim, varNames)
	require.NoError(t, err)
	res, err := m.Evaluate(EvaluateOptions{ConfidenceLevel: 0.95})
	require.NoError(t, err)
	for _, name := range varNames {
		assert.Equal(t, 100.0, res.CoveragePercent[name], name)
	}
}

func TestEvaluate_ConfidenceLevelValidation(t *testing.T) {
	m, err := NewSimulationMetrics([][]float64{{1}}, [][][]float64{{{1}, {2}}}, nil)
	require.NoError(t, err)
	for _, level := range []float64{0, 1, -0.5, 1.5} {
		_, err := m.Evaluate(EvaluateOptions{ConfidenceLevel: level})
		assert.Error(t, err)
	}
}

func TestEvaluate_FullCoverageWhenMeansMatchTruth(t *testing.T) {
	trueRows := [][]float64{
		{100, 50, 30, 120, 200},
		{80, 40, 20, 90, 150},
	}
	sim := symmetricSimData(trueRows, 20, 5)

	m, err := NewSimulationMetrics(trueRows, sim, varNames)
	require.NoError(t, err)
	res, err := m.Evaluate(EvaluateOptions{ConfidenceLevel: 0.95})
	require.NoError(t, err)

	for _, name := range varNames {
		assert.Equal(t, 100.0, res.CoveragePercent[name], name)
	}
	// Run means equal true values, so the error margins vanish.
	assert.InDelta(t, 0.0, res.RMSE, 1e-9)
	assert.InDelta(t, 0.0, res.MAE, 1e-9)
	assert.InDelta(t, 0.0, res.MAPE, 1e-9)
}

func TestEvaluate_ZeroCoverageForConstantBiasedRuns(t *testing.T) {
	// All runs identical and offset from the truth: zero-width intervals
	// that never contain the true value.
	trueRows := [][]float64{{100}}
	sim := [][][]float64{{{110}, {110}, {110}, {110}}}

	m, err := NewSimulationMetrics(trueRows, sim, []string{"icu_stay"})
	require.NoError(t, err)
	res, err := m.Evaluate(EvaluateOptions{ConfidenceLevel: 0.95})
	require.NoError(t, err)

	assert.Equal(t, 0.0, res.CoveragePercent["icu_stay"])
	assert.InDelta(t, 10.0, res.RMSE, 1e-9)
	assert.InDelta(t, 10.0, res.MAE, 1e-9)
	assert.InDelta(t, 10.0, res.MAPE, 1e-9)
}

func TestEvaluate_CoverageWidensWithConfidence(t *testing.T) {
	// Slightly biased runs: a wider interval can only cover at least as
	// many patients as a narrower one.
	trueRows := make([][]float64, 40)
	sim := make([][][]float64, 40)
	for i := range trueRows {
		trueRows[i] = []float64{100}
		offset := float64(i) * 0.25
		sim[i] = [][]float64{{98 + offset}, {102 + offset}, {99 + offset}, {101 + offset}}
	}
	m, err := NewSimulationMetrics(trueRows, sim, []string{"icu_stay"})
	require.NoError(t, err)

	lo, err := m.Evaluate(EvaluateOptions{ConfidenceLevel: 0.80})
	require.NoError(t, err)
	hi, err := m.Evaluate(EvaluateOptions{ConfidenceLevel: 0.95})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, hi.CoveragePercent["icu_stay"], lo.CoveragePercent["icu_stay"])
}

func TestEvaluate_MAPEUndefinedForAllZeroVariable(t *testing.T) {
	trueRows := [][]float64{
		{0, 50},
		{0, 40},
	}
	sim := symmetricSimData(trueRows, 10, 2)

	m, err := NewSimulationMetrics(trueRows, sim, []string{"pre_vam", "vam"})
	require.NoError(t, err)
	res, err := m.Evaluate(EvaluateOptions{ConfidenceLevel: 0.90})
	require.NoError(t, err)

	assert.True(t, math.IsNaN(res.MAPEPerVariable["pre_vam"]))
	assert.False(t, math.IsNaN(res.MAPEPerVariable["vam"]))
	// The all-zero variable is excluded from the aggregate instead of
	// poisoning it.
	assert.False(t, math.IsNaN(res.MAPE))
}

func TestEvaluate_DistributionTestsPresent(t *testing.T) {
	trueRows := [][]float64{
		{100, 50},
		{80, 40},
		{120, 60},
	}
	sim := symmetricSimData(trueRows, 30, 10)

	m, err := NewSimulationMetrics(trueRows, sim, []string{"icu_stay", "vam"})
	require.NoError(t, err)
	res, err := m.Evaluate(EvaluateOptions{ConfidenceLevel: 0.95})
	require.NoError(t, err)

	for _, name := range []string{"icu_stay", "vam"} {
		ks := res.KSPerVariable[name]
		assert.GreaterOrEqual(t, ks.Statistic, 0.0, name)
		assert.LessOrEqual(t, ks.Statistic, 1.0, name)
		ad := res.ADPerVariable[name]
		assert.False(t, math.IsNaN(ad.SignificanceLevel), name)
	}
	assert.GreaterOrEqual(t, res.KSOverall.Statistic, 0.0)
	assert.False(t, math.IsNaN(res.ADOverall.SignificanceLevel))
}

func TestEvaluate_SubsampleIsDeterministic(t *testing.T) {
	// Over the subsample cap: identical seeds must give identical tests.
	runs := maxKSSampleSize + 2000
	sim := make([][][]float64, 1)
	sim[0] = make([][]float64, runs)
	for j := 0; j < runs; j++ {
		sim[0][j] = []float64{float64(j % 500)}
	}
	trueRows := [][]float64{{250}}

	m, err := NewSimulationMetrics(trueRows, sim, []string{"icu_stay"})
	require.NoError(t, err)

	seed := int64(7)
	a, err := m.Evaluate(EvaluateOptions{ConfidenceLevel: 0.95, Seed: &seed})
	require.NoError(t, err)
	b, err := m.Evaluate(EvaluateOptions{ConfidenceLevel: 0.95, Seed: &seed})
	require.NoError(t, err)

	assert.Equal(t, a.KSPerVariable["icu_stay"], b.KSPerVariable["icu_stay"])
	assert.Equal(t, a.KSOverall, b.KSOverall)
}
