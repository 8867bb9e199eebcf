package stats

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrShapeMismatch reports validation-engine inputs whose shapes cannot be
// reconciled. Inputs are never silently truncated or padded.
var ErrShapeMismatch = errors.New("shape mismatch")

// maxKSSampleSize caps the flattened simulated sample fed to the KS and AD
// tests. Larger samples are deterministically subsampled.
const maxKSSampleSize = 10000

// EvaluateOptions configures one Evaluate call.
type EvaluateOptions struct {
	ConfidenceLevel float64 // coverage interval level, in (0, 1)
	Seed            *int64  // seed for the deterministic KS/AD subsample; nil uses 0
}

// ValidationResult is the outcome of one Evaluate call. Computed fresh per
// call and not mutated afterward. MAPE entries are NaN when every true value
// of a variable is zero; KS/AD entries are NaN on degenerate samples.
type ValidationResult struct {
	CoveragePercent map[string]float64

	RMSE float64
	MAE  float64
	MAPE float64

	MAPEPerVariable map[string]float64

	KSPerVariable map[string]TestResult
	KSOverall     TestResult

	ADPerVariable map[string]ADResult
	ADOverall     ADResult
}

// SimulationMetrics compares a simulation batch against ground truth.
// Inputs are value semantics: construct once, Evaluate any number of times.
type SimulationMetrics struct {
	trueData [][]float64   // patients × variables
	simData  [][][]float64 // patients × runs × variables
	varNames []string
}

// NewSimulationMetrics validates and normalizes the input shapes.
// simData must be a rectangular patients × runs × variables array. trueData
// is patients × variables; a single true row is broadcast across all
// patients. Anything else fails with ErrShapeMismatch describing expected
// vs. actual dimensions.
func NewSimulationMetrics(trueData [][]float64, simData [][][]float64, varNames []string) (*SimulationMetrics, error) {
	if len(simData) == 0 || len(simData[0]) == 0 || len(simData[0][0]) == 0 {
		return nil, fmt.Errorf("%w: simulation data must be non-empty patients × runs × variables", ErrShapeMismatch)
	}
	patients, runs, vars := len(simData), len(simData[0]), len(simData[0][0])
	for i, p := range simData {
		if len(p) != runs {
			return nil, fmt.Errorf("%w: patient %d has %d runs, want %d", ErrShapeMismatch, i, len(p), runs)
		}
		for j, r := range p {
			if len(r) != vars {
				return nil, fmt.Errorf("%w: patient %d run %d has %d variables, want %d", ErrShapeMismatch, i, j, len(r), vars)
			}
		}
	}

	if len(varNames) == 0 {
		varNames = make([]string, vars)
		for v := range varNames {
			varNames[v] = fmt.Sprintf("var_%d", v)
		}
	}
	if len(varNames) != vars {
		return nil, fmt.Errorf("%w: %d variable names for %d variables", ErrShapeMismatch, len(varNames), vars)
	}

	switch {
	case len(trueData) == patients:
		// already patient-aligned
	case len(trueData) == 1 && patients > 1:
		// broadcast one observed row across every patient
		row := trueData[0]
		trueData = make([][]float64, patients)
		for i := range trueData {
			trueData[i] = row
		}
	default:
		return nil, fmt.Errorf("%w: true data has %d rows, want %d (or 1 to broadcast)", ErrShapeMismatch, len(trueData), patients)
	}
	for i, row := range trueData {
		if len(row) != vars {
			return nil, fmt.Errorf("%w: true data row %d has %d variables, want %d", ErrShapeMismatch, i, len(row), vars)
		}
	}

	return &SimulationMetrics{trueData: trueData, simData: simData, varNames: varNames}, nil
}

// Evaluate computes coverage, error margins, and distribution-equality
// tests. The four metric families are independent computations over the
// same inputs.
func (m *SimulationMetrics) Evaluate(opts EvaluateOptions) (*ValidationResult, error) {
	if opts.ConfidenceLevel <= 0 || opts.ConfidenceLevel >= 1 {
		return nil, fmt.Errorf("confidence level must be in (0, 1), got %f", opts.ConfidenceLevel)
	}

	patients := len(m.simData)
	runs := len(m.simData[0])
	vars := len(m.varNames)
	logrus.Debugf("evaluating %d patients × %d runs × %d variables at %.0f%% confidence",
		patients, runs, vars, opts.ConfidenceLevel*100)

	// Per-patient run means and sample standard deviations.
	means := make([][]float64, patients)
	stds := make([][]float64, patients)
	for i := range m.simData {
		means[i] = make([]float64, vars)
		stds[i] = make([]float64, vars)
		col := make([]float64, runs)
		for v := 0; v < vars; v++ {
			for j := 0; j < runs; j++ {
				col[j] = m.simData[i][j][v]
			}
			means[i][v] = stat.Mean(col, nil)
			if runs > 1 {
				stds[i][v] = stat.StdDev(col, nil)
			}
		}
	}

	result := &ValidationResult{
		CoveragePercent: make(map[string]float64, vars),
		MAPEPerVariable: make(map[string]float64, vars),
		KSPerVariable:   make(map[string]TestResult, vars),
		ADPerVariable:   make(map[string]ADResult, vars),
	}

	m.coverage(result, means, stds, opts.ConfidenceLevel)
	m.errorMargins(result, means)
	m.distributionTests(result, opts.Seed)

	return result, nil
}

// coverage computes, per variable, the percentage of patients whose true
// value falls inside the normal-approximation CI of their own simulated
// runs: mean ± z(conf) · std/√runs.
func (m *SimulationMetrics) coverage(result *ValidationResult, means, stds [][]float64, confidence float64) {
	z := distuv.UnitNormal.Quantile(0.5 + confidence/2)
	runs := float64(len(m.simData[0]))

	for v, name := range m.varNames {
		covered := 0
		for i := range m.simData {
			half := z * stds[i][v] / math.Sqrt(runs)
			lo, hi := means[i][v]-half, means[i][v]+half
			if m.trueData[i][v] >= lo && m.trueData[i][v] <= hi {
				covered++
			}
		}
		result.CoveragePercent[name] = 100 * float64(covered) / float64(len(m.simData))
	}
}

// errorMargins computes RMSE and MAE between each patient's simulated mean
// and true value, aggregated over all patients and variables, and MAPE with
// per-entry zero exclusion. A variable whose true values are all zero gets
// MAPE NaN; it contributes nothing to the aggregate.
func (m *SimulationMetrics) errorMargins(result *ValidationResult, means [][]float64) {
	var sqSum, absSum float64
	var n int
	var pctSum float64
	var pctN int

	for v, name := range m.varNames {
		var varPctSum float64
		var varPctN int
		for i := range m.trueData {
			diff := means[i][v] - m.trueData[i][v]
			sqSum += diff * diff
			absSum += math.Abs(diff)
			n++
			if m.trueData[i][v] != 0 {
				varPctSum += math.Abs(diff) / math.Abs(m.trueData[i][v])
				varPctN++
			}
		}
		if varPctN == 0 {
			result.MAPEPerVariable[name] = math.NaN()
		} else {
			result.MAPEPerVariable[name] = 100 * varPctSum / float64(varPctN)
			pctSum += varPctSum
			pctN += varPctN
		}
	}

	result.RMSE = math.Sqrt(sqSum / float64(n))
	result.MAE = absSum / float64(n)
	if pctN == 0 {
		result.MAPE = math.NaN()
	} else {
		result.MAPE = 100 * pctSum / float64(pctN)
	}
}

// distributionTests compares the flattened simulated distribution against
// the true distribution, per variable and pooled over all variables.
func (m *SimulationMetrics) distributionTests(result *ValidationResult, seed *int64) {
	var s int64
	if seed != nil {
		s = *seed
	}
	rng := rand.New(rand.NewSource(s))

	var pooledSim, pooledTrue []float64
	for v, name := range m.varNames {
		simFlat := make([]float64, 0, len(m.simData)*len(m.simData[0]))
		for i := range m.simData {
			for j := range m.simData[i] {
				simFlat = append(simFlat, m.simData[i][j][v])
			}
		}
		trueCol := make([]float64, len(m.trueData))
		for i := range m.trueData {
			trueCol[i] = m.trueData[i][v]
		}

		simFlat = subsample(simFlat, maxKSSampleSize, rng)
		result.KSPerVariable[name] = TwoSampleKS(simFlat, trueCol)
		result.ADPerVariable[name] = KSampleAD([][]float64{simFlat, trueCol})

		pooledSim = append(pooledSim, simFlat...)
		pooledTrue = append(pooledTrue, trueCol...)
	}

	pooledSim = subsample(pooledSim, maxKSSampleSize, rng)
	result.KSOverall = TwoSampleKS(pooledSim, pooledTrue)
	result.ADOverall = KSampleAD([][]float64{pooledSim, pooledTrue})
}

// subsample draws max values without replacement when data exceeds max.
// The draw is deterministic for a given rng state.
func subsample(data []float64, max int, rng *rand.Rand) []float64 {
	if len(data) <= max {
		return data
	}
	idx := rng.Perm(len(data))[:max]
	out := make([]float64, max)
	for i, j := range idx {
		out[i] = data[j]
	}
	return out
}
