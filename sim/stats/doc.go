// Package stats validates simulated patient outcomes against ground truth
// and compares experiment scenarios against each other.
//
// SimulationMetrics computes coverage, error margins (RMSE/MAE/MAPE) and
// distribution-equality tests (two-sample Kolmogorov–Smirnov, k-sample
// Anderson–Darling) over a (patients × runs × variables) simulation array
// and its (patients × variables) ground truth. Wilcoxon and Friedman are
// thin, stateless wrappers over nonparametric rank tests for comparing
// replication outputs from two or more experiment configurations.
//
// Degenerate inputs (all-zero true values for MAPE, empty samples for
// KS/AD) are reported as explicit NaN results, never as zero or a perfect
// score; callers must check before treating them as measurements.
package stats
