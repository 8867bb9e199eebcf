package sim

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ReplicateOptions configures a replication run.
type ReplicateOptions struct {
	Reps  int    // number of independent replications (must be positive)
	Seed  *int64 // master seed; nil means non-reproducible (time-derived)
	AsInt bool   // round values to whole hours at the output boundary
}

// ReplicationBatch is the tabular result of one patient's replications:
// one row per replication, columns in VariableNames order. Consumed
// read-only downstream.
type ReplicationBatch struct {
	RunID   string
	Cluster ClusterID
	Columns []string
	Rows    [][]float64
}

// NumRows returns the number of replications in the batch.
func (b *ReplicationBatch) NumRows() int {
	return len(b.Rows)
}

// Column returns the values of the named variable across all replications.
func (b *ReplicationBatch) Column(name string) ([]float64, error) {
	for j, col := range b.Columns {
		if col == name {
			out := make([]float64, len(b.Rows))
			for i, row := range b.Rows {
				out[i] = row[j]
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("unknown variable %q, batch has %v", name, b.Columns)
}

// ColumnSummary holds descriptive statistics for one variable of a batch.
type ColumnSummary struct {
	Variable string
	Mean     float64
	StdDev   float64
	Median   float64
}

// Summarize computes per-variable descriptive statistics over the batch.
func (b *ReplicationBatch) Summarize() ([]ColumnSummary, error) {
	out := make([]ColumnSummary, 0, len(b.Columns))
	for _, name := range b.Columns {
		col, err := b.Column(name)
		if err != nil {
			return nil, err
		}
		data := stats.Float64Data(col)
		mean, err := data.Mean()
		if err != nil {
			return nil, fmt.Errorf("summarizing %s: %w", name, err)
		}
		sd, err := data.StandardDeviationSample()
		if err != nil {
			return nil, fmt.Errorf("summarizing %s: %w", name, err)
		}
		median, err := data.Median()
		if err != nil {
			return nil, fmt.Errorf("summarizing %s: %w", name, err)
		}
		out = append(out, ColumnSummary{Variable: name, Mean: mean, StdDev: sd, Median: median})
	}
	return out, nil
}

// Replicator drives independent timeline runs and assembles tabular results.
type Replicator struct {
	cfg      SimConfig
	assigner *Assigner
}

// NewReplicator creates a Replicator over a validated SimConfig and a
// cluster assigner.
func NewReplicator(cfg SimConfig, assigner *Assigner) (*Replicator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if assigner == nil {
		return nil, fmt.Errorf("replicator requires a cluster assigner")
	}
	return &Replicator{cfg: cfg, assigner: assigner}, nil
}

// resolveSeed turns an optional seed into a concrete master seed.
func resolveSeed(seed *int64) int64 {
	if seed != nil {
		return *seed
	}
	return time.Now().UnixNano()
}

// Replicate runs opts.Reps independent replications of one patient. Each
// replication draws from its own deterministically-derived random stream, so
// identical (profile, reps, seed) inputs reproduce the batch bit-for-bit.
//
// Any replication failing its VAM constraint aborts the whole batch: N
// replications require N atomic successes, never partial results.
func (r *Replicator) Replicate(profile PatientProfile, opts ReplicateOptions) (*ReplicationBatch, error) {
	if opts.Reps <= 0 {
		return nil, fmt.Errorf("reps must be positive, got %d", opts.Reps)
	}

	cluster, err := r.assigner.Assign(profile.FeatureVector())
	if err != nil {
		return nil, err
	}
	timeline, err := NewTimeline(r.cfg, cluster)
	if err != nil {
		return nil, err
	}

	master := resolveSeed(opts.Seed)
	prng := NewPartitionedRNG(NewSimulationKey(master))
	logrus.Debugf("replicating patient in cluster %d: reps=%d seed=%d", cluster, opts.Reps, master)

	rows := make([][]float64, opts.Reps)
	for i := 0; i < opts.Reps; i++ {
		rng := prng.ForSubsystem(SubsystemReplication(i))
		sd, err := timeline.Run(profile, rng)
		if err != nil {
			return nil, fmt.Errorf("replication %d: %w", i, err)
		}
		rows[i] = roundIf(sd.Values(), opts.AsInt)
	}

	return &ReplicationBatch{
		RunID:   uuid.NewString(),
		Cluster: cluster,
		Columns: VariableNames,
		Rows:    rows,
	}, nil
}

// PredictFn is an opaque mortality-probability function supplied by the
// excluded classifier layer.
type PredictFn func(PatientProfile) float64

// BatchResult is the three-axis result of batch mode:
// patient × replication × variable. Predictions is nil unless a PredictFn
// was supplied, in which case it holds one probability per patient.
type BatchResult struct {
	RunID       string
	Columns     []string
	Patients    [][][]float64
	Clusters    []ClusterID
	Predictions []float64
}

// SimData returns the patients × runs × variables array consumed by the
// validation engine.
func (b *BatchResult) SimData() [][][]float64 {
	return b.Patients
}

// ReplicateAll runs batch mode over many patients. Patients are independent
// and run in parallel; each replication's random stream is derived from the
// master seed and the (patient, replication) pair, so results are identical
// regardless of execution order. The first failed replication aborts the
// whole batch.
func (r *Replicator) ReplicateAll(profiles []PatientProfile, opts ReplicateOptions, predict PredictFn) (*BatchResult, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("batch mode requires at least one patient")
	}
	if opts.Reps <= 0 {
		return nil, fmt.Errorf("reps must be positive, got %d", opts.Reps)
	}

	master := resolveSeed(opts.Seed)
	result := &BatchResult{
		RunID:    uuid.NewString(),
		Columns:  VariableNames,
		Patients: make([][][]float64, len(profiles)),
		Clusters: make([]ClusterID, len(profiles)),
	}
	if predict != nil {
		result.Predictions = make([]float64, len(profiles))
	}

	var g errgroup.Group
	for p, profile := range profiles {
		p, profile := p, profile
		g.Go(func() error {
			cluster, err := r.assigner.Assign(profile.FeatureVector())
			if err != nil {
				return fmt.Errorf("patient %d: %w", p, err)
			}
			timeline, err := NewTimeline(r.cfg, cluster)
			if err != nil {
				return fmt.Errorf("patient %d: %w", p, err)
			}

			// Each goroutine derives its own streams from the shared master
			// seed; derivation is order-independent, so no synchronization
			// beyond collecting results is needed.
			prng := NewPartitionedRNG(NewSimulationKey(master))
			rows := make([][]float64, opts.Reps)
			for i := 0; i < opts.Reps; i++ {
				rng := prng.ForSubsystem(SubsystemPatientReplication(p, i))
				sd, err := timeline.Run(profile, rng)
				if err != nil {
					return fmt.Errorf("patient %d replication %d: %w", p, i, err)
				}
				rows[i] = roundIf(sd.Values(), opts.AsInt)
			}

			result.Patients[p] = rows
			result.Clusters[p] = cluster
			if predict != nil {
				result.Predictions[p] = predict(profile)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// roundIf rounds every value to a whole hour when asInt is set. Rounding is
// a presentation concern of the runner, never of the samplers.
func roundIf(values []float64, asInt bool) []float64 {
	if !asInt {
		return values
	}
	for i, v := range values {
		values[i] = math.Round(v)
	}
	return values
}
