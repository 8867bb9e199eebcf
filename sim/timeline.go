package sim

import (
	"errors"
	"fmt"
	"math/rand"
)

// maxVAMRedraws caps the reject-and-resample loop for the VAM constraint.
const maxVAMRedraws = 1000

// ErrConstraintUnsatisfiable reports that the VAM-vs-ICU-stay constraint
// could not be satisfied within the redraw budget. Fatal to the replication
// that hit it; a batch containing it aborts rather than substituting values.
var ErrConstraintUnsatisfiable = errors.New("VAM constraint unsatisfiable within redraw budget")

// Timeline runs one patient's journey through the four sequential stages:
// pre-VAM wait, ventilation, post-VAM recovery, post-ICU stay. The clock is
// logical: each stage "waits" its drawn duration instantaneously, and stages
// are strictly ordered within a patient.
type Timeline struct {
	cluster  ClusterID
	samplers ClusterSamplers
}

// NewTimeline compiles the stage samplers for the given cluster.
// An out-of-range cluster is a configuration error.
func NewTimeline(cfg SimConfig, cluster ClusterID) (*Timeline, error) {
	if int(cluster) < 0 || int(cluster) >= len(cfg.Clusters) {
		return nil, fmt.Errorf("cluster %d out of range: config defines %d clusters", cluster, len(cfg.Clusters))
	}
	samplers, err := cfg.Clusters[cluster].Compile()
	if err != nil {
		return nil, fmt.Errorf("cluster %d: %w", cluster, err)
	}
	return &Timeline{cluster: cluster, samplers: samplers}, nil
}

// Cluster returns the cluster this timeline simulates.
func (t *Timeline) Cluster() ClusterID {
	return t.cluster
}

// Run produces the stage durations for one replication of the patient.
//
// The elapsed time through ventilation (pre-VAM + VAM) must not exceed the
// patient's ICU-stay bound. Violations redraw the VAM time, up to
// maxVAMRedraws attempts; exhausting the budget returns
// ErrConstraintUnsatisfiable rather than truncating or looping forever.
func (t *Timeline) Run(profile PatientProfile, rng *rand.Rand) (StageDurations, error) {
	preVAM := t.samplers.PreVAM.Sample(rng)

	var vam float64
	satisfied := false
	for attempt := 0; attempt < maxVAMRedraws; attempt++ {
		vam = t.samplers.VAM.Sample(rng)
		if preVAM+vam <= profile.ICUStay {
			satisfied = true
			break
		}
	}
	if !satisfied {
		return StageDurations{}, fmt.Errorf(
			"pre-VAM %.2fh with ICU-stay bound %.2fh after %d VAM draws: %w",
			preVAM, profile.ICUStay, maxVAMRedraws, ErrConstraintUnsatisfiable)
	}

	postVAM := t.samplers.PostVAM.Sample(rng)
	postICU := t.samplers.PostICU.Sample(rng)

	return StageDurations{
		PreVAM:  preVAM,
		VAM:     vam,
		PostVAM: postVAM,
		ICUStay: preVAM + vam + postVAM,
		PostICU: postICU,
	}, nil
}
