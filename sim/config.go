package sim

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DistSpec parameterizes a stage duration distribution.
type DistSpec struct {
	Type   string             `yaml:"type"`
	Params map[string]float64 `yaml:"params,omitempty"`
	Ranges [][]float64        `yaml:"ranges,omitempty"` // uniform_mixture sub-ranges [low, high]
}

// ClusterSpec defines the four stage distributions for one patient cluster.
// ICU stay is derived, not drawn, so it has no spec of its own.
type ClusterSpec struct {
	PreVAM  DistSpec `yaml:"pre_vam"`
	VAM     DistSpec `yaml:"vam"`
	PostVAM DistSpec `yaml:"post_vam"`
	PostICU DistSpec `yaml:"post_icu"`
}

// SimConfig is the top-level simulation configuration.
// Loaded from YAML via LoadSimConfig(path), or built with DefaultSimConfig().
type SimConfig struct {
	Clusters      []ClusterSpec `yaml:"clusters"`
	CentroidsPath string        `yaml:"centroids_path,omitempty"`
}

// DefaultSimConfig returns the built-in two-cluster configuration fitted to
// the historical ICU dataset. Cluster 0's post-ICU time is multi-modal and
// uses a mixture of uniforms; cluster 1's follows a Weibull fit.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		Clusters: []ClusterSpec{
			{
				PreVAM:  DistSpec{Type: "exponential", Params: map[string]float64{"mean": 22.918}},
				VAM:     DistSpec{Type: "exponential", Params: map[string]float64{"mean": 113.508}},
				PostVAM: DistSpec{Type: "exponential", Params: map[string]float64{"mean": 43.071}},
				PostICU: DistSpec{Type: "uniform_mixture", Ranges: [][]float64{
					{0, 48}, {96, 240}, {360, 720},
				}},
			},
			{
				PreVAM:  DistSpec{Type: "exponential", Params: map[string]float64{"mean": 31.642}},
				VAM:     DistSpec{Type: "weibull", Params: map[string]float64{"shape": 1.203, "scale": 186.451}},
				PostVAM: DistSpec{Type: "exponential", Params: map[string]float64{"mean": 58.629}},
				PostICU: DistSpec{Type: "weibull", Params: map[string]float64{"shape": 0.987, "scale": 244.822}},
			},
		},
	}
}

// LoadSimConfig reads and validates a SimConfig from a YAML file.
func LoadSimConfig(path string) (SimConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SimConfig{}, fmt.Errorf("reading sim config: %w", err)
	}
	var cfg SimConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return SimConfig{}, fmt.Errorf("parsing sim config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return SimConfig{}, err
	}
	return cfg, nil
}

// Validate checks that every cluster's stage distributions compile.
func (c SimConfig) Validate() error {
	if len(c.Clusters) == 0 {
		return fmt.Errorf("sim config must define at least one cluster")
	}
	for i, cl := range c.Clusters {
		if _, err := cl.Compile(); err != nil {
			return fmt.Errorf("cluster %d: %w", i, err)
		}
	}
	return nil
}

// ClusterSamplers holds the compiled per-stage samplers for one cluster.
type ClusterSamplers struct {
	PreVAM  Sampler
	VAM     Sampler
	PostVAM Sampler
	PostICU Sampler
}

// Compile builds the stage samplers from the cluster's distribution specs.
func (c ClusterSpec) Compile() (ClusterSamplers, error) {
	stages := []struct {
		name string
		spec DistSpec
	}{
		{"pre_vam", c.PreVAM},
		{"vam", c.VAM},
		{"post_vam", c.PostVAM},
		{"post_icu", c.PostICU},
	}
	var out ClusterSamplers
	dst := []*Sampler{&out.PreVAM, &out.VAM, &out.PostVAM, &out.PostICU}
	for i, st := range stages {
		s, err := NewSampler(st.spec)
		if err != nil {
			return ClusterSamplers{}, fmt.Errorf("stage %s: %w", st.name, err)
		}
		*dst[i] = s
	}
	return out, nil
}
