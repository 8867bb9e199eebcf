package sim

import (
	"fmt"
	"math"
	"math/rand"
)

// Sampler draws a single non-negative duration in hours. Samplers never
// return vectors; batch drawing is an explicit loop owned by the runner.
type Sampler interface {
	Sample(rng *rand.Rand) float64
}

// ExponentialSampler draws exponentially-distributed durations with the
// given mean.
type ExponentialSampler struct {
	mean float64
}

func (s *ExponentialSampler) Sample(rng *rand.Rand) float64 {
	return rng.ExpFloat64() * s.mean
}

// WeibullSampler draws Weibull-distributed durations.
type WeibullSampler struct {
	shape float64 // Weibull k parameter
	scale float64 // Weibull λ parameter (hours)
}

func (s *WeibullSampler) Sample(rng *rand.Rand) float64 {
	// Inverse CDF: scale * (-ln(U))^(1/shape)
	u := rng.Float64()
	if u == 0 {
		u = math.SmallestNonzeroFloat64 // prevent -ln(0) = +Inf
	}
	return s.scale * math.Pow(-math.Log(u), 1.0/s.shape)
}

// UniformMixtureSampler picks one of N uniform sub-ranges uniformly at
// random, then draws uniformly within it. Models multi-modal empirical
// distributions such as cluster 0's post-ICU time.
type UniformMixtureSampler struct {
	ranges [][2]float64
}

func (s *UniformMixtureSampler) Sample(rng *rand.Rand) float64 {
	r := s.ranges[rng.Intn(len(s.ranges))]
	return r[0] + rng.Float64()*(r[1]-r[0])
}

// requireParam checks that all required keys exist in a params map.
func requireParam(params map[string]float64, keys ...string) error {
	for _, k := range keys {
		if _, ok := params[k]; !ok {
			return fmt.Errorf("distribution requires parameter %q", k)
		}
	}
	return nil
}

// NewSampler creates a Sampler from a DistSpec. Invalid parameters (negative
// scale or shape, empty or inverted mixture ranges) are programming-contract
// violations and fail fast with a descriptive error.
func NewSampler(spec DistSpec) (Sampler, error) {
	switch spec.Type {
	case "exponential":
		if err := requireParam(spec.Params, "mean"); err != nil {
			return nil, err
		}
		mean := spec.Params["mean"]
		if mean <= 0 {
			return nil, fmt.Errorf("exponential mean must be positive, got %f", mean)
		}
		return &ExponentialSampler{mean: mean}, nil

	case "weibull":
		if err := requireParam(spec.Params, "shape", "scale"); err != nil {
			return nil, err
		}
		shape, scale := spec.Params["shape"], spec.Params["scale"]
		if shape <= 0 || scale <= 0 {
			return nil, fmt.Errorf("weibull shape and scale must be positive, got shape=%f scale=%f", shape, scale)
		}
		return &WeibullSampler{shape: shape, scale: scale}, nil

	case "uniform_mixture":
		if len(spec.Ranges) == 0 {
			return nil, fmt.Errorf("uniform_mixture requires at least one range")
		}
		ranges := make([][2]float64, 0, len(spec.Ranges))
		for i, r := range spec.Ranges {
			if len(r) != 2 {
				return nil, fmt.Errorf("uniform_mixture range %d must have exactly [low, high], got %v", i, r)
			}
			if r[0] < 0 || r[1] < r[0] {
				return nil, fmt.Errorf("uniform_mixture range %d invalid: [%f, %f]", i, r[0], r[1])
			}
			ranges = append(ranges, [2]float64{r[0], r[1]})
		}
		return &UniformMixtureSampler{ranges: ranges}, nil

	default:
		return nil, fmt.Errorf("unknown distribution type %q", spec.Type)
	}
}
