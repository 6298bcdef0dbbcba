package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
)

// ErrInvalidConfig marks configuration errors. They are fatal to a job and
// are never retried.
var ErrInvalidConfig = errors.New("invalid configuration")

// DefaultMaxAttempts bounds the generation retry loop.
const DefaultMaxAttempts = 101

// Method selects the path refiner.
type Method string

const (
	MethodInterpolation Method = "Interpolation"
	MethodSimulation    Method = "Simulation"
)

// Interpolation kernels.
const (
	KindCubic      = "cubic"
	KindQuadratic  = "quadratic"
	KindLinear     = "linear"
	KindSLinear    = "slinear"
	KindNearest    = "nearest"
	KindZero       = "zero"
	KindUnivariate = "univariate"
)

// InterpolationKinds lists the accepted interpolation kernel names.
var InterpolationKinds = []string{KindCubic, KindQuadratic, KindLinear, KindSLinear, KindNearest, KindZero, KindUnivariate}

// Lateral offset distributions for simulation bases.
const (
	BaseLinear  = "Linear"
	BaseUniform = "Uniform"
	BaseNormal  = "Normal"
)

// BaseTypes lists the accepted base offset distributions.
var BaseTypes = []string{BaseLinear, BaseUniform, BaseNormal}

// Gaussian-process covariance kernels.
const (
	CovRBF    = "RBF"
	CovMatern = "Matern"
)

// CovTypes lists the accepted covariance kernels.
var CovTypes = []string{CovRBF, CovMatern}

// InterpolationParams configures the interpolation refiner.
type InterpolationParams struct {
	Kind   string `json:"kind"`
	Factor int    `json:"factor"`
}

// Validate checks the kernel name and up-sampling factor.
func (p InterpolationParams) Validate() error {
	if !slices.Contains(InterpolationKinds, p.Kind) {
		return fmt.Errorf("%w: unknown interpolation kind %q", ErrInvalidConfig, p.Kind)
	}
	if p.Factor < 1 {
		return fmt.Errorf("%w: factor must be >= 1, got %d", ErrInvalidConfig, p.Factor)
	}
	return nil
}

// SimulationParams configures the stochastic simulation refiner.
type SimulationParams struct {
	NTotal      int     `json:"n_total"`
	LenTotal    int     `json:"len_total"`
	NBase       int     `json:"n_base"`
	LenBase     int     `json:"len_base"`
	BaseType    string  `json:"base_type"`
	BasePath    string  `json:"base_path"`
	LengthScale float64 `json:"length_scale"`
	Scale       float64 `json:"scale"`
	CovType     string  `json:"cov_type"`
}

// Validate checks counts, lengths and kernel names.
func (p SimulationParams) Validate() error {
	if p.NTotal < 1 || p.NBase < 1 {
		return fmt.Errorf("%w: n_total and n_base must be >= 1, got %d and %d", ErrInvalidConfig, p.NTotal, p.NBase)
	}
	if p.NTotal%p.NBase != 0 {
		return fmt.Errorf("%w: n_total (%d) must be a multiple of n_base (%d)", ErrInvalidConfig, p.NTotal, p.NBase)
	}
	if p.LenTotal < 1 || p.LenBase < 1 {
		return fmt.Errorf("%w: len_total and len_base must be >= 1, got %d and %d", ErrInvalidConfig, p.LenTotal, p.LenBase)
	}
	if !slices.Contains(BaseTypes, p.BaseType) {
		return fmt.Errorf("%w: unknown base_type %q", ErrInvalidConfig, p.BaseType)
	}
	if !slices.Contains(CovTypes, p.CovType) {
		return fmt.Errorf("%w: unknown cov_type %q", ErrInvalidConfig, p.CovType)
	}
	if !(p.LengthScale > 0) || math.IsInf(p.LengthScale, 0) {
		return fmt.Errorf("%w: length_scale must be positive and finite, got %v", ErrInvalidConfig, p.LengthScale)
	}
	if math.IsNaN(p.Scale) || math.IsInf(p.Scale, 0) {
		return fmt.Errorf("%w: scale must be finite, got %v", ErrInvalidConfig, p.Scale)
	}
	return nil
}

// Generation is the configuration of one generation job. Exactly one of
// Interpolation and Simulation is set, selected by Method.
type Generation struct {
	PreNoise    float64 `json:"pre_noise"`
	PostNoise   float64 `json:"post_noise"`
	NrRuns      int     `json:"nr_runs"`
	Label       string  `json:"label,omitempty"`
	MaxAttempts int     `json:"max_attempts,omitempty"`

	Method        Method               `json:"method"`
	Interpolation *InterpolationParams `json:"interpolation,omitempty"`
	Simulation    *SimulationParams    `json:"simulation,omitempty"`
}

// NewInterpolation returns an interpolation configuration.
func NewInterpolation(kind string, factor int) Generation {
	return Generation{
		NrRuns:        1,
		Method:        MethodInterpolation,
		Interpolation: &InterpolationParams{Kind: kind, Factor: factor},
	}
}

// NewSimulation returns a simulation configuration.
func NewSimulation(p SimulationParams) Generation {
	return Generation{
		NrRuns:     1,
		Method:     MethodSimulation,
		Simulation: &p,
	}
}

// Attempts returns MaxAttempts, or DefaultMaxAttempts when unset.
func (g Generation) Attempts() int {
	if g.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return g.MaxAttempts
}

// Validate checks the shared fields and that the populated variant matches
// Method.
func (g Generation) Validate() error {
	if g.PreNoise < 0 || math.IsNaN(g.PreNoise) || math.IsInf(g.PreNoise, 0) {
		return fmt.Errorf("%w: pre_noise must be finite and >= 0, got %v", ErrInvalidConfig, g.PreNoise)
	}
	if g.PostNoise < 0 || math.IsNaN(g.PostNoise) || math.IsInf(g.PostNoise, 0) {
		return fmt.Errorf("%w: post_noise must be finite and >= 0, got %v", ErrInvalidConfig, g.PostNoise)
	}
	if g.NrRuns < 0 {
		return fmt.Errorf("%w: nr_runs must be >= 0, got %d", ErrInvalidConfig, g.NrRuns)
	}
	switch g.Method {
	case MethodInterpolation:
		if g.Interpolation == nil || g.Simulation != nil {
			return fmt.Errorf("%w: method %s requires interpolation parameters only", ErrInvalidConfig, g.Method)
		}
		return g.Interpolation.Validate()
	case MethodSimulation:
		if g.Simulation == nil || g.Interpolation != nil {
			return fmt.Errorf("%w: method %s requires simulation parameters only", ErrInvalidConfig, g.Method)
		}
		return g.Simulation.Validate()
	default:
		return fmt.Errorf("%w: unknown method %q", ErrInvalidConfig, g.Method)
	}
}

// MarshalJSON validates before encoding so archives never hold a
// configuration that cannot be read back.
func (g Generation) MarshalJSON() ([]byte, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	type plain Generation
	return json.Marshal(plain(g))
}

// UnmarshalJSON decodes and validates the tagged union.
func (g *Generation) UnmarshalJSON(data []byte) error {
	type plain Generation
	var p plain
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	out := Generation(p)
	if err := out.Validate(); err != nil {
		return err
	}
	*g = out
	return nil
}
