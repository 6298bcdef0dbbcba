// Package walk turns a coarse seed trace into a dense walk. Two refiners
// are provided: Interpolator resamples the trace with a 1D interpolation
// kernel, and Simulator builds an ensemble of perturbed base paths with
// Gaussian-process lateral wander and picks one member.
package walk

import (
	"fmt"
	"math/rand/v2"

	"github.com/banshee-data/sillywalks/internal/config"
	"github.com/banshee-data/sillywalks/internal/fsutil"
	"github.com/banshee-data/sillywalks/internal/trace"
)

// Refiner turns a (noisy) seed trace into a refined trace.
type Refiner interface {
	Refine(tr trace.Trace) (trace.Trace, error)
}

// RefinerFunc adapts a function to the Refiner interface.
type RefinerFunc func(tr trace.Trace) (trace.Trace, error)

// Refine calls f(tr).
func (f RefinerFunc) Refine(tr trace.Trace) (trace.Trace, error) { return f(tr) }

// Identity returns the trace unchanged.
var Identity = RefinerFunc(func(tr trace.Trace) (trace.Trace, error) { return tr.Clone(), nil })

// NewRefiner builds the refiner selected by g.Method. Simulation profiles
// are read through fsys; src drives every random draw of the refiner.
func NewRefiner(g config.Generation, fsys fsutil.FileSystem, src rand.Source) (Refiner, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	switch g.Method {
	case config.MethodInterpolation:
		return &Interpolator{Kind: g.Interpolation.Kind, Factor: g.Interpolation.Factor}, nil
	case config.MethodSimulation:
		profile, err := LoadProfile(fsys, g.Simulation.BasePath)
		if err != nil {
			return nil, err
		}
		return NewSimulator(*g.Simulation, profile, src)
	default:
		return nil, fmt.Errorf("%w: unknown method %q", config.ErrInvalidConfig, g.Method)
	}
}
