// Package generate runs the bounded retry loop that turns a seed trace into
// a valid walk: pre-noise, refine, validate, and on success post-noise and
// optional finite-difference derivatives.
package generate

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/banshee-data/sillywalks/internal/config"
	"github.com/banshee-data/sillywalks/internal/monitoring"
	"github.com/banshee-data/sillywalks/internal/noise"
	"github.com/banshee-data/sillywalks/internal/occupancy"
	"github.com/banshee-data/sillywalks/internal/trace"
	"github.com/banshee-data/sillywalks/internal/validation"
	"github.com/banshee-data/sillywalks/internal/walk"
)

var (
	// ErrExhausted is matched by *ExhaustedError.
	ErrExhausted = errors.New("generation attempts exhausted")

	// ErrInvalidSeed is returned when seed checking is enabled and the seed
	// trace itself does not lie in free space.
	ErrInvalidSeed = errors.New("invalid seed trace")
)

// State names a step of one generation attempt.
type State string

const (
	StateSeeding        State = "seeding"
	StateNoiseInjection State = "noise injection"
	StateRefinement     State = "refinement"
	StateValidation     State = "validation"
	StateAccept         State = "accept"
	StateExhausted      State = "exhausted"
)

// ExhaustedError reports that no attempt produced a valid walk.
type ExhaustedError struct {
	Attempts   int
	LastReason error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("no valid walk after %d attempts: last rejection: %v", e.Attempts, e.LastReason)
}

// Is reports whether target is ErrExhausted.
func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }

// Unwrap returns the reason the final attempt was rejected.
func (e *ExhaustedError) Unwrap() error { return e.LastReason }

// Result is an accepted walk. Velocity and Acceleration are nil unless
// derivatives were requested; otherwise they hold n-1 and n-2 entries.
type Result struct {
	Positions    trace.Trace
	Velocity     []trace.Vec
	Acceleration []trace.Vec
	Attempts     int
}

// Generator holds everything one job needs to produce walks.
type Generator struct {
	Grid    *occupancy.Grid
	Refiner walk.Refiner
	Noise   *noise.Injector

	PreNoise    float64
	PostNoise   float64
	MaxAttempts int
	// PreCov, when set, replaces PreNoise with one bivariate draw per point.
	PreCov *[2][2]float64

	// Derivatives adds velocity and acceleration to each result.
	Derivatives bool
	// CheckSeed rejects a seed that is not itself valid on Grid before any
	// attempt is made.
	CheckSeed bool
}

// New returns a Generator configured from g.
func New(g config.Generation, grid *occupancy.Grid, refiner walk.Refiner, src rand.Source) *Generator {
	return &Generator{
		Grid:        grid,
		Refiner:     refiner,
		Noise:       noise.NewInjector(src),
		PreNoise:    g.PreNoise,
		PostNoise:   g.PostNoise,
		MaxAttempts: g.Attempts(),
	}
}

// Generate runs attempts until one validates or the attempt budget is
// spent. Configuration errors abort immediately; every other failure only
// rejects the current attempt. ctx is checked before each attempt.
func (g *Generator) Generate(ctx context.Context, seed trace.Trace) (*Result, error) {
	if g.Grid == nil || g.Refiner == nil {
		return nil, fmt.Errorf("%w: generator needs a grid and a refiner", config.ErrInvalidConfig)
	}
	if seed.IsEmpty() {
		return nil, fmt.Errorf("%w: empty seed trace", trace.ErrInvalidInput)
	}
	start := seed.Clone()
	if g.CheckSeed {
		if err := validation.Check(start, g.Grid); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidSeed, StateSeeding, err)
		}
	}
	inj := g.Noise
	if inj == nil {
		inj = noise.NewInjector(nil)
	}
	maxAttempts := g.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = config.DefaultMaxAttempts
	}

	var lastReason error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		refined, state, err := g.attempt(inj, start)
		if err != nil {
			if isFatal(err) {
				return nil, err
			}
			lastReason = fmt.Errorf("%s: %w", state, err)
			monitoring.Logf("attempt %d/%d rejected at %s: %v", attempt, maxAttempts, state, err)
			continue
		}

		final, err := inj.AddIndependent(refined, g.PostNoise)
		if err != nil {
			return nil, err
		}
		res := &Result{Positions: final, Attempts: attempt}
		if g.Derivatives {
			res.Velocity = final.Diff()
			res.Acceleration = trace.Diff(res.Velocity)
		}
		return res, nil
	}
	monitoring.Logf("%s after %d attempts: %v", StateExhausted, maxAttempts, lastReason)
	return nil, &ExhaustedError{Attempts: maxAttempts, LastReason: lastReason}
}

// attempt runs one noise → refine → validate pass and returns the refined
// trace, or the state that rejected it.
func (g *Generator) attempt(inj *noise.Injector, start trace.Trace) (trace.Trace, State, error) {
	var (
		noisy trace.Trace
		err   error
	)
	if g.PreCov != nil {
		noisy, err = inj.AddCorrelated(start, *g.PreCov)
	} else {
		noisy, err = inj.AddIndependent(start, g.PreNoise)
	}
	if err != nil {
		return trace.Trace{}, StateNoiseInjection, err
	}
	refined, err := g.Refiner.Refine(noisy)
	if err != nil {
		return trace.Trace{}, StateRefinement, err
	}
	if err := validation.Check(refined, g.Grid); err != nil {
		return trace.Trace{}, StateValidation, err
	}
	return refined, StateAccept, nil
}

// isFatal reports errors that would repeat on every attempt.
func isFatal(err error) bool {
	return errors.Is(err, config.ErrInvalidConfig) ||
		errors.Is(err, trace.ErrInvalidInput) ||
		errors.Is(err, noise.ErrInvalidSigma) ||
		errors.Is(err, noise.ErrInvalidCovariance)
}

// NewSource returns a PCG source. A zero seed picks a time-based one.
func NewSource(seed uint64) rand.Source {
	if seed == 0 {
		return rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())
	}
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}

// JobSource derives an independent source for job index job of a run
// seeded with seed, so results do not depend on scheduling order.
func JobSource(seed uint64, job int) rand.Source {
	return rand.NewPCG(seed, uint64(job)+1)
}
