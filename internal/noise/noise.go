// Package noise perturbs traces with Gaussian noise. Draws are truncated
// toward zero before they are added, so integer-valued traces stay integer
// valued.
package noise

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/sillywalks/internal/trace"
)

var (
	// ErrInvalidSigma is returned for a negative or non-finite standard
	// deviation.
	ErrInvalidSigma = errors.New("invalid noise sigma")

	// ErrInvalidCovariance is returned when a covariance matrix is not
	// symmetric positive semi-definite.
	ErrInvalidCovariance = errors.New("invalid covariance")
)

// eigTol is the relative tolerance for negative eigenvalues and asymmetry.
const eigTol = 1e-12

// Injector draws noise from a caller-supplied source.
type Injector struct {
	src rand.Source
}

// NewInjector returns an Injector drawing from src. A nil src uses the
// global generator.
func NewInjector(src rand.Source) *Injector {
	return &Injector{src: src}
}

// AddIndependent adds independent N(0, sigma²) noise to each coordinate.
// With sigma == 0 the result equals the input.
func (in *Injector) AddIndependent(tr trace.Trace, sigma float64) (trace.Trace, error) {
	if tr.IsEmpty() {
		return trace.Trace{}, fmt.Errorf("%w: empty trace", trace.ErrInvalidInput)
	}
	if sigma < 0 || math.IsNaN(sigma) || math.IsInf(sigma, 0) {
		return trace.Trace{}, fmt.Errorf("%w: %v", ErrInvalidSigma, sigma)
	}
	if sigma == 0 {
		return tr.Clone(), nil
	}
	dist := distuv.Normal{Mu: 0, Sigma: sigma, Src: in.src}
	out := tr.Map(func(_ int, p trace.Point) trace.Point {
		return trace.Point{
			X: p.X + math.Trunc(dist.Rand()),
			Y: p.Y + math.Trunc(dist.Rand()),
		}
	})
	return out, nil
}

// AddCorrelated adds one bivariate N(0, cov) draw to each point.
func (in *Injector) AddCorrelated(tr trace.Trace, cov [2][2]float64) (trace.Trace, error) {
	if tr.IsEmpty() {
		return trace.Trace{}, fmt.Errorf("%w: empty trace", trace.ErrInvalidInput)
	}
	sym, err := CheckCovariance(cov)
	if err != nil {
		return trace.Trace{}, err
	}
	var eig mat.EigenSym
	if !eig.Factorize(sym, true) {
		return trace.Trace{}, fmt.Errorf("%w: eigendecomposition failed", ErrInvalidCovariance)
	}
	psd := distmv.NewPositivePartEigenSym(&eig)
	mean := []float64{0, 0}
	draw := make([]float64, 2)

	out := tr.Map(func(_ int, p trace.Point) trace.Point {
		distmv.NormalRandCov(draw, mean, psd, in.src)
		return trace.Point{
			X: p.X + math.Trunc(draw[0]),
			Y: p.Y + math.Trunc(draw[1]),
		}
	})
	return out, nil
}

// CheckCovariance reports whether cov is a finite, symmetric, positive
// semi-definite 2×2 matrix and returns it as a mat.SymDense.
func CheckCovariance(cov [2][2]float64) (*mat.SymDense, error) {
	scale := 1.0
	for _, row := range cov {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: non-finite entry %v", ErrInvalidCovariance, v)
			}
			scale = math.Max(scale, math.Abs(v))
		}
	}
	if math.Abs(cov[0][1]-cov[1][0]) > eigTol*scale {
		return nil, fmt.Errorf("%w: not symmetric (%v != %v)", ErrInvalidCovariance, cov[0][1], cov[1][0])
	}
	sym := mat.NewSymDense(2, []float64{cov[0][0], cov[0][1], cov[0][1], cov[1][1]})
	var eig mat.EigenSym
	if !eig.Factorize(sym, false) {
		return nil, fmt.Errorf("%w: eigendecomposition failed", ErrInvalidCovariance)
	}
	for _, v := range eig.Values(nil) {
		if v < -eigTol*scale {
			return nil, fmt.Errorf("%w: negative eigenvalue %v", ErrInvalidCovariance, v)
		}
	}
	return sym, nil
}
