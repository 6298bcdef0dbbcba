package walk

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/sillywalks/internal/config"
)

// Kernel is a stationary covariance function of the distance between two
// indices.
type Kernel func(d float64) float64

// NewKernel returns the covariance kernel named by covType.
func NewKernel(covType string, lengthScale float64) (Kernel, error) {
	if !(lengthScale > 0) || math.IsInf(lengthScale, 0) {
		return nil, fmt.Errorf("%w: length_scale must be positive and finite, got %v", config.ErrInvalidConfig, lengthScale)
	}
	switch covType {
	case config.CovRBF:
		return func(d float64) float64 {
			r := d / lengthScale
			return math.Exp(-0.5 * r * r)
		}, nil
	case config.CovMatern:
		// ν = 3/2
		return func(d float64) float64 {
			r := math.Sqrt(3) * math.Abs(d) / lengthScale
			return (1 + r) * math.Exp(-r)
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown cov_type %q", config.ErrInvalidConfig, covType)
	}
}

// KernelMatrix evaluates k on the index grid 0..n-1.
func KernelMatrix(k Kernel, n int) *mat.SymDense {
	m := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			m.SetSym(i, j, k(float64(j-i)))
		}
	}
	return m
}
