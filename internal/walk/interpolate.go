package walk

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"

	"github.com/banshee-data/sillywalks/internal/config"
	"github.com/banshee-data/sillywalks/internal/trace"
)

// Interpolator resamples a trace to Factor times its length. x(t) and
// y(t) are fitted independently over the point index t and sampled at
// evenly spaced t spanning [0, n-1], so both endpoints are kept.
type Interpolator struct {
	Kind   string
	Factor int
}

// minPoints is the smallest trace each kernel can fit. A single point is
// always accepted and held constant.
var minPoints = map[string]int{
	config.KindLinear:     2,
	config.KindSLinear:    2,
	config.KindNearest:    2,
	config.KindZero:       2,
	config.KindQuadratic:  3,
	config.KindUnivariate: 3,
	config.KindCubic:      4,
}

func newPredictor(kind string) interp.FittablePredictor {
	switch kind {
	case config.KindLinear, config.KindSLinear:
		return &interp.PiecewiseLinear{}
	case config.KindCubic:
		return &interp.NotAKnotCubic{}
	case config.KindQuadratic:
		return &interp.AkimaSpline{}
	case config.KindUnivariate:
		return &interp.NaturalCubic{}
	case config.KindNearest:
		return &stepPredictor{nearest: true}
	case config.KindZero:
		return &stepPredictor{}
	}
	return nil
}

// Refine implements Refiner. The result has exactly Factor*tr.Len() points.
func (ip *Interpolator) Refine(tr trace.Trace) (trace.Trace, error) {
	params := config.InterpolationParams{Kind: ip.Kind, Factor: ip.Factor}
	if err := params.Validate(); err != nil {
		return trace.Trace{}, err
	}
	n := tr.Len()
	if n == 0 {
		return trace.Trace{}, fmt.Errorf("%w: empty trace", trace.ErrInvalidInput)
	}
	m := ip.Factor * n
	out := make([]trace.Point, m)
	if n == 1 {
		for i := range out {
			out[i] = tr.At(0)
		}
		return trace.New(out)
	}
	if need := minPoints[ip.Kind]; n < need {
		return trace.Trace{}, fmt.Errorf("%w: %s interpolation needs at least %d points, got %d",
			trace.ErrInvalidInput, ip.Kind, need, n)
	}

	xs, ys := tr.XY()
	px, err := fit(ip.Kind, xs)
	if err != nil {
		return trace.Trace{}, err
	}
	py, err := fit(ip.Kind, ys)
	if err != nil {
		return trace.Trace{}, err
	}

	ts := floats.Span(make([]float64, m), 0, float64(n-1))
	for i, t := range ts {
		out[i] = trace.Point{X: px.Predict(t), Y: py.Predict(t)}
	}
	return trace.New(out)
}

// fit fits values over the index axis 0..len(values)-1.
func fit(kind string, values []float64) (interp.Predictor, error) {
	p := newPredictor(kind)
	if p == nil {
		return nil, fmt.Errorf("%w: unknown interpolation kind %q", config.ErrInvalidConfig, kind)
	}
	if err := p.Fit(indexAxis(len(values)), values); err != nil {
		return nil, fmt.Errorf("failed to fit %s interpolant: %w", kind, err)
	}
	return p, nil
}

func indexAxis(n int) []float64 {
	t := make([]float64, n)
	for i := range t {
		t[i] = float64(i)
	}
	return t
}

// stepPredictor is a piecewise-constant predictor on an evenly spaced
// index axis. With nearest set it returns the closest sample (ties go to
// the lower index); otherwise it holds the previous sample.
type stepPredictor struct {
	ys      []float64
	nearest bool
}

func (s *stepPredictor) Fit(xs, ys []float64) error {
	if len(xs) != len(ys) {
		return fmt.Errorf("%w: %d xs and %d ys", trace.ErrInvalidInput, len(xs), len(ys))
	}
	s.ys = append(s.ys[:0], ys...)
	return nil
}

func (s *stepPredictor) Predict(t float64) float64 {
	var i int
	if s.nearest {
		i = int(math.Ceil(t - 0.5))
	} else {
		i = int(math.Floor(t))
	}
	i = max(0, min(i, len(s.ys)-1))
	return s.ys[i]
}
