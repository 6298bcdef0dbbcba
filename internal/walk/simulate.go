package walk

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/sillywalks/internal/config"
	"github.com/banshee-data/sillywalks/internal/trace"
)

// Simulator generates an ensemble of walks around a mean path.
//
// It first lays NBase bases beside the mean path, offset along the local
// normal by draws scaled with the variance profile. The bases are
// resampled to LenTotal points, and each of the NTotal members adds a
// Gaussian-process lateral offset to its base, rotated into the base's
// tangent frame.
type Simulator struct {
	Params  config.SimulationParams
	Profile []float64

	src rand.Source
	rnd *rand.Rand
	cov *distmv.PositivePartEigenSym
}

// NewSimulator validates p and profile and factorizes the sample
// covariance once for all later draws.
func NewSimulator(p config.SimulationParams, profile []float64, src rand.Source) (*Simulator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := checkProfile(profile); err != nil {
		return nil, err
	}
	k, err := NewKernel(p.CovType, p.LengthScale)
	if err != nil {
		return nil, err
	}
	var eig mat.EigenSym
	if !eig.Factorize(KernelMatrix(k, p.LenTotal), true) {
		return nil, fmt.Errorf("%w: %s covariance over %d steps could not be factorized",
			config.ErrInvalidConfig, p.CovType, p.LenTotal)
	}
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Simulator{
		Params:  p,
		Profile: slices.Clone(profile),
		src:     src,
		rnd:     rand.New(src),
		cov:     distmv.NewPositivePartEigenSym(&eig),
	}, nil
}

// Refine implements Refiner: it simulates the whole ensemble around tr and
// returns one member chosen uniformly at random.
func (s *Simulator) Refine(tr trace.Trace) (trace.Trace, error) {
	paths, err := s.CreateTrajectories(tr)
	if err != nil {
		return trace.Trace{}, err
	}
	return paths.Trace(s.rnd.IntN(len(paths)))
}

// CreateTrajectories returns NTotal walks of LenTotal points around mean.
func (s *Simulator) CreateTrajectories(mean trace.Trace) (Paths, error) {
	bases, err := s.CreateBases(mean)
	if err != nil {
		return nil, err
	}
	adjusted := AdjustLength(bases, s.Params.LenTotal)
	samples := s.CreateSamples(s.Params.NTotal)
	return Combine(adjusted, samples)
}

// CreateBases lays NBase paths of LenBase points beside mean. At each of
// LenBase evenly spaced mean-path indices the NBase lateral offsets are
// drawn from BaseType, sorted so sibling bases never cross, and rotated
// onto the normal of the mean path there.
func (s *Simulator) CreateBases(mean trace.Trace) (Paths, error) {
	if mean.Len() < 2 {
		return nil, fmt.Errorf("%w: simulation needs a mean path of at least 2 points, got %d",
			trace.ErrInvalidInput, mean.Len())
	}
	p := s.Params
	meanIdx := spanIndices(1, mean.Len()-1, p.LenBase)
	profIdx := spanIndices(1, len(s.Profile)-1, p.LenBase)

	bases := newPaths(p.NBase, p.LenBase)
	offsets := make([]float64, p.NBase)
	h := newHeading()
	for i := 0; i < p.LenBase; i++ {
		at := meanIdx[i]
		if err := s.drawOffsets(offsets, s.Profile[profIdx[i]]); err != nil {
			return nil, err
		}
		origin := mean.At(at)
		theta := frameAngle(h.next(mean.At(at-1), origin))
		for b, off := range offsets {
			bases[b][i] = origin.Add(rotate(theta, trace.Vec{X: off}))
		}
	}
	return bases, nil
}

// drawOffsets fills dst with sorted lateral offsets of spread v.
func (s *Simulator) drawOffsets(dst []float64, v float64) error {
	switch s.Params.BaseType {
	case config.BaseLinear:
		if len(dst) == 1 {
			dst[0] = 0
			return nil
		}
		floats.Span(dst, -v, v)
		return nil
	case config.BaseUniform:
		d := distuv.Uniform{Min: -v, Max: v, Src: s.src}
		for i := range dst {
			dst[i] = d.Rand()
		}
	case config.BaseNormal:
		d := distuv.Normal{Mu: 0, Sigma: v, Src: s.src}
		for i := range dst {
			dst[i] = d.Rand()
		}
	default:
		return fmt.Errorf("%w: unknown base_type %q", config.ErrInvalidConfig, s.Params.BaseType)
	}
	slices.Sort(dst)
	return nil
}

// CreateSamples draws n lateral-offset sequences of LenTotal steps from the
// Gaussian process, scaled by Scale. Only the X (lateral) channel is set.
func (s *Simulator) CreateSamples(n int) Paths {
	length := s.Params.LenTotal
	samples := newPaths(n, length)
	mean := make([]float64, length)
	draw := make([]float64, length)
	for i := range samples {
		distmv.NormalRandCov(draw, mean, s.cov, s.src)
		floats.Scale(s.Params.Scale, draw)
		for j, v := range draw {
			samples[i][j] = trace.Point{X: v}
		}
	}
	return samples
}

// AdjustLength resamples every path to length points by piecewise-linear
// interpolation over its own index axis, independently in x and y.
func AdjustLength(paths Paths, length int) Paths {
	n, src := paths.Shape()
	out := newPaths(n, length)
	if n == 0 || length == 0 {
		return out
	}
	ts := []float64{0}
	if length > 1 {
		ts = floats.Span(make([]float64, length), 0, float64(src-1))
	}
	for i, path := range paths {
		if src == 1 {
			for j := range out[i] {
				out[i][j] = path[0]
			}
			continue
		}
		xs, ys := trace.MustNew(path...).XY()
		var fx, fy interp.PiecewiseLinear
		axis := indexAxis(src)
		// Fit only fails on malformed axes, which indexAxis never produces.
		_ = fx.Fit(axis, xs)
		_ = fy.Fit(axis, ys)
		for j, t := range ts {
			out[i][j] = trace.Point{X: fx.Predict(t), Y: fy.Predict(t)}
		}
	}
	return out
}

// Combine attaches samples to bases. Sample i belongs to base
// i/(len(samples)/len(bases)). Its first point is the base's first point;
// every later point j is the base point plus the sample offset rotated into
// the tangent frame of the base segment j-1 → j.
func Combine(bases, samples Paths) (Paths, error) {
	nBase, lenBase := bases.Shape()
	nTotal, lenTotal := samples.Shape()
	if nBase == 0 || nTotal%nBase != 0 {
		return nil, fmt.Errorf("%w: %d samples cannot be split evenly over %d bases",
			config.ErrInvalidConfig, nTotal, nBase)
	}
	if lenBase != lenTotal {
		return nil, fmt.Errorf("%w: base length %d differs from sample length %d",
			trace.ErrInvalidInput, lenBase, lenTotal)
	}
	perBase := nTotal / nBase
	out := newPaths(nTotal, lenTotal)
	for i := range samples {
		base := bases[i/perBase]
		out[i][0] = base[0]
		h := newHeading()
		for j := 1; j < lenTotal; j++ {
			theta := frameAngle(h.next(base[j-1], base[j]))
			out[i][j] = base[j].Add(rotate(theta, samples[i][j]))
		}
	}
	return out, nil
}

// spanIndices truncates count evenly spaced values from lo to hi. A single
// value is lo; an empty range (hi < lo) collapses to index 0.
func spanIndices(lo, hi, count int) []int {
	out := make([]int, count)
	if hi < lo {
		return out
	}
	if count == 1 {
		out[0] = lo
		return out
	}
	vals := floats.Span(make([]float64, count), float64(lo), float64(hi))
	for i, v := range vals {
		out[i] = int(v)
	}
	return out
}

func checkProfile(profile []float64) error {
	if len(profile) == 0 {
		return fmt.Errorf("%w: empty variance profile", config.ErrInvalidConfig)
	}
	for i, v := range profile {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: variance profile entry %d is %v", config.ErrInvalidConfig, i, v)
		}
	}
	return nil
}
