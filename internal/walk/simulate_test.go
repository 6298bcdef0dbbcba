package walk

import (
	"errors"
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sillywalks/internal/config"
	"github.com/banshee-data/sillywalks/internal/trace"
)

// straightMean runs along +x, so the lateral axis of every base is +y.
func straightMean() trace.Trace {
	return trace.MustNew(
		trace.Point{X: 0, Y: 0},
		trace.Point{X: 10, Y: 0},
		trace.Point{X: 20, Y: 0},
		trace.Point{X: 30, Y: 0},
		trace.Point{X: 40, Y: 0},
	)
}

func simParams() config.SimulationParams {
	return config.SimulationParams{
		NTotal:      6,
		LenTotal:    20,
		NBase:       3,
		LenBase:     5,
		BaseType:    config.BaseLinear,
		LengthScale: 4,
		Scale:       1,
		CovType:     config.CovRBF,
	}
}

func newSim(t *testing.T, p config.SimulationParams, profile []float64) *Simulator {
	t.Helper()
	s, err := NewSimulator(p, profile, rand.NewPCG(1, 2))
	require.NoError(t, err)
	return s
}

func TestAngleClockwise(t *testing.T) {
	tests := []struct {
		name string
		a, b trace.Vec
		want float64
	}{
		{"same direction", trace.Vec{X: 1}, trace.Vec{X: 1}, 0},
		{"up to right", trace.Vec{Y: 1}, trace.Vec{X: 1}, math.Pi / 2},
		{"right to up", trace.Vec{X: 1}, trace.Vec{Y: 1}, 3 * math.Pi / 2},
		{"opposite", trace.Vec{X: -1}, trace.Vec{X: 1}, math.Pi},
		{"scale invariant", trace.Vec{Y: 5}, trace.Vec{X: 0.1}, math.Pi / 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AngleClockwise(tt.a, tt.b); !near(got, tt.want) {
				t.Errorf("AngleClockwise(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestRotateIntoNormal(t *testing.T) {
	// A lateral offset of 1 ends up on the left of the direction of travel.
	tests := []struct {
		tangent trace.Vec
		want    trace.Vec
	}{
		{trace.Vec{X: 1}, trace.Vec{Y: 1}},
		{trace.Vec{Y: 1}, trace.Vec{X: -1}},
		{trace.Vec{X: -2}, trace.Vec{Y: -1}},
		{trace.Vec{Y: -3}, trace.Vec{X: 1}},
	}
	for _, tt := range tests {
		got := rotate(frameAngle(tt.tangent), trace.Vec{X: 1})
		if !nearPoint(got, tt.want) {
			t.Errorf("tangent %v: offset maps to %v, want %v", tt.tangent, got, tt.want)
		}
	}
}

func TestCreateBasesLinearEvenlySpaced(t *testing.T) {
	s := newSim(t, simParams(), []float64{2})
	bases, err := s.CreateBases(straightMean())
	require.NoError(t, err)

	n, length := bases.Shape()
	require.Equal(t, 3, n)
	require.Equal(t, 5, length)

	// Mean indices are int(linspace(1, 4, 5)) = 1, 1, 2, 3, 4.
	wantX := []float64{10, 10, 20, 30, 40}
	for i := 0; i < length; i++ {
		var offsets []float64
		for b := 0; b < n; b++ {
			assert.InDelta(t, wantX[i], bases[b][i].X, tol)
			offsets = append(offsets, bases[b][i].Y)
		}
		assert.InDeltaSlice(t, []float64{-2, 0, 2}, offsets, tol, "step %d", i)
		assert.True(t, slices.IsSorted(offsets))
	}
}

func TestCreateBasesFollowsProfile(t *testing.T) {
	p := simParams()
	p.NBase = 2
	p.NTotal = 2
	s := newSim(t, p, []float64{0, 1, 2, 3, 4})
	bases, err := s.CreateBases(straightMean())
	require.NoError(t, err)
	// Profile indices follow the same spacing as the mean path: 1, 1, 2, 3, 4.
	for i, v := range []float64{1, 1, 2, 3, 4} {
		assert.InDelta(t, -v, bases[0][i].Y, tol)
		assert.InDelta(t, v, bases[1][i].Y, tol)
	}
}

func TestCreateBasesRandomTypesAreSorted(t *testing.T) {
	for _, bt := range []string{config.BaseUniform, config.BaseNormal} {
		t.Run(bt, func(t *testing.T) {
			p := simParams()
			p.BaseType = bt
			p.NBase = 6
			p.NTotal = 6
			s := newSim(t, p, []float64{3})
			bases, err := s.CreateBases(straightMean())
			require.NoError(t, err)
			for i := 0; i < p.LenBase; i++ {
				col := make([]float64, p.NBase)
				for b := range col {
					col[b] = bases[b][i].Y
				}
				assert.True(t, slices.IsSorted(col), "step %d offsets %v", i, col)
				if bt == config.BaseUniform {
					for _, v := range col {
						assert.LessOrEqual(t, math.Abs(v), 3.0)
					}
				}
			}
		})
	}
}

func TestCreateBasesSingleBaseFollowsMean(t *testing.T) {
	p := simParams()
	p.NBase = 1
	s := newSim(t, p, []float64{5})
	bases, err := s.CreateBases(straightMean())
	require.NoError(t, err)
	for i, x := range []float64{10, 10, 20, 30, 40} {
		assert.InDelta(t, x, bases[0][i].X, tol)
		assert.InDelta(t, 0, bases[0][i].Y, tol)
	}
}

func TestCreateBasesNeedsTwoPoints(t *testing.T) {
	s := newSim(t, simParams(), []float64{1})
	_, err := s.CreateBases(trace.MustNew(trace.Point{X: 1, Y: 1}))
	assert.ErrorIs(t, err, trace.ErrInvalidInput)
}

func TestAdjustLength(t *testing.T) {
	in := Paths{{{X: 0, Y: 0}, {X: 2, Y: 4}}}
	out := AdjustLength(in, 5)
	want := []trace.Point{{X: 0, Y: 0}, {X: 0.5, Y: 1}, {X: 1, Y: 2}, {X: 1.5, Y: 3}, {X: 2, Y: 4}}
	n, length := out.Shape()
	require.Equal(t, 1, n)
	require.Equal(t, 5, length)
	for j, w := range want {
		assert.True(t, nearPoint(w, out[0][j]), "point %d = %v, want %v", j, out[0][j], w)
	}

	// A single-point path is held constant.
	held := AdjustLength(Paths{{{X: 3, Y: 3}}}, 4)
	for _, p := range held[0] {
		assert.Equal(t, trace.Point{X: 3, Y: 3}, p)
	}
}

func TestCombine(t *testing.T) {
	bases := Paths{{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}}
	samples := Paths{{{X: 9, Y: 9}, {X: 2}, {X: 3}}}
	out, err := Combine(bases, samples)
	require.NoError(t, err)

	// The first point is the base point; the sample offset there is ignored.
	want := []trace.Point{{X: 0, Y: 0}, {X: 1, Y: 2}, {X: -2, Y: 1}}
	for j, w := range want {
		assert.True(t, nearPoint(w, out[0][j]), "point %d = %v, want %v", j, out[0][j], w)
	}
}

func TestCombineGroupsSamples(t *testing.T) {
	bases := Paths{
		{{X: 0, Y: 0}, {X: 1, Y: 0}},
		{{X: 0, Y: 5}, {X: 1, Y: 5}},
	}
	samples := newPaths(4, 2)
	out, err := Combine(bases, samples)
	require.NoError(t, err)
	for i, g := range []int{0, 0, 1, 1} {
		assert.Equal(t, bases[g][0], out[i][0], "sample %d anchors to base %d", i, g)
	}

	_, err = Combine(bases, newPaths(3, 2))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestCreateSamples(t *testing.T) {
	s := newSim(t, simParams(), []float64{1})
	samples := s.CreateSamples(4)
	n, length := samples.Shape()
	require.Equal(t, 4, n)
	require.Equal(t, 20, length)
	for i := range samples {
		for j, p := range samples[i] {
			assert.Zero(t, p.Y, "sample %d step %d has a longitudinal component", i, j)
			assert.False(t, math.IsNaN(p.X))
		}
	}

	p := simParams()
	p.Scale = 0
	quiet := newSim(t, p, []float64{1}).CreateSamples(2)
	for _, row := range quiet {
		for _, pt := range row {
			assert.Zero(t, pt.X)
		}
	}
}

func TestCreateTrajectoriesSingleBaseAnchors(t *testing.T) {
	p := simParams()
	p.NBase = 1
	p.NTotal = 4
	p.Scale = 0
	s := newSim(t, p, []float64{1})
	paths, err := s.CreateTrajectories(straightMean())
	require.NoError(t, err)

	n, length := paths.Shape()
	require.Equal(t, 4, n)
	require.Equal(t, p.LenTotal, length)
	for i := 1; i < n; i++ {
		for j := range paths[i] {
			assert.True(t, nearPoint(paths[0][j], paths[i][j]), "member %d step %d", i, j)
		}
	}
}

func TestCreateTrajectoriesShapeAndSeed(t *testing.T) {
	for _, cov := range config.CovTypes {
		p := simParams()
		p.CovType = cov
		a, err := newSim(t, p, []float64{1, 2, 3}).CreateTrajectories(straightMean())
		require.NoError(t, err)
		b, err := newSim(t, p, []float64{1, 2, 3}).CreateTrajectories(straightMean())
		require.NoError(t, err)

		n, length := a.Shape()
		assert.Equal(t, p.NTotal, n)
		assert.Equal(t, p.LenTotal, length)
		assert.Equal(t, a, b, "%s: same seed must give the same ensemble", cov)

		// Members of one group share their first point.
		perBase := p.NTotal / p.NBase
		for i := range a {
			assert.Equal(t, a[(i/perBase)*perBase][0], a[i][0])
		}
	}
}

func TestSimulatorRefine(t *testing.T) {
	s := newSim(t, simParams(), []float64{1})
	out, err := s.Refine(straightMean())
	require.NoError(t, err)
	assert.Equal(t, 20, out.Len())
}

func TestNewSimulatorRejectsBadConfig(t *testing.T) {
	p := simParams()
	p.NTotal = 7
	_, err := NewSimulator(p, []float64{1}, nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	p = simParams()
	p.BaseType = "Cauchy"
	_, err = NewSimulator(p, []float64{1}, nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = NewSimulator(simParams(), nil, nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = NewSimulator(simParams(), []float64{1, -1}, nil)
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))
}

func TestKernels(t *testing.T) {
	rbf, err := NewKernel(config.CovRBF, 2)
	require.NoError(t, err)
	assert.InDelta(t, 1, rbf(0), tol)
	assert.InDelta(t, math.Exp(-0.5), rbf(2), tol)

	matern, err := NewKernel(config.CovMatern, 2)
	require.NoError(t, err)
	assert.InDelta(t, 1, matern(0), tol)
	assert.InDelta(t, (1+math.Sqrt(3))*math.Exp(-math.Sqrt(3)), matern(2), tol)

	_, err = NewKernel("Periodic", 1)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	m := KernelMatrix(rbf, 4)
	for i := 0; i < 4; i++ {
		assert.InDelta(t, 1, m.At(i, i), tol)
		for j := 0; j < 4; j++ {
			assert.Equal(t, m.At(i, j), m.At(j, i))
		}
	}
}

func TestTangentFrameIgnoresPosition(t *testing.T) {
	shift := trace.Point{X: 100, Y: 37}
	move := func(p Paths) Paths {
		out := newPaths(len(p), len(p[0]))
		for i := range p {
			for j := range p[i] {
				out[i][j] = p[i][j].Add(shift)
			}
		}
		return out
	}

	bases := Paths{{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 3, Y: 2}}}
	samples := Paths{{{}, {X: 2}, {X: -1}, {X: 0.5}}}
	here, err := Combine(bases, samples)
	require.NoError(t, err)
	there, err := Combine(move(bases), samples)
	require.NoError(t, err)
	for j := range here[0] {
		assert.True(t, nearPoint(here[0][j].Add(shift), there[0][j]), "combine point %d", j)
	}

	sim := newSim(t, simParams(), UnitProfile)
	a, err := sim.CreateBases(straightMean())
	require.NoError(t, err)
	b, err := sim.CreateBases(straightMean().Map(func(_ int, p trace.Point) trace.Point { return p.Add(shift) }))
	require.NoError(t, err)
	for i := range a {
		for j := range a[i] {
			assert.True(t, nearPoint(a[i][j].Add(shift), b[i][j]), "base %d point %d", i, j)
		}
	}
}
