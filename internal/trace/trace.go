package trace

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ErrInvalidInput is returned for empty traces and mismatched coordinate arrays.
var ErrInvalidInput = errors.New("invalid trace input")

// Point is a position in map pixel coordinates (x = column, y = row).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vec is a 2D displacement, used for velocity and acceleration samples.
type Vec = Point

// Add returns p + q.
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// IsFinite reports whether both coordinates are finite numbers.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Trace is an ordered, immutable sequence of points.
type Trace struct {
	pts []Point
}

// New copies pts into a new Trace. It fails on an empty slice.
func New(pts []Point) (Trace, error) {
	if len(pts) == 0 {
		return Trace{}, fmt.Errorf("%w: trace has no points", ErrInvalidInput)
	}
	return Trace{pts: clonePoints(pts)}, nil
}

// MustNew is New for literals in tests and examples. It panics on error.
func MustNew(pts ...Point) Trace {
	t, err := New(pts)
	if err != nil {
		panic(err)
	}
	return t
}

// FromXY zips separate coordinate arrays into a Trace.
func FromXY(xs, ys []float64) (Trace, error) {
	if len(xs) == 0 || len(ys) == 0 {
		return Trace{}, fmt.Errorf("%w: empty coordinate array", ErrInvalidInput)
	}
	if len(xs) != len(ys) {
		return Trace{}, fmt.Errorf("%w: x has %d values, y has %d", ErrInvalidInput, len(xs), len(ys))
	}
	pts := make([]Point, len(xs))
	for i := range xs {
		pts[i] = Point{X: xs[i], Y: ys[i]}
	}
	return Trace{pts: pts}, nil
}

// fromOwned wraps pts without copying. Callers must not retain pts.
func fromOwned(pts []Point) Trace { return Trace{pts: pts} }

// Len returns the number of points.
func (t Trace) Len() int { return len(t.pts) }

// IsEmpty reports whether the trace holds no points (the zero value).
func (t Trace) IsEmpty() bool { return len(t.pts) == 0 }

// At returns the i-th point.
func (t Trace) At(i int) Point { return t.pts[i] }

// Points returns a copy of the points.
func (t Trace) Points() []Point { return clonePoints(t.pts) }

// XY returns the coordinates as two freshly allocated slices.
func (t Trace) XY() (xs, ys []float64) {
	xs = make([]float64, len(t.pts))
	ys = make([]float64, len(t.pts))
	for i, p := range t.pts {
		xs[i], ys[i] = p.X, p.Y
	}
	return xs, ys
}

// Clone returns an independent copy of the trace.
func (t Trace) Clone() Trace { return Trace{pts: clonePoints(t.pts)} }

// Map applies fn to every point and returns the result as a new Trace.
func (t Trace) Map(fn func(i int, p Point) Point) Trace {
	out := make([]Point, len(t.pts))
	for i, p := range t.pts {
		out[i] = fn(i, p)
	}
	return fromOwned(out)
}

// Equal reports whether both traces hold the same points in the same order.
func (t Trace) Equal(o Trace) bool {
	if len(t.pts) != len(o.pts) {
		return false
	}
	for i := range t.pts {
		if t.pts[i] != o.pts[i] {
			return false
		}
	}
	return true
}

// LineString converts the trace to an orb geometry.
func (t Trace) LineString() orb.LineString {
	ls := make(orb.LineString, len(t.pts))
	for i, p := range t.pts {
		ls[i] = orb.Point{p.X, p.Y}
	}
	return ls
}

// Length returns the planar polyline length in pixels.
func (t Trace) Length() float64 {
	if len(t.pts) < 2 {
		return 0
	}
	return planar.Length(t.LineString())
}

// Bound returns the axis-aligned bounding box of the trace.
func (t Trace) Bound() orb.Bound {
	return t.LineString().Bound()
}

// Diff returns the first finite difference p[i+1]-p[i] of the points.
// The result has Len()-1 entries and is empty for single-point traces.
func (t Trace) Diff() []Vec {
	return Diff(t.pts)
}

// Diff returns v[i+1]-v[i] for i in [0, len(v)-1).
func Diff(v []Vec) []Vec {
	if len(v) < 2 {
		return []Vec{}
	}
	out := make([]Vec, len(v)-1)
	for i := 1; i < len(v); i++ {
		out[i-1] = v[i].Sub(v[i-1])
	}
	return out
}

func clonePoints(pts []Point) []Point {
	out := make([]Point, len(pts))
	copy(out, pts)
	return out
}
