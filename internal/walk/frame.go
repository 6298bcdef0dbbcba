package walk

import (
	"math"

	"github.com/banshee-data/sillywalks/internal/trace"
)

// AngleClockwise returns the clockwise angle from a to b in [0, 2π).
func AngleClockwise(a, b trace.Vec) float64 {
	cross := a.X*b.Y - a.Y*b.X
	dot := a.X*b.X + a.Y*b.Y
	theta := math.Mod(-math.Atan2(cross, dot), 2*math.Pi)
	if theta < 0 {
		theta += 2 * math.Pi
	}
	return theta
}

var unitX = trace.Vec{X: 1}

// frameAngle is the rotation that maps the local lateral axis (+x) onto the
// left normal of tangent.
func frameAngle(tangent trace.Vec) float64 {
	return AngleClockwise(tangent, unitX) + math.Pi/2
}

// rotate applies the rotation matrix Φ(theta) to v.
func rotate(theta float64, v trace.Vec) trace.Vec {
	sin, cos := math.Sincos(theta)
	return trace.Vec{
		X: cos*v.X - sin*v.Y,
		Y: sin*v.X + cos*v.Y,
	}
}

// heading tracks the last non-degenerate segment direction so repeated
// points reuse the previous frame instead of an undefined one.
type heading struct {
	last trace.Vec
}

func newHeading() *heading { return &heading{last: unitX} }

// next returns the tangent of the segment a→b.
func (h *heading) next(a, b trace.Point) trace.Vec {
	d := b.Sub(a)
	if d.X != 0 || d.Y != 0 {
		h.last = d
	}
	return h.last
}
