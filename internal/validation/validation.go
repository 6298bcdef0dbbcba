// Package validation checks traces against an occupancy grid.
//
// Validation is pure: it never logs, prompts or touches the filesystem.
// Callers decide how to report a rejected trace.
package validation

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/sillywalks/internal/occupancy"
	"github.com/banshee-data/sillywalks/internal/trace"
)

// ErrInvalidCoordinate is returned for coordinates that cannot be converted
// to integer cell indices (NaN or infinite values).
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Reason describes why a point failed validation.
type Reason string

const (
	ReasonOutOfBoundsX Reason = "x out of bounds"
	ReasonOutOfBoundsY Reason = "y out of bounds"
	ReasonOccupied     Reason = "occupied cell"
)

// PointError identifies the first rejected point of a trace.
type PointError struct {
	Index  int
	X, Y   int
	Reason Reason
}

func (e *PointError) Error() string {
	return fmt.Sprintf("point %d at (%d,%d): %s", e.Index, e.X, e.Y, e.Reason)
}

// cell truncates p toward zero, matching integer conversion of the
// coordinates.
func cell(p trace.Point) (int, int, error) {
	if !p.IsFinite() {
		return 0, 0, fmt.Errorf("%w: (%v, %v)", ErrInvalidCoordinate, p.X, p.Y)
	}
	// Values beyond the int range can never be in bounds; clamp so the
	// conversion stays defined.
	x := math.Max(math.Min(math.Trunc(p.X), math.MaxInt32), math.MinInt32)
	y := math.Max(math.Min(math.Trunc(p.Y), math.MaxInt32), math.MinInt32)
	return int(x), int(y), nil
}

func classify(x, y int, grid *occupancy.Grid) Reason {
	if x < 0 || x >= grid.Width() {
		return ReasonOutOfBoundsX
	}
	// y is bounded by the height, not the width: on non-square maps the
	// two differ.
	if y < 0 || y >= grid.Height() {
		return ReasonOutOfBoundsY
	}
	if grid.Occupied(x, y) {
		return ReasonOccupied
	}
	return ""
}

// ValidatePoint reports whether p lies inside the grid on a free cell.
func ValidatePoint(p trace.Point, grid *occupancy.Grid) (bool, error) {
	x, y, err := cell(p)
	if err != nil {
		return false, err
	}
	return classify(x, y, grid) == "", nil
}

// Validate reports whether every point of tr is in bounds and free.
// All points are visited; the first ErrInvalidCoordinate is returned
// alongside a false result.
func Validate(tr trace.Trace, grid *occupancy.Grid) (bool, error) {
	if tr.IsEmpty() {
		return false, fmt.Errorf("%w: empty trace", trace.ErrInvalidInput)
	}
	valid := true
	var firstErr error
	for i := 0; i < tr.Len(); i++ {
		ok, err := ValidatePoint(tr.At(i), grid)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("point %d: %w", i, err)
		}
		if !ok {
			valid = false
		}
	}
	return valid, firstErr
}

// Check returns nil for a valid trace, or a *PointError describing the
// first rejected point. Coordinate errors are returned as-is.
func Check(tr trace.Trace, grid *occupancy.Grid) error {
	if tr.IsEmpty() {
		return fmt.Errorf("%w: empty trace", trace.ErrInvalidInput)
	}
	for i := 0; i < tr.Len(); i++ {
		x, y, err := cell(tr.At(i))
		if err != nil {
			return fmt.Errorf("point %d: %w", i, err)
		}
		if r := classify(x, y, grid); r != "" {
			return &PointError{Index: i, X: x, Y: y, Reason: r}
		}
	}
	return nil
}
