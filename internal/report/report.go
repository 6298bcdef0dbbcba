// Package report renders archived walks: a PNG overlay of every run on the
// reference map, and an interactive HTML preview with one chart per goal.
package report

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/banshee-data/sillywalks/internal/archive"
	"github.com/banshee-data/sillywalks/internal/trace"
)

// ErrNoRuns is returned when there is nothing to render.
var ErrNoRuns = errors.New("no runs to render")

// Group is the set of walks stored under one goal label.
type Group struct {
	Label string
	Walks []trace.Trace
}

// Collect reads every run of the archive grouped by label.
func Collect(r *archive.Reader) ([]Group, error) {
	labels, err := r.Labels()
	if err != nil {
		return nil, err
	}
	groups := make([]Group, 0, len(labels))
	for _, label := range labels {
		runs, err := r.Runs(label)
		if err != nil {
			return nil, fmt.Errorf("failed to read runs for %s: %w", label, err)
		}
		g := Group{Label: label, Walks: make([]trace.Trace, len(runs))}
		for i, run := range runs {
			g.Walks[i] = run.Positions
		}
		groups = append(groups, g)
	}
	return groups, nil
}

func countWalks(groups []Group) int {
	n := 0
	for _, g := range groups {
		n += len(g.Walks)
	}
	return n
}

// palette returns n evenly spaced hues.
func palette(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

func hexColor(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64
	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}
	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
