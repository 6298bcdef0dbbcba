// Package testutil provides shared test fixtures: small ASCII maps encoded
// as PNG, seed traces and job-file lines.
//
// It is imported only by tests of packages above the core (batch, report,
// the CLI) so the core packages stay free of import cycles.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"strings"
	"testing"

	"github.com/banshee-data/sillywalks/internal/fsutil"
	"github.com/banshee-data/sillywalks/internal/trace"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// MapImage draws an ASCII map: '#' is an occupied (black) pixel, anything
// else is free (white). Rows shorter than the first are padded free.
func MapImage(rows ...string) *image.Gray {
	w := 0
	if len(rows) > 0 {
		w = len(rows[0])
	}
	img := image.NewGray(image.Rect(0, 0, w, len(rows)))
	for y, row := range rows {
		for x := 0; x < w; x++ {
			c := color.Gray{Y: 0xff}
			if x < len(row) && row[x] == '#' {
				c = color.Gray{Y: 0}
			}
			img.SetGray(x, y, c)
		}
	}
	return img
}

// OpenMap returns a width x height map with an occupied border.
func OpenMap(width, height int) *image.Gray {
	rows := make([]string, height)
	for y := range rows {
		if y == 0 || y == height-1 {
			rows[y] = strings.Repeat("#", width)
			continue
		}
		rows[y] = "#" + strings.Repeat(".", width-2) + "#"
	}
	return MapImage(rows...)
}

// EncodePNG encodes img as PNG.
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// WriteMap stores img as a PNG file at path on fsys.
func WriteMap(t *testing.T, fsys fsutil.FileSystem, path string, img image.Image) {
	t.Helper()
	if err := fsys.WriteFile(path, EncodePNG(t, img), 0o644); err != nil {
		t.Fatalf("write map %s: %v", path, err)
	}
}

// StraightSeed is a horizontal three-point seed trace at height y.
func StraightSeed(y float64) trace.Trace {
	return trace.MustNew(
		trace.Point{X: 10, Y: y},
		trace.Point{X: 20, Y: y},
		trace.Point{X: 30, Y: y},
	)
}

// JobLine formats one job-file line for an interpolation or simulation
// job on mapPath with the StraightSeed at height 25.
func JobLine(goal, method, kind, mapPath string, nrRuns int) string {
	return strings.Join([]string{
		goal, "origin", strconv.Itoa(nrRuns), method, kind, "2", "0", "0", mapPath,
		trace.FormatArray([]float64{10, 20, 30}),
		trace.FormatArray([]float64{25, 25, 25}),
	}, ", ")
}
