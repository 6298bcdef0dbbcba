// Package occupancy decodes map images into binary occupancy grids.
//
// A Grid is addressed as grid[y][x] (row, column). Cells hold Free (0) or
// Occupied (1) and never change after construction.
package occupancy

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/banshee-data/sillywalks/internal/fsutil"
)

// Cell values.
const (
	Free     uint8 = 0
	Occupied uint8 = 1
)

// ErrEmptyGrid is returned when a grid would have no cells.
var ErrEmptyGrid = errors.New("occupancy grid has no cells")

// Grid is an immutable binary occupancy map.
type Grid struct {
	width  int
	height int
	cells  []uint8 // row-major, len = width*height
}

// FromRows builds a grid from row slices. Any non-zero value is Occupied.
// All rows must have the same length.
func FromRows(rows [][]uint8) (*Grid, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, ErrEmptyGrid
	}
	w := len(rows[0])
	g := &Grid{width: w, height: len(rows), cells: make([]uint8, w*len(rows))}
	for y, row := range rows {
		if len(row) != w {
			return nil, fmt.Errorf("row %d has %d cells, want %d", y, len(row), w)
		}
		for x, v := range row {
			if v != Free {
				g.cells[y*w+x] = Occupied
			}
		}
	}
	return g, nil
}

// Filled returns a width x height grid with every cell set to v.
func Filled(width, height int, v uint8) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrEmptyGrid
	}
	g := &Grid{width: width, height: height, cells: make([]uint8, width*height)}
	if v != Free {
		for i := range g.cells {
			g.cells[i] = Occupied
		}
	}
	return g, nil
}

// FromImage thresholds img into a grid. A pixel is occupied when its
// luminance is below half scale; fully transparent pixels are free.
func FromImage(img image.Image) (*Grid, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ErrEmptyGrid
	}
	g := &Grid{width: b.Dx(), height: b.Dy(), cells: make([]uint8, b.Dx()*b.Dy())}
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			c := img.At(b.Min.X+x, b.Min.Y+y)
			if _, _, _, a := c.RGBA(); a == 0 {
				continue
			}
			gray := color.Gray16Model.Convert(c).(color.Gray16)
			if gray.Y < 0x8000 {
				g.cells[y*g.width+x] = Occupied
			}
		}
	}
	return g, nil
}

// Load reads and decodes the map image at path.
func Load(path string) (*Grid, error) {
	g, _, err := LoadImage(fsutil.OSFileSystem{}, path)
	return g, err
}

// LoadImage reads the map image at path through fsys and returns the grid
// together with the decoded image, which callers keep as the reference
// frame.
func LoadImage(fsys fsutil.FileSystem, path string) (*Grid, image.Image, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read map %s: %w", path, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode map %s: %w", path, err)
	}
	g, err := FromImage(img)
	if err != nil {
		return nil, nil, fmt.Errorf("map %s: %w", path, err)
	}
	return g, img, nil
}

// Decode decodes an image in any registered format and returns the grid and
// the format name.
func Decode(r io.Reader) (*Grid, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", err
	}
	g, err := FromImage(img)
	return g, format, err
}

// Width is the number of columns.
func (g *Grid) Width() int { return g.width }

// Height is the number of rows.
func (g *Grid) Height() int { return g.height }

// InBounds reports whether (x, y) addresses a cell.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.width && y >= 0 && y < g.height
}

// At returns the cell value at column x, row y. It panics when out of bounds.
func (g *Grid) At(x, y int) uint8 {
	if !g.InBounds(x, y) {
		panic(fmt.Sprintf("occupancy: (%d,%d) outside %dx%d grid", x, y, g.width, g.height))
	}
	return g.cells[y*g.width+x]
}

// Occupied reports whether the in-bounds cell (x, y) is an obstacle.
func (g *Grid) Occupied(x, y int) bool { return g.At(x, y) == Occupied }

// FreeCount returns the number of free cells.
func (g *Grid) FreeCount() int {
	n := 0
	for _, c := range g.cells {
		if c == Free {
			n++
		}
	}
	return n
}

// Image renders the grid as grayscale: free cells white, occupied black.
func (g *Grid) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, g.width, g.height))
	for i, c := range g.cells {
		if c == Free {
			img.Pix[i] = 0xff
		}
	}
	return img
}

// EncodePNG writes the grid image as PNG.
func (g *Grid) EncodePNG(w io.Writer) error {
	return png.Encode(w, g.Image())
}
