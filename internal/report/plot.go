package report

import (
	"fmt"
	"image"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/sillywalks/internal/trace"
)

// PlotOptions controls PlotPNG.
type PlotOptions struct {
	Title string
	// Width and Height of the output; zero picks 8x8 inches.
	Width, Height vg.Length
}

// PlotPNG draws every walk over background (which may be nil) and writes a
// PNG to w. Walks are in map pixel coordinates with y pointing down; the
// plot flips them so the map appears upright.
func PlotPNG(w io.Writer, groups []Group, background image.Image, o PlotOptions) error {
	if countWalks(groups) == 0 {
		return ErrNoRuns
	}
	if o.Width == 0 {
		o.Width = 8 * vg.Inch
	}
	if o.Height == 0 {
		o.Height = 8 * vg.Inch
	}

	p := plot.New()
	p.Title.Text = o.Title
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px)"

	height := 0.0
	if background != nil {
		b := background.Bounds()
		height = float64(b.Dy())
		p.Add(plotter.NewImage(background, 0, 0, float64(b.Dx()), height))
		p.X.Min, p.X.Max = 0, float64(b.Dx())
		p.Y.Min, p.Y.Max = 0, height
	}
	flip := func(pt trace.Point) plotter.XY {
		if background == nil {
			return plotter.XY{X: pt.X, Y: -pt.Y}
		}
		return plotter.XY{X: pt.X, Y: height - pt.Y}
	}

	colors := palette(len(groups))
	for i, g := range groups {
		for j, walk := range g.Walks {
			pts := make(plotter.XYs, walk.Len())
			for k := range pts {
				pts[k] = flip(walk.At(k))
			}
			line, err := plotter.NewLine(pts)
			if err != nil {
				return fmt.Errorf("%s run %d: %w", g.Label, j, err)
			}
			line.Color = colors[i]
			line.Width = vg.Points(1)
			p.Add(line)
			if j == 0 {
				p.Legend.Add(g.Label, line)
			}
		}
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	wt, err := p.WriterTo(o.Width, o.Height, "png")
	if err != nil {
		return fmt.Errorf("failed to render plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write plot: %w", err)
	}
	return nil
}
