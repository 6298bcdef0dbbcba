package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// PreviewOptions controls PreviewHTML.
type PreviewOptions struct {
	Title string
	// MapWidth and MapHeight fix the axis ranges when positive.
	MapWidth, MapHeight int
}

// PreviewHTML writes a page with one line chart per goal label, one series
// per run. The y axis is inverted to match image coordinates.
func PreviewHTML(w io.Writer, groups []Group, o PreviewOptions) error {
	if countWalks(groups) == 0 {
		return ErrNoRuns
	}
	page := components.NewPage()
	if o.Title != "" {
		page.SetPageTitle(o.Title)
	}

	colors := palette(len(groups))
	for i, g := range groups {
		xAxis := opts.XAxis{Type: "value", Name: "x (px)", NameLocation: "middle", NameGap: 25}
		yAxis := opts.YAxis{Type: "value", Name: "y (px)", NameLocation: "middle", NameGap: 30, Inverse: opts.Bool(true)}
		if o.MapWidth > 0 && o.MapHeight > 0 {
			xAxis.Min, xAxis.Max = 0, o.MapWidth
			yAxis.Min, yAxis.Max = 0, o.MapHeight
		}

		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{PageTitle: o.Title, Width: "900px", Height: "900px"}),
			charts.WithTitleOpts(opts.Title{Title: g.Label, Subtitle: fmt.Sprintf("runs=%d", len(g.Walks))}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
			charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
			charts.WithXAxisOpts(xAxis),
			charts.WithYAxisOpts(yAxis),
		)
		for j, walk := range g.Walks {
			data := make([]opts.LineData, walk.Len())
			for k := range data {
				pt := walk.At(k)
				data[k] = opts.LineData{Value: []interface{}{pt.X, pt.Y}}
			}
			line.AddSeries(fmt.Sprintf("%s #%d", g.Label, j+1), data,
				charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
				charts.WithLineStyleOpts(opts.LineStyle{Color: hexColor(colors[i]), Width: 1}),
			)
		}
		page.AddCharts(line)
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render preview: %w", err)
	}
	return nil
}
