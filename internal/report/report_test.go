package report

import (
	"bytes"
	"errors"
	"image/png"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sillywalks/internal/archive"
	"github.com/banshee-data/sillywalks/internal/config"
	"github.com/banshee-data/sillywalks/internal/monitoring"
	"github.com/banshee-data/sillywalks/internal/testutil"
	"github.com/banshee-data/sillywalks/internal/trace"
)

func init() {
	monitoring.SetLogger(nil)
}

func sampleGroups() []Group {
	return []Group{
		{Label: "kitchen", Walks: []trace.Trace{testutil.StraightSeed(10), testutil.StraightSeed(12)}},
		{Label: "bath", Walks: []trace.Trace{testutil.StraightSeed(30)}},
	}
}

func TestPlotPNG(t *testing.T) {
	var buf bytes.Buffer
	err := PlotPNG(&buf, sampleGroups(), testutil.OpenMap(40, 40), PlotOptions{Title: "walks"})
	require.NoError(t, err)

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 0)
}

func TestPlotPNGWithoutBackground(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PlotPNG(&buf, sampleGroups(), nil, PlotOptions{}))
	assert.NotZero(t, buf.Len())
}

func TestPreviewHTML(t *testing.T) {
	var buf bytes.Buffer
	err := PreviewHTML(&buf, sampleGroups(), PreviewOptions{Title: "preview", MapWidth: 40, MapHeight: 40})
	require.NoError(t, err)

	html := buf.String()
	assert.Contains(t, html, "kitchen #2")
	assert.Contains(t, html, "bath #1")
	assert.True(t, strings.Contains(html, "<html"), "not an HTML document")
}

func TestEmptyGroups(t *testing.T) {
	var buf bytes.Buffer
	assert.True(t, errors.Is(PlotPNG(&buf, nil, nil, PlotOptions{}), ErrNoRuns))
	assert.True(t, errors.Is(PreviewHTML(&buf, []Group{{Label: "x"}}, PreviewOptions{}), ErrNoRuns))
}

func TestCollect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walks.db")
	w, err := archive.Create(path)
	require.NoError(t, err)
	for _, label := range []string{"a", "b", "a"} {
		rec := &archive.Run{
			Positions: testutil.StraightSeed(5),
			Config:    archive.Metadata{Goal: label, Generation: config.NewInterpolation(config.KindLinear, 2)},
		}
		_, err := w.WriteRun(label, rec)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	r, err := archive.Open(path)
	require.NoError(t, err)
	defer r.Close()

	groups, err := Collect(r)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "a", groups[0].Label)
	assert.Len(t, groups[0].Walks, 2)
	assert.Len(t, groups[1].Walks, 1)
}

func TestPalette(t *testing.T) {
	assert.Nil(t, palette(0))
	cs := palette(3)
	require.Len(t, cs, 3)
	assert.NotEqual(t, hexColor(cs[0]), hexColor(cs[1]))
}
