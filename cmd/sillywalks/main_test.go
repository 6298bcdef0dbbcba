package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sillywalks/internal/archive"
	"github.com/banshee-data/sillywalks/internal/fsutil"
	"github.com/banshee-data/sillywalks/internal/testutil"
)

// workspace holds the per-test file locations passed to every command.
type workspace struct {
	dir      string
	settings string
	db       string
	mapPath  string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	dir := t.TempDir()
	ws := &workspace{
		dir:      dir,
		settings: filepath.Join(dir, "settings.yaml"),
		db:       filepath.Join(dir, "data.db"),
		mapPath:  filepath.Join(dir, "room.png"),
	}
	testutil.WriteMap(t, fsutil.OSFileSystem{}, ws.mapPath, testutil.OpenMap(60, 60))
	return ws
}

func (ws *workspace) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--quiet", "--settings", ws.settings, "--db", ws.db}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (ws *workspace) path(name string) string { return filepath.Join(ws.dir, name) }

func TestVersionCmd(t *testing.T) {
	out, err := newWorkspace(t).run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "sillywalks "), "got %q", out)
}

func TestSettingsCmd(t *testing.T) {
	ws := newWorkspace(t)

	_, err := ws.run(t, "settings", "init")
	require.NoError(t, err)
	assert.FileExists(t, ws.settings)

	_, err = ws.run(t, "settings", "init")
	assert.Error(t, err, "init must not overwrite without --force")
	_, err = ws.run(t, "settings", "init", "--force")
	assert.NoError(t, err)

	out, err := ws.run(t, "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "method: Interpolation")
	assert.NotContains(t, out, "# invalid")
}

func TestTraceCmd(t *testing.T) {
	ws := newWorkspace(t)
	for _, pt := range [][]string{{"10", "25"}, {"20", "25.5"}} {
		_, err := ws.run(t, "trace", "add", pt[0], pt[1])
		require.NoError(t, err)
	}

	out, err := ws.run(t, "trace", "list")
	require.NoError(t, err)
	assert.Equal(t, "x: [10 20]\ny: [25 25.5]\n", out)

	_, err = ws.run(t, "trace", "add", "ten", "1")
	assert.Error(t, err)

	_, err = ws.run(t, "trace", "clear")
	require.NoError(t, err)
	out, err = ws.run(t, "trace", "list")
	require.NoError(t, err)
	assert.Equal(t, "x: []\ny: []\n", out)
}

func TestBatchPreviewAndPlot(t *testing.T) {
	ws := newWorkspace(t)
	jobFile := ws.path("walks.batch")
	lines := []string{
		testutil.JobLine("kitchen", "Interpolation", "linear", ws.mapPath, 2),
		testutil.JobLine("bath", "Simulation", "RBF", ws.mapPath, 1),
		"not, a, job",
	}
	require.NoError(t, os.WriteFile(jobFile, []byte(strings.Join(lines, "\n")), 0o644))

	out, err := ws.run(t, "batch", jobFile, "--seed", "5", "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "skipped line 3")
	assert.Contains(t, out, "wrote 3 runs")

	archivePath := ws.path("walks.db")
	r, err := archive.Open(archivePath)
	require.NoError(t, err)
	labels, err := r.Labels()
	require.NoError(t, err)
	assert.Equal(t, []string{"kitchen", "bath"}, labels)
	require.NoError(t, r.Close())

	_, err = ws.run(t, "preview", archivePath)
	require.NoError(t, err)
	html, err := os.ReadFile(ws.path("walks.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "kitchen #1")

	plotPath := ws.path("custom.png")
	_, err = ws.run(t, "plot", archivePath, "-o", plotPath)
	require.NoError(t, err)
	assert.FileExists(t, plotPath)
}

func TestBatchWithoutJobs(t *testing.T) {
	ws := newWorkspace(t)
	jobFile := ws.path("empty.batch")
	require.NoError(t, os.WriteFile(jobFile, []byte("# nothing\n"), 0o644))
	_, err := ws.run(t, "batch", jobFile)
	assert.Error(t, err)

	_, err = ws.run(t, "batch", ws.path("missing.batch"))
	assert.Error(t, err)
}

func TestGenerateCmd(t *testing.T) {
	ws := newWorkspace(t)
	out := ws.path("gen.db")
	_, err := ws.run(t, "generate", "--map", ws.mapPath,
		"--x", "[10 20 30 40]", "--y", "[25 25 25 25]",
		"--seed", "3", "--runs", "2", "--label", "hall", "--out", out)
	require.NoError(t, err)

	r, err := archive.Open(out)
	require.NoError(t, err)
	defer r.Close()
	runs, err := r.Runs("hall")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 40, runs[0].Positions.Len(), "cubic with factor 10 over 4 points")
	assert.Equal(t, "generate", runs[0].Config.Origin)
}

func TestGenerateCmdNeedsSeed(t *testing.T) {
	ws := newWorkspace(t)
	_, err := ws.run(t, "generate", "--map", ws.mapPath, "--out", ws.path("x.db"))
	assert.Error(t, err)

	_, err = ws.run(t, "generate", "--map", ws.mapPath, "--from-db", "--out", ws.path("x.db"))
	assert.Error(t, err, "stored trace is empty")
}

func TestSimulateCmd(t *testing.T) {
	ws := newWorkspace(t)
	out := ws.path("ensemble.db")
	stdout, err := ws.run(t, "simulate", "--map", ws.mapPath,
		"--x", "[10 20 30]", "--y", "[30 30 30]", "--seed", "11", "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "of 20 members valid")

	r, err := archive.Open(out)
	require.NoError(t, err)
	defer r.Close()
	comment, err := r.Comment()
	require.NoError(t, err)
	assert.Contains(t, comment, "method:Simulation")
	_, err = r.Image(archive.ImageOriginalFrame)
	assert.NoError(t, err)
}

func TestSimsCmd(t *testing.T) {
	ws := newWorkspace(t)
	for _, x := range []string{"10", "20", "30", "40"} {
		_, err := ws.run(t, "trace", "add", x, "25")
		require.NoError(t, err)
	}

	_, err := ws.run(t, "sims", "add", "--map", ws.path("missing.png"), "--pre", "1", "--post", "0.5")
	assert.Error(t, err)

	out, err := ws.run(t, "sims", "add", "--map", ws.mapPath, "--pre", "1", "--post", "0.5", "--runs", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "stored simulation 1")

	out, err = ws.run(t, "sims", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Interpolation")
	assert.Contains(t, out, ws.mapPath)

	archivePath := ws.path("sims.db")
	out, err = ws.run(t, "sims", "run", "--seed", "2", "--out", archivePath)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 2 runs")
}

func TestMigrateCmd(t *testing.T) {
	ws := newWorkspace(t)

	out, err := ws.run(t, "migrate", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "version: 0\n")

	out, err = ws.run(t, "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "version: 2\n")

	out, err = ws.run(t, "migrate", "down")
	require.NoError(t, err)
	assert.Contains(t, out, "version: 1\n")

	_, err = ws.run(t, "migrate", "to", "two")
	assert.Error(t, err)

	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetIn(strings.NewReader("n\n"))
	cmd.SetArgs([]string{"--quiet", "--db", ws.db, "migrate", "force", "2"})
	assert.Error(t, cmd.Execute(), "force without confirmation")

	out, err = ws.run(t, "migrate", "force", "2", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "version: 2\ndirty: false")
}

func TestGenerateCmdCorrelatedPreNoise(t *testing.T) {
	ws := newWorkspace(t)
	out := ws.path("cov.db")
	args := []string{"generate", "--map", ws.mapPath,
		"--x", "[10 20 30 40]", "--y", "[25 25 25 25]", "--seed", "4", "--out", out}

	_, err := ws.run(t, append(args, "--pre-cov", "[1 0.5 0 1]")...)
	assert.Error(t, err, "asymmetric covariance")
	_, err = ws.run(t, append(args, "--pre-cov", "[1 0]")...)
	assert.Error(t, err, "wrong number of entries")

	_, err = ws.run(t, append(args, "--pre-cov", "[2 0.5 0.5 1]", "--runs", "2")...)
	require.NoError(t, err)
	r, err := archive.Open(out)
	require.NoError(t, err)
	defer r.Close()
	runs, err := r.Runs("walk")
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}
