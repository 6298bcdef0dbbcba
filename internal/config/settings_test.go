package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sillywalks/internal/fsutil"
)

func TestDefaultSettingsAreValid(t *testing.T) {
	s := DefaultSettings()
	g, err := s.Resolve()
	require.NoError(t, err)
	assert.Equal(t, MethodInterpolation, g.Method)
	assert.Equal(t, KindCubic, g.Interpolation.Kind)

	s.Generation.Method = MethodSimulation
	g, err = s.Resolve()
	require.NoError(t, err)
	assert.Nil(t, g.Interpolation)
	assert.Equal(t, 20, g.Simulation.NTotal)
}

func TestLoadSettingsMissingFileGivesDefaults(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	s, err := LoadSettings(mfs, "/cfg/settings.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
}

func TestSettingsRoundTrip(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	g := NewSimulation(SimulationParams{
		NTotal: 8, LenTotal: 100, NBase: 2, LenBase: 10,
		BaseType: BaseNormal, BasePath: "profiles/hall.npy",
		LengthScale: 3.5, Scale: 2, CovType: CovMatern,
	})
	g.PreNoise = 1.5
	g.PostNoise = 0.25
	g.NrRuns = 4
	g.Label = "hall"

	s := SettingsFrom(nil, g)
	require.NoError(t, SaveSettings(mfs, "/cfg/settings.yaml", s))
	assert.True(t, fsutil.Exists(mfs, "/cfg"))

	loaded, err := LoadSettings(mfs, "/cfg/settings.yaml")
	require.NoError(t, err)
	assert.Equal(t, s, loaded)

	back, err := loaded.Resolve()
	require.NoError(t, err)
	assert.Equal(t, g, back)

	// The interpolation fields from the defaults survive a switch to
	// simulation.
	assert.Equal(t, KindCubic, loaded.Generation.Kind)
}

func TestLoadSettingsPartial(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	yml := "defaults:\n  nr_runs: 7\ngeneration:\n  method: Interpolation\n  kind: linear\n"
	require.NoError(t, mfs.WriteFile("/s.yml", []byte(yml), 0o644))

	s, err := LoadSettings(mfs, "/s.yml")
	require.NoError(t, err)
	assert.Equal(t, 7, s.Defaults.NrRuns)
	assert.Equal(t, KindLinear, s.Generation.Kind)
	assert.Equal(t, 10, s.Generation.Factor, "absent keys keep defaults")
	assert.Equal(t, "walk", s.Defaults.Label)
}

func TestLoadSettingsErrors(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.WriteFile("/bad.yaml", []byte("defaults: [1, 2"), 0o644))
	require.NoError(t, mfs.WriteFile("/big.yaml", []byte(strings.Repeat("#", maxSettingsSize+1)), 0o644))

	_, err := LoadSettings(mfs, "/settings.json")
	assert.ErrorContains(t, err, "extension")

	_, err = LoadSettings(mfs, "/bad.yaml")
	assert.True(t, errors.Is(err, ErrInvalidConfig), "err = %v", err)

	_, err = LoadSettings(mfs, "/big.yaml")
	assert.ErrorContains(t, err, "too large")
}

func TestSettingsGenerationInvalid(t *testing.T) {
	s := DefaultSettings()
	s.Generation.Method = "Teleport"
	_, err := s.Resolve()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestResolveReadsGenerationSection(t *testing.T) {
	s := DefaultSettings()
	s.Generation.MaxAttempts = 7
	s.Generation.Method = MethodSimulation
	s.Generation.NTotal = 8
	s.Generation.NBase = 2
	s.Generation.CovType = CovMatern

	g, err := s.Resolve()
	require.NoError(t, err)
	assert.Equal(t, 7, g.MaxAttempts)
	require.NotNil(t, g.Simulation)
	assert.Equal(t, 8, g.Simulation.NTotal)
	assert.Equal(t, CovMatern, g.Simulation.CovType)
	assert.Equal(t, s.SimulationParams(), *g.Simulation)
}
