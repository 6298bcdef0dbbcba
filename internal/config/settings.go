package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/sillywalks/internal/fsutil"
)

// DefaultSettingsPath is where the CLI looks for settings when no path is
// given.
const DefaultSettingsPath = "settings.yaml"

const maxSettingsSize = 1 * 1024 * 1024 // 1MB

// Settings is the persisted settings file. It has two flat sections:
// defaults shared by every job and the generation method with the fields
// of both variants. Only the fields for the selected method are used.
type Settings struct {
	Defaults   DefaultsSection   `yaml:"defaults"`
	Generation GenerationSection `yaml:"generation"`
}

// DefaultsSection holds the job-independent values.
type DefaultsSection struct {
	PreNoise  float64 `yaml:"pre_noise"`
	PostNoise float64 `yaml:"post_noise"`
	NrRuns    int     `yaml:"nr_runs"`
	Label     string  `yaml:"label"`
}

// GenerationSection is the flat key-value form of Generation.
type GenerationSection struct {
	Method      Method `yaml:"method"`
	MaxAttempts int    `yaml:"max_attempts,omitempty"`

	Kind   string `yaml:"kind,omitempty"`
	Factor int    `yaml:"factor,omitempty"`

	NTotal      int     `yaml:"n_total,omitempty"`
	LenTotal    int     `yaml:"len_total,omitempty"`
	NBase       int     `yaml:"n_base,omitempty"`
	LenBase     int     `yaml:"len_base,omitempty"`
	BaseType    string  `yaml:"base_type,omitempty"`
	BasePath    string  `yaml:"base_path,omitempty"`
	LengthScale float64 `yaml:"length_scale,omitempty"`
	Scale       float64 `yaml:"scale,omitempty"`
	CovType     string  `yaml:"cov_type,omitempty"`
}

// DefaultSettings returns the settings used when no file exists yet.
func DefaultSettings() *Settings {
	return &Settings{
		Defaults: DefaultsSection{
			PreNoise:  1,
			PostNoise: 0,
			NrRuns:    1,
			Label:     "walk",
		},
		Generation: GenerationSection{
			Method:      MethodInterpolation,
			Kind:        KindCubic,
			Factor:      10,
			NTotal:      20,
			LenTotal:    200,
			NBase:       4,
			LenBase:     20,
			BaseType:    BaseLinear,
			LengthScale: 10,
			Scale:       1,
			CovType:     CovRBF,
		},
	}
}

// Resolve converts the settings into a validated Generation.
func (s *Settings) Resolve() (Generation, error) {
	g := Generation{
		PreNoise:    s.Defaults.PreNoise,
		PostNoise:   s.Defaults.PostNoise,
		NrRuns:      s.Defaults.NrRuns,
		Label:       s.Defaults.Label,
		MaxAttempts: s.Generation.MaxAttempts,
		Method:      s.Generation.Method,
	}
	switch g.Method {
	case MethodInterpolation:
		g.Interpolation = &InterpolationParams{Kind: s.Generation.Kind, Factor: s.Generation.Factor}
	case MethodSimulation:
		sp := s.SimulationParams()
		g.Simulation = &sp
	}
	if err := g.Validate(); err != nil {
		return Generation{}, err
	}
	return g, nil
}

// SimulationParams returns the simulation fields regardless of the selected
// method. Batch jobs use these when a line requests a simulation.
func (s *Settings) SimulationParams() SimulationParams {
	gs := s.Generation
	return SimulationParams{
		NTotal:      gs.NTotal,
		LenTotal:    gs.LenTotal,
		NBase:       gs.NBase,
		LenBase:     gs.LenBase,
		BaseType:    gs.BaseType,
		BasePath:    gs.BasePath,
		LengthScale: gs.LengthScale,
		Scale:       gs.Scale,
		CovType:     gs.CovType,
	}
}

// SettingsFrom builds settings from g. Fields of the unused variant keep
// the values from base, so switching method does not lose them.
func SettingsFrom(base *Settings, g Generation) *Settings {
	out := *DefaultSettings()
	if base != nil {
		out = *base
	}
	out.Defaults = DefaultsSection{
		PreNoise:  g.PreNoise,
		PostNoise: g.PostNoise,
		NrRuns:    g.NrRuns,
		Label:     g.Label,
	}
	out.Generation.Method = g.Method
	out.Generation.MaxAttempts = g.MaxAttempts
	if p := g.Interpolation; p != nil {
		out.Generation.Kind = p.Kind
		out.Generation.Factor = p.Factor
	}
	if p := g.Simulation; p != nil {
		out.Generation.NTotal = p.NTotal
		out.Generation.LenTotal = p.LenTotal
		out.Generation.NBase = p.NBase
		out.Generation.LenBase = p.LenBase
		out.Generation.BaseType = p.BaseType
		out.Generation.BasePath = p.BasePath
		out.Generation.LengthScale = p.LengthScale
		out.Generation.Scale = p.Scale
		out.Generation.CovType = p.CovType
	}
	return &out
}

func checkSettingsPath(path string) (string, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".yaml" && ext != ".yml" {
		return "", fmt.Errorf("settings file must have .yaml or .yml extension, got %q", ext)
	}
	return cleanPath, nil
}

// LoadSettings reads settings from path. A missing file yields
// DefaultSettings. Keys absent from the file keep their default values.
func LoadSettings(fsys fsutil.FileSystem, path string) (*Settings, error) {
	cleanPath, err := checkSettingsPath(path)
	if err != nil {
		return nil, err
	}

	info, err := fsys.Stat(cleanPath)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat settings file: %w", err)
	}
	if info.Size() > maxSettingsSize {
		return nil, fmt.Errorf("settings file too large: %d bytes (max %d)", info.Size(), maxSettingsSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	s := DefaultSettings()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("%w: failed to parse settings YAML: %v", ErrInvalidConfig, err)
	}
	return s, nil
}

// SaveSettings writes s to path, creating the parent directory.
func SaveSettings(fsys fsutil.FileSystem, path string, s *Settings) error {
	cleanPath, err := checkSettingsPath(path)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create settings directory: %w", err)
		}
	}
	if err := fsys.WriteFile(cleanPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}
