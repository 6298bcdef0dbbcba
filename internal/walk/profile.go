package walk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sbinet/npyio"

	"github.com/banshee-data/sillywalks/internal/config"
	"github.com/banshee-data/sillywalks/internal/fsutil"
)

// UnitProfile is used when no variance profile path is configured.
var UnitProfile = []float64{1}

// LoadProfile reads a per-segment variance profile. The format follows the
// extension: .npy (NumPy float64 array), .json (array of numbers), anything
// else is read as numbers separated by whitespace or commas. An empty path
// returns UnitProfile.
func LoadProfile(fsys fsutil.FileSystem, path string) ([]float64, error) {
	if path == "" {
		return append([]float64(nil), UnitProfile...), nil
	}
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read variance profile %s: %w", path, err)
	}

	var profile []float64
	switch strings.ToLower(filepath.Ext(path)) {
	case ".npy":
		if err := npyio.Read(bytes.NewReader(data), &profile); err != nil {
			return nil, fmt.Errorf("%w: failed to decode %s: %v", config.ErrInvalidConfig, path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &profile); err != nil {
			return nil, fmt.Errorf("%w: failed to decode %s: %v", config.ErrInvalidConfig, path, err)
		}
	default:
		profile, err = parseProfileText(string(data))
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse %s: %v", config.ErrInvalidConfig, path, err)
		}
	}
	if err := checkProfile(profile); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return profile, nil
}

// SaveProfile writes profile as a .npy array.
func SaveProfile(fsys fsutil.FileSystem, path string, profile []float64) error {
	if err := checkProfile(profile); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := npyio.Write(&buf, profile); err != nil {
		return fmt.Errorf("failed to encode variance profile: %w", err)
	}
	if err := fsys.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write variance profile %s: %w", path, err)
	}
	return nil
}

func parseProfileText(s string) ([]float64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
