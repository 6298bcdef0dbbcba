package trace

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseArray parses a bracketed, space-separated list of numbers such as
// "[1 2 3.5]". The brackets are optional. An empty list is an error.
func ParseArray(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty array %q", ErrInvalidInput, s)
	}
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrInvalidInput, i, err)
		}
		out[i] = v
	}
	return out, nil
}

// FormatArray renders values in the bracketed form accepted by ParseArray.
func FormatArray(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
