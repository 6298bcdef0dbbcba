package walk

import (
	"fmt"

	"github.com/banshee-data/sillywalks/internal/trace"
)

// Paths is an ensemble of equally long point sequences, indexed
// [path][step].
type Paths [][]trace.Point

func newPaths(n, length int) Paths {
	backing := make([]trace.Point, n*length)
	p := make(Paths, n)
	for i := range p {
		p[i] = backing[i*length : (i+1)*length : (i+1)*length]
	}
	return p
}

// Shape returns the number of paths and their common length.
func (p Paths) Shape() (n, length int) {
	if len(p) == 0 {
		return 0, 0
	}
	return len(p), len(p[0])
}

// Trace returns path i as a Trace.
func (p Paths) Trace(i int) (trace.Trace, error) {
	if i < 0 || i >= len(p) {
		return trace.Trace{}, fmt.Errorf("path %d out of range [0,%d)", i, len(p))
	}
	return trace.New(p[i])
}

// Traces converts every path.
func (p Paths) Traces() ([]trace.Trace, error) {
	out := make([]trace.Trace, len(p))
	for i := range p {
		tr, err := p.Trace(i)
		if err != nil {
			return nil, err
		}
		out[i] = tr
	}
	return out, nil
}
