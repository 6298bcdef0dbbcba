// Package monitoring holds the diagnostic logging hook shared by the
// generation pipeline, the batch runner and the storage layers.
package monitoring

import (
	"fmt"
	"log"
	"sync"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Recorder collects formatted log lines. It is safe for concurrent use, so
// it can stand in for Logf while batch workers run.
type Recorder struct {
	mu    sync.Mutex
	lines []string
}

// Logf formats and stores one line.
func (r *Recorder) Logf(format string, v ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, fmt.Sprintf(format, v...))
}

// Lines returns a copy of the recorded lines.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// Capture routes Logf into a new Recorder and returns it with a function
// that restores the previous logger.
func Capture() (*Recorder, func()) {
	prev := Logf
	r := &Recorder{}
	Logf = r.Logf
	return r, func() { Logf = prev }
}
