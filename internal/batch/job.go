// Package batch reads generation job files and runs them into an archive.
//
// A job file has one comma-separated job per line:
//
//	goal, origin, nr_runs, method, kind, factor, pre_noise, post_noise, map, [x...], [y...]
//
// Blank lines and lines starting with '#' are skipped.
package batch

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/sillywalks/internal/archive"
	"github.com/banshee-data/sillywalks/internal/config"
	"github.com/banshee-data/sillywalks/internal/fsutil"
	"github.com/banshee-data/sillywalks/internal/trace"
)

// ErrMalformedInput marks batch lines that cannot be parsed.
var ErrMalformedInput = errors.New("malformed batch input")

const jobFields = 11

const maxJobFileSize = 10 * 1024 * 1024 // 10MB

// LineError reports a skipped line of a job file.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e *LineError) Unwrap() error { return e.Err }

// Job is one line of a job file.
type Job struct {
	Line      int
	Goal      string
	Origin    string
	NrRuns    int
	Method    config.Method
	Kind      string
	Factor    int
	PreNoise  float64
	PostNoise float64
	MapPath   string
	SeedX     []float64
	SeedY     []float64

	// Preset, when set, supplies the method parameters instead of Method,
	// Kind, Factor and the settings file. Jobs built from stored
	// simulations use it.
	Preset *config.Generation
}

// Seed returns the job's seed trace.
func (j Job) Seed() (trace.Trace, error) { return trace.FromXY(j.SeedX, j.SeedY) }

// Generation builds the job's configuration. Simulation jobs take their
// parameters from s; a kind naming a covariance kernel overrides its
// cov_type.
func (j Job) Generation(s *config.Settings) (config.Generation, error) {
	var g config.Generation
	switch {
	case j.Preset != nil:
		g = *j.Preset
	case j.Method == config.MethodInterpolation:
		g = config.NewInterpolation(j.Kind, j.Factor)
	case j.Method == config.MethodSimulation:
		if s == nil {
			s = config.DefaultSettings()
		}
		p := s.SimulationParams()
		if j.Kind == config.CovRBF || j.Kind == config.CovMatern {
			p.CovType = j.Kind
		}
		g = config.NewSimulation(p)
	default:
		return config.Generation{}, fmt.Errorf("%w: unknown method %q", config.ErrInvalidConfig, j.Method)
	}
	g.PreNoise = j.PreNoise
	g.PostNoise = j.PostNoise
	g.NrRuns = j.NrRuns
	g.Label = j.Goal
	if s != nil && j.Preset == nil {
		g.MaxAttempts = s.Generation.MaxAttempts
	}
	if err := g.Validate(); err != nil {
		return config.Generation{}, err
	}
	return g, nil
}

// Metadata returns the archive metadata for runs of this job.
func (j Job) Metadata(g config.Generation) archive.Metadata {
	return archive.Metadata{
		Goal:       j.Goal,
		Origin:     j.Origin,
		MapPath:    j.MapPath,
		SeedX:      j.SeedX,
		SeedY:      j.SeedY,
		Generation: g,
	}
}

// Parse reads jobs from r. Malformed lines are returned as *LineError and
// do not stop parsing; the returned error is only set when r fails.
func Parse(r io.Reader) ([]Job, []error, error) {
	var (
		jobs    []Job
		skipped []error
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxJobFileSize)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		job, err := parseLine(text)
		if err != nil {
			skipped = append(skipped, &LineError{Line: line, Err: err})
			continue
		}
		job.Line = line
		jobs = append(jobs, job)
	}
	if err := sc.Err(); err != nil {
		return jobs, skipped, fmt.Errorf("failed to read job file: %w", err)
	}
	return jobs, skipped, nil
}

// ParseFile reads the job file at path through fsys. A missing or
// oversized file is an error; malformed lines are returned as in Parse.
func ParseFile(fsys fsutil.FileSystem, path string) ([]Job, []error, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat job file: %w", err)
	}
	if info.Size() > maxJobFileSize {
		return nil, nil, fmt.Errorf("job file too large: %d bytes (max %d bytes)", info.Size(), maxJobFileSize)
	}
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read job file: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

func parseLine(text string) (Job, error) {
	p := strings.Split(text, ",")
	if len(p) != jobFields {
		return Job{}, fmt.Errorf("%w: want %d fields, got %d", ErrMalformedInput, jobFields, len(p))
	}
	for i := range p {
		p[i] = strings.TrimSpace(p[i])
	}

	j := Job{
		Goal:    p[0],
		Origin:  p[1],
		Method:  config.Method(p[3]),
		Kind:    p[4],
		MapPath: p[8],
	}
	if j.Goal == "" {
		return Job{}, fmt.Errorf("%w: empty goal", ErrMalformedInput)
	}
	var err error
	if j.NrRuns, err = strconv.Atoi(p[2]); err != nil || j.NrRuns < 0 {
		return Job{}, fmt.Errorf("%w: nr_runs %q", ErrMalformedInput, p[2])
	}
	if j.Factor, err = strconv.Atoi(p[5]); err != nil {
		return Job{}, fmt.Errorf("%w: factor %q", ErrMalformedInput, p[5])
	}
	if j.PreNoise, err = strconv.ParseFloat(p[6], 64); err != nil {
		return Job{}, fmt.Errorf("%w: pre_noise %q", ErrMalformedInput, p[6])
	}
	if j.PostNoise, err = strconv.ParseFloat(p[7], 64); err != nil {
		return Job{}, fmt.Errorf("%w: post_noise %q", ErrMalformedInput, p[7])
	}
	if j.SeedX, err = trace.ParseArray(p[9]); err != nil {
		return Job{}, fmt.Errorf("%w: x: %v", ErrMalformedInput, err)
	}
	if j.SeedY, err = trace.ParseArray(p[10]); err != nil {
		return Job{}, fmt.Errorf("%w: y: %v", ErrMalformedInput, err)
	}
	if len(j.SeedX) != len(j.SeedY) {
		return Job{}, fmt.Errorf("%w: x has %d values, y has %d", ErrMalformedInput, len(j.SeedX), len(j.SeedY))
	}
	return j, nil
}

// Comment summarizes jobs for the archive comment, one "Simulation Nr. i:"
// block per job.
func Comment(jobs []Job) string {
	var b strings.Builder
	for i, j := range jobs {
		fmt.Fprintf(&b, "Simulation Nr. %d:\n", i)
		fields := []string{
			"Goal:" + j.Goal,
			"Origin:" + j.Origin,
			"nr_runs:" + strconv.Itoa(j.NrRuns),
			"method:" + string(j.Method),
			"kind:" + j.Kind,
			"factor:" + strconv.Itoa(j.Factor),
			"pre_noise:" + strconv.FormatFloat(j.PreNoise, 'g', -1, 64),
			"post_noise:" + strconv.FormatFloat(j.PostNoise, 'g', -1, 64),
			"path:" + j.MapPath,
			"x:" + trace.FormatArray(j.SeedX),
			"y:" + trace.FormatArray(j.SeedY),
		}
		b.WriteString(strings.Join(fields, ", "))
		b.WriteByte('\n')
	}
	return b.String()
}
