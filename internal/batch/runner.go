package batch

import (
	"context"
	"errors"
	"image"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/sillywalks/internal/archive"
	"github.com/banshee-data/sillywalks/internal/config"
	"github.com/banshee-data/sillywalks/internal/fsutil"
	"github.com/banshee-data/sillywalks/internal/generate"
	"github.com/banshee-data/sillywalks/internal/monitoring"
	"github.com/banshee-data/sillywalks/internal/occupancy"
	"github.com/banshee-data/sillywalks/internal/walk"
)

// JobReport is the outcome of one job.
type JobReport struct {
	Job       Job
	Written   int
	Exhausted int
	// Err is set when the job stopped early.
	Err error
}

// Report summarizes a batch.
type Report struct {
	Jobs []JobReport
	// Skipped holds the *LineError of every job-file line that was not run.
	Skipped []error
	Seed    uint64
}

// Runs returns the number of runs written.
func (r *Report) Runs() int {
	n := 0
	for _, j := range r.Jobs {
		n += j.Written
	}
	return n
}

// Failed returns the number of jobs that stopped with an error.
func (r *Report) Failed() int {
	n := 0
	for _, j := range r.Jobs {
		if j.Err != nil {
			n++
		}
	}
	return n
}

// Runner runs jobs into an archive.
type Runner struct {
	Settings *config.Settings
	FS       fsutil.FileSystem
	// Workers bounds concurrent jobs; values below 1 mean one.
	Workers int
	// Seed makes the batch reproducible; zero picks a random seed, which is
	// recorded in the Report.
	Seed uint64
	// Derivatives stores velocity and acceleration with every run.
	Derivatives bool
	// PreCov, when set, makes every job draw correlated pre-noise from it
	// instead of using the job's pre_noise.
	PreCov *[2][2]float64
}

type mapImage struct {
	grid *occupancy.Grid
	img  image.Image
	err  error
}

type jobResult struct {
	index  int
	runs   []*archive.Run
	report JobReport
}

// Run generates every job and writes the accepted runs to w in job order.
// Job failures are recorded in the Report; Run itself only fails when the
// archive cannot be written or ctx is cancelled. Runs of a job cancelled
// part way through are not written.
func (r *Runner) Run(ctx context.Context, jobs []Job, w *archive.Writer) (*Report, error) {
	seed := r.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	monitoring.Logf("batch: %d jobs, seed %d", len(jobs), seed)

	maps := r.loadMaps(jobs)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	results := make(chan jobResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	go func() {
		for i, job := range jobs {
			g.Go(func() error {
				results <- r.runJob(gctx, seed, i, job, maps[job.MapPath])
				return nil
			})
		}
		g.Wait()
		close(results)
	}()

	report := &Report{Jobs: make([]JobReport, len(jobs)), Seed: seed}
	pending := make(map[int]jobResult)
	next := 0
	var writeErr error
	for res := range results {
		pending[res.index] = res
		for writeErr == nil {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			ready.report.Written, writeErr = writeRuns(w, ready)
			report.Jobs[next] = ready.report
			next++
		}
		if writeErr != nil {
			cancel()
		}
	}
	if writeErr != nil {
		return report, writeErr
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	for _, job := range jobs {
		if m := maps[job.MapPath]; m.err == nil {
			for _, name := range []string{archive.ImageOriginalFrame, archive.ImageOriginalGoals} {
				if err := w.WriteImage(name, m.img); err != nil {
					return report, err
				}
			}
			break
		}
	}
	if err := w.SetComment(Comment(jobs)); err != nil {
		return report, err
	}
	return report, nil
}

func writeRuns(w *archive.Writer, res jobResult) (int, error) {
	for i, run := range res.runs {
		if _, err := w.WriteRun(res.report.Job.Goal, run); err != nil {
			return i, err
		}
	}
	return len(res.runs), nil
}

// loadMaps decodes each distinct map once.
func (r *Runner) loadMaps(jobs []Job) map[string]mapImage {
	fsys := r.fs()
	maps := make(map[string]mapImage)
	for _, job := range jobs {
		if _, ok := maps[job.MapPath]; ok {
			continue
		}
		var m mapImage
		m.grid, m.img, m.err = occupancy.LoadImage(fsys, job.MapPath)
		maps[job.MapPath] = m
	}
	return maps
}

func (r *Runner) fs() fsutil.FileSystem {
	if r.FS == nil {
		return fsutil.OSFileSystem{}
	}
	return r.FS
}

func (r *Runner) runJob(ctx context.Context, seed uint64, index int, job Job, m mapImage) jobResult {
	res := jobResult{index: index, report: JobReport{Job: job}}
	// A failed job commits nothing, including runs accepted before the
	// failure.
	fail := func(err error) jobResult {
		res.runs = nil
		res.report.Err = err
		monitoring.Logf("batch: job %d (line %d, %s) failed: %v", index, job.Line, job.Goal, err)
		return res
	}

	if m.err != nil {
		return fail(m.err)
	}
	gen, err := job.Generation(r.Settings)
	if err != nil {
		return fail(err)
	}
	tr, err := job.Seed()
	if err != nil {
		return fail(err)
	}
	src := generate.JobSource(seed, index)
	refiner, err := walk.NewRefiner(gen, r.fs(), src)
	if err != nil {
		return fail(err)
	}
	g := generate.New(gen, m.grid, refiner, src)
	g.Derivatives = r.Derivatives
	g.CheckSeed = true
	g.PreCov = r.PreCov

	meta := job.Metadata(gen)
	for n := 0; n < job.NrRuns; n++ {
		out, err := g.Generate(ctx, tr)
		if errors.Is(err, generate.ErrExhausted) {
			res.report.Exhausted++
			monitoring.Logf("batch: job %d run %d/%d: %v", index, n+1, job.NrRuns, err)
			continue
		}
		if err != nil {
			return fail(err)
		}
		res.runs = append(res.runs, &archive.Run{
			Positions:    out.Positions,
			Velocity:     out.Velocity,
			Acceleration: out.Acceleration,
			Config:       meta,
			Attempts:     out.Attempts,
		})
	}
	return res
}
