package main

import (
	"fmt"
	"io"
	"runtime"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/banshee-data/sillywalks/internal/archive"
	"github.com/banshee-data/sillywalks/internal/batch"
	"github.com/banshee-data/sillywalks/internal/fsutil"
	"github.com/banshee-data/sillywalks/internal/noise"
	"github.com/banshee-data/sillywalks/internal/trace"
)

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch FILE",
		Short: "Run every job of a job file into one archive",
		Long: `Run every job of a job file into one archive.

Each line of the job file is

  goal, origin, nr_runs, method, kind, factor, pre_noise, post_noise, map, [x...], [y...]

Malformed lines are reported and skipped. The archive defaults to the job
file name with a .db extension.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fsys := fsutil.OSFileSystem{}
			jobs, skipped, err := batch.ParseFile(fsys, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range skipped {
				fmt.Fprintf(out, "skipped %s\n", s)
			}
			if len(jobs) == 0 {
				return fmt.Errorf("no runnable jobs in %s", args[0])
			}

			outPath, _ := cmd.Flags().GetString("out")
			if outPath == "" {
				outPath = withExt(args[0], ".db")
			}
			report, err := runJobs(cmd, jobs, outPath)
			if err != nil {
				return err
			}
			report.Skipped = skipped
			printReport(out, report, outPath)
			return nil
		},
	}
	addRunnerFlags(cmd)
	cmd.Flags().StringP("out", "o", "", "Output archive (default: job file with .db extension)")
	return cmd
}

func addRunnerFlags(cmd *cobra.Command) {
	cmd.Flags().Int("workers", runtime.GOMAXPROCS(0), "Jobs generated concurrently")
	cmd.Flags().Uint64("seed", 0, "Random seed (0 picks one and reports it)")
	cmd.Flags().Bool("derivatives", true, "Store velocity and acceleration with every run")
	cmd.Flags().String("pre-cov", "", `Correlated pre-noise covariance "[sxx sxy syx syy]" (replaces pre_noise)`)
}

// preCovFromFlags parses --pre-cov; an empty flag gives nil.
func preCovFromFlags(cmd *cobra.Command) (*[2][2]float64, error) {
	raw, _ := cmd.Flags().GetString("pre-cov")
	if raw == "" {
		return nil, nil
	}
	vals, err := trace.ParseArray(raw)
	if err != nil {
		return nil, fmt.Errorf("--pre-cov: %w", err)
	}
	if len(vals) != 4 {
		return nil, fmt.Errorf("--pre-cov: want 4 values, got %d", len(vals))
	}
	cov := [2][2]float64{{vals[0], vals[1]}, {vals[2], vals[3]}}
	if _, err := noise.CheckCovariance(cov); err != nil {
		return nil, fmt.Errorf("--pre-cov: %w", err)
	}
	return &cov, nil
}

// runJobs runs jobs with the runner flags of cmd into a new archive at
// outPath.
func runJobs(cmd *cobra.Command, jobs []batch.Job, outPath string) (*batch.Report, error) {
	settings, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	workers, _ := cmd.Flags().GetInt("workers")
	seed, _ := cmd.Flags().GetUint64("seed")
	derivatives, _ := cmd.Flags().GetBool("derivatives")
	preCov, err := preCovFromFlags(cmd)
	if err != nil {
		return nil, err
	}

	w, err := archive.Create(outPath)
	if err != nil {
		return nil, err
	}
	r := &batch.Runner{
		Settings:    settings,
		FS:          fsutil.OSFileSystem{},
		Workers:     workers,
		Seed:        seed,
		Derivatives: derivatives,
		PreCov:      preCov,
	}
	report, err := r.Run(cmd.Context(), jobs, w)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	return report, nil
}

func printReport(out io.Writer, report *batch.Report, path string) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tGOAL\tWRITTEN\tEXHAUSTED\tERROR")
	for _, j := range report.Jobs {
		errText := ""
		if j.Err != nil {
			errText = j.Err.Error()
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\n", j.Job.Line, j.Job.Goal, j.Written, j.Exhausted, errText)
	}
	tw.Flush()
	fmt.Fprintf(out, "wrote %d runs to %s (seed %d, %d failed jobs, %d skipped lines)\n",
		report.Runs(), path, report.Seed, report.Failed(), len(report.Skipped))
}
