package main

import (
	"fmt"
	"image"

	"github.com/spf13/cobra"

	"github.com/banshee-data/sillywalks/internal/archive"
	"github.com/banshee-data/sillywalks/internal/batch"
	"github.com/banshee-data/sillywalks/internal/config"
	"github.com/banshee-data/sillywalks/internal/fsutil"
	"github.com/banshee-data/sillywalks/internal/generate"
	"github.com/banshee-data/sillywalks/internal/noise"
	"github.com/banshee-data/sillywalks/internal/occupancy"
	"github.com/banshee-data/sillywalks/internal/trace"
	"github.com/banshee-data/sillywalks/internal/validation"
	"github.com/banshee-data/sillywalks/internal/walk"
)

const defaultArchive = "walks.db"

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate walks from one seed trace with the configured method",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			gen, err := settings.Resolve()
			if err != nil {
				return err
			}
			if label, _ := cmd.Flags().GetString("label"); label != "" {
				gen.Label = label
			}
			if runs, _ := cmd.Flags().GetInt("runs"); runs > 0 {
				gen.NrRuns = runs
			}
			seed, err := seedFromFlags(cmd)
			if err != nil {
				return err
			}
			mapPath, _ := cmd.Flags().GetString("map")
			xs, ys := seed.XY()

			job := batch.Job{
				Line:      1,
				Goal:      gen.Label,
				Origin:    "generate",
				NrRuns:    gen.NrRuns,
				Method:    gen.Method,
				PreNoise:  gen.PreNoise,
				PostNoise: gen.PostNoise,
				MapPath:   mapPath,
				SeedX:     xs,
				SeedY:     ys,
				Preset:    &gen,
			}
			if p := gen.Interpolation; p != nil {
				job.Kind, job.Factor = p.Kind, p.Factor
			} else {
				job.Kind = gen.Simulation.CovType
			}

			outPath, _ := cmd.Flags().GetString("out")
			report, err := runJobs(cmd, []batch.Job{job}, outPath)
			if err != nil {
				return err
			}
			if jr := report.Jobs[0]; jr.Err != nil {
				return jr.Err
			}
			printReport(cmd.OutOrStdout(), report, outPath)
			return nil
		},
	}
	addSeedFlags(cmd)
	addRunnerFlags(cmd)
	cmd.Flags().String("map", "", "Occupancy map image")
	cmd.Flags().StringP("out", "o", defaultArchive, "Output archive")
	cmd.Flags().String("label", "", "Goal label of the walks (default: settings label)")
	cmd.Flags().Int("runs", 0, "Number of walks (default: settings nr_runs)")
	cmd.MarkFlagRequired("map")
	return cmd
}

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Write the full simulated ensemble of one seed trace",
		Long: `Write the full simulated ensemble of one seed trace.

The seed gets pre-noise once, then every ensemble member is checked
against the map. Valid members are written to the archive; the others are
counted and dropped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			fsys := fsutil.OSFileSystem{}
			p := settings.SimulationParams()
			profile, err := walk.LoadProfile(fsys, p.BasePath)
			if err != nil {
				return err
			}
			mapPath, _ := cmd.Flags().GetString("map")
			grid, img, err := occupancy.LoadImage(fsys, mapPath)
			if err != nil {
				return err
			}
			seed, err := seedFromFlags(cmd)
			if err != nil {
				return err
			}
			seedValue, _ := cmd.Flags().GetUint64("seed")
			label, _ := cmd.Flags().GetString("label")
			if label == "" {
				label = settings.Defaults.Label
			}

			src := generate.NewSource(seedValue)
			start, err := noise.NewInjector(src).AddIndependent(seed, settings.Defaults.PreNoise)
			if err != nil {
				return err
			}
			sim, err := walk.NewSimulator(p, profile, src)
			if err != nil {
				return err
			}
			paths, err := sim.CreateTrajectories(start)
			if err != nil {
				return err
			}
			members, err := paths.Traces()
			if err != nil {
				return err
			}

			gen := config.NewSimulation(p)
			gen.PreNoise = settings.Defaults.PreNoise
			gen.NrRuns = len(members)
			gen.Label = label
			xs, ys := seed.XY()
			meta := archive.Metadata{Goal: label, Origin: "simulate", MapPath: mapPath, SeedX: xs, SeedY: ys, Generation: gen}

			outPath, _ := cmd.Flags().GetString("out")
			w, err := archive.Create(outPath)
			if err != nil {
				return err
			}
			written, err := writeMembers(w, label, members, grid, meta)
			if err == nil {
				err = writeFrame(w, img)
			}
			if err == nil {
				err = w.SetComment(batch.Comment([]batch.Job{{
					Goal: label, Origin: "simulate", NrRuns: len(members), Method: config.MethodSimulation,
					Kind: p.CovType, PreNoise: gen.PreNoise, MapPath: mapPath, SeedX: xs, SeedY: ys,
				}}))
			}
			if cerr := w.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d members valid, written to %s\n", written, len(members), outPath)
			return nil
		},
	}
	addSeedFlags(cmd)
	cmd.Flags().String("map", "", "Occupancy map image")
	cmd.Flags().StringP("out", "o", defaultArchive, "Output archive")
	cmd.Flags().String("label", "", "Goal label of the walks (default: settings label)")
	cmd.Flags().Uint64("seed", 0, "Random seed (0 seeds from the clock)")
	cmd.MarkFlagRequired("map")
	return cmd
}

// writeMembers writes every member that validates on grid, with its
// derivatives.
func writeMembers(w *archive.Writer, label string, members []trace.Trace, grid *occupancy.Grid, meta archive.Metadata) (int, error) {
	written := 0
	for _, m := range members {
		if ok, err := validation.Validate(m, grid); !ok || err != nil {
			continue
		}
		v := m.Diff()
		run := &archive.Run{
			Positions:    m,
			Velocity:     v,
			Acceleration: trace.Diff(v),
			Config:       meta,
			Attempts:     1,
		}
		if _, err := w.WriteRun(label, run); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func writeFrame(w *archive.Writer, img image.Image) error {
	for _, name := range []string{archive.ImageOriginalFrame, archive.ImageOriginalGoals} {
		if err := w.WriteImage(name, img); err != nil {
			return err
		}
	}
	return nil
}
