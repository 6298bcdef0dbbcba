package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/banshee-data/sillywalks/internal/batch"
	"github.com/banshee-data/sillywalks/internal/db"
	"github.com/banshee-data/sillywalks/internal/trace"
)

func newTraceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Edit the seed trace kept in the database",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add X Y",
			Short: "Append one point to the stored trace",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				x, err := strconv.ParseFloat(args[0], 64)
				if err != nil {
					return fmt.Errorf("invalid x %q: %w", args[0], err)
				}
				y, err := strconv.ParseFloat(args[1], 64)
				if err != nil {
					return fmt.Errorf("invalid y %q: %w", args[1], err)
				}
				store, err := openStore(cmd)
				if err != nil {
					return err
				}
				defer store.Close()
				return store.AddTracePoint(x, y)
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "Print the stored trace",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := openStore(cmd)
				if err != nil {
					return err
				}
				defer store.Close()
				tr, err := store.DumpTrace()
				if err != nil {
					return err
				}
				xs, ys := tr.XY()
				fmt.Fprintf(cmd.OutOrStdout(), "x: %s\ny: %s\n", trace.FormatArray(xs), trace.FormatArray(ys))
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete the stored trace",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := openStore(cmd)
				if err != nil {
					return err
				}
				defer store.Close()
				return store.ClearTrace()
			},
		},
	)
	return cmd
}

func newSimsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sims",
		Short: "Store simulation requests and run them later",
	}
	cmd.AddCommand(newSimsAddCmd(), newSimsListCmd(), newSimsRunCmd())
	return cmd
}

func newSimsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Store the current trace and settings as a simulation request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			gen, err := settings.Resolve()
			if err != nil {
				return err
			}
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()
			tr, err := store.DumpTrace()
			if err != nil {
				return err
			}

			sim := &db.Simulation{Trace: tr, Specific: gen}
			sim.MapPath, _ = cmd.Flags().GetString("map")
			sim.Length, _ = cmd.Flags().GetInt("length")
			sim.NRuns, _ = cmd.Flags().GetInt("runs")
			sim.SigmaPre, _ = cmd.Flags().GetFloat64("pre")
			sim.SigmaPost, _ = cmd.Flags().GetFloat64("post")
			if sim.Length == 0 {
				sim.Length = tr.Len()
			}
			if sim.NRuns == 0 {
				sim.NRuns = gen.NrRuns
			}
			if !cmd.Flags().Changed("pre") {
				sim.SigmaPre = gen.PreNoise
			}
			if !cmd.Flags().Changed("post") {
				sim.SigmaPost = gen.PostNoise
			}
			if err := store.AddSimulation(sim); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored simulation %d\n", sim.ID)
			return nil
		},
	}
	cmd.Flags().String("map", "", "Occupancy map image")
	cmd.Flags().Int("length", 0, "Trajectory length (default: stored trace length)")
	cmd.Flags().Int("runs", 0, "Number of walks (default: settings nr_runs)")
	cmd.Flags().Float64("pre", 0, "Pre-noise sigma (default: settings pre_noise)")
	cmd.Flags().Float64("post", 0, "Post-noise sigma (default: settings post_noise)")
	cmd.MarkFlagRequired("map")
	return cmd
}

func newSimsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored simulation requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()
			sims, err := store.Simulations()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tPOINTS\tRUNS\tPRE\tPOST\tMAP\tCREATED")
			for _, s := range sims {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%g\t%g\t%s\t%s\n", s.ID, s.Specific.Method, s.Trace.Len(),
					s.NRuns, s.SigmaPre, s.SigmaPost, s.MapPath, s.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}
}

func newSimsRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every stored simulation request into one archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			sims, err := store.Simulations()
			store.Close()
			if err != nil {
				return err
			}
			if len(sims) == 0 {
				return fmt.Errorf("no stored simulations")
			}
			outPath, _ := cmd.Flags().GetString("out")
			report, err := runJobs(cmd, batch.FromSimulations(sims), outPath)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report, outPath)
			return nil
		},
	}
	addRunnerFlags(cmd)
	cmd.Flags().StringP("out", "o", defaultArchive, "Output archive")
	return cmd
}
