// Command sillywalks generates plausible walking trajectories on occupancy
// maps and stores them in archives.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/banshee-data/sillywalks/internal/config"
	"github.com/banshee-data/sillywalks/internal/db"
	"github.com/banshee-data/sillywalks/internal/fsutil"
	"github.com/banshee-data/sillywalks/internal/monitoring"
	"github.com/banshee-data/sillywalks/internal/trace"
	"github.com/banshee-data/sillywalks/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sillywalks",
		Short: "Generate walking trajectories on occupancy maps",
		Long: `sillywalks turns a coarse seed path drawn on a map into many plausible
walking trajectories. Walks are refined by interpolation or by a
Gaussian-process ensemble, perturbed with noise and rejected until they
stay on free cells of the map.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			quiet, _ := cmd.Flags().GetBool("quiet")
			if quiet {
				monitoring.SetLogger(nil)
			} else {
				monitoring.SetLogger(log.Printf)
			}
		},
	}

	rootCmd.PersistentFlags().String("settings", config.DefaultSettingsPath, "Settings file (.yaml)")
	rootCmd.PersistentFlags().String("db", db.DefaultPath, "Bookkeeping database for traces and stored simulations")
	rootCmd.PersistentFlags().Bool("quiet", false, "Suppress progress logging")

	rootCmd.AddCommand(
		newVersionCmd(),
		newBatchCmd(),
		newGenerateCmd(),
		newSimulateCmd(),
		newPreviewCmd(),
		newPlotCmd(),
		newSettingsCmd(),
		newTraceCmd(),
		newSimsCmd(),
		newMigrateCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	path, _ := cmd.Flags().GetString("settings")
	return config.LoadSettings(fsutil.OSFileSystem{}, path)
}

func openStore(cmd *cobra.Command) (*db.DB, error) {
	path, _ := cmd.Flags().GetString("db")
	store, err := db.OpenDB(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	return store, nil
}

// addSeedFlags registers the flags read by seedFromFlags.
func addSeedFlags(cmd *cobra.Command) {
	cmd.Flags().String("x", "", `Seed x coordinates, e.g. "[10 20 30]"`)
	cmd.Flags().String("y", "", `Seed y coordinates, e.g. "[5 5 5]"`)
	cmd.Flags().Bool("from-db", false, "Use the trace stored in the database as the seed")
}

// seedFromFlags returns the seed trace given by --x/--y, or the stored
// trace when --from-db is set.
func seedFromFlags(cmd *cobra.Command) (trace.Trace, error) {
	fromDB, _ := cmd.Flags().GetBool("from-db")
	if fromDB {
		store, err := openStore(cmd)
		if err != nil {
			return trace.Trace{}, err
		}
		defer store.Close()
		tr, err := store.DumpTrace()
		if err != nil {
			return trace.Trace{}, err
		}
		if tr.IsEmpty() {
			return trace.Trace{}, fmt.Errorf("%w: the stored trace is empty", trace.ErrInvalidInput)
		}
		return tr, nil
	}

	xs, _ := cmd.Flags().GetString("x")
	ys, _ := cmd.Flags().GetString("y")
	if xs == "" || ys == "" {
		return trace.Trace{}, fmt.Errorf("either --x and --y or --from-db is required")
	}
	x, err := trace.ParseArray(xs)
	if err != nil {
		return trace.Trace{}, fmt.Errorf("--x: %w", err)
	}
	y, err := trace.ParseArray(ys)
	if err != nil {
		return trace.Trace{}, fmt.Errorf("--y: %w", err)
	}
	return trace.FromXY(x, y)
}

// withExt replaces the extension of path.
func withExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
