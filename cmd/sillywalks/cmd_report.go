package main

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/banshee-data/sillywalks/internal/archive"
	"github.com/banshee-data/sillywalks/internal/fsutil"
	"github.com/banshee-data/sillywalks/internal/monitoring"
	"github.com/banshee-data/sillywalks/internal/occupancy"
	"github.com/banshee-data/sillywalks/internal/report"
)

func newPreviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview ARCHIVE",
		Short: "Render an interactive HTML preview of an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := archive.Open(args[0])
			if err != nil {
				return err
			}
			defer r.Close()
			groups, err := report.Collect(r)
			if err != nil {
				return err
			}

			o := report.PreviewOptions{Title: filepath.Base(args[0])}
			if frame, err := r.Image(archive.ImageOriginalFrame); err == nil {
				o.MapWidth, o.MapHeight = frame.Bounds().Dx(), frame.Bounds().Dy()
			} else if !errors.Is(err, archive.ErrNotFound) {
				return err
			}

			var buf bytes.Buffer
			if err := report.PreviewHTML(&buf, groups, o); err != nil {
				return err
			}
			outPath, _ := cmd.Flags().GetString("out")
			if outPath == "" {
				outPath = withExt(args[0], ".html")
			}
			return writeOutput(cmd, outPath, buf.Bytes())
		},
	}
	cmd.Flags().StringP("out", "o", "", "Output HTML file (default: archive with .html extension)")
	return cmd
}

func newPlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot ARCHIVE",
		Short: "Plot every walk of an archive over its map as a PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := archive.Open(args[0])
			if err != nil {
				return err
			}
			defer r.Close()
			groups, err := report.Collect(r)
			if err != nil {
				return err
			}

			var background image.Image
			if mapPath, _ := cmd.Flags().GetString("map"); mapPath != "" {
				if _, background, err = occupancy.LoadImage(fsutil.OSFileSystem{}, mapPath); err != nil {
					return err
				}
			} else if background, err = r.Image(archive.ImageOriginalFrame); errors.Is(err, archive.ErrNotFound) {
				monitoring.Logf("plot: %s has no map image, plotting without background", args[0])
				background = nil
			} else if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := report.PlotPNG(&buf, groups, background, report.PlotOptions{Title: filepath.Base(args[0])}); err != nil {
				return err
			}
			outPath, _ := cmd.Flags().GetString("out")
			if outPath == "" {
				outPath = withExt(args[0], ".png")
			}
			return writeOutput(cmd, outPath, buf.Bytes())
		},
	}
	cmd.Flags().String("map", "", "Background map (default: the map stored in the archive)")
	cmd.Flags().StringP("out", "o", "", "Output PNG file (default: archive with .png extension)")
	return cmd
}

func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}
