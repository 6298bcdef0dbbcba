package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/banshee-data/sillywalks/internal/config"
	"github.com/banshee-data/sillywalks/internal/fsutil"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Create or inspect the settings file",
	}
	cmd.AddCommand(newSettingsInitCmd(), newSettingsShowCmd())
	return cmd
}

func newSettingsInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default settings file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("settings")
			force, _ := cmd.Flags().GetBool("force")
			fsys := fsutil.OSFileSystem{}
			if fsutil.Exists(fsys, path) && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.SaveSettings(fsys, path, config.DefaultSettings()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing settings file")
	return cmd
}

func newSettingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings and check them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(s)
			if err != nil {
				return fmt.Errorf("failed to encode settings: %w", err)
			}
			out := cmd.OutOrStdout()
			out.Write(data)
			if _, err := s.Resolve(); err != nil {
				fmt.Fprintf(out, "# invalid: %v\n", err)
			}
			return nil
		},
	}
}
