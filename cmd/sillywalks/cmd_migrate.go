package main

import (
	"bufio"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/banshee-data/sillywalks/internal/db"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Inspect or change the schema version of the bookkeeping database",
		Long: `Inspect or change the schema version of the bookkeeping database.

Every other command migrates the database to the latest version when it
opens it. These subcommands exist to roll back and to recover from a
failed migration.`,
	}
	cmd.AddCommand(
		migrateAction("status", "Print the current schema version", cobra.NoArgs, migrateStatus),
		migrateAction("up", "Apply all pending migrations", cobra.NoArgs,
			func(cmd *cobra.Command, sqlDB *sql.DB, args []string) error {
				if err := db.MigrateUp(sqlDB, db.MigrationsFS()); err != nil {
					return err
				}
				return migrateStatus(cmd, sqlDB, nil)
			}),
		migrateAction("down", "Roll back the most recent migration", cobra.NoArgs,
			func(cmd *cobra.Command, sqlDB *sql.DB, args []string) error {
				if err := db.MigrateDown(sqlDB, db.MigrationsFS()); err != nil {
					return err
				}
				return migrateStatus(cmd, sqlDB, nil)
			}),
		migrateAction("to VERSION", "Migrate up or down to VERSION", cobra.ExactArgs(1),
			func(cmd *cobra.Command, sqlDB *sql.DB, args []string) error {
				v, err := strconv.ParseUint(args[0], 10, 32)
				if err != nil {
					return fmt.Errorf("invalid version number: %s", args[0])
				}
				if err := db.MigrateTo(sqlDB, db.MigrationsFS(), uint(v)); err != nil {
					return err
				}
				return migrateStatus(cmd, sqlDB, nil)
			}),
		newMigrateForceCmd(),
	)
	return cmd
}

type migrateFunc func(cmd *cobra.Command, sqlDB *sql.DB, args []string) error

// migrateAction opens the database without migrating it and runs fn.
func migrateAction(use, short string, args cobra.PositionalArgs, fn migrateFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("db")
			sqlDB, err := db.OpenSQLite(path)
			if err != nil {
				return err
			}
			defer sqlDB.Close()
			return fn(cmd, sqlDB, args)
		},
	}
}

func migrateStatus(cmd *cobra.Command, sqlDB *sql.DB, _ []string) error {
	version, dirty, err := db.MigrateVersion(sqlDB, db.MigrationsFS())
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "version: %d\ndirty: %v\n", version, dirty)
	if dirty {
		fmt.Fprintln(out, "A migration failed part way through. Inspect the database, then run: sillywalks migrate force <version>")
	}
	return nil
}

func newMigrateForceCmd() *cobra.Command {
	cmd := migrateAction("force VERSION", "Set the schema version without migrating (recovery only)", cobra.ExactArgs(1),
		func(cmd *cobra.Command, sqlDB *sql.DB, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version number: %s", args[0])
			}
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				fmt.Fprintf(cmd.OutOrStdout(), "Forcing the schema version to %d. Continue? [y/N]: ", v)
				answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if a := strings.TrimSpace(answer); a != "y" && a != "Y" {
					return fmt.Errorf("aborted")
				}
			}
			if err := db.MigrateForce(sqlDB, db.MigrationsFS(), v); err != nil {
				return err
			}
			return migrateStatus(cmd, sqlDB, nil)
		})
	cmd.Flags().Bool("yes", false, "Do not ask for confirmation")
	return cmd
}
