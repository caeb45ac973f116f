package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scribemed/clinsight/internal/config"
	"github.com/scribemed/clinsight/internal/infrastructure/database/postgres"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage terminology database schema migrations",
	}

	loadDB := func() (dbURL, path string, err error) {
		var cfg *config.Config
		if opts.ConfigPath != "" {
			cfg, err = config.Load(opts.ConfigPath)
		} else {
			cfg, err = config.LoadFromEnv()
		}
		if err != nil {
			return "", "", err
		}
		return cfg.Database.DSN(), cfg.Database.MigrationsPath, nil
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbURL, path, err := loadDB()
			if err != nil {
				return err
			}
			if err := postgres.RunMigrations(dbURL, path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbURL, path, err := loadDB()
			if err != nil {
				return err
			}
			if err := postgres.RollbackMigrations(dbURL, path, steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Show the current migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbURL, path, err := loadDB()
			if err != nil {
				return err
			}
			v, dirty, err := postgres.MigrationVersion(dbURL, path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %v)\n", v, dirty)
			return nil
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}
