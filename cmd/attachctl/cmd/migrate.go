package cmd

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/templui/taskfiles/internal/config"
	"github.com/templui/taskfiles/internal/db"
)

func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database schema migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd, func(cfg *config.Config, database *sqlx.DB) error {
				err := db.RunMigrations(cmd.Context(), database.DB, cfg.DBDriver)
				if err != nil {
					return err
				}
				return printVersion(cmd, cfg, database)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd, func(cfg *config.Config, database *sqlx.DB) error {
				err := db.MigrateDown(cmd.Context(), database.DB, cfg.DBDriver)
				if err != nil {
					return err
				}
				return printVersion(cmd, cfg, database)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd, func(cfg *config.Config, database *sqlx.DB) error {
				return printVersion(cmd, cfg, database)
			})
		},
	})

	return cmd
}

func printVersion(cmd *cobra.Command, cfg *config.Config, database *sqlx.DB) error {
	version, err := db.Version(cmd.Context(), database.DB, cfg.DBDriver)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
	return err
}

// withDB opens the configured database without migrating it.
func withDB(cmd *cobra.Command, fn func(*config.Config, *sqlx.DB) error) error {
	cfg := config.Load()

	database, err := db.Init(cmd.Context(), cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(database) }()

	return fn(cfg, database)
}
