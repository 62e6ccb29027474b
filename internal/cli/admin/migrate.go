package admin

import (
	"fmt"

	"github.com/cloo-solutions/knowpool/internal/config"
	"github.com/cloo-solutions/knowpool/internal/database"
	"github.com/cloo-solutions/knowpool/internal/repository/sqlite"
	"github.com/spf13/cobra"
)

func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Apply pending schema migrations to the configured store and print the resulting version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if cfg.UsesSQLite() {
				db, err := sqlite.Open(cfg.SQLitePath)
				if err != nil {
					return fmt.Errorf("failed to open sqlite store: %w", err)
				}
				defer db.Close()
				version, err := db.SchemaVersion()
				if err != nil {
					return fmt.Errorf("failed to read schema version: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "sqlite schema at version %d (%s)\n", version, db.Path)
				return nil
			}

			version, err := database.Migrate(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "postgres schema at version %d\n", version)
			return nil
		},
	}
}
