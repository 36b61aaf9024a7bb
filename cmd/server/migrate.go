package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"zkworkspace/internal/platform/config"
	"zkworkspace/internal/platform/logger"
	"zkworkspace/internal/platform/postgres"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.UsesMemory() {
				return fmt.Errorf("DATABASE_URL is required to migrate")
			}
			log := logger.New(cfg.LogLevel)

			db, err := openDatabase(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := postgres.Migrate(cmd.Context(), db)
			if err != nil {
				return err
			}
			log.Info("migrations applied", "count", len(applied), "files", applied)
			return nil
		},
	}
}
