package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Leganyst/calendar-core/internal/config"
	"github.com/Leganyst/calendar-core/internal/db"
	"github.com/Leganyst/calendar-core/internal/logging"
	"github.com/Leganyst/calendar-core/internal/model"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			log := logging.New(cfg.Log, cfg.Telemetry.ServiceName)

			gormDB, err := db.NewGormDB(&cfg.Database, log)
			if err != nil {
				return fmt.Errorf("init db: %w", err)
			}
			sqlDB, err := gormDB.DB()
			if err != nil {
				return fmt.Errorf("sql DB: %w", err)
			}
			defer sqlDB.Close()

			if err := model.AutoMigrate(gormDB.WithContext(cmd.Context())); err != nil {
				return fmt.Errorf("auto migrate: %w", err)
			}
			log.Info("migrations applied", "driver", cfg.Database.Driver)
			return nil
		},
	}
}
