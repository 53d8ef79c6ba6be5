package main

import (
	"errors"

	"github.com/spf13/cobra"

	"ridepay/internal/common/database"
)

func migrateCmd() *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the saved card schema migrations",
		Long: `Apply the embedded schema migrations to DATABASE_URL.

Examples:
  ridepay migrate
  ridepay migrate --steps -1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errors.New("DATABASE_URL is required")
			}
			logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
			return database.Migrate(cfg.Database.URL, steps, logger)
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 0, "number of migrations to apply (negative rolls back, 0 applies all)")

	return cmd
}
