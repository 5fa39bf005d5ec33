package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"quill/internal/platform/config"
	"quill/internal/platform/database"
	"quill/internal/platform/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Apply the embedded schema migrations for the configured dialect.
Already applied files are skipped. Requires DATABASE_URL.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.FromEnv()
		if err != nil {
			return err
		}
		if cfg.Database.URL == "" {
			return errors.New("DATABASE_URL is required")
		}
		log := logger.New(cfg.Server.Production())

		db, err := database.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		applied, err := db.Migrate(cmd.Context())
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		if len(applied) == 0 {
			log.Info("schema is up to date")
			return nil
		}
		for _, name := range applied {
			log.Info("applied migration", "file", name)
		}
		return nil
	},
}
