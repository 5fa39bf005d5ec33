package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"quill/internal/platform/config"
	"quill/internal/platform/logger"
	"quill/internal/seed"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the admin account, categories and tags from a YAML file",
	Long: `Seed reads a YAML file and creates whatever is missing. Running it
twice is safe. The admin password may come from ` + seed.AdminPasswordEnv + `.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.FromEnv()
		if err != nil {
			return err
		}
		log := logger.New(cfg.Server.Production())

		file, err := seed.Load(seedFile)
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg, log, prometheus.NewRegistry())
		if err != nil {
			return err
		}
		defer a.Close()
		if a.db == nil {
			log.Warn("DATABASE_URL not set, seeding in-memory stores only")
		}

		res, err := seed.Apply(cmd.Context(), file, a.auth, a.blog)
		if err != nil {
			return err
		}
		log.Info("seed complete",
			"admin_created", res.AdminCreated,
			"categories_created", res.CategoriesCreated,
			"tags", res.TagsEnsured,
		)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "seed.yaml", "path to the seed file")
}
