package main

import (
	"github.com/spf13/cobra"

	"github.com/ghuser/secondchance/pkg/config"
	"github.com/ghuser/secondchance/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "seed",
	Short: "Prepare and load the second chance item store",
	Long: `seed prepares the configured document store and loads item fixtures.

The store is selected with the same environment as the API (STORE_DRIVER,
MONGO_URL, DATABASE_URL, ...).

Examples:
  # Prepare the store schema (Postgres migrations, Mongo indexes, SQLite tables)
  seed migrate

  # Load items from a JSON or YAML array
  seed import --file items.json
  seed import --file fixtures/items.yaml
  seed import --file items.json --skip-existing`,
	SilenceUsage: true,
}

// loadConfig reads the shared configuration and builds the CLI logger.
func loadConfig() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.New(cfg), nil
}
