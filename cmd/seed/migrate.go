package main

import (
	"fmt"

	"github.com/spf13/cobra"

	itemmigrations "github.com/ghuser/secondchance/migrations/item"
	"github.com/ghuser/secondchance/pkg/config"
	"github.com/ghuser/secondchance/pkg/database"
	"github.com/ghuser/secondchance/pkg/migrator"
	"github.com/ghuser/secondchance/services/item/infrastructure/persistence/mongo"
	"github.com/ghuser/secondchance/services/item/infrastructure/persistence/sqlite"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply Postgres migrations, create Mongo indexes or the SQLite schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		switch cfg.StoreDriver {
		case config.StorePostgres:
			if err := migrator.RunMigrations(ctx, cfg.DatabaseURL, itemmigrations.FS); err != nil {
				return err
			}
			version, err := migrator.Version(ctx, cfg.DatabaseURL, itemmigrations.FS)
			if err != nil {
				return err
			}
			log.Info("migrations applied", "version", version)
		case config.StoreMongo:
			provider := database.NewMongoProvider(cfg.MongoURL, cfg.MongoDatabase, log)
			defer provider.Close(ctx) //nolint:errcheck
			if err := mongo.NewItemRepository(provider, log).EnsureIndexes(ctx); err != nil {
				return err
			}
			log.Info("mongo indexes ensured", "database", cfg.MongoDatabase)
		case config.StoreSQLite:
			db, err := database.NewSQLite(ctx, cfg.SQLitePath, log)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck
			if _, err := sqlite.NewItemRepository(ctx, db); err != nil {
				return err
			}
			log.Info("sqlite schema ensured", "path", cfg.SQLitePath)
		default:
			return fmt.Errorf("store driver %q has no schema to migrate", cfg.StoreDriver)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
