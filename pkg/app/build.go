package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/ghuser/secondchance/pkg/cache"
	"github.com/ghuser/secondchance/pkg/config"
	"github.com/ghuser/secondchance/pkg/database"
	"github.com/ghuser/secondchance/pkg/events"
	"github.com/ghuser/secondchance/pkg/httpx"
	"github.com/ghuser/secondchance/pkg/logger"
	"github.com/ghuser/secondchance/pkg/storage"
	"github.com/ghuser/secondchance/pkg/telemetry"
)

// BusMode selects how the event bus is opened.
type BusMode int

const (
	// BusDisabled leaves Application.EventBus nil.
	BusDisabled BusMode = iota
	// BusForwarder opens a forwarder-backed bus for the publishing process.
	BusForwarder
	// BusSubscriber opens a plain bus for the worker process.
	BusSubscriber
)

// Build connects every dependency named by cfg. Optional dependencies
// (Redis, the event bus) are skipped when their URL is empty. On error,
// anything already opened is closed.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger, mode BusMode) (*Application, error) {
	a := &Application{StoreDriver: cfg.StoreDriver, Logger: log}

	if err := a.openStore(ctx, cfg); err != nil {
		return nil, err
	}

	images, err := newImageStore(ctx, cfg)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("image store: %w", err)
	}
	a.Images = images

	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			_ = a.Close(ctx)
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.Redis = rc
		a.ItemCache = cache.NewItemCache(rc, cfg.CacheTTL)
		log.Info("redis connected")
	}

	if mode != BusDisabled && cfg.EventsDatabaseURL != "" {
		busMode := events.ModeSubscriber
		if mode == BusForwarder {
			busMode = events.ModePublisher
		}
		bus, err := events.Open(events.OptionsFromConfig(cfg, busMode), log)
		if err != nil {
			_ = a.Close(ctx)
			return nil, fmt.Errorf("event bus: %w", err)
		}
		a.EventBus = bus
	}

	metrics, err := telemetry.NewItemMetrics()
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("metrics: %w", err)
	}
	a.Metrics = metrics

	return a, nil
}

func (a *Application) openStore(ctx context.Context, cfg *config.Config) error {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		a.Mongo = database.NewMongoProvider(cfg.MongoURL, cfg.MongoDatabase, a.Logger)
		if err := a.Mongo.Ping(ctx); err != nil {
			// The provider reconnects lazily; the API starts degraded.
			a.Logger.Warn("mongo unreachable at startup", "error", err)
		}
	case config.StorePostgres:
		pool, err := database.NewPool(ctx, cfg.DatabaseURL, a.Logger)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		a.Postgres = pool
		a.Logger.Info("database pool connected")
	case config.StoreSQLite:
		db, err := database.NewSQLite(ctx, cfg.SQLitePath, a.Logger)
		if err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
		a.SQLite = db
	case config.StoreMemory:
		a.Logger.Warn("using in-memory store; data is lost on restart")
	default:
		return fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	return nil
}

func newImageStore(ctx context.Context, cfg *config.Config) (storage.ImageStore, error) {
	switch cfg.StorageDriver {
	case config.StorageMinio:
		return storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioRootUser,
			SecretKey: cfg.MinioRootPassword,
			Bucket:    cfg.MinioBucket,
		})
	default:
		return storage.NewDiskStore(cfg.UploadDir)
	}
}

// HealthChecks returns the configured dependencies keyed by name. Disabled
// dependencies map to nil.
func (a *Application) HealthChecks() httpx.HealthChecks {
	checks := httpx.HealthChecks{
		"store":  nil,
		"images": a.Images,
		"redis":  nil,
		"events": nil,
	}
	switch {
	case a.Mongo != nil:
		checks["store"] = a.Mongo
	case a.Postgres != nil:
		checks["store"] = a.Postgres
	case a.SQLite != nil:
		checks["store"] = a.SQLite
	}
	if a.Redis != nil {
		checks["redis"] = a.Redis
	}
	if a.EventBus != nil {
		checks["events"] = a.EventBus
	}
	return checks
}

// Close releases every opened dependency.
func (a *Application) Close(ctx context.Context) error {
	var errs []error
	if a.EventBus != nil {
		errs = append(errs, a.EventBus.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.Postgres != nil {
		errs = append(errs, a.Postgres.Close())
	}
	if a.SQLite != nil {
		errs = append(errs, a.SQLite.Close())
	}
	if a.Mongo != nil {
		errs = append(errs, a.Mongo.Close(ctx))
	}
	return errors.Join(errs...)
}
