package app

import (
	"github.com/ghuser/secondchance/pkg/cache"
	"github.com/ghuser/secondchance/pkg/database"
	"github.com/ghuser/secondchance/pkg/events"
	"github.com/ghuser/secondchance/pkg/logger"
	"github.com/ghuser/secondchance/pkg/storage"
	"github.com/ghuser/secondchance/pkg/telemetry"
)

// Application holds shared infrastructure dependencies for all services.
// Pass to all service route calls during server initialization.
//
// At most one of Mongo, Postgres or SQLite is set, matching StoreDriver; all
// are nil for the memory driver. Redis, ItemCache and EventBus are optional and may be nil.
//
// Logging: app.Logger is backed by a trace-aware handler, so use slog's context
// methods and trace_id, span_id, and request_id are injected automatically:
//
//	app.Logger.InfoContext(ctx, "Item added successfully", "item_id", id)
//	app.Logger.ErrorContext(ctx, "Error adding item", "error", err)
type Application struct {
	StoreDriver string
	Mongo       *database.MongoProvider
	Postgres    *database.Database
	SQLite      *database.Database
	Logger      logger.Logger
	EventBus    *events.EventBus
	Redis       *cache.RedisClient
	ItemCache   *cache.ItemCache
	Images      storage.ImageStore
	Metrics     *telemetry.ItemMetrics
}
