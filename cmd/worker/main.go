package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/ghuser/secondchance/pkg/app"
	"github.com/ghuser/secondchance/pkg/cache"
	"github.com/ghuser/secondchance/pkg/config"
	"github.com/ghuser/secondchance/pkg/events"
	"github.com/ghuser/secondchance/pkg/logger"
	"github.com/ghuser/secondchance/pkg/storage"
	"github.com/ghuser/secondchance/pkg/telemetry"
	appsvcs "github.com/ghuser/secondchance/services/item/application/services"
	itemdomain "github.com/ghuser/secondchance/services/item/domain"
	itemEvents "github.com/ghuser/secondchance/services/item/domain/events"
	"github.com/ghuser/secondchance/services/item/domain/repositories"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := config.ValidateForProduction(cfg); err != nil {
		slog.Error("production config validation failed", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg)

	ctx := context.Background()

	otelShutdown, _, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		log.Error("failed to setup otel", "error", err)
		os.Exit(1)
	}
	defer otelShutdown(ctx) //nolint:errcheck

	if err := telemetry.SetupSentry(cfg); err != nil {
		log.Warn("failed to setup sentry, continuing without crash reporting", "error", err)
	}
	defer telemetry.SentryFlush()

	appConfig, err := app.Build(ctx, cfg, log, app.BusSubscriber)
	if err != nil {
		log.Error("failed to initialize dependencies", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	defer appConfig.Close(context.Background()) //nolint:errcheck

	if appConfig.EventBus == nil {
		log.Error("worker requires EVENTS_DATABASE_URL")
		os.Exit(1) //nolint:gocritic
	}

	repo, err := appsvcs.NewRepository(appConfig)
	if err != nil {
		log.Error("failed to open item repository", "error", err)
		os.Exit(1) //nolint:gocritic
	}

	if err := registerSubscribers(appConfig, repo); err != nil {
		log.Error("failed to register subscribers", "error", err)
		os.Exit(1) //nolint:gocritic
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("worker started")
	if err := appConfig.EventBus.Run(runCtx); err != nil {
		log.Error("event router stopped", "error", err)
	}
	log.Info("worker stopped")
}

// registerSubscribers wires the item event handlers. The handlers are
// idempotent: the bus retries failures and redelivers on restart.
func registerSubscribers(a *app.Application, repo repositories.ItemRepository) error {
	itemCache := a.ItemCache
	handlers := map[string]events.HandlerFunc{
		itemEvents.TopicItemCreated: handleItemCreated(a.Logger, repo, itemCache),
		itemEvents.TopicItemUpdated: handleItemUpdated(a.Logger, itemCache),
		itemEvents.TopicItemDeleted: handleItemDeleted(a.Logger, itemCache, a.Images),
	}
	topics := make([]string, 0, len(handlers))
	for topic, h := range handlers {
		if err := a.EventBus.Subscribe(topic, h); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		topics = append(topics, topic)
	}
	a.Logger.Info("event subscribers registered", "topics", topics)
	return nil
}

// handleItemCreated returns a handler for item.created events.
// Warms the Redis cache so subsequent GetByID calls are served from cache.
// The fill is dropped when an update or delete landed after the generation
// was read.
func handleItemCreated(log logger.Logger, repo repositories.ItemRepository, itemCache *cache.ItemCache) events.HandlerFunc {
	return func(ctx context.Context, msg *message.Message) error {
		evt, err := events.Decode[itemEvents.ItemCreatedEvent](msg, itemEvents.SchemaVersion)
		if err != nil {
			return err
		}
		if itemCache == nil {
			return nil
		}

		gen, err := itemCache.Generation(ctx, evt.ItemID)
		if err != nil {
			// Cache warming is best-effort; log but do not fail the handler.
			log.WarnContext(ctx, "cache warm skipped for item.created", "item_id", evt.ItemID, "error", err)
			return nil
		}

		item, err := repo.FindByID(ctx, evt.ItemID)
		if errors.Is(err, itemdomain.ErrItemNotFound) {
			// Deleted before the event was consumed.
			return nil
		}
		if err != nil {
			return err
		}

		data, err := json.Marshal(item)
		if err != nil {
			return err
		}
		stored, err := itemCache.SetIfCurrent(ctx, evt.ItemID, gen, data)
		if err != nil {
			log.WarnContext(ctx, "cache warm failed for item.created", "item_id", evt.ItemID, "error", err)
			return nil
		}
		if !stored {
			log.InfoContext(ctx, "cache warm skipped, item written since", "item_id", evt.ItemID)
			return nil
		}
		log.InfoContext(ctx, "cache warmed", "item_id", evt.ItemID, "category", evt.Category)
		return nil
	}
}

// handleItemUpdated invalidates the cached copy so the next read sees the update.
func handleItemUpdated(log logger.Logger, itemCache *cache.ItemCache) events.HandlerFunc {
	return func(ctx context.Context, msg *message.Message) error {
		evt, err := events.Decode[itemEvents.ItemUpdatedEvent](msg, itemEvents.SchemaVersion)
		if err != nil {
			return err
		}
		if itemCache == nil {
			return nil
		}
		if err := itemCache.Invalidate(ctx, evt.ItemID); err != nil {
			log.WarnContext(ctx, "cache invalidation failed for item.updated", "item_id", evt.ItemID, "error", err)
		}
		return nil
	}
}

// handleItemDeleted invalidates the cache entry and removes the stored image.
// A missing image is treated as already removed.
func handleItemDeleted(log logger.Logger, itemCache *cache.ItemCache, images storage.ImageStore) events.HandlerFunc {
	return func(ctx context.Context, msg *message.Message) error {
		evt, err := events.Decode[itemEvents.ItemDeletedEvent](msg, itemEvents.SchemaVersion)
		if err != nil {
			return err
		}
		if itemCache != nil {
			if err := itemCache.Invalidate(ctx, evt.ItemID); err != nil {
				log.WarnContext(ctx, "cache invalidation failed for item.deleted", "item_id", evt.ItemID, "error", err)
			}
		}
		if evt.ImageFile == "" {
			return nil
		}
		if err := images.Delete(ctx, evt.ImageFile); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("delete image %s: %w", evt.ImageFile, err)
		}
		log.InfoContext(ctx, "item image removed", "item_id", evt.ItemID, "file", evt.ImageFile)
		return nil
	}
}
