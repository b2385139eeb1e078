package services

import (
	"context"
	"fmt"

	"github.com/ghuser/secondchance/pkg/app"
	"github.com/ghuser/secondchance/pkg/config"
	"github.com/ghuser/secondchance/services/item/domain/repositories"
	"github.com/ghuser/secondchance/services/item/infrastructure/persistence/memory"
	"github.com/ghuser/secondchance/services/item/infrastructure/persistence/mongo"
	"github.com/ghuser/secondchance/services/item/infrastructure/persistence/postgres"
	"github.com/ghuser/secondchance/services/item/infrastructure/persistence/sqlite"
)

// Services is the application-layer service container for this bounded context.
// It wires domain services with their infrastructure implementations.
type Services struct {
	Item *ItemService
}

// New wires all item application services with infrastructure from the Application container.
func New(a *app.Application) (*Services, error) {
	repo, err := NewRepository(a)
	if err != nil {
		return nil, err
	}

	opts := []Option{WithMetrics(a.Metrics)}
	if a.ItemCache != nil {
		opts = append(opts, WithCache(a.ItemCache))
	}
	if a.EventBus != nil {
		opts = append(opts, WithPublisher(a.EventBus))
	}

	return &Services{
		Item: NewItemService(repo, a.Images, a.Logger, opts...),
	}, nil
}

// NewRepository returns the item repository for the configured store driver.
func NewRepository(a *app.Application) (repositories.ItemRepository, error) {
	switch a.StoreDriver {
	case config.StoreMongo:
		if a.Mongo == nil {
			return nil, fmt.Errorf("store driver %q: mongo provider not configured", a.StoreDriver)
		}
		return mongo.NewItemRepository(a.Mongo, a.Logger), nil
	case config.StorePostgres:
		if a.Postgres == nil {
			return nil, fmt.Errorf("store driver %q: postgres pool not configured", a.StoreDriver)
		}
		return postgres.NewItemRepository(a.Postgres), nil
	case config.StoreSQLite:
		if a.SQLite == nil {
			return nil, fmt.Errorf("store driver %q: sqlite database not configured", a.StoreDriver)
		}
		return sqlite.NewItemRepository(context.Background(), a.SQLite)
	case config.StoreMemory:
		return memory.NewItemRepository(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", a.StoreDriver)
	}
}
