package repositories

import (
	"context"

	"github.com/ghuser/secondchance/services/item/domain/models"
)

// ItemRepository is the persistence interface for item documents.
// The domain layer owns this interface; infrastructure implements it.
type ItemRepository interface {
	// FindAll returns every item document in store order.
	FindAll(ctx context.Context) ([]models.Item, error)

	// FindByID returns the first document whose id equals id.
	// Returns domain.ErrItemNotFound when none matches.
	FindByID(ctx context.Context, id string) (models.Item, error)

	// NextID atomically reserves the next application id. Concurrent callers
	// never receive the same id.
	NextID(ctx context.Context) (string, error)

	// Insert persists item and reports the store acknowledgment.
	Insert(ctx context.Context, item models.Item) (*models.InsertResult, error)

	// Update applies u to the document with the given id in a single
	// conditional write and returns the updated document. Returns
	// domain.ErrItemNotFound when no document matched.
	Update(ctx context.Context, id string, u models.Update) (models.Item, error)

	// Delete removes one document with the given id.
	// Returns domain.ErrItemNotFound when none matched.
	Delete(ctx context.Context, id string) error
}
