// Package memory is an in-process item store for local development and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	itemdomain "github.com/ghuser/secondchance/services/item/domain"
	"github.com/ghuser/secondchance/services/item/domain/models"
	domainsvcs "github.com/ghuser/secondchance/services/item/domain/services"
)

// ItemRepository implements repositories.ItemRepository in memory.
// Documents keep insertion order, matching a collection scan.
type ItemRepository struct {
	mu      sync.RWMutex
	order   []string
	docs    map[string]models.Item
	counter int64
}

// NewItemRepository returns an empty repository.
func NewItemRepository() *ItemRepository {
	return &ItemRepository{docs: make(map[string]models.Item)}
}

// FindAll returns copies of every document in insertion order.
func (r *ItemRepository) FindAll(_ context.Context) ([]models.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]models.Item, 0, len(r.order))
	for _, id := range r.order {
		items = append(items, r.docs[id].Clone())
	}
	return items, nil
}

// FindByID returns a copy of the document with the given id.
func (r *ItemRepository) FindByID(_ context.Context, id string) (models.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.docs[id]
	if !ok {
		return nil, itemdomain.ErrItemNotFound
	}
	return doc.Clone(), nil
}

// NextID reserves the next id. The counter never moves below the largest
// numeric id already stored, so imported documents are respected.
func (r *ItemRepository) NextID(_ context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, doc := range r.docs {
		if n, ok := domainsvcs.ParseNumericID(doc[models.FieldID]); ok && n > r.counter {
			r.counter = n
		}
	}
	r.counter++
	return domainsvcs.FormatID(r.counter), nil
}

// Insert stores a copy of item under a generated native id.
func (r *ItemRepository) Insert(_ context.Context, item models.Item) (*models.InsertResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := item.ID()
	if _, exists := r.docs[id]; exists {
		return nil, fmt.Errorf("insert item %s: %w", id, itemdomain.ErrDuplicateID)
	}

	doc := item.Clone()
	nativeID := uuid.NewString()
	doc[models.FieldNativeID] = nativeID
	r.docs[id] = doc
	r.order = append(r.order, id)

	return &models.InsertResult{Acknowledged: true, InsertedID: nativeID, ID: id}, nil
}

// Update applies u to the stored document.
func (r *ItemRepository) Update(_ context.Context, id string, u models.Update) (models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.docs[id]
	if !ok {
		return nil, itemdomain.ErrItemNotFound
	}
	u.Apply(doc)
	return doc.Clone(), nil
}

// Delete removes the document with the given id.
func (r *ItemRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.docs[id]; !ok {
		return itemdomain.ErrItemNotFound
	}
	delete(r.docs, id)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })
	return nil
}

// Ping always succeeds.
func (r *ItemRepository) Ping(_ context.Context) error {
	return nil
}
