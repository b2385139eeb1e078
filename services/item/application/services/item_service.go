package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgcache "github.com/ghuser/secondchance/pkg/cache"
	"github.com/ghuser/secondchance/pkg/events"
	"github.com/ghuser/secondchance/pkg/logger"
	"github.com/ghuser/secondchance/pkg/storage"
	"github.com/ghuser/secondchance/pkg/telemetry"
	itemdomain "github.com/ghuser/secondchance/services/item/domain"
	domainevents "github.com/ghuser/secondchance/services/item/domain/events"
	"github.com/ghuser/secondchance/services/item/domain/models"
	"github.com/ghuser/secondchance/services/item/domain/repositories"
	domainsvcs "github.com/ghuser/secondchance/services/item/domain/services"
)

// ItemService orchestrates item CRUD against the configured store.
// Reads by id are served from Redis when a cache is configured; lifecycle
// events are published when a bus is configured.
type ItemService struct {
	repo    repositories.ItemRepository
	images  storage.ImageStore
	log     logger.Logger
	cache   *pkgcache.ItemCache
	bus     events.Publisher
	metrics *telemetry.ItemMetrics
	now     func() time.Time
}

// Option configures optional ItemService collaborators.
type Option func(*ItemService)

// WithCache enables the read-through cache.
func WithCache(c *pkgcache.ItemCache) Option {
	return func(s *ItemService) { s.cache = c }
}

// WithPublisher enables lifecycle events.
func WithPublisher(p events.Publisher) Option {
	return func(s *ItemService) { s.bus = p }
}

// WithMetrics enables operation counters.
func WithMetrics(m *telemetry.ItemMetrics) Option {
	return func(s *ItemService) { s.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *ItemService) { s.now = now }
}

// NewItemService returns an ItemService wired with the given repository and image store.
func NewItemService(repo repositories.ItemRepository, images storage.ImageStore, log logger.Logger, opts ...Option) *ItemService {
	s := &ItemService{repo: repo, images: images, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns every stored item.
func (s *ItemService) List(ctx context.Context) ([]models.Item, error) {
	items, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// GetByID retrieves an item using a read-through cache:
//  1. Check Redis first.
//  2. On miss (or cache error), note the item's write generation and query the store.
//  3. Fill the cache only if no write moved the generation meanwhile.
func (s *ItemService) GetByID(ctx context.Context, id string) (models.Item, error) {
	gen, fill := int64(0), false
	if s.cache != nil {
		data, err := s.cache.Get(ctx, id)
		switch {
		case err == nil:
			if item, decErr := decodeCached(data); decErr == nil {
				return item, nil
			}
		case !errors.Is(err, pkgcache.ErrMiss):
			s.log.WarnContext(ctx, "item cache read failed", "item_id", id, "error", err)
		}
		if gen, err = s.cache.Generation(ctx, id); err == nil {
			fill = true
		}
	}

	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}

	if fill {
		s.fillCache(ctx, id, gen, item)
	}
	return item, nil
}

func (s *ItemService) fillCache(ctx context.Context, id string, gen int64, item models.Item) {
	data, err := json.Marshal(item)
	if err != nil {
		return
	}
	stored, err := s.cache.SetIfCurrent(ctx, id, gen, data)
	switch {
	case err != nil:
		s.log.WarnContext(ctx, "item cache fill failed", "item_id", id, "error", err)
	case !stored:
		s.log.DebugContext(ctx, "item cache fill skipped, item written meanwhile", "item_id", id)
	}
}

// Create stores the optional upload, assigns the next id and creation time,
// and inserts fields as a new document. Client-supplied _id and upload
// fields are discarded.
func (s *ItemService) Create(ctx context.Context, fields map[string]any, upload *storage.Upload) (ack *models.InsertResult, err error) {
	defer func() { s.metrics.RecordOperation(ctx, "create", err) }()

	doc := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == models.FieldNativeID || k == models.FieldUpload {
			continue
		}
		doc[k] = v
	}

	var stored *storage.StoredFile
	if upload != nil {
		f, err := s.images.Save(ctx, *upload)
		if err != nil {
			s.log.ErrorContext(ctx, "Error adding item", "stage", "upload", "error", err)
			return nil, fmt.Errorf("%w: %w", itemdomain.ErrUploadFailed, err)
		}
		stored = &f
		s.metrics.RecordUpload(ctx, f.Size)
	}

	ack, err = s.insert(ctx, doc, upload, stored)
	if err != nil {
		s.log.ErrorContext(ctx, "Error adding item", "error", err)
		if stored != nil {
			if rmErr := s.images.Delete(context.Background(), stored.Name); rmErr != nil {
				s.log.WarnContext(ctx, "orphaned upload not removed", "file", stored.Name, "error", rmErr)
			}
		}
		return nil, err
	}

	s.log.InfoContext(ctx, "Item added successfully", "item_id", ack.ID)

	evt := domainevents.ItemCreatedEvent{
		EventID:    uuid.New(),
		Version:    domainevents.SchemaVersion,
		ItemID:     ack.ID,
		OccurredAt: s.now().UTC(),
	}
	if c, ok := doc[models.FieldCategory].(string); ok {
		evt.Category = c
	}
	if stored != nil {
		evt.ImageFile = stored.Name
	}
	s.publish(ctx, domainevents.TopicItemCreated, evt.EventID, evt)

	return ack, nil
}

func (s *ItemService) insert(ctx context.Context, doc map[string]any, upload *storage.Upload, stored *storage.StoredFile) (*models.InsertResult, error) {
	id, err := s.repo.NextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("assign id: %w", err)
	}

	item := models.NewItem(doc, id, s.now())
	if stored != nil {
		item.AttachUpload(models.UploadRecord{
			FileName:     stored.Name,
			OriginalName: upload.OriginalName,
			ContentType:  stored.ContentType,
			Size:         stored.Size,
			PublicPath:   stored.PublicPath(),
		})
	}

	if err := domainsvcs.ValidateItemForCreation(item); err != nil {
		return nil, fmt.Errorf("%w: %w", itemdomain.ErrInvalidItem, err)
	}

	ack, err := s.repo.Insert(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	return ack, nil
}

// Update overwrites the mutable fields of an existing item. It returns
// ErrItemNotFound when the item does not exist, and (false, nil) when the
// item disappeared between the existence check and the write.
func (s *ItemService) Update(ctx context.Context, id string, u models.Update) (ok bool, err error) {
	defer func() { s.metrics.RecordOperation(ctx, "update", err) }()

	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return false, fmt.Errorf("get item: %w", err)
	}

	updated, err := s.repo.Update(ctx, id, u)
	if err != nil {
		if errors.Is(err, itemdomain.ErrItemNotFound) {
			s.log.WarnContext(ctx, "item vanished before update", "item_id", id)
			return false, nil
		}
		return false, fmt.Errorf("update item: %w", err)
	}

	s.invalidate(ctx, id)
	s.log.InfoContext(ctx, "item updated", "item_id", id, "age_years", u.AgeYears)

	evt := domainevents.ItemUpdatedEvent{
		EventID:    uuid.New(),
		Version:    domainevents.SchemaVersion,
		ItemID:     updated.ID(),
		AgeYears:   u.AgeYears,
		OccurredAt: s.now().UTC(),
	}
	s.publish(ctx, domainevents.TopicItemUpdated, evt.EventID, evt)
	return true, nil
}

// Delete removes an existing item. Without an event bus the stored image is
// removed inline; otherwise the worker removes it on item.deleted.
func (s *ItemService) Delete(ctx context.Context, id string) (err error) {
	defer func() { s.metrics.RecordOperation(ctx, "delete", err) }()

	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get item: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}

	s.invalidate(ctx, id)
	s.log.InfoContext(ctx, "item deleted", "item_id", id)

	imageFile := item.UploadFileName()
	if s.bus == nil {
		if imageFile != "" {
			if err := s.images.Delete(ctx, imageFile); err != nil && !errors.Is(err, storage.ErrNotFound) {
				s.log.WarnContext(ctx, "image cleanup failed", "item_id", id, "file", imageFile, "error", err)
			}
		}
		return nil
	}

	evt := domainevents.ItemDeletedEvent{
		EventID:    uuid.New(),
		Version:    domainevents.SchemaVersion,
		ItemID:     id,
		ImageFile:  imageFile,
		OccurredAt: s.now().UTC(),
	}
	s.publish(ctx, domainevents.TopicItemDeleted, evt.EventID, evt)
	return nil
}

func (s *ItemService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.log.WarnContext(ctx, "item cache invalidation failed", "item_id", id, "error", err)
	}
}

// publish is best-effort: the write has already succeeded, so a bus failure
// is logged and not returned.
func (s *ItemService) publish(ctx context.Context, topic string, eventID uuid.UUID, evt any) {
	if s.bus == nil {
		return
	}
	msg, err := events.NewMessage(eventID.String(), domainevents.SchemaVersion, evt)
	if err == nil {
		err = s.bus.Publish(ctx, topic, msg)
	}
	if err != nil {
		s.log.ErrorContext(ctx, "event publish failed", "topic", topic, "error", err)
	}
}

func decodeCached(data []byte) (models.Item, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var item models.Item
	if err := dec.Decode(&item); err != nil {
		return nil, err
	}
	return item, nil
}
