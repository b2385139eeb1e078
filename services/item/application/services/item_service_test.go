package services

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/ghuser/secondchance/pkg/logger"
	"github.com/ghuser/secondchance/pkg/storage"
	itemdomain "github.com/ghuser/secondchance/services/item/domain"
	domainevents "github.com/ghuser/secondchance/services/item/domain/events"
	"github.com/ghuser/secondchance/services/item/domain/models"
	"github.com/ghuser/secondchance/services/item/infrastructure/persistence/memory"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	msgs   []*message.Message
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, msgs ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	for _, m := range msgs {
		p.topics = append(p.topics, topic)
		p.msgs = append(p.msgs, m)
	}
	return nil
}

// vanishingRepo reports the item on FindByID but fails the conditional write,
// as if another request deleted it in between.
type vanishingRepo struct {
	*memory.ItemRepository
}

func (r vanishingRepo) Update(context.Context, string, models.Update) (models.Item, error) {
	return nil, itemdomain.ErrItemNotFound
}

type failingInsertRepo struct {
	*memory.ItemRepository
}

func (r failingInsertRepo) Insert(context.Context, models.Item) (*models.InsertResult, error) {
	return nil, errors.New("write concern failed")
}

func newTestService(t *testing.T, opts ...Option) (*ItemService, *storage.DiskStore) {
	t.Helper()
	images, err := storage.NewDiskStore(filepath.Join(t.TempDir(), "images"))
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewItemService(memory.NewItemRepository(), images, logger.Discard(), opts...), images
}

func TestItemService_CreateAssignsSequentialIDs(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, want := range []string{"1", "2", "3"} {
		ack, err := svc.Create(ctx, map[string]any{"category": "chair"}, nil)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if ack.ID != want || !ack.Acknowledged || ack.InsertedID == nil {
			t.Fatalf("unexpected ack: %+v (want id %s)", ack, want)
		}
	}

	item, err := svc.GetByID(ctx, "2")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if item["date_added"] != fixedNow.Unix() {
		t.Errorf("unexpected date_added %v", item["date_added"])
	}
	if item["category"] != "chair" {
		t.Errorf("caller fields not stored: %v", item)
	}
}

func TestItemService_CreateDropsReservedFields(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	ack, err := svc.Create(ctx, map[string]any{
		"_id":    "forged",
		"upload": map[string]any{"file_name": "../../etc/passwd"},
		"id":     "999",
		"name":   "Lamp",
	}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ack.ID != "1" {
		t.Fatalf("client id must be overridden, got %q", ack.ID)
	}
	item, _ := svc.GetByID(ctx, "1")
	if item.UploadFileName() != "" {
		t.Fatalf("client upload metadata must be dropped: %v", item["upload"])
	}
	if item["_id"] == "forged" {
		t.Fatal("client _id must be dropped")
	}
}

func TestItemService_CreateWithUpload(t *testing.T) {
	svc, images := newTestService(t)
	ctx := context.Background()

	ack, err := svc.Create(ctx, map[string]any{"name": "Lamp"}, &storage.Upload{
		OriginalName: "../lamp.PNG",
		Size:         4,
		Body:         strings.NewReader("data"),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	item, err := svc.GetByID(ctx, ack.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	name := item.UploadFileName()
	if !storage.ValidName(name) || !strings.HasSuffix(name, ".png") {
		t.Fatalf("unexpected stored name %q", name)
	}
	if item["image"] != "/images/"+name {
		t.Fatalf("unexpected image path %v", item["image"])
	}
	upload := item["upload"].(map[string]any)
	if upload["original_name"] != "../lamp.PNG" {
		t.Errorf("original name not recorded: %v", upload)
	}
	if _, err := os.Stat(filepath.Join(images.Dir(), name)); err != nil {
		t.Fatalf("file not stored: %v", err)
	}
}

func TestItemService_CreateRemovesUploadWhenInsertFails(t *testing.T) {
	images, err := storage.NewDiskStore(filepath.Join(t.TempDir(), "images"))
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	svc := NewItemService(failingInsertRepo{memory.NewItemRepository()}, images, logger.Discard())

	_, err = svc.Create(context.Background(), nil, &storage.Upload{OriginalName: "a.png", Body: strings.NewReader("x")})
	if err == nil {
		t.Fatal("expected insert error")
	}
	entries, _ := os.ReadDir(images.Dir())
	if len(entries) != 0 {
		t.Fatalf("expected orphaned upload to be removed, found %d files", len(entries))
	}
}

type brokenImageStore struct{ storage.ImageStore }

func (brokenImageStore) Save(context.Context, storage.Upload) (storage.StoredFile, error) {
	return storage.StoredFile{}, errors.New("disk full")
}

func TestItemService_CreateUploadFailure(t *testing.T) {
	repo := memory.NewItemRepository()
	svc := NewItemService(repo, brokenImageStore{}, logger.Discard())

	_, err := svc.Create(context.Background(), nil, &storage.Upload{OriginalName: "a.png", Body: strings.NewReader("x")})
	if !errors.Is(err, itemdomain.ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed, got %v", err)
	}
	items, _ := repo.FindAll(context.Background())
	if len(items) != 0 {
		t.Fatal("no item may be stored when the upload fails")
	}
}

func TestItemService_Update(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, map[string]any{"category": "chair", "condition": "used", "age_days": 730, "color": "red"}, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	ok, err := svc.Update(ctx, "1", models.NewUpdate("chair", "used", "ok", 730, fixedNow))
	if err != nil || !ok {
		t.Fatalf("Update: ok=%v err=%v", ok, err)
	}

	item, _ := svc.GetByID(ctx, "1")
	if item["age_years"] != float64(2) || item["description"] != "ok" {
		t.Fatalf("unexpected item after update: %v", item)
	}
	if item["color"] != "red" || item["date_added"] != fixedNow.Unix() {
		t.Fatalf("unrelated fields changed: %v", item)
	}
}

func TestItemService_UpdateMissing(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Update(context.Background(), "42", models.NewUpdate("", "", "", 1, fixedNow))
	if !errors.Is(err, itemdomain.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestItemService_UpdateVanishedReportsFailed(t *testing.T) {
	repo := memory.NewItemRepository()
	if _, err := repo.Insert(context.Background(), models.Item{"id": "1"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	svc := NewItemService(vanishingRepo{repo}, nil, logger.Discard())

	ok, err := svc.Update(context.Background(), "1", models.NewUpdate("a", "b", "c", 1, fixedNow))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if ok {
		t.Fatal("expected failed outcome when the write matched nothing")
	}
}

func TestItemService_DeleteThenGet(t *testing.T) {
	svc, images := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, nil, &storage.Upload{OriginalName: "a.jpg", Body: strings.NewReader("x")}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Delete(ctx, "1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.GetByID(ctx, "1"); !errors.Is(err, itemdomain.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound after delete, got %v", err)
	}
	if err := svc.Delete(ctx, "1"); !errors.Is(err, itemdomain.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound on second delete, got %v", err)
	}

	entries, _ := os.ReadDir(images.Dir())
	if len(entries) != 0 {
		t.Fatalf("without a bus the image is removed inline, found %d files", len(entries))
	}
}

func TestItemService_PublishesLifecycleEvents(t *testing.T) {
	pub := &recordingPublisher{}
	svc, images := newTestService(t, WithPublisher(pub))
	ctx := context.Background()

	if _, err := svc.Create(ctx, map[string]any{"category": "lamp"}, &storage.Upload{OriginalName: "a.png", Body: strings.NewReader("x")}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Update(ctx, "1", models.NewUpdate("lamp", "new", "", 365, fixedNow)); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := svc.Delete(ctx, "1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	want := []string{domainevents.TopicItemCreated, domainevents.TopicItemUpdated, domainevents.TopicItemDeleted}
	if strings.Join(pub.topics, ",") != strings.Join(want, ",") {
		t.Fatalf("topics: got %v, want %v", pub.topics, want)
	}

	var created domainevents.ItemCreatedEvent
	if err := json.Unmarshal(pub.msgs[0].Payload, &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.ItemID != "1" || created.Category != "lamp" || created.ImageFile == "" {
		t.Errorf("unexpected created event: %+v", created)
	}

	var deleted domainevents.ItemDeletedEvent
	if err := json.Unmarshal(pub.msgs[2].Payload, &deleted); err != nil {
		t.Fatalf("decode deleted: %v", err)
	}
	if deleted.ImageFile != created.ImageFile {
		t.Errorf("deleted event must carry the image file: %+v", deleted)
	}

	// With a bus, image cleanup is left to the worker.
	entries, _ := os.ReadDir(images.Dir())
	if len(entries) != 1 {
		t.Fatalf("expected image to remain for the worker, found %d files", len(entries))
	}
}

func TestItemService_PublishFailureDoesNotFailWrite(t *testing.T) {
	svc, _ := newTestService(t, WithPublisher(&recordingPublisher{err: errors.New("bus down")}))

	ack, err := svc.Create(context.Background(), map[string]any{"name": "x"}, nil)
	if err != nil {
		t.Fatalf("Create must succeed when publishing fails: %v", err)
	}
	if ack.ID != "1" {
		t.Fatalf("unexpected id %q", ack.ID)
	}
}

func TestItemService_ListEmpty(t *testing.T) {
	svc, _ := newTestService(t)
	items, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", items)
	}
}
