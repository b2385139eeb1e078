// Package mongo stores item documents in a MongoDB collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ghuser/secondchance/pkg/database"
	"github.com/ghuser/secondchance/pkg/logger"
	itemdomain "github.com/ghuser/secondchance/services/item/domain"
	"github.com/ghuser/secondchance/services/item/domain/models"
	domainsvcs "github.com/ghuser/secondchance/services/item/domain/services"
)

const (
	countersCollection = "counters"
	counterField       = "seq"
	idIndexName        = "id_1"

	codeIndexOptionsConflict  = 85
	codeIndexKeySpecsConflict = 86
)

// ItemRepository implements repositories.ItemRepository against MongoDB.
// Ids come from a counter document in the counters collection, so concurrent
// creates never share an id.
type ItemRepository struct {
	provider *database.MongoProvider
	log      logger.Logger

	seedMu sync.Mutex
	seeded bool
}

// NewItemRepository returns a repository using the shared provider.
func NewItemRepository(provider *database.MongoProvider, log logger.Logger) *ItemRepository {
	return &ItemRepository{provider: provider, log: log}
}

func (r *ItemRepository) collections(ctx context.Context) (items, counters *mongo.Collection, err error) {
	db, err := r.provider.Database(ctx)
	if err != nil {
		return nil, nil, err
	}
	return db.Collection(models.CollectionName), db.Collection(countersCollection), nil
}

// EnsureIndexes creates the unique index on the application id. A
// non-unique id_1 index left by an older deployment is replaced.
func (r *ItemRepository) EnsureIndexes(ctx context.Context) error {
	items, _, err := r.collections(ctx)
	if err != nil {
		return err
	}
	model := mongo.IndexModel{
		Keys:    bson.D{{Key: models.FieldID, Value: 1}},
		Options: options.Index().SetName(idIndexName).SetUnique(true),
	}
	_, err = items.Indexes().CreateOne(ctx, model)
	if isIndexConflict(err) {
		if _, dropErr := items.Indexes().DropOne(ctx, idIndexName); dropErr != nil {
			return fmt.Errorf("drop id index: %w", dropErr)
		}
		_, err = items.Indexes().CreateOne(ctx, model)
	}
	if err != nil {
		return fmt.Errorf("create id index: %w", err)
	}
	return nil
}

func isIndexConflict(err error) bool {
	var cmdErr mongo.CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	return cmdErr.Code == codeIndexOptionsConflict || cmdErr.Code == codeIndexKeySpecsConflict
}

// FindAll returns every document in natural order.
func (r *ItemRepository) FindAll(ctx context.Context) ([]models.Item, error) {
	items, _, err := r.collections(ctx)
	if err != nil {
		return nil, err
	}

	cur, err := items.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("find items: %w", err)
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}

	out := make([]models.Item, 0, len(docs))
	for _, d := range docs {
		out = append(out, toItem(d))
	}
	return out, nil
}

// FindByID returns the first document whose id field equals id.
func (r *ItemRepository) FindByID(ctx context.Context, id string) (models.Item, error) {
	items, _, err := r.collections(ctx)
	if err != nil {
		return nil, err
	}

	var doc bson.M
	if err := items.FindOne(ctx, bson.M{models.FieldID: id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, itemdomain.ErrItemNotFound
		}
		return nil, fmt.Errorf("find item: %w", err)
	}
	return toItem(doc), nil
}

// NextID increments the item counter and returns its new value. On first
// use the counter is raised to the largest numeric id already stored.
func (r *ItemRepository) NextID(ctx context.Context) (string, error) {
	if err := r.seedCounter(ctx); err != nil {
		return "", err
	}

	_, counters, err := r.collections(ctx)
	if err != nil {
		return "", err
	}

	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err = counters.FindOneAndUpdate(ctx,
		bson.M{"_id": models.CollectionName},
		bson.M{"$inc": bson.M{counterField: int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return "", fmt.Errorf("increment item counter: %w", err)
	}
	return domainsvcs.FormatID(doc.Seq), nil
}

func (r *ItemRepository) seedCounter(ctx context.Context) error {
	r.seedMu.Lock()
	defer r.seedMu.Unlock()

	if r.seeded {
		return nil
	}

	maxID, err := r.maxNumericID(ctx)
	if err != nil {
		return err
	}
	if err := r.raiseCounter(ctx, maxID); err != nil {
		return err
	}
	r.seeded = true
	r.log.InfoContext(ctx, "item counter seeded", "max_id", maxID)
	return nil
}

// maxNumericID scans decimal ids and returns the numeric maximum. Ordering is
// numeric, so "10" ranks above "9".
func (r *ItemRepository) maxNumericID(ctx context.Context) (int64, error) {
	items, _, err := r.collections(ctx)
	if err != nil {
		return 0, err
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{models.FieldID: bson.M{"$regex": "^[0-9]+$"}}}},
		{{Key: "$group", Value: bson.M{
			"_id": nil,
			"max": bson.M{"$max": bson.M{"$convert": bson.M{
				"input": "$" + models.FieldID, "to": "long", "onError": int64(0), "onNull": int64(0),
			}}},
		}}},
	}
	cur, err := items.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("aggregate max id: %w", err)
	}
	var rows []struct {
		Max int64 `bson:"max"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, fmt.Errorf("decode max id: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Max, nil
}

func (r *ItemRepository) raiseCounter(ctx context.Context, atLeast int64) error {
	_, counters, err := r.collections(ctx)
	if err != nil {
		return err
	}
	_, err = counters.UpdateOne(ctx,
		bson.M{"_id": models.CollectionName},
		bson.M{"$max": bson.M{counterField: atLeast}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("raise item counter: %w", err)
	}
	return nil
}

// Insert writes item and returns the driver acknowledgment. Numeric ids
// supplied from outside NextID (imports) raise the counter past them.
func (r *ItemRepository) Insert(ctx context.Context, item models.Item) (*models.InsertResult, error) {
	items, _, err := r.collections(ctx)
	if err != nil {
		return nil, err
	}

	res, err := items.InsertOne(ctx, bson.M(item))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("insert item %s: %w", item.ID(), itemdomain.ErrDuplicateID)
		}
		return nil, fmt.Errorf("insert item: %w", err)
	}

	if n, ok := domainsvcs.ParseNumericID(item.ID()); ok {
		if err := r.raiseCounter(ctx, n); err != nil {
			return nil, err
		}
	}

	return &models.InsertResult{Acknowledged: true, InsertedID: res.InsertedID, ID: item.ID()}, nil
}

// Update sets the mutable fields in one findOneAndUpdate and returns the
// document as it is after the write.
func (r *ItemRepository) Update(ctx context.Context, id string, u models.Update) (models.Item, error) {
	items, _, err := r.collections(ctx)
	if err != nil {
		return nil, err
	}

	var doc bson.M
	err = items.FindOneAndUpdate(ctx,
		bson.M{models.FieldID: id},
		bson.M{"$set": u.Fields()},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, itemdomain.ErrItemNotFound
		}
		return nil, fmt.Errorf("update item: %w", err)
	}
	return toItem(doc), nil
}

// Delete removes one document with the given id.
func (r *ItemRepository) Delete(ctx context.Context, id string) error {
	items, _, err := r.collections(ctx)
	if err != nil {
		return err
	}

	res, err := items.DeleteOne(ctx, bson.M{models.FieldID: id})
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if res.DeletedCount == 0 {
		return itemdomain.ErrItemNotFound
	}
	return nil
}

// toItem converts a decoded document into plain Go maps and slices, so
// nested values look the same whichever store produced them.
func toItem(doc bson.M) models.Item {
	item := make(models.Item, len(doc))
	for k, v := range doc {
		item[k] = plain(v)
	}
	return item
}

func plain(v any) any {
	switch val := v.(type) {
	case primitive.M:
		m := make(map[string]any, len(val))
		for k, e := range val {
			m[k] = plain(e)
		}
		return m
	case primitive.D:
		m := make(map[string]any, len(val))
		for _, e := range val {
			m[e.Key] = plain(e.Value)
		}
		return m
	case primitive.A:
		a := make([]any, len(val))
		for i, e := range val {
			a[i] = plain(e)
		}
		return a
	case primitive.DateTime:
		return val.Time().UTC()
	default:
		return v
	}
}
