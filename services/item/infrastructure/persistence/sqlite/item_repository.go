// Package sqlite stores item documents as JSON text rows in an embedded
// SQLite database.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ghuser/secondchance/pkg/database"
	itemdomain "github.com/ghuser/secondchance/services/item/domain"
	"github.com/ghuser/secondchance/services/item/domain/models"
	domainsvcs "github.com/ghuser/secondchance/services/item/domain/services"
)

const (
	counterName = models.CollectionName

	// SQLITE_CONSTRAINT_UNIQUE extended result code.
	constraintUnique = 2067
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS second_chance_items (
		pk   INTEGER PRIMARY KEY AUTOINCREMENT,
		data TEXT NOT NULL
	)`,
	`DROP INDEX IF EXISTS second_chance_items_id`,
	`CREATE UNIQUE INDEX IF NOT EXISTS second_chance_items_id_unique ON second_chance_items (data->>'id')`,
	`CREATE TABLE IF NOT EXISTS item_counters (
		name  TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	)`,
}

const (
	selectAll = `SELECT pk, data FROM second_chance_items ORDER BY pk`

	selectByID = `SELECT pk, data FROM second_chance_items
		WHERE data->>'id' = ? ORDER BY pk LIMIT 1`

	selectMaxID = `SELECT COALESCE(MAX(CAST(data->>'id' AS INTEGER)), 0) FROM second_chance_items
		WHERE data->>'id' NOT GLOB '*[^0-9]*' AND length(data->>'id') BETWEEN 1 AND 18`

	bumpCounter = `INSERT INTO item_counters (name, value) VALUES (?, ? + 1)
		ON CONFLICT (name) DO UPDATE SET value = MAX(item_counters.value, excluded.value - 1) + 1
		RETURNING value`

	raiseCounter = `INSERT INTO item_counters (name, value) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET value = MAX(item_counters.value, excluded.value)`

	insertItem = `INSERT INTO second_chance_items (data) VALUES (?) RETURNING pk`

	updateItem = `UPDATE second_chance_items SET data = json_patch(data, ?)
		WHERE pk = (SELECT pk FROM second_chance_items WHERE data->>'id' = ? ORDER BY pk LIMIT 1)
		RETURNING pk, data`

	deleteItem = `DELETE FROM second_chance_items
		WHERE pk = (SELECT pk FROM second_chance_items WHERE data->>'id' = ? ORDER BY pk LIMIT 1)`
)

// ItemRepository implements repositories.ItemRepository against SQLite.
// The row's pk is the store-native identifier.
type ItemRepository struct {
	db *database.Database
}

// NewItemRepository creates the item tables if needed and returns a
// repository backed by db.
func NewItemRepository(ctx context.Context, db *database.Database) (*ItemRepository, error) {
	for _, stmt := range schema {
		if _, err := db.DB().ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("create item schema: %w", err)
		}
	}
	return &ItemRepository{db: db}, nil
}

// FindAll returns every document in insertion order.
func (r *ItemRepository) FindAll(ctx context.Context) ([]models.Item, error) {
	rows, err := r.db.DB().QueryContext(ctx, selectAll)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	items := make([]models.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// FindByID returns the first document whose id equals id.
func (r *ItemRepository) FindByID(ctx context.Context, id string) (models.Item, error) {
	item, err := scanItem(r.db.DB().QueryRowContext(ctx, selectByID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, itemdomain.ErrItemNotFound
		}
		return nil, err
	}
	return item, nil
}

// NextID advances the item counter, never below the numeric maximum of the
// stored ids.
func (r *ItemRepository) NextID(ctx context.Context) (string, error) {
	var next int64
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var maxID int64
		if err := tx.QueryRowContext(ctx, selectMaxID).Scan(&maxID); err != nil {
			return fmt.Errorf("query max id: %w", err)
		}
		if err := tx.QueryRowContext(ctx, bumpCounter, counterName, maxID).Scan(&next); err != nil {
			return fmt.Errorf("bump item counter: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return domainsvcs.FormatID(next), nil
}

// Insert writes item as a new row and raises the counter past numeric ids.
func (r *ItemRepository) Insert(ctx context.Context, item models.Item) (*models.InsertResult, error) {
	doc := item.Clone()
	delete(doc, models.FieldNativeID)
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", itemdomain.ErrInvalidItem, err)
	}

	var pk int64
	err = r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, insertItem, string(payload)).Scan(&pk); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("insert item %s: %w", item.ID(), itemdomain.ErrDuplicateID)
			}
			return fmt.Errorf("insert item: %w", err)
		}
		if n, ok := domainsvcs.ParseNumericID(item.ID()); ok {
			if _, err := tx.ExecContext(ctx, raiseCounter, counterName, n); err != nil {
				return fmt.Errorf("raise item counter: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &models.InsertResult{Acknowledged: true, InsertedID: pk, ID: item.ID()}, nil
}

// Update merge-patches the mutable fields into the stored document.
func (r *ItemRepository) Update(ctx context.Context, id string, u models.Update) (models.Item, error) {
	payload, err := json.Marshal(u.Fields())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", itemdomain.ErrInvalidItem, err)
	}

	item, err := scanItem(r.db.DB().QueryRowContext(ctx, updateItem, string(payload), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, itemdomain.ErrItemNotFound
		}
		return nil, fmt.Errorf("update item: %w", err)
	}
	return item, nil
}

// Delete removes one document with the given id.
func (r *ItemRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.DB().ExecContext(ctx, deleteItem, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if n == 0 {
		return itemdomain.ErrItemNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		return coded.Code() == constraintUnique
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (models.Item, error) {
	var (
		pk   int64
		data string
	)
	if err := row.Scan(&pk, &data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan item: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var item models.Item
	if err := dec.Decode(&item); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	if item == nil {
		item = models.Item{}
	}
	item[models.FieldNativeID] = pk
	return item, nil
}
