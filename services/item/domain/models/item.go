package models

import (
	"fmt"
	"maps"
	"math"
	"time"
)

// Well-known document fields. Every other field is caller-defined.
const (
	FieldNativeID    = "_id"
	FieldID          = "id"
	FieldCategory    = "category"
	FieldCondition   = "condition"
	FieldDescription = "description"
	FieldAgeDays     = "age_days"
	FieldAgeYears    = "age_years"
	FieldDateAdded   = "date_added"
	FieldUpdatedAt   = "updatedAt"
	FieldImage       = "image"
	FieldUpload      = "upload"
)

// CollectionName is the logical collection holding item documents.
const CollectionName = "secondChanceItems"

// Item is an open document: the well-known fields above plus whatever the
// creating request carried. Ids are application-assigned decimal strings,
// distinct from the store's native record identifier.
type Item map[string]any

// NewItem copies fields into a new document and stamps the assigned id and
// the creation time (Unix seconds).
func NewItem(fields map[string]any, id string, now time.Time) Item {
	item := make(Item, len(fields)+2)
	maps.Copy(item, fields)
	item[FieldID] = id
	item[FieldDateAdded] = now.Unix()
	return item
}

// ID returns the application id of the document, or "" when absent.
func (i Item) ID() string {
	switch v := i[FieldID].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Clone returns a shallow copy of the document.
func (i Item) Clone() Item {
	return maps.Clone(i)
}

// Update is the set of fields the update operation may change. Any other
// request field is ignored.
type Update struct {
	Category    string
	Condition   string
	Description string
	AgeDays     float64
	AgeYears    float64
	UpdatedAt   time.Time
}

// NewUpdate builds an Update, deriving AgeYears from ageDays.
func NewUpdate(category, condition, description string, ageDays float64, now time.Time) Update {
	return Update{
		Category:    category,
		Condition:   condition,
		Description: description,
		AgeDays:     ageDays,
		AgeYears:    AgeYears(ageDays),
		UpdatedAt:   now.UTC(),
	}
}

// Fields returns the update as document fields.
func (u Update) Fields() map[string]any {
	return map[string]any{
		FieldCategory:    u.Category,
		FieldCondition:   u.Condition,
		FieldDescription: u.Description,
		FieldAgeDays:     u.AgeDays,
		FieldAgeYears:    u.AgeYears,
		FieldUpdatedAt:   u.UpdatedAt,
	}
}

// Apply writes the update into item.
func (u Update) Apply(item Item) {
	maps.Copy(item, u.Fields())
}

// AgeYears converts days to years rounded to one decimal place.
func AgeYears(days float64) float64 {
	return math.Round(days/365*10) / 10
}

// InsertResult is the acknowledgment returned by the create operation.
type InsertResult struct {
	Acknowledged bool   `json:"acknowledged"`
	InsertedID   any    `json:"insertedId"`
	ID           string `json:"id"`
}
