// Package services contains stateless domain services for the item bounded context.
// Domain services enforce business rules that operate purely on domain types
// and have zero external dependencies beyond stdlib and the domain layer.
package services

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/ghuser/secondchance/services/item/domain/models"
)

var numericID = regexp.MustCompile(`^[0-9]+$`)

// ParseNumericID reports the integer value of a decimal id. Ids that are not
// plain non-negative decimals are ignored by id assignment.
func ParseNumericID(v any) (int64, bool) {
	var s string
	switch id := v.(type) {
	case string:
		s = id
	case json.Number:
		s = id.String()
	case int32:
		return int64(id), id >= 0
	case int64:
		return id, id >= 0
	case int:
		return int64(id), id >= 0
	case float64:
		if id < 0 || id != math.Trunc(id) || id > math.MaxInt64 {
			return 0, false
		}
		return int64(id), true
	default:
		return 0, false
	}
	if !numericID.MatchString(s) {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// MaxNumericID returns the largest numeric id among items, or 0.
// Ordering is numeric: "10" is greater than "9".
func MaxNumericID(items []models.Item) int64 {
	var highest int64
	for _, item := range items {
		if n, ok := ParseNumericID(item[models.FieldID]); ok && n > highest {
			highest = n
		}
	}
	return highest
}

// FormatID renders an id counter value as the canonical decimal string.
func FormatID(n int64) string {
	return strconv.FormatInt(n, 10)
}

// ValidateItemForCreation performs cross-field validation on a fully-constructed
// item before it is persisted.
func ValidateItemForCreation(item models.Item) error {
	if item == nil {
		return fmt.Errorf("item cannot be nil")
	}
	if _, ok := ParseNumericID(item.ID()); !ok {
		return fmt.Errorf("id must be a decimal string, got %q", item.ID())
	}
	if ts, ok := item[models.FieldDateAdded].(int64); !ok || ts <= 0 {
		return fmt.Errorf("date_added must be set")
	}
	if _, ok := item[models.FieldNativeID]; ok {
		return fmt.Errorf("_id is assigned by the store")
	}
	return nil
}
