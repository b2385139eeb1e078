package events

import (
	"time"

	"github.com/google/uuid"
)

// Topics published by the item service.
const (
	TopicItemCreated = "item.created"
	TopicItemUpdated = "item.updated"
	TopicItemDeleted = "item.deleted"
)

// SchemaVersion is the payload version written by this build. Consumers
// reject messages carrying a newer version.
const SchemaVersion = 1

// ItemCreatedEvent is published after a new item is persisted.
// The worker warms the read cache from it.
type ItemCreatedEvent struct {
	EventID    uuid.UUID `json:"event_id"` // Unique publish-time identifier for deduplication
	Version    int       `json:"version"`  // Schema version; increment on breaking changes
	ItemID     string    `json:"item_id"`
	Category   string    `json:"category,omitempty"`
	ImageFile  string    `json:"image_file,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ItemUpdatedEvent is published after the mutable fields of an item change.
type ItemUpdatedEvent struct {
	EventID    uuid.UUID `json:"event_id"`
	Version    int       `json:"version"`
	ItemID     string    `json:"item_id"`
	AgeYears   float64   `json:"age_years"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ItemDeletedEvent is published after an item is removed. ImageFile names the
// stored upload, if the item had one, so consumers can clean it up.
type ItemDeletedEvent struct {
	EventID    uuid.UUID `json:"event_id"`
	Version    int       `json:"version"`
	ItemID     string    `json:"item_id"`
	ImageFile  string    `json:"image_file,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
