package events

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Metadata keys set by NewMessage.
const (
	MetadataEventID      = "event_id"
	MetadataEventVersion = "event_version"
)

// NewMessage encodes event as a JSON message. The event id and schema
// version are copied into metadata for consumers that deduplicate.
func NewMessage(eventID string, version int, event any) (*message.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("events: marshal event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(MetadataEventID, eventID)
	msg.Metadata.Set(MetadataEventVersion, strconv.Itoa(version))
	return msg, nil
}

// Decode unmarshals the JSON payload of msg into T. A version newer than
// maxVersion is rejected; messages without a version are accepted.
func Decode[T any](msg *message.Message, maxVersion int) (T, error) {
	var evt T
	if v := msg.Metadata.Get(MetadataEventVersion); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return evt, fmt.Errorf("events: bad event version %q: %w", v, err)
		}
		if n > maxVersion {
			return evt, fmt.Errorf("events: unsupported event version %d (max %d)", n, maxVersion)
		}
	}
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		return evt, fmt.Errorf("events: decode payload: %w", err)
	}
	return evt, nil
}
