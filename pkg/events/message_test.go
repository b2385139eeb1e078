package events

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
)

func TestNewMessage(t *testing.T) {
	evt := struct {
		ItemID string `json:"item_id"`
	}{ItemID: "7"}

	msg, err := NewMessage("evt-1", 1, evt)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if string(msg.Payload) != `{"item_id":"7"}` {
		t.Errorf("unexpected payload %s", msg.Payload)
	}
	if msg.Metadata.Get(MetadataEventID) != "evt-1" {
		t.Errorf("unexpected event_id %q", msg.Metadata.Get(MetadataEventID))
	}
	if msg.Metadata.Get(MetadataEventVersion) != "1" {
		t.Errorf("unexpected event_version %q", msg.Metadata.Get(MetadataEventVersion))
	}
	if msg.UUID == "" {
		t.Error("expected a message UUID")
	}

	if _, err := NewMessage("evt-2", 1, func() {}); err == nil {
		t.Fatal("expected marshal error for unsupported type")
	}
}

func TestDecode(t *testing.T) {
	type payload struct {
		ItemID string `json:"item_id"`
	}

	tests := []struct {
		name    string
		version string
		body    string
		want    string
		wantErr bool
	}{
		{name: "current version", version: "1", body: `{"item_id":"4"}`, want: "4"},
		{name: "older version", version: "0", body: `{"item_id":"4"}`, want: "4"},
		{name: "no version", body: `{"item_id":"9"}`, want: "9"},
		{name: "newer version", version: "2", body: `{"item_id":"4"}`, wantErr: true},
		{name: "bad version", version: "v1", body: `{"item_id":"4"}`, wantErr: true},
		{name: "bad payload", version: "1", body: `{`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := message.NewMessage("m", []byte(tt.body))
			if tt.version != "" {
				msg.Metadata.Set(MetadataEventVersion, tt.version)
			}
			got, err := Decode[payload](msg, 1)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode error = %v, wantErr = %v", err, tt.wantErr)
			}
			if !tt.wantErr && got.ItemID != tt.want {
				t.Fatalf("expected item %q, got %q", tt.want, got.ItemID)
			}
		})
	}
}
