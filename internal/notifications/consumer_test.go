package notifications

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"expiry-tracker/internal/products"
)

func TestConsumer_Handle(t *testing.T) {
	tests := []struct {
		name      string
		event     products.ProductEvent
		wantLevel string
		wantMsg   string
	}{
		{
			name:      "due soon is a warning",
			event:     products.ProductEvent{EventType: products.EventCreated, ProductID: 1, Name: "Milk", ExpiryDate: "2024-01-08", Status: products.StatusDueSoon},
			wantLevel: "WARN",
			wantMsg:   "product expires soon",
		},
		{
			name:      "expired is a warning",
			event:     products.ProductEvent{EventType: products.EventUpdated, ProductID: 1, Name: "Milk", ExpiryDate: "2024-01-08", Status: products.StatusExpired},
			wantLevel: "WARN",
			wantMsg:   "product has expired",
		},
		{
			name:      "safe is info",
			event:     products.ProductEvent{EventType: products.EventCreated, ProductID: 2, Name: "Rice", ExpiryDate: "2025-01-08", Status: products.StatusSafe},
			wantLevel: "INFO",
			wantMsg:   "product tracked",
		},
		{
			name:      "deleted is info",
			event:     products.ProductEvent{EventType: products.EventDeleted, ProductID: 3, Name: "Bread"},
			wantLevel: "INFO",
			wantMsg:   "product removed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			c := &Consumer{logger: slog.New(slog.NewJSONHandler(&buf, nil))}

			tt.event.Timestamp = time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
			body, _ := json.Marshal(tt.event)
			if err := c.Handle(body); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("decode log entry: %v (%s)", err, buf.String())
			}
			if entry["level"] != tt.wantLevel {
				t.Fatalf("want level %s, got %v", tt.wantLevel, entry["level"])
			}
			if entry["msg"] != tt.wantMsg {
				t.Fatalf("want msg %q, got %v", tt.wantMsg, entry["msg"])
			}
		})
	}
}

func TestConsumer_HandleInvalidPayload(t *testing.T) {
	c := &Consumer{logger: slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))}
	if err := c.Handle([]byte("not json")); err == nil {
		t.Fatal("expected error for invalid payload")
	}
}
