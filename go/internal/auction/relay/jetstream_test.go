package relay

import (
	"encoding/json"
	"testing"

	"github.com/mcdev12/auctionhouse/go/internal/auction/events"
)

func TestSubject(t *testing.T) {
	tests := []struct {
		name  string
		event *events.Event
		want  string
	}{
		{"item event", &events.Event{Type: events.TypeBidUpdated, ItemID: "item-1"}, "auction.events.item-1.UPDATE_BID"},
		{"no item", &events.Event{Type: events.TypeSnapshot}, "auction.events.all.SNAPSHOT"},
		{"dotted item", &events.Event{Type: events.TypeAuctionEnded, ItemID: "lot.7"}, "auction.events.lot_7.AUCTION_ENDED"},
		{"wildcards", &events.Event{Type: events.TypeOutbid, ItemID: "a*b>c d"}, "auction.events.a_b_c_d.OUTBID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Subject("auction.events", tt.event); got != tt.want {
				t.Errorf("Subject() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewMessage(t *testing.T) {
	event := &events.Event{
		ID:         "evt-1",
		Type:       events.TypeBidUpdated,
		ItemID:     "item-1",
		ServerTime: 1700000000000,
		Data:       json.RawMessage(`{"itemId":"item-1","currentBid":110}`),
	}

	msg, err := NewMessage("auction.events", event)
	if err != nil {
		t.Fatalf("NewMessage failed: %v", err)
	}

	if msg.Subject != "auction.events.item-1.UPDATE_BID" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if got := msg.Header.Get("Event-Type"); got != "UPDATE_BID" {
		t.Errorf("Event-Type = %q, want UPDATE_BID", got)
	}
	if got := msg.Header.Get("Event-ID"); got != "evt-1" {
		t.Errorf("Event-ID = %q, want evt-1", got)
	}
	if got := msg.Header.Get("Item-ID"); got != "item-1" {
		t.Errorf("Item-ID = %q, want item-1", got)
	}

	var decoded events.Event
	if err := json.Unmarshal(msg.Data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.ID != event.ID || decoded.ServerTime != event.ServerTime {
		t.Errorf("decoded = %+v, want %+v", decoded, event)
	}
}

func TestNewMessage_NoItemHeader(t *testing.T) {
	msg, err := NewMessage("auction.events", &events.Event{ID: "evt-2", Type: events.TypeSnapshot, Data: json.RawMessage(`{}`)})
	if err != nil {
		t.Fatalf("NewMessage failed: %v", err)
	}
	if _, ok := msg.Header["Item-ID"]; ok {
		t.Error("Item-ID header set for event without item")
	}
}

func TestDefaultJetStreamConfig(t *testing.T) {
	cfg := DefaultJetStreamConfig()
	if cfg.StreamName != "AUCTION_EVENTS" || cfg.SubjectPrefix != "auction.events" {
		t.Errorf("DefaultJetStreamConfig() = %+v", cfg)
	}
	if cfg.MaxPending <= 0 || cfg.DuplicateWindow <= 0 {
		t.Errorf("DefaultJetStreamConfig() limits = %+v, want positive", cfg)
	}
}
