package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mcdev12/auctionhouse/go/internal/auction"
	"github.com/mcdev12/auctionhouse/go/internal/models"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func testItem() models.AuctionItem {
	return models.AuctionItem{
		ID:            "item-1",
		Title:         "Vintage Watch",
		StartingPrice: 100,
		CurrentBid:    120,
		HighestBidder: "alice",
		EndTime:       testNow.Add(time.Minute),
		Round:         1,
	}
}

func decode(t *testing.T, data json.RawMessage) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	return m
}

func TestFromResult(t *testing.T) {
	req := auction.BidRequest{ItemID: "item-1", Amount: 110, BidderID: "bob"}

	tests := []struct {
		name         string
		reason       auction.RejectReason
		wantType     Type
		wantAudience Audience
		wantReason   string
	}{
		{"accepted", "", TypeBidUpdated, AudienceAll, ""},
		{"too low", auction.ReasonBidTooLow, TypeOutbid, AudienceRequester, "bid_too_low"},
		{"duplicate", auction.ReasonDuplicateBid, TypeBidError, AudienceRequester, "duplicate_bid"},
		{"ended", auction.ReasonAuctionEnded, TypeBidError, AudienceRequester, "auction_ended"},
		{"not found", auction.ReasonItemNotFound, TypeBidError, AudienceRequester, "item_not_found"},
		{"invalid", auction.ReasonInvalidPayload, TypeBidError, AudienceRequester, "invalid_payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := auction.Result{Request: req, Reason: tt.reason, Item: testItem(), DecidedAt: testNow}

			event, audience, err := FromResult(res)
			if err != nil {
				t.Fatalf("FromResult failed: %v", err)
			}
			if event.Type != tt.wantType {
				t.Errorf("Type = %s, want %s", event.Type, tt.wantType)
			}
			if audience != tt.wantAudience {
				t.Errorf("Audience = %v, want %v", audience, tt.wantAudience)
			}
			if event.ServerTime != testNow.UnixMilli() {
				t.Errorf("ServerTime = %d, want %d", event.ServerTime, testNow.UnixMilli())
			}
			if event.ID == "" {
				t.Error("event ID is empty")
			}

			payload := decode(t, event.Data)
			if tt.wantReason == "" {
				if _, ok := payload["reason"]; ok {
					t.Errorf("accepted payload has reason %v", payload["reason"])
				}
				return
			}
			if payload["reason"] != tt.wantReason {
				t.Errorf("reason = %v, want %s", payload["reason"], tt.wantReason)
			}
			if msg, _ := payload["message"].(string); tt.reason != auction.ReasonBidTooLow && msg == "" {
				t.Error("error payload has no message")
			}
		})
	}
}

func TestFromResult_AcceptedPayload(t *testing.T) {
	item := testItem()
	item.Version = 5
	res := auction.Result{
		Request:   auction.BidRequest{ItemID: "item-1", Amount: 120, BidderID: "alice"},
		Item:      item,
		DecidedAt: testNow,
	}

	event, _, err := FromResult(res)
	if err != nil {
		t.Fatalf("FromResult failed: %v", err)
	}

	var p BidUpdatedPayload
	if err := json.Unmarshal(event.Data, &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.ItemID != "item-1" || p.CurrentBid != 120 {
		t.Errorf("payload = %+v, want item-1 at 120", p)
	}
	if p.HighestBidder == nil || *p.HighestBidder != "alice" {
		t.Errorf("HighestBidder = %v, want alice", p.HighestBidder)
	}
	if p.EndTime != item.EndTime.UnixMilli() {
		t.Errorf("EndTime = %d, want %d", p.EndTime, item.EndTime.UnixMilli())
	}
	if p.Version != 5 || event.Version != 5 {
		t.Errorf("Version = %d (envelope %d), want 5", p.Version, event.Version)
	}
}

func TestFromResult_OutbidCarriesStandingBid(t *testing.T) {
	item := testItem()
	item.CurrentBid = 100
	item.HighestBidder = ""
	res := auction.Result{
		Request:   auction.BidRequest{ItemID: "item-1", Amount: 90, BidderID: "bob"},
		Reason:    auction.ReasonBidTooLow,
		Item:      item,
		DecidedAt: testNow,
	}

	event, _, err := FromResult(res)
	if err != nil {
		t.Fatalf("FromResult failed: %v", err)
	}

	payload := decode(t, event.Data)
	if payload["attemptedBid"] != 90.0 {
		t.Errorf("attemptedBid = %v, want 90", payload["attemptedBid"])
	}
	if payload["currentBid"] != 100.0 {
		t.Errorf("currentBid = %v, want 100", payload["currentBid"])
	}
	if v, ok := payload["highestBidder"]; !ok || v != nil {
		t.Errorf("highestBidder = %v (present %v), want explicit null", v, ok)
	}
}

func TestFromResult_EndedCarriesTimes(t *testing.T) {
	item := testItem()
	res := auction.Result{
		Request:   auction.BidRequest{ItemID: "item-1", Amount: 500, BidderID: "bob"},
		Reason:    auction.ReasonAuctionEnded,
		Item:      item,
		DecidedAt: testNow,
	}

	event, _, err := FromResult(res)
	if err != nil {
		t.Fatalf("FromResult failed: %v", err)
	}

	var p BidErrorPayload
	if err := json.Unmarshal(event.Data, &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.EndTime == nil || *p.EndTime != item.EndTime.UnixMilli() {
		t.Errorf("EndTime = %v, want %d", p.EndTime, item.EndTime.UnixMilli())
	}
	if p.ServerTime == nil || *p.ServerTime != testNow.UnixMilli() {
		t.Errorf("ServerTime = %v, want %d", p.ServerTime, testNow.UnixMilli())
	}
	if p.Message != auction.ReasonAuctionEnded.Message() {
		t.Errorf("Message = %q, want %q", p.Message, auction.ReasonAuctionEnded.Message())
	}
}

func TestNewAuctionEndedPayload(t *testing.T) {
	item := testItem()
	breakAt := testNow.Add(time.Minute)
	item.BreakStartTime = &breakAt

	p := NewAuctionEndedPayload(item, breakAt, 30*time.Second)
	if p.BreakStartTime != breakAt.UnixMilli() {
		t.Errorf("BreakStartTime = %d, want %d", p.BreakStartTime, breakAt.UnixMilli())
	}
	if p.BreakDuration == nil || *p.BreakDuration != 30000 {
		t.Errorf("BreakDuration = %v, want 30000", p.BreakDuration)
	}
	if p.HighestBidder == nil || *p.HighestBidder != "alice" {
		t.Errorf("HighestBidder = %v, want alice", p.HighestBidder)
	}

	p = NewAuctionEndedPayload(item, breakAt, 0)
	if p.BreakDuration != nil {
		t.Errorf("BreakDuration = %v, want omitted", *p.BreakDuration)
	}
}

func TestNewSnapshotPayload(t *testing.T) {
	item := testItem()
	breakAt := testNow
	fresh := models.AuctionItem{ID: "item-2", StartingPrice: 250, CurrentBid: 250, EndTime: testNow, BreakStartTime: &breakAt, Round: 3}

	p := NewSnapshotPayload(auction.Snapshot{
		ServerTime:    testNow,
		BreakDuration: time.Minute,
		Items:         []models.AuctionItem{item, fresh},
	})

	if p.BreakDuration != 60000 {
		t.Errorf("BreakDuration = %d, want 60000", p.BreakDuration)
	}
	if len(p.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(p.Items))
	}
	if p.Items[0].BreakStartTime != nil {
		t.Errorf("items[0].BreakStartTime = %v, want nil", *p.Items[0].BreakStartTime)
	}
	if p.Items[1].HighestBidder != nil {
		t.Errorf("items[1].HighestBidder = %v, want nil", *p.Items[1].HighestBidder)
	}
	if p.Items[1].BreakStartTime == nil || *p.Items[1].BreakStartTime != testNow.UnixMilli() {
		t.Errorf("items[1].BreakStartTime = %v, want %d", p.Items[1].BreakStartTime, testNow.UnixMilli())
	}
	if p.Items[1].Round != 3 {
		t.Errorf("items[1].Round = %d, want 3", p.Items[1].Round)
	}
}

func TestFanout(t *testing.T) {
	var got []string
	record := func(name string) Sink {
		return SinkFunc(func(_ context.Context, e *Event) {
			got = append(got, name+":"+string(e.Type))
		})
	}

	sink := Fanout(record("a"), nil, record("b"))
	sink.Emit(context.Background(), &Event{Type: TypeSnapshot})

	if len(got) != 2 || got[0] != "a:SNAPSHOT" || got[1] != "b:SNAPSHOT" {
		t.Errorf("Fanout delivered %v, want [a:SNAPSHOT b:SNAPSHOT]", got)
	}

	Fanout().Emit(context.Background(), &Event{})
}

func TestInvalidPayload(t *testing.T) {
	event, err := InvalidPayload(testNow)
	if err != nil {
		t.Fatalf("InvalidPayload failed: %v", err)
	}
	if event.Type != TypeBidError {
		t.Errorf("Type = %s, want %s", event.Type, TypeBidError)
	}
	payload := decode(t, event.Data)
	if payload["reason"] != "invalid_payload" {
		t.Errorf("reason = %v, want invalid_payload", payload["reason"])
	}
}
