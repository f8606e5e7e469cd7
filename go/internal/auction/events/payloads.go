package events

import (
	"time"

	"github.com/mcdev12/auctionhouse/go/internal/auction"
	"github.com/mcdev12/auctionhouse/go/internal/models"
)

// Timestamps on the wire are milliseconds since the Unix epoch. Item state
// carries the item's version; a client keeps the highest version it has seen
// per item and ignores anything older.

// BidPlacedPayload is the inbound bid request.
type BidPlacedPayload struct {
	ItemID   string  `json:"itemId"`
	Amount   float64 `json:"amount"`
	BidderID string  `json:"bidderId"`
}

// BidUpdatedPayload is broadcast when a bid is accepted.
type BidUpdatedPayload struct {
	ItemID        string  `json:"itemId"`
	CurrentBid    float64 `json:"currentBid"`
	HighestBidder *string `json:"highestBidder"`
	EndTime       int64   `json:"endTime"`
	ServerTime    int64   `json:"serverTime"`
	Version       uint64  `json:"version"`
}

// RejectionPayload is sent to the bidder when a bid is too low or repeats
// their own standing bid.
type RejectionPayload struct {
	Reason        string  `json:"reason"`
	ItemID        string  `json:"itemId"`
	AttemptedBid  float64 `json:"attemptedBid"`
	CurrentBid    float64 `json:"currentBid"`
	HighestBidder *string `json:"highestBidder"`
	Message       string  `json:"message,omitempty"`
	ServerTime    int64   `json:"serverTime"`
}

// BidErrorPayload is sent to the bidder for validation and lifecycle errors.
type BidErrorPayload struct {
	Reason     string `json:"reason"`
	ItemID     string `json:"itemId,omitempty"`
	Message    string `json:"message"`
	ServerTime *int64 `json:"serverTime,omitempty"`
	EndTime    *int64 `json:"endTime,omitempty"`
}

// AuctionEndedPayload is broadcast when an item's round ends and its break
// begins. The bidder and bid are the round's final result.
type AuctionEndedPayload struct {
	ItemID         string  `json:"itemId"`
	Round          int     `json:"round"`
	ServerTime     int64   `json:"serverTime"`
	BreakStartTime int64   `json:"breakStartTime"`
	BreakDuration  *int64  `json:"breakDuration,omitempty"`
	CurrentBid     float64 `json:"currentBid"`
	HighestBidder  *string `json:"highestBidder"`
	Version        uint64  `json:"version"`
}

// AuctionRestartedPayload is broadcast when an item starts a new round.
type AuctionRestartedPayload struct {
	ItemID         string  `json:"itemId"`
	Round          int     `json:"round"`
	CurrentBid     float64 `json:"currentBid"`
	HighestBidder  *string `json:"highestBidder"`
	EndTime        int64   `json:"endTime"`
	ServerTime     int64   `json:"serverTime"`
	BreakStartTime *int64  `json:"breakStartTime"`
	Version        uint64  `json:"version"`
}

// ItemState is the wire form of an AuctionItem.
type ItemState struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	StartingPrice  float64 `json:"startingPrice"`
	CurrentBid     float64 `json:"currentBid"`
	HighestBidder  *string `json:"highestBidder"`
	EndTime        int64   `json:"endTime"`
	BreakStartTime *int64  `json:"breakStartTime"`
	Round          int     `json:"round"`
	Version        uint64  `json:"version"`
}

// SnapshotPayload is the full state served to a new viewer.
type SnapshotPayload struct {
	ServerTime    int64       `json:"serverTime"`
	BreakDuration int64       `json:"breakDuration"`
	Items         []ItemState `json:"items"`
}

// Millis converts t to wire milliseconds.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

func optionalBidder(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

func optionalMillis(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := Millis(*t)
	return &ms
}

// NewItemState converts an item to its wire form.
func NewItemState(item models.AuctionItem) ItemState {
	return ItemState{
		ID:             item.ID,
		Title:          item.Title,
		StartingPrice:  item.StartingPrice,
		CurrentBid:     item.CurrentBid,
		HighestBidder:  optionalBidder(item.HighestBidder),
		EndTime:        Millis(item.EndTime),
		BreakStartTime: optionalMillis(item.BreakStartTime),
		Round:          item.Round,
		Version:        item.Version,
	}
}

// NewSnapshotPayload converts a registry snapshot to its wire form.
func NewSnapshotPayload(s auction.Snapshot) SnapshotPayload {
	items := make([]ItemState, 0, len(s.Items))
	for _, item := range s.Items {
		items = append(items, NewItemState(item))
	}
	return SnapshotPayload{
		ServerTime:    Millis(s.ServerTime),
		BreakDuration: s.BreakDuration.Milliseconds(),
		Items:         items,
	}
}

// NewAuctionEndedPayload describes the break that began at item.BreakStartTime.
// breakDuration is omitted from the payload when zero.
func NewAuctionEndedPayload(item models.AuctionItem, now time.Time, breakDuration time.Duration) AuctionEndedPayload {
	p := AuctionEndedPayload{
		ItemID:        item.ID,
		Round:         item.Round,
		ServerTime:    Millis(now),
		CurrentBid:    item.CurrentBid,
		HighestBidder: optionalBidder(item.HighestBidder),
		Version:       item.Version,
	}
	if item.BreakStartTime != nil {
		p.BreakStartTime = Millis(*item.BreakStartTime)
	} else {
		p.BreakStartTime = Millis(now)
	}
	if breakDuration > 0 {
		ms := breakDuration.Milliseconds()
		p.BreakDuration = &ms
	}
	return p
}

// NewAuctionRestartedPayload describes a freshly reset item.
func NewAuctionRestartedPayload(item models.AuctionItem, now time.Time) AuctionRestartedPayload {
	return AuctionRestartedPayload{
		ItemID:         item.ID,
		Round:          item.Round,
		CurrentBid:     item.CurrentBid,
		HighestBidder:  optionalBidder(item.HighestBidder),
		EndTime:        Millis(item.EndTime),
		ServerTime:     Millis(now),
		BreakStartTime: optionalMillis(item.BreakStartTime),
		Version:        item.Version,
	}
}
