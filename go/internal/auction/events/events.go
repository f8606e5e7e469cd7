package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/auctionhouse/go/internal/auction"
	"github.com/mcdev12/auctionhouse/go/internal/models"
)

// Event is the envelope for every message the server sends.
type Event struct {
	ID         string          `json:"id"`
	Type       Type            `json:"type"`
	ItemID     string          `json:"itemId,omitempty"`
	ServerTime int64           `json:"serverTime"`
	Version    uint64          `json:"version,omitempty"` // item version described, zero if none
	Data       json.RawMessage `json:"data"`
}

// ClientMessage is the envelope for every message a client sends.
type ClientMessage struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Type names an event on the wire.
type Type string

const (
	TypeBidPlaced        Type = "BID_PLACED"
	TypeBidUpdated       Type = "UPDATE_BID"
	TypeOutbid           Type = "OUTBID"
	TypeBidError         Type = "BID_ERROR"
	TypeAuctionEnded     Type = "AUCTION_ENDED"
	TypeAuctionRestarted Type = "AUCTION_RESTARTED"
	TypeSnapshot         Type = "SNAPSHOT"
)

// Audience says who should receive an event.
type Audience int

const (
	// AudienceAll is every connected viewer.
	AudienceAll Audience = iota
	// AudienceRequester is only the connection that sent the request.
	AudienceRequester
)

// Sink receives events meant for every viewer. Emit must not block on slow
// receivers.
type Sink interface {
	Emit(ctx context.Context, event *Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event *Event)

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, event *Event) {
	f(ctx, event)
}

type fanout []Sink

// Fanout returns a Sink that emits to each non-nil sink in order.
func Fanout(sinks ...Sink) Sink {
	out := make(fanout, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (f fanout) Emit(ctx context.Context, event *Event) {
	for _, s := range f {
		s.Emit(ctx, event)
	}
}

// NewEvent wraps payload in an envelope stamped with at.
func NewEvent(t Type, itemID string, at time.Time, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return &Event{
		ID:         uuid.New().String(),
		Type:       t,
		ItemID:     itemID,
		ServerTime: Millis(at),
		Data:       data,
	}, nil
}

// FromResult builds the event an arbitration outcome produces and says who
// should receive it. Accepted bids go to everyone; rejections only to the bidder.
func FromResult(res auction.Result) (*Event, Audience, error) {
	req := res.Request
	now := Millis(res.DecidedAt)

	switch res.Reason {
	case "":
		event, err := NewItemEvent(TypeBidUpdated, res.Item, res.DecidedAt, BidUpdatedPayload{
			ItemID:        res.Item.ID,
			CurrentBid:    res.Item.CurrentBid,
			HighestBidder: optionalBidder(res.Item.HighestBidder),
			EndTime:       Millis(res.Item.EndTime),
			ServerTime:    now,
			Version:       res.Item.Version,
		})
		return event, AudienceAll, err

	case auction.ReasonBidTooLow:
		event, err := NewEvent(TypeOutbid, req.ItemID, res.DecidedAt, RejectionPayload{
			Reason:        string(res.Reason),
			ItemID:        req.ItemID,
			AttemptedBid:  req.Amount,
			CurrentBid:    res.Item.CurrentBid,
			HighestBidder: optionalBidder(res.Item.HighestBidder),
			ServerTime:    now,
		})
		return event, AudienceRequester, err

	case auction.ReasonDuplicateBid:
		event, err := NewEvent(TypeBidError, req.ItemID, res.DecidedAt, RejectionPayload{
			Reason:        string(res.Reason),
			ItemID:        req.ItemID,
			AttemptedBid:  req.Amount,
			CurrentBid:    res.Item.CurrentBid,
			HighestBidder: optionalBidder(res.Item.HighestBidder),
			Message:       res.Reason.Message(),
			ServerTime:    now,
		})
		return event, AudienceRequester, err

	case auction.ReasonAuctionEnded:
		endTime := Millis(res.Item.EndTime)
		event, err := NewEvent(TypeBidError, req.ItemID, res.DecidedAt, BidErrorPayload{
			Reason:     string(res.Reason),
			ItemID:     req.ItemID,
			Message:    res.Reason.Message(),
			ServerTime: &now,
			EndTime:    &endTime,
		})
		return event, AudienceRequester, err

	case auction.ReasonItemNotFound:
		event, err := NewEvent(TypeBidError, req.ItemID, res.DecidedAt, BidErrorPayload{
			Reason:  string(res.Reason),
			ItemID:  req.ItemID,
			Message: res.Reason.Message(),
		})
		return event, AudienceRequester, err

	default:
		event, err := NewEvent(TypeBidError, "", res.DecidedAt, BidErrorPayload{
			Reason:  string(auction.ReasonInvalidPayload),
			Message: auction.ReasonInvalidPayload.Message(),
		})
		return event, AudienceRequester, err
	}
}

// NewItemEvent is NewEvent for an event describing item's committed state.
func NewItemEvent(t Type, item models.AuctionItem, at time.Time, payload any) (*Event, error) {
	event, err := NewEvent(t, item.ID, at, payload)
	if err != nil {
		return nil, err
	}
	event.Version = item.Version
	return event, nil
}

// InvalidPayload builds the error reply for a message that could not be decoded.
func InvalidPayload(at time.Time) (*Event, error) {
	return NewEvent(TypeBidError, "", at, BidErrorPayload{
		Reason:  string(auction.ReasonInvalidPayload),
		Message: auction.ReasonInvalidPayload.Message(),
	})
}
