package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/auctionhouse/go/internal/auction"
	"github.com/mcdev12/auctionhouse/go/internal/auction/events"
)

// AuctionApp is what the gateway needs from the auction core.
type AuctionApp interface {
	PlaceBid(req auction.BidRequest) (auction.Result, error)
	Snapshot() auction.Snapshot
	Now() time.Time
}

// BidHandler turns inbound client messages into arbitration calls and routes
// each outcome to the bidder or to everyone.
type BidHandler struct {
	app       AuctionApp
	broadcast events.Sink
}

// NewBidHandler creates a handler that publishes accepted bids to broadcast.
func NewBidHandler(app AuctionApp, broadcast events.Sink) *BidHandler {
	return &BidHandler{app: app, broadcast: broadcast}
}

// OnConnect sends the current state to a new viewer.
func (h *BidHandler) OnConnect(_ context.Context, conn *Connection) {
	snapshot := h.app.Snapshot()
	event, err := events.NewEvent(events.TypeSnapshot, "", snapshot.ServerTime, events.NewSnapshotPayload(snapshot))
	if err != nil {
		log.Error().Err(err).Str("connection_id", conn.ID).Msg("failed to build snapshot")
		return
	}
	conn.Reply(event)
}

// OnMessage handles one inbound frame.
func (h *BidHandler) OnMessage(ctx context.Context, conn *Connection, message []byte) {
	var msg events.ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Debug().Err(err).Str("connection_id", conn.ID).Msg("malformed client message")
		h.replyInvalid(conn)
		return
	}

	switch msg.Type {
	case events.TypeBidPlaced:
		h.handleBidPlaced(ctx, conn, msg.Data)
	default:
		log.Debug().
			Str("connection_id", conn.ID).
			Str("type", string(msg.Type)).
			Msg("ignoring unknown client message type")
	}
}

func (h *BidHandler) handleBidPlaced(ctx context.Context, conn *Connection, data json.RawMessage) {
	var payload events.BidPlacedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Debug().Err(err).Str("connection_id", conn.ID).Msg("malformed bid payload")
		h.replyInvalid(conn)
		return
	}

	bidderID := payload.BidderID
	if bidderID == "" {
		bidderID = conn.BidderID
	}

	res, err := h.app.PlaceBid(auction.BidRequest{
		ItemID:   payload.ItemID,
		Amount:   payload.Amount,
		BidderID: bidderID,
	})
	if err != nil {
		// Internal fault: the registry is untouched, tell the bidder nothing was applied.
		log.Error().Err(err).Str("connection_id", conn.ID).Msg("bid processing failed")
		h.replyInvalid(conn)
		return
	}

	event, audience, err := events.FromResult(res)
	if err != nil {
		log.Error().Err(err).Str("connection_id", conn.ID).Msg("failed to build bid event")
		return
	}

	if audience == events.AudienceAll {
		h.broadcast.Emit(ctx, event)
		return
	}
	conn.Reply(event)
}

func (h *BidHandler) replyInvalid(conn *Connection) {
	event, err := events.InvalidPayload(h.app.Now())
	if err != nil {
		return
	}
	conn.Reply(event)
}
