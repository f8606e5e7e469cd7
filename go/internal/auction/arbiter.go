package auction

import (
	"errors"
	"math"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/auctionhouse/go/internal/models"
)

// MaxIdentifierLength bounds item and bidder ids in bytes.
const MaxIdentifierLength = 128

// RejectReason names why a bid was not accepted. The empty reason means accepted.
type RejectReason string

const (
	ReasonInvalidPayload RejectReason = "invalid_payload"
	ReasonItemNotFound   RejectReason = "item_not_found"
	ReasonAuctionEnded   RejectReason = "auction_ended"
	ReasonDuplicateBid   RejectReason = "duplicate_bid"
	ReasonBidTooLow      RejectReason = "bid_too_low"
)

// Message is the human readable text sent alongside a rejection.
func (r RejectReason) Message() string {
	switch r {
	case ReasonInvalidPayload:
		return "Invalid bid payload."
	case ReasonItemNotFound:
		return "Auction item not found."
	case ReasonAuctionEnded:
		return "Auction has already ended."
	case ReasonDuplicateBid:
		return "You already hold the current highest bid."
	case ReasonBidTooLow:
		return "Bid must be higher than the current bid."
	default:
		return ""
	}
}

// BidRequest is a proposed bid as received from a client.
type BidRequest struct {
	ItemID   string
	Amount   float64
	BidderID string
}

// Result is the outcome of one arbitration. Exactly one of two shapes:
// accepted (Reason empty, Item is the committed state) or rejected (Reason
// set, Item is the state the bid was judged against, zero if unknown).
type Result struct {
	Request   BidRequest
	Reason    RejectReason
	Item      models.AuctionItem
	DecidedAt time.Time
}

// Accepted reports whether the bid was committed.
func (r Result) Accepted() bool {
	return r.Reason == ""
}

// ValidateRequest checks the shape of a request without looking at any item.
func ValidateRequest(req BidRequest) RejectReason {
	if math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) || req.Amount <= 0 {
		return ReasonInvalidPayload
	}
	if !ValidIdentifier(req.ItemID) || !ValidIdentifier(req.BidderID) {
		return ReasonInvalidPayload
	}
	return ""
}

// ValidIdentifier reports whether s is usable as an item or bidder id:
// non-empty, at most MaxIdentifierLength bytes of UTF-8, no control characters.
func ValidIdentifier(s string) bool {
	if s == "" || len(s) > MaxIdentifierLength || !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// Decide applies the item-dependent rules in precedence order: ended,
// duplicate self-bid, too low. It returns the empty reason when the bid beats
// the current one.
func Decide(item models.AuctionItem, req BidRequest, now time.Time) RejectReason {
	if item.Ended(now) {
		return ReasonAuctionEnded
	}
	// A bidder repeating their own standing bid is told so rather than being
	// reported as outbid by themselves.
	if req.Amount == item.CurrentBid && item.HighestBidder == req.BidderID {
		return ReasonDuplicateBid
	}
	if req.Amount <= item.CurrentBid {
		return ReasonBidTooLow
	}
	return ""
}

// Arbiter is the single entry point for bids.
type Arbiter struct {
	registry *Registry
}

// NewArbiter creates an arbiter over registry.
func NewArbiter(registry *Registry) *Arbiter {
	return &Arbiter{registry: registry}
}

// PlaceBid judges req against the item's current state and commits it if it
// wins. The decision and the write happen under the item's lock, so two bids
// can never both beat the same stale current bid. The returned error is only
// set for internal faults; rejections are reported through Result.
func (a *Arbiter) PlaceBid(req BidRequest) (Result, error) {
	res := Result{Request: req}

	if reason := ValidateRequest(req); reason != "" {
		res.Reason = reason
		res.DecidedAt = a.registry.Clock().Now()
		return res, nil
	}

	item, err := a.registry.update(req.ItemID, func(tx *txn) error {
		res.DecidedAt = a.registry.Clock().Now()
		res.Reason = Decide(tx.snapshot(), req, res.DecidedAt)
		if res.Accepted() {
			tx.applyBid(req.Amount, req.BidderID)
		}
		return nil
	})
	if errors.Is(err, ErrItemNotFound) {
		res.Reason = ReasonItemNotFound
		res.DecidedAt = a.registry.Clock().Now()
		return res, nil
	}
	if err != nil {
		log.Error().Err(err).Str("item_id", req.ItemID).Msg("bid aborted on invariant failure")
		return res, err
	}

	res.Item = item
	if res.Accepted() {
		log.Info().
			Str("item_id", req.ItemID).
			Str("bidder_id", req.BidderID).
			Float64("amount", req.Amount).
			Msg("bid accepted")
	} else {
		log.Debug().
			Str("item_id", req.ItemID).
			Str("bidder_id", req.BidderID).
			Float64("amount", req.Amount).
			Str("reason", string(res.Reason)).
			Msg("bid rejected")
	}
	return res, nil
}
