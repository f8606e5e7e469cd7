package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvariantViolation marks an AuctionItem whose fields contradict each other.
// It signals a programming error, never a rejected bid.
var ErrInvariantViolation = errors.New("auction item invariant violated")

// AuctionItem is one lot and its bidding state for the current round.
type AuctionItem struct {
	ID            string
	Title         string
	StartingPrice float64
	CurrentBid    float64
	HighestBidder string // empty until a bid is accepted
	EndTime       time.Time
	// BreakStartTime is nil while the round is active.
	BreakStartTime *time.Time
	Round          int
	// Version increases by one on every committed change, so a later state
	// always carries a higher version than an earlier one.
	Version uint64
}

// Clone returns a copy that shares no memory with i.
func (i AuctionItem) Clone() AuctionItem {
	if i.BreakStartTime != nil {
		t := *i.BreakStartTime
		i.BreakStartTime = &t
	}
	return i
}

// HasBidder reports whether a bid has been accepted this round.
func (i AuctionItem) HasBidder() bool {
	return i.HighestBidder != ""
}

// OnBreak reports whether the item has ended and is waiting for its next round.
func (i AuctionItem) OnBreak() bool {
	return i.BreakStartTime != nil
}

// Ended reports whether bids are no longer accepted at now.
func (i AuctionItem) Ended(now time.Time) bool {
	return !now.Before(i.EndTime)
}

// Validate checks the field relationships every item must hold.
func (i AuctionItem) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvariantViolation)
	}
	if i.CurrentBid < i.StartingPrice {
		return fmt.Errorf("%w: item %s current bid %v below starting price %v",
			ErrInvariantViolation, i.ID, i.CurrentBid, i.StartingPrice)
	}
	if i.HasBidder() != (i.CurrentBid > i.StartingPrice) {
		return fmt.Errorf("%w: item %s bidder %q inconsistent with current bid %v",
			ErrInvariantViolation, i.ID, i.HighestBidder, i.CurrentBid)
	}
	if i.EndTime.IsZero() {
		return fmt.Errorf("%w: item %s has no end time", ErrInvariantViolation, i.ID)
	}
	return nil
}
