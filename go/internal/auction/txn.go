package auction

import (
	"time"

	"github.com/mcdev12/auctionhouse/go/internal/models"
)

// txn stages changes to a single item while its lock is held.
// It is only valid inside the callback passed to Registry.update.
type txn struct {
	item     models.AuctionItem
	duration time.Duration
	dirty    bool
}

// snapshot returns the item as staged so far.
func (tx *txn) snapshot() models.AuctionItem {
	return tx.item.Clone()
}

// applyBid records amount and bidder together. Only the arbiter calls it.
func (tx *txn) applyBid(amount float64, bidderID string) {
	tx.item.CurrentBid = amount
	tx.item.HighestBidder = bidderID
	tx.dirty = true
}

// markBreakStart sets the break start unless one is already set.
func (tx *txn) markBreakStart(now time.Time) bool {
	if tx.item.BreakStartTime != nil {
		return false
	}
	started := now
	tx.item.BreakStartTime = &started
	tx.dirty = true
	return true
}

// reset restores the item to the start of a round ending one lot duration
// after now. The round number only advances when the item leaves a break, so
// resetting twice at the same instant is indistinguishable from resetting once.
func (tx *txn) reset(now time.Time) {
	if tx.item.BreakStartTime != nil {
		tx.item.Round++
	}
	tx.item.CurrentBid = tx.item.StartingPrice
	tx.item.HighestBidder = ""
	tx.item.BreakStartTime = nil
	tx.item.EndTime = now.Add(tx.duration)
	tx.dirty = true
}
