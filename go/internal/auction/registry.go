package auction

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/auctionhouse/go/internal/models"
)

// ErrItemNotFound is returned for ids the registry was not created with.
var ErrItemNotFound = errors.New("auction item not found")

// Lot is the startup definition of an item.
type Lot struct {
	ID            string
	Title         string
	StartingPrice float64
	Duration      time.Duration
}

// Registry owns every AuctionItem for the life of the process.
// The set of items is fixed at construction; each item is guarded by its own
// mutex so bids on different lots never contend.
type Registry struct {
	clock   clockwork.Clock
	order   []string
	records map[string]*record
}

type record struct {
	mu       sync.Mutex
	item     models.AuctionItem
	duration time.Duration
}

// NewRegistry creates a registry whose first round for every lot starts now.
func NewRegistry(clock clockwork.Clock, lots []Lot) (*Registry, error) {
	if len(lots) == 0 {
		return nil, errors.New("registry needs at least one lot")
	}

	now := clock.Now()
	r := &Registry{
		clock:   clock,
		order:   make([]string, 0, len(lots)),
		records: make(map[string]*record, len(lots)),
	}

	for _, lot := range lots {
		if _, exists := r.records[lot.ID]; exists {
			return nil, fmt.Errorf("duplicate lot id %q", lot.ID)
		}
		if lot.Duration <= 0 {
			return nil, fmt.Errorf("lot %q: duration must be positive", lot.ID)
		}
		if !(lot.StartingPrice > 0) || math.IsInf(lot.StartingPrice, 1) {
			return nil, fmt.Errorf("lot %q: starting price must be positive", lot.ID)
		}

		item := models.AuctionItem{
			ID:            lot.ID,
			Title:         lot.Title,
			StartingPrice: lot.StartingPrice,
			CurrentBid:    lot.StartingPrice,
			EndTime:       now.Add(lot.Duration),
			Round:         1,
			Version:       1,
		}
		if err := item.Validate(); err != nil {
			return nil, err
		}

		r.order = append(r.order, lot.ID)
		r.records[lot.ID] = &record{item: item, duration: lot.Duration}
	}

	return r, nil
}

// Clock returns the authoritative clock used for every decision.
func (r *Registry) Clock() clockwork.Clock {
	return r.clock
}

// IDs returns item ids in catalog order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// List returns a copy of every item in catalog order.
func (r *Registry) List() []models.AuctionItem {
	items := make([]models.AuctionItem, 0, len(r.order))
	for _, id := range r.order {
		rec := r.records[id]
		rec.mu.Lock()
		items = append(items, rec.item.Clone())
		rec.mu.Unlock()
	}
	return items
}

// GetByID returns a copy of one item.
func (r *Registry) GetByID(id string) (models.AuctionItem, error) {
	rec, ok := r.records[id]
	if !ok {
		return models.AuctionItem{}, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.item.Clone(), nil
}

// update runs fn with exclusive access to one item. Writes staged on the txn
// are committed only if fn returns nil and the result still validates, so a
// failed update never leaves a partially written item behind. Every commit
// bumps the item's version.
func (r *Registry) update(id string, fn func(tx *txn) error) (models.AuctionItem, error) {
	rec, ok := r.records[id]
	if !ok {
		return models.AuctionItem{}, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	tx := &txn{item: rec.item.Clone(), duration: rec.duration}
	if err := fn(tx); err != nil {
		return rec.item.Clone(), err
	}
	if !tx.dirty {
		return rec.item.Clone(), nil
	}
	if err := tx.item.Validate(); err != nil {
		return rec.item.Clone(), err
	}

	tx.item.Version = rec.item.Version + 1
	rec.item = tx.item
	return rec.item.Clone(), nil
}

// MarkBreakStart puts an item on break at now. It reports false without error
// when the item was already on break.
func (r *Registry) MarkBreakStart(id string, now time.Time) (bool, error) {
	var started bool
	_, err := r.update(id, func(tx *txn) error {
		started = tx.markBreakStart(now)
		return nil
	})
	return started, err
}

// ResetItem starts a fresh round for an item at now.
func (r *Registry) ResetItem(id string, now time.Time) (models.AuctionItem, error) {
	return r.update(id, func(tx *txn) error {
		tx.reset(now)
		return nil
	})
}

// StartBreakIfEnded puts the item on break at now if its round has ended and
// it is not already on break. The check and the write happen under the item's
// lock; started reports whether this call made the change.
func (r *Registry) StartBreakIfEnded(id string, now time.Time) (item models.AuctionItem, started bool, err error) {
	item, err = r.update(id, func(tx *txn) error {
		if tx.item.Ended(now) && !tx.item.OnBreak() {
			started = tx.markBreakStart(now)
		}
		return nil
	})
	return item, started, err
}

// RestartAfterBreak begins a new round at now if the item has been on break
// for at least breakDuration.
func (r *Registry) RestartAfterBreak(id string, now time.Time, breakDuration time.Duration) (item models.AuctionItem, restarted bool, err error) {
	item, err = r.update(id, func(tx *txn) error {
		if tx.item.OnBreak() && now.Sub(*tx.item.BreakStartTime) >= breakDuration {
			tx.reset(now)
			restarted = true
		}
		return nil
	})
	return item, restarted, err
}
