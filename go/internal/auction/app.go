package auction

import (
	"time"

	"github.com/mcdev12/auctionhouse/go/internal/models"
)

// Snapshot is the full auction state at one instant, used to bring a newly
// connected viewer up to date.
type Snapshot struct {
	ServerTime    time.Time
	BreakDuration time.Duration
	Items         []models.AuctionItem
}

// App ties the registry and arbiter together for the transport layer.
type App struct {
	registry      *Registry
	arbiter       *Arbiter
	breakDuration time.Duration
}

// NewApp creates an App over registry. breakDuration is reported to clients
// so they can count down breaks locally.
func NewApp(registry *Registry, breakDuration time.Duration) *App {
	return &App{
		registry:      registry,
		arbiter:       NewArbiter(registry),
		breakDuration: breakDuration,
	}
}

// PlaceBid arbitrates a bid.
func (a *App) PlaceBid(req BidRequest) (Result, error) {
	return a.arbiter.PlaceBid(req)
}

// Now returns the authoritative time.
func (a *App) Now() time.Time {
	return a.registry.Clock().Now()
}

// Snapshot returns the current state of every item.
func (a *App) Snapshot() Snapshot {
	return Snapshot{
		ServerTime:    a.registry.Clock().Now(),
		BreakDuration: a.breakDuration,
		Items:         a.registry.List(),
	}
}
