package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/auctionhouse/go/internal/auction"
	"github.com/mcdev12/auctionhouse/go/internal/auction/events"
	"github.com/mcdev12/auctionhouse/go/internal/models"
)

// RoundPolicy decides when ended items go on break and restart.
type RoundPolicy string

const (
	// PolicyIndependent runs every item's rounds on its own timer.
	PolicyIndependent RoundPolicy = "independent"
	// PolicyGlobal holds ended items until every item has ended, then breaks
	// and restarts them together.
	PolicyGlobal RoundPolicy = "global"
)

// ParseRoundPolicy accepts the names used in configuration.
func ParseRoundPolicy(s string) (RoundPolicy, error) {
	switch RoundPolicy(s) {
	case PolicyIndependent, PolicyGlobal:
		return RoundPolicy(s), nil
	case "":
		return PolicyIndependent, nil
	default:
		return "", fmt.Errorf("unknown round policy %q", s)
	}
}

// TransitionKind names a lifecycle step taken by a sweep.
type TransitionKind string

const (
	TransitionBreakStarted TransitionKind = "break_started"
	TransitionRestarted    TransitionKind = "restarted"
)

// Transition is one item changing state during a sweep. Item is the state
// right after the change.
type Transition struct {
	Kind TransitionKind
	Item models.AuctionItem
	At   time.Time
}

// Config controls the sweep.
type Config struct {
	SweepInterval time.Duration
	BreakDuration time.Duration
	Policy        RoundPolicy
	// IncludeBreakDuration adds the break length to break-start events.
	IncludeBreakDuration bool
}

// DefaultConfig matches the original one second sweep and one minute break.
func DefaultConfig() Config {
	return Config{
		SweepInterval:        time.Second,
		BreakDuration:        time.Minute,
		Policy:               PolicyIndependent,
		IncludeBreakDuration: true,
	}
}

// Orchestrator drives every item through active, break and restart.
type Orchestrator struct {
	registry   *auction.Registry
	sink       events.Sink
	clock      clockwork.Clock
	config     Config
	instanceID string
}

// NewOrchestrator creates an orchestrator that reads time from the registry's clock.
func NewOrchestrator(registry *auction.Registry, sink events.Sink, config Config) (*Orchestrator, error) {
	if config.SweepInterval <= 0 {
		return nil, errors.New("sweep interval must be positive")
	}
	if config.BreakDuration <= 0 {
		return nil, errors.New("break duration must be positive")
	}
	if config.Policy == "" {
		config.Policy = PolicyIndependent
	}
	if sink == nil {
		sink = events.Fanout()
	}

	return &Orchestrator{
		registry:   registry,
		sink:       sink,
		clock:      registry.Clock(),
		config:     config,
		instanceID: uuid.New().String()[:8],
	}, nil
}

// Run sweeps on every tick until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	log.Info().
		Str("instance", o.instanceID).
		Str("policy", string(o.config.Policy)).
		Dur("interval", o.config.SweepInterval).
		Dur("break", o.config.BreakDuration).
		Msg("lifecycle scheduler started")

	ticker := o.clock.NewTicker(o.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("instance", o.instanceID).Msg("lifecycle scheduler shutting down")
			return nil
		case <-ticker.Chan():
			o.Sweep(ctx)
		}
	}
}

// Sweep performs one pass over every item and emits an event for each
// transition. It must not be called concurrently with itself.
func (o *Orchestrator) Sweep(ctx context.Context) []Transition {
	now := o.clock.Now()

	var transitions []Transition
	switch o.config.Policy {
	case PolicyGlobal:
		transitions = o.sweepGlobal(now)
	default:
		transitions = o.sweepIndependent(now)
	}

	for _, tr := range transitions {
		o.emit(ctx, tr)
	}
	return transitions
}

func (o *Orchestrator) sweepIndependent(now time.Time) []Transition {
	var out []Transition
	for _, id := range o.registry.IDs() {
		if tr, ok := o.startBreak(id, now); ok {
			out = append(out, tr)
		} else if tr, ok := o.restart(id, now); ok {
			out = append(out, tr)
		}
	}
	return out
}

// sweepGlobal only acts once every item has ended. Breaks all begin in the
// same sweep, so they all elapse together and the restart is collective.
func (o *Orchestrator) sweepGlobal(now time.Time) []Transition {
	items := o.registry.List()
	for _, item := range items {
		if !item.Ended(now) {
			return nil
		}
	}

	var out []Transition
	for _, item := range items {
		if tr, ok := o.startBreak(item.ID, now); ok {
			out = append(out, tr)
		}
	}
	if len(out) > 0 {
		return out
	}

	for _, item := range items {
		if !item.OnBreak() || now.Sub(*item.BreakStartTime) < o.config.BreakDuration {
			return nil
		}
	}
	for _, item := range items {
		if tr, ok := o.restart(item.ID, now); ok {
			out = append(out, tr)
		}
	}
	return out
}

// startBreak puts an ended item on break.
func (o *Orchestrator) startBreak(id string, now time.Time) (Transition, bool) {
	item, started, err := o.registry.StartBreakIfEnded(id, now)
	if err != nil {
		log.Error().Err(err).Str("item_id", id).Msg("failed to start break")
		return Transition{}, false
	}
	if !started {
		return Transition{}, false
	}

	log.Info().
		Str("item_id", id).
		Int("round", item.Round).
		Str("winner", item.HighestBidder).
		Float64("final_bid", item.CurrentBid).
		Msg("auction ended, starting break")
	return Transition{Kind: TransitionBreakStarted, Item: item, At: now}, true
}

// restart begins a new round for an item whose break has elapsed.
func (o *Orchestrator) restart(id string, now time.Time) (Transition, bool) {
	item, restarted, err := o.registry.RestartAfterBreak(id, now, o.config.BreakDuration)
	if err != nil {
		log.Error().Err(err).Str("item_id", id).Msg("failed to restart auction")
		return Transition{}, false
	}
	if !restarted {
		return Transition{}, false
	}

	log.Info().
		Str("item_id", id).
		Int("round", item.Round).
		Time("end_time", item.EndTime).
		Msg("break ended, restarting auction")
	return Transition{Kind: TransitionRestarted, Item: item, At: now}, true
}

func (o *Orchestrator) emit(ctx context.Context, tr Transition) {
	var (
		event *events.Event
		err   error
	)
	switch tr.Kind {
	case TransitionBreakStarted:
		var breakDuration time.Duration
		if o.config.IncludeBreakDuration {
			breakDuration = o.config.BreakDuration
		}
		event, err = events.NewItemEvent(events.TypeAuctionEnded, tr.Item, tr.At,
			events.NewAuctionEndedPayload(tr.Item, tr.At, breakDuration))
	case TransitionRestarted:
		event, err = events.NewItemEvent(events.TypeAuctionRestarted, tr.Item, tr.At,
			events.NewAuctionRestartedPayload(tr.Item, tr.At))
	default:
		return
	}
	if err != nil {
		log.Error().Err(err).Str("item_id", tr.Item.ID).Msg("failed to build lifecycle event")
		return
	}
	o.sink.Emit(ctx, event)
}
