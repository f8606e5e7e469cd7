package config

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/mcdev12/auctionhouse/go/internal/auction"
	"github.com/mcdev12/auctionhouse/go/internal/auction/orchestrator"
)

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Auction.BreakDuration <= 0 {
		errs = append(errs, errors.New("auction.break_duration must be positive"))
	}
	if c.Auction.SweepInterval <= 0 {
		errs = append(errs, errors.New("auction.sweep_interval must be positive"))
	}
	if _, err := orchestrator.ParseRoundPolicy(c.Auction.RoundPolicy); err != nil {
		errs = append(errs, fmt.Errorf("auction.round_policy: %w", err))
	}
	if len(c.Auction.Items) == 0 {
		errs = append(errs, errors.New("auction.items must not be empty"))
	}

	seen := make(map[string]bool, len(c.Auction.Items))
	for i, item := range c.Auction.Items {
		switch {
		case item.ID == "":
			errs = append(errs, fmt.Errorf("auction.items[%d]: id is required", i))
		case len(item.ID) > auction.MaxIdentifierLength:
			errs = append(errs, fmt.Errorf("auction.items[%d]: id longer than %d bytes", i, auction.MaxIdentifierLength))
		case !auction.ValidIdentifier(item.ID):
			errs = append(errs, fmt.Errorf("auction.items[%d]: id %q must be UTF-8 without control characters", i, item.ID))
		case seen[item.ID]:
			errs = append(errs, fmt.Errorf("auction.items[%d]: duplicate id %q", i, item.ID))
		}
		seen[item.ID] = true

		if math.IsNaN(item.StartingPrice) || math.IsInf(item.StartingPrice, 0) || item.StartingPrice <= 0 {
			errs = append(errs, fmt.Errorf("auction.items[%d]: starting_price must be positive", i))
		}
		if item.Duration <= 0 {
			errs = append(errs, fmt.Errorf("auction.items[%d]: duration must be positive", i))
		}
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q must be console or json", c.Log.Format))
	}

	return errors.Join(errs...)
}
