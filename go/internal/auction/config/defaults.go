package config

import (
	"time"

	"github.com/mcdev12/auctionhouse/go/internal/auction/relay"
)

// Default configuration values.
const (
	DefaultConfigPath      = "auction.yaml"
	DefaultPort            = 3000
	DefaultShutdownTimeout = 10 * time.Second
	DefaultBreakDuration   = 60 * time.Second
	DefaultSweepInterval   = time.Second
	DefaultRoundPolicy     = "independent"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "console"
)

// DefaultAllowedOrigins is the local frontend dev server.
var DefaultAllowedOrigins = []string{"http://localhost:5173"}

// DefaultItems is the catalog used when none is configured.
func DefaultItems() []ItemConfig {
	return []ItemConfig{
		{ID: "item-1", Title: "Vintage Watch", StartingPrice: 100, Duration: time.Minute},
		{ID: "item-2", Title: "Antique Vase", StartingPrice: 250, Duration: 90 * time.Second},
		{ID: "item-3", Title: "Gaming Laptop", StartingPrice: 800, Duration: 2 * time.Minute},
	}
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = append([]string(nil), DefaultAllowedOrigins...)
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if c.Auction.BreakDuration == 0 {
		c.Auction.BreakDuration = DefaultBreakDuration
	}
	if c.Auction.SweepInterval == 0 {
		c.Auction.SweepInterval = DefaultSweepInterval
	}
	if c.Auction.RoundPolicy == "" {
		c.Auction.RoundPolicy = DefaultRoundPolicy
	}
	if len(c.Auction.Items) == 0 {
		c.Auction.Items = DefaultItems()
	}

	relayDefaults := relay.DefaultJetStreamConfig()
	if c.NATS.Stream == "" {
		c.NATS.Stream = relayDefaults.StreamName
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = relayDefaults.SubjectPrefix
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

// JetStream returns the relay configuration, or false when no NATS URL is set.
func (c *Config) JetStream() (relay.JetStreamConfig, bool) {
	if c.NATS.URL == "" {
		return relay.JetStreamConfig{}, false
	}
	cfg := relay.DefaultJetStreamConfig()
	cfg.URL = c.NATS.URL
	cfg.StreamName = c.NATS.Stream
	cfg.SubjectPrefix = c.NATS.SubjectPrefix
	return cfg, true
}
