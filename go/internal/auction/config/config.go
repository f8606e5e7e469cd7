// Package config loads the auction server configuration: an optional YAML
// catalog file with ${VAR} expansion, environment overrides, then defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/auctionhouse/go/internal/auction"
	"github.com/mcdev12/auctionhouse/go/internal/auction/orchestrator"
)

// Config is the complete server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Auction AuctionConfig `yaml:"auction"`
	NATS    NATSConfig    `yaml:"nats"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig controls the HTTP/WebSocket listener.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AuctionConfig is the lot catalog and lifecycle timing.
type AuctionConfig struct {
	BreakDuration         time.Duration `yaml:"break_duration"`
	SweepInterval         time.Duration `yaml:"sweep_interval"`
	RoundPolicy           string        `yaml:"round_policy"`
	AnnounceBreakDuration *bool         `yaml:"announce_break_duration"`
	Items                 []ItemConfig  `yaml:"items"`
}

// ItemConfig defines one lot.
type ItemConfig struct {
	ID            string        `yaml:"id"`
	Title         string        `yaml:"title"`
	StartingPrice float64       `yaml:"starting_price"`
	Duration      time.Duration `yaml:"duration"`
}

// NATSConfig enables the JetStream mirror when URL is set.
type NATSConfig struct {
	URL           string `yaml:"url"`
	Stream        string `yaml:"stream"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// LogConfig controls zerolog output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// Load reads a config file, expanding ${VAR} references from the environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// LoadWithDefaults loads a config file and fills unset fields with defaults.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// LoadFromEnv builds the process configuration. The file named by
// AUCTION_CONFIG (default auction.yaml) is optional; environment variables
// override it, defaults fill the rest, and the result is validated.
func LoadFromEnv() (*Config, error) {
	path := getEnv("AUCTION_CONFIG", DefaultConfigPath)

	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = &Config{}
	} else if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("BREAK_DURATION"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("BREAK_DURATION: %w", err)
		}
		c.Auction.BreakDuration = d
	}
	if v := os.Getenv("SWEEP_INTERVAL"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("SWEEP_INTERVAL: %w", err)
		}
		c.Auction.SweepInterval = d
	}
	if v := os.Getenv("ROUND_POLICY"); v != "" {
		c.Auction.RoundPolicy = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	return nil
}

// Lots converts the catalog for the registry.
func (c *Config) Lots() []auction.Lot {
	lots := make([]auction.Lot, 0, len(c.Auction.Items))
	for _, item := range c.Auction.Items {
		lots = append(lots, auction.Lot{
			ID:            item.ID,
			Title:         item.Title,
			StartingPrice: item.StartingPrice,
			Duration:      item.Duration,
		})
	}
	return lots
}

// Orchestrator converts the lifecycle settings for the scheduler.
func (c *Config) Orchestrator() (orchestrator.Config, error) {
	policy, err := orchestrator.ParseRoundPolicy(c.Auction.RoundPolicy)
	if err != nil {
		return orchestrator.Config{}, err
	}
	announce := true
	if c.Auction.AnnounceBreakDuration != nil {
		announce = *c.Auction.AnnounceBreakDuration
	}
	return orchestrator.Config{
		SweepInterval:        c.Auction.SweepInterval,
		BreakDuration:        c.Auction.BreakDuration,
		Policy:               policy,
		IncludeBreakDuration: announce,
	}, nil
}

// parseDuration accepts Go durations ("90s") or bare milliseconds ("60000").
func parseDuration(s string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
