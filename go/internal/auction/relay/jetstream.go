package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/auctionhouse/go/internal/auction/events"
)

// JetStreamConfig controls where broadcast events are mirrored.
type JetStreamConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration // How long to keep messages
	DuplicateWindow time.Duration
	MaxPending      int // async publishes in flight before new events are dropped
}

// DefaultJetStreamConfig returns the default mirror configuration.
func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "AUCTION_EVENTS",
		SubjectPrefix:   "auction.events",
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		MaxAge:          24 * time.Hour,
		DuplicateWindow: 2 * time.Minute,
		MaxPending:      256,
	}
}

// JetStreamPublisher mirrors every broadcast event into a JetStream stream so
// other services can follow the auctions. It implements events.Sink.
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig

	published   atomic.Uint64
	failed      atomic.Uint64
	lastPublish atomic.Int64 // unix ms of the last accepted publish
}

// NewJetStreamPublisher connects to NATS and ensures the stream exists.
func NewJetStreamPublisher(ctx context.Context, cfg JetStreamConfig) (*JetStreamPublisher, error) {
	opts := []nats.Option{
		nats.Name("auction-relay"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	p := &JetStreamPublisher{nc: nc, config: cfg}
	js, err := jetstream.New(nc,
		jetstream.WithPublishAsyncMaxPending(cfg.MaxPending),
		jetstream.WithPublishAsyncErrHandler(func(_ jetstream.JetStream, msg *nats.Msg, err error) {
			p.failed.Add(1)
			log.Error().Err(err).Str("subject", msg.Subject).Msg("JetStream publish failed")
		}),
	)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	p.js = js

	if err := p.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	return p, nil
}

func (p *JetStreamPublisher) ensureStream(ctx context.Context) error {
	sc := jetstream.StreamConfig{
		Name:        p.config.StreamName,
		Description: "Auction bid and lifecycle events",
		Subjects:    []string{p.config.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      p.config.MaxAge,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Duplicates:  p.config.DuplicateWindow,
	}

	stream, err := p.js.Stream(ctx, p.config.StreamName)
	if err != nil {
		if _, err = p.js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().Str("stream", p.config.StreamName).Msg("created JetStream stream")
		return nil
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("get stream info: %w", err)
	}
	if info.Config.MaxAge != sc.MaxAge || info.Config.Duplicates != sc.Duplicates {
		if _, err = p.js.UpdateStream(ctx, sc); err != nil {
			return fmt.Errorf("update stream: %w", err)
		}
		log.Info().Str("stream", p.config.StreamName).Msg("updated JetStream stream")
	}
	return nil
}

// Emit publishes event asynchronously. Failures are logged, never returned:
// the mirror must not hold up bidding.
func (p *JetStreamPublisher) Emit(_ context.Context, event *events.Event) {
	msg, err := NewMessage(p.config.SubjectPrefix, event)
	if err != nil {
		log.Error().Err(err).Str("event_id", event.ID).Msg("failed to encode event for JetStream")
		return
	}

	if _, err := p.js.PublishMsgAsync(msg,
		jetstream.WithMsgID(event.ID),
		jetstream.WithExpectStream(p.config.StreamName),
	); err != nil {
		p.failed.Add(1)
		log.Warn().
			Err(err).
			Str("subject", msg.Subject).
			Str("event_id", event.ID).
			Msg("dropping event, JetStream publish not accepted")
		return
	}
	p.published.Add(1)
	p.lastPublish.Store(time.Now().UnixMilli())
}

// Connected reports whether the NATS connection is up.
func (p *JetStreamPublisher) Connected() bool {
	return p.nc.IsConnected()
}

// Stats returns the publisher's counters.
func (p *JetStreamPublisher) Stats() PublisherStats {
	stats := PublisherStats{
		Published: p.published.Load(),
		Failed:    p.failed.Load(),
		Pending:   p.js.PublishAsyncPending(),
	}
	if ms := p.lastPublish.Load(); ms > 0 {
		stats.LastPublish = time.UnixMilli(ms)
	}
	return stats
}

// Close waits up to timeout for in-flight publishes, then drains the connection.
func (p *JetStreamPublisher) Close(timeout time.Duration) error {
	select {
	case <-p.js.PublishAsyncComplete():
	case <-time.After(timeout):
		log.Warn().Int("pending", p.js.PublishAsyncPending()).Msg("closing with unacknowledged JetStream publishes")
	}
	return p.nc.Drain()
}

// NewMessage builds the NATS message for event.
func NewMessage(prefix string, event *events.Event) (*nats.Msg, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	header := nats.Header{}
	header.Set("Event-Type", string(event.Type))
	header.Set("Event-ID", event.ID)
	if event.ItemID != "" {
		header.Set("Item-ID", event.ItemID)
	}

	return &nats.Msg{
		Subject: Subject(prefix, event),
		Data:    data,
		Header:  header,
	}, nil
}

// Subject returns prefix.<item>.<type>. Events that are not about a single
// item use "all" as the item token.
func Subject(prefix string, event *events.Event) string {
	item := "all"
	if event.ItemID != "" {
		item = subjectToken(event.ItemID)
	}
	return fmt.Sprintf("%s.%s.%s", prefix, item, subjectToken(string(event.Type)))
}

// subjectToken replaces characters that carry meaning in NATS subjects.
func subjectToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '.' || r == '*' || r == '>':
			return '_'
		case r <= ' ' || r == 0x7f:
			return '_'
		default:
			return r
		}
	}, s)
}
