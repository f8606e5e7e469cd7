package gateway

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/auctionhouse/go/internal/auction/events"
)

// Service is the broadcast gateway: it accepts viewer connections, feeds
// their bids to the auction core and fans events back out.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	broadcast         events.Sink
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
	}
}

// NewService creates a gateway over app. Broadcast events reach every
// WebSocket viewer and then each of mirrors, in order.
func NewService(config Config, app AuctionApp, mirrors ...events.Sink) *Service {
	connectionManager := NewConnectionManager(config.ConnectionConfig)
	broadcast := events.Fanout(append([]events.Sink{connectionManager}, mirrors...)...)
	connectionManager.SetHandler(NewBidHandler(app, broadcast))

	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
		stateHandler:      NewStateHandler(app),
		broadcast:         broadcast,
	}
}

// Broadcast is the sink lifecycle events should be emitted to.
func (s *Service) Broadcast() events.Sink {
	return s.broadcast
}

// Start delivers broadcasts until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting auction gateway")
	s.connectionManager.Start(ctx)
	log.Info().Msg("auction gateway stopped")
	return nil
}

// RegisterRoutes registers the WebSocket and HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	log.Info().Msg("auction gateway routes registered")
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() map[string]interface{} {
	stats := s.connectionManager.GetConnectionStats()
	stats["service"] = "auction_gateway"
	return stats
}
