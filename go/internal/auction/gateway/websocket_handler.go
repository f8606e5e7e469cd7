package gateway

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests from viewers
type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
	}
}

// HandleConnection upgrades a viewer connection. The optional bidder_id query
// parameter is used for bids that do not name a bidder.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	bidderID := r.URL.Query().Get("bidder_id")

	// The upgrader has already written an HTTP error response on failure.
	if _, err := h.connectionManager.UpgradeConnection(w, r, bidderID); err != nil {
		log.Warn().
			Err(err).
			Str("origin", r.Header.Get("Origin")).
			Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.connectionManager.GetConnectionStats())
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
