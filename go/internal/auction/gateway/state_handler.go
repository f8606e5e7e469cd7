package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/auctionhouse/go/internal/auction/events"
)

// StateHandler serves the HTTP side of the gateway: the initial item
// snapshot and liveness checks.
type StateHandler struct {
	app AuctionApp
}

// NewStateHandler creates a new state handler
func NewStateHandler(app AuctionApp) *StateHandler {
	return &StateHandler{app: app}
}

// HandleGetItems handles GET /items
func (h *StateHandler) HandleGetItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, events.NewSnapshotPayload(h.app.Snapshot()))
}

// HandleHealth handles GET /health
func (h *StateHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandlePing handles GET /api/ping
func (h *StateHandler) HandlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "pong"})
}

// HandleNotFound answers every unknown path with a JSON 404.
func (h *StateHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/items", h.HandleGetItems)
	mux.HandleFunc("/health", h.HandleHealth)
	mux.HandleFunc("/api/ping", h.HandlePing)
	mux.HandleFunc("/", h.HandleNotFound)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
