package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/auctionhouse/go/internal/auction/events"
)

// ClientHandler reacts to connection lifecycle and inbound messages.
type ClientHandler interface {
	OnConnect(ctx context.Context, conn *Connection)
	OnMessage(ctx context.Context, conn *Connection, message []byte)
}

// ConnectionManager manages every viewer's WebSocket connection and fans
// broadcast events out to them.
type ConnectionManager struct {
	connections map[*Connection]bool
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	handler  ClientHandler

	broadcastCh chan *events.Event
	// lastVersion is the highest item version broadcast so far, per item.
	// Only the Start goroutine touches it.
	lastVersion map[string]uint64
}

// Connection is one viewer.
type Connection struct {
	ID       string
	BidderID string // default identity from the connect request, may be empty
	Conn     *websocket.Conn
	Manager  *ConnectionManager

	send   chan []byte
	sendMu sync.Mutex
	closed bool

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout        time.Duration
	ReadTimeout         time.Duration
	PingInterval        time.Duration
	MaxMessageSize      int64
	ReadBufferSize      int
	WriteBufferSize     int
	SendBufferSize      int
	BroadcastBufferSize int
	AllowedOrigins      []string
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:        10 * time.Second,
		ReadTimeout:         60 * time.Second,
		PingInterval:        30 * time.Second,
		MaxMessageSize:      1024,
		ReadBufferSize:      1024,
		WriteBufferSize:     1024,
		SendBufferSize:      256,
		BroadcastBufferSize: 1000,
		AllowedOrigins:      []string{"http://localhost:5173"},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     NewOriginPolicy(config.AllowedOrigins).CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan *events.Event, config.BroadcastBufferSize),
		lastVersion: make(map[string]uint64),
	}
}

// SetHandler installs the handler for new connections. It must be called
// before any connection is upgraded.
func (cm *ConnectionManager) SetHandler(h ClientHandler) {
	cm.handler = h
}

// Start delivers broadcast events until ctx is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case event := <-cm.broadcastCh:
			cm.handleBroadcast(event)
		}
	}
}

// Emit queues event for every viewer. It never blocks; when the queue is
// full the event is dropped.
func (cm *ConnectionManager) Emit(_ context.Context, event *events.Event) {
	select {
	case cm.broadcastCh <- event:
	default:
		log.Warn().
			Str("event_type", string(event.Type)).
			Str("item_id", event.ItemID).
			Msg("broadcast channel full, dropping message")
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, bidderID string) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		BidderID:    bidderID,
		Conn:        conn,
		Manager:     cm,
		send:        make(chan []byte, cm.config.SendBufferSize),
		ConnectedAt: time.Now(),
	}

	// Registered before the snapshot is taken so no commit falls between the
	// two. A broadcast queued earlier may still arrive after the snapshot;
	// its lower item version tells the viewer to ignore it.
	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	if cm.handler != nil {
		cm.handler.OnConnect(context.Background(), connection)
	}

	log.Info().
		Str("connection_id", connection.ID).
		Str("bidder_id", bidderID).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")

	return connection, nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	_, exists := cm.connections[conn]
	delete(cm.connections, conn)
	cm.mu.Unlock()

	if !exists {
		return
	}
	conn.closeSend()

	log.Info().
		Str("connection_id", conn.ID).
		Str("bidder_id", conn.BidderID).
		Msg("connection unregistered")
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for conn := range cm.connections {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range conns {
		cm.unregisterConnection(conn)
	}
}

// stale reports whether a newer state of the event's item has already been
// broadcast. Commits on one item can reach Emit out of order when bidders
// race; the older state is dropped so viewers never step backwards.
func (cm *ConnectionManager) stale(event *events.Event) bool {
	if event.ItemID == "" || event.Version == 0 {
		return false
	}
	if event.Version <= cm.lastVersion[event.ItemID] {
		return true
	}
	cm.lastVersion[event.ItemID] = event.Version
	return false
}

func (cm *ConnectionManager) handleBroadcast(event *events.Event) {
	if cm.stale(event) {
		log.Debug().
			Str("event_type", string(event.Type)).
			Str("item_id", event.ItemID).
			Uint64("version", event.Version).
			Msg("dropping superseded item event")
		return
	}

	cm.mu.RLock()
	targets := make([]*Connection, 0, len(cm.connections))
	for conn := range cm.connections {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targets {
		if !conn.enqueue(data) {
			// Slow or dead viewers are dropped rather than allowed to stall the fan-out.
			log.Warn().
				Str("connection_id", conn.ID).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}

	log.Debug().
		Str("event_type", string(event.Type)).
		Str("item_id", event.ItemID).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

// ConnectionCount returns the number of registered connections.
func (cm *ConnectionManager) ConnectionCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() map[string]interface{} {
	return map[string]interface{}{
		"total_connections": cm.ConnectionCount(),
		"broadcast_backlog": len(cm.broadcastCh),
	}
}

// Reply sends event to this connection only.
func (c *Connection) Reply(event *events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to marshal reply")
		return
	}
	if !c.enqueue(data) {
		log.Warn().
			Str("connection_id", c.ID).
			Str("event_type", string(event.Type)).
			Msg("dropping reply to closed or saturated connection")
	}
}

// enqueue reports false if the connection is closed or its buffer is full.
func (c *Connection) enqueue(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Connection) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		if c.Manager.handler != nil {
			c.Manager.handler.OnMessage(context.Background(), c, message)
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
