package wsgateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/richgang/indice-killer/internal/config"
	"github.com/richgang/indice-killer/internal/models"
	"github.com/richgang/indice-killer/pkg/logger"
)

// Hub manages WebSocket connections and fans broadcasts out to them
type Hub struct {
	config   config.WSGatewayConfig
	registry *ConnectionRegistry
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	stats    HubStats
}

// HubStats holds statistics about the hub
type HubStats struct {
	ConnectionsTotal  int64
	ConnectionsActive int64
	Broadcasts        int64
	MessagesSent      int64
	MessagesDropped   int64
	LastBroadcastTime time.Time
	mu                sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub(cfg config.WSGatewayConfig) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		config:   cfg,
		registry: NewConnectionRegistry(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start starts the stale connection monitor
func (h *Hub) Start() error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = true
	h.mu.Unlock()

	logger.Info("Starting WebSocket hub",
		logger.Int("max_connections", h.config.MaxConnections),
	)

	h.wg.Add(1)
	go h.monitorConnections()

	return nil
}

// Stop closes every connection and waits for the pumps to exit
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	logger.Info("Stopping WebSocket hub")
	h.cancel()
	for _, conn := range h.registry.GetAll() {
		h.Unregister(conn)
	}
	h.wg.Wait()
	logger.Info("WebSocket hub stopped")
}

// Register registers a new connection and starts its pumps
func (h *Hub) Register(conn *Connection) {
	h.registry.Add(conn)
	connectionsActive.Inc()
	h.stats.mu.Lock()
	h.stats.ConnectionsTotal++
	h.stats.mu.Unlock()

	logger.Info("Connection registered",
		logger.String("connection_id", conn.ID),
		logger.String("user_id", conn.UserID),
		logger.String("role", conn.Role),
		logger.Int("total_connections", h.registry.Count()),
	)

	if conn.Conn == nil {
		return
	}
	h.wg.Add(2)
	go h.writePump(conn)
	go h.readPump(conn)
}

// Unregister removes a connection and closes it. Both pumps call it on exit.
func (h *Hub) Unregister(conn *Connection) {
	if !h.registry.Remove(conn.ID) {
		return
	}
	connectionsActive.Dec()
	conn.Close()

	logger.Info("Connection unregistered",
		logger.String("connection_id", conn.ID),
		logger.String("user_id", conn.UserID),
		logger.Int("total_connections", h.registry.Count()),
	)
}

// Broadcast delivers msg to every interested connection. Slow or closed
// connections are skipped and counted; nothing is returned to the caller.
func (h *Hub) Broadcast(ctx context.Context, msg models.BroadcastMessage) {
	broadcastsTotal.WithLabelValues(string(msg.Type)).Inc()

	shared, err := json.Marshal(msg)
	if err != nil {
		logger.Error("Failed to encode broadcast",
			logger.String("type", string(msg.Type)),
			logger.ErrorField(err),
		)
		return
	}

	connections := h.registry.GetAll()
	sent, dropped := 0, 0
	for _, conn := range connections {
		payload, ok := payloadFor(conn, msg, shared)
		if !ok {
			continue
		}
		if err := conn.Enqueue(payload); err != nil {
			dropped++
			deliveriesTotal.WithLabelValues("dropped").Inc()
			logger.Debug("Failed to deliver broadcast",
				logger.ErrorField(err),
				logger.String("connection_id", conn.ID),
			)
			continue
		}
		sent++
		deliveriesTotal.WithLabelValues("sent").Inc()
	}

	h.stats.mu.Lock()
	h.stats.Broadcasts++
	h.stats.MessagesSent += int64(sent)
	h.stats.MessagesDropped += int64(dropped)
	h.stats.LastBroadcastTime = time.Now()
	h.stats.mu.Unlock()

	logger.Debug("Broadcast message",
		logger.String("type", string(msg.Type)),
		logger.Int("sent", sent),
		logger.Int("dropped", dropped),
		logger.Int("total_connections", len(connections)),
	)
}

// payloadFor narrows msg to the connection's subscriptions
func payloadFor(conn *Connection, msg models.BroadcastMessage, shared []byte) ([]byte, bool) {
	switch msg.Type {
	case models.BroadcastNewSignal:
		if msg.Signal != nil && !conn.ShouldReceive(msg.Signal.Symbol) {
			return nil, false
		}
		return shared, true
	case models.BroadcastMarketUpdate:
		filtered := make(map[string]models.Summary, len(msg.Data))
		for symbol, summary := range msg.Data {
			if conn.ShouldReceive(symbol) {
				filtered[symbol] = summary
			}
		}
		if len(filtered) == 0 {
			return nil, false
		}
		if len(filtered) == len(msg.Data) {
			return shared, true
		}
		data, err := json.Marshal(models.MarketUpdateMessage(filtered))
		if err != nil {
			return nil, false
		}
		return data, true
	default:
		return shared, true
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (h *Hub) writePump(conn *Connection) {
	defer h.wg.Done()
	defer h.Unregister(conn)

	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return

		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump pumps client messages into the protocol handler
func (h *Hub) readPump(conn *Connection) {
	defer h.wg.Done()
	defer h.Unregister(conn)

	conn.Conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.UpdateLastPong()
		conn.Conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Debug("WebSocket error",
					logger.ErrorField(err),
					logger.String("connection_id", conn.ID),
				)
			}
			return
		}

		var clientMsg ClientMessage
		if err := json.Unmarshal(message, &clientMsg); err != nil {
			conn.SendError("invalid_message", "failed to parse message")
			continue
		}

		if err := conn.HandleClientMessage(&clientMsg); err != nil {
			logger.Debug("Failed to handle client message",
				logger.ErrorField(err),
				logger.String("connection_id", conn.ID),
			)
		}
	}
}

// monitorConnections removes connections that stopped answering pings
func (h *Hub) monitorConnections() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return

		case <-ticker.C:
			now := time.Now()
			staleThreshold := h.config.ReadTimeout * 2

			for _, conn := range h.registry.GetAll() {
				lastPong := conn.GetLastPong()
				if now.Sub(lastPong) > staleThreshold {
					logger.Info("Removing stale connection",
						logger.String("connection_id", conn.ID),
						logger.String("user_id", conn.UserID),
						logger.Duration("idle_time", now.Sub(lastPong)),
					)
					h.Unregister(conn)
				}
			}
		}
	}
}

// ConnectionCount returns the number of open connections
func (h *Hub) ConnectionCount() int {
	return h.registry.Count()
}

// GetStats returns a copy of the hub statistics
func (h *Hub) GetStats() HubStats {
	h.stats.mu.RLock()
	defer h.stats.mu.RUnlock()

	return HubStats{
		ConnectionsTotal:  h.stats.ConnectionsTotal,
		ConnectionsActive: int64(h.registry.Count()),
		Broadcasts:        h.stats.Broadcasts,
		MessagesSent:      h.stats.MessagesSent,
		MessagesDropped:   h.stats.MessagesDropped,
		LastBroadcastTime: h.stats.LastBroadcastTime,
	}
}
