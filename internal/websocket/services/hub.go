package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go-gatewatch/internal/websocket/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	pingInterval = 30 * time.Second
	pongTimeout  = 90 * time.Second
	writeTimeout = 10 * time.Second
)

// Hub fans messages out to all connected subscribers.
type Hub struct {
	connections map[string]*models.Connection
	mu          sync.RWMutex

	stats   models.HubStats
	statsMu sync.RWMutex

	// snapshotFn provides the initial payload sent to a fresh subscriber.
	snapshotFn func() interface{}
}

// NewHub creates a new subscriber hub. snapshotFn may be nil.
func NewHub(snapshotFn func() interface{}) *Hub {
	return &Hub{
		connections: make(map[string]*models.Connection),
		snapshotFn:  snapshotFn,
	}
}

// AddConnection registers a new subscriber and sends it the current snapshot.
func (h *Hub) AddConnection(conn *websocket.Conn, remoteIP string) *models.Connection {
	connection := &models.Connection{
		ID:        uuid.New().String(),
		Conn:      conn,
		RemoteIP:  remoteIP,
		CreatedAt: time.Now(),
		LastPong:  time.Now(),
	}

	conn.SetPongHandler(func(string) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		connection.LastPong = time.Now()
		return nil
	})

	h.mu.Lock()
	h.connections[connection.ID] = connection
	h.mu.Unlock()

	h.statsMu.Lock()
	h.stats.TotalConnections++
	h.stats.ActiveConnections++
	h.stats.LastConnectionTime = time.Now()
	h.statsMu.Unlock()

	slog.Info("WebSocket subscriber connected", "connection_id", connection.ID, "remote_ip", remoteIP)

	if h.snapshotFn != nil {
		if err := h.send(connection, &models.Message{
			Type: models.MessageTypeActivityUpdate,
			Data: h.snapshotFn(),
		}); err != nil {
			slog.Warn("Failed to send initial snapshot", "connection_id", connection.ID, "error", err)
		}
	}

	return connection
}

// RemoveConnection closes and unregisters a subscriber.
func (h *Hub) RemoveConnection(connectionID string) {
	h.mu.Lock()
	conn, exists := h.connections[connectionID]
	if exists {
		delete(h.connections, connectionID)
	}
	h.mu.Unlock()

	if !exists {
		return
	}

	if conn.Conn != nil {
		conn.Conn.Close()
	}

	h.statsMu.Lock()
	h.stats.ActiveConnections--
	h.statsMu.Unlock()

	slog.Info("WebSocket subscriber disconnected", "connection_id", connectionID)
}

// Broadcast pushes a message to every connected subscriber. Dead connections
// are dropped.
func (h *Hub) Broadcast(msgType string, data interface{}) {
	h.mu.RLock()
	conns := make([]*models.Connection, 0, len(h.connections))
	for _, c := range h.connections {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	if len(conns) == 0 {
		return
	}

	msg := &models.Message{Type: msgType, Data: data}
	var dead []string
	for _, c := range conns {
		if err := h.send(c, msg); err != nil {
			dead = append(dead, c.ID)
		}
	}
	for _, id := range dead {
		h.RemoveConnection(id)
	}

	h.statsMu.Lock()
	h.stats.MessagesBroadcast++
	h.stats.LastBroadcastTime = time.Now()
	h.statsMu.Unlock()
}

// ConnectionCount returns the number of active subscribers.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Stats returns a copy of the hub counters.
func (h *Hub) Stats() models.HubStats {
	h.statsMu.RLock()
	defer h.statsMu.RUnlock()
	return h.stats
}

// RunPinger sends pings and reaps unresponsive subscribers until the context
// is cancelled.
func (h *Hub) RunPinger(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.pingAll()
		}
	}
}

func (h *Hub) pingAll() {
	now := time.Now()

	h.mu.RLock()
	conns := make([]*models.Connection, 0, len(h.connections))
	stale := make(map[string]bool, len(h.connections))
	for _, c := range h.connections {
		conns = append(conns, c)
		stale[c.ID] = now.Sub(c.LastPong) > pongTimeout
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if stale[c.ID] {
			slog.Info("WebSocket subscriber timed out", "connection_id", c.ID)
			h.RemoveConnection(c.ID)
			continue
		}

		c.WriteMu.Lock()
		c.Conn.SetWriteDeadline(now.Add(writeTimeout))
		err := c.Conn.WriteMessage(websocket.PingMessage, nil)
		c.WriteMu.Unlock()
		if err != nil {
			h.RemoveConnection(c.ID)
		}
	}
}

// CloseAll disconnects every subscriber, used during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := h.connections
	h.connections = make(map[string]*models.Connection)
	h.mu.Unlock()

	for _, c := range conns {
		c.Conn.Close()
	}
}

func (h *Hub) send(c *models.Connection, msg *models.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	c.WriteMu.Lock()
	defer c.WriteMu.Unlock()

	c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.Conn.WriteMessage(websocket.TextMessage, payload)
}
