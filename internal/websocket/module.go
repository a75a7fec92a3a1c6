package websocket

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"go-gatewatch/internal/websocket/services"
	"go-gatewatch/pkg/handlers"
	"go-gatewatch/pkg/module"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The activity feed is public, any origin may subscribe.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Module exposes the live activity feed over websockets.
type Module struct {
	*module.BaseModule

	hub *services.Hub
}

// NewModule creates a new websocket module. snapshotFn provides the payload
// sent to fresh subscribers.
func NewModule(snapshotFn func() interface{}) *Module {
	return &Module{
		BaseModule: module.NewBaseModule("websocket", nil, nil),
		hub:        services.NewHub(snapshotFn),
	}
}

// Hub returns the subscriber hub for broadcasting.
func (m *Module) Hub() *services.Hub {
	return m.hub
}

// Routes implements the module.Module interface.
func (m *Module) Routes(r chi.Router) {
	r.Get("/ws", m.handleSubscribe)
	r.Get("/ws/stats", m.handleStats)
}

func (m *Module) handleStats(w http.ResponseWriter, _ *http.Request) {
	handlers.SuccessResponse(w, m.hub.Stats(), http.StatusOK)
}

func (m *Module) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		handlers.ErrorResponse(w, "websocket upgrade required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	remoteIP, _, _ := net.SplitHostPort(r.RemoteAddr)
	connection := m.hub.AddConnection(conn, remoteIP)

	// Read loop: the feed is one-way but we must drain client frames to
	// process pong control messages and detect disconnects.
	go func() {
		defer m.hub.RemoveConnection(connection.ID)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// StartBackgroundTasks runs the subscriber pinger.
func (m *Module) StartBackgroundTasks(ctx context.Context) {
	slog.Info("Starting websocket background tasks")
	go m.hub.RunPinger(ctx)
}

// Stop implements the module.Module interface.
func (m *Module) Stop() {
	m.hub.CloseAll()
	m.BaseModule.Stop()
}
