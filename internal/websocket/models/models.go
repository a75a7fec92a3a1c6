package models

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Connection wraps one subscriber socket. Writes are serialized through the
// per-connection mutex since gorilla allows only one concurrent writer.
type Connection struct {
	ID        string
	Conn      *websocket.Conn
	RemoteIP  string
	CreatedAt time.Time
	LastPong  time.Time

	WriteMu sync.Mutex
}

// Message is the wire envelope pushed to subscribers.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Message types pushed on the activity feed.
const (
	MessageTypeActivityUpdate = "activityUpdate"
	MessageTypeKill           = "killmail"
)

// HubStats tracks feed counters.
type HubStats struct {
	TotalConnections   int64     `json:"total_connections"`
	ActiveConnections  int64     `json:"active_connections"`
	MessagesBroadcast  int64     `json:"messages_broadcast"`
	LastConnectionTime time.Time `json:"last_connection_time"`
	LastBroadcastTime  time.Time `json:"last_broadcast_time"`
}
