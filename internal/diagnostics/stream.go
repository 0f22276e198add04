package diagnostics

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Streamer fans SessionEvents out to every connected WebSocket viewer. A
// technician's browser opens one connection per bench session and watches
// the objective queue advance in real time.
type Streamer struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan SessionEvent
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
}

// NewStreamer returns a Streamer with no clients connected. Run must be
// started in its own goroutine before events are delivered.
func NewStreamer() *Streamer {
	return &Streamer{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan SessionEvent, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run drives the hub loop until stop is closed.
func (s *Streamer) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case conn := <-s.register:
			s.mu.Lock()
			s.clients[conn] = true
			s.mu.Unlock()
		case conn := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[conn]; ok {
				delete(s.clients, conn)
				conn.Close()
			}
			s.mu.Unlock()
		case event := <-s.broadcast:
			s.mu.RLock()
			for conn := range s.clients {
				if err := conn.WriteJSON(event); err != nil {
					slog.Warn("diagnostics: websocket write failed", "error", err)
					conn.Close()
					delete(s.clients, conn)
				}
			}
			s.mu.RUnlock()
		}
	}
}

// HandleWebSocket upgrades the request and registers the connection with
// the hub; it blocks until the client disconnects.
func (s *Streamer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("diagnostics: websocket upgrade failed", "error", err)
		return
	}
	s.register <- conn
	defer func() { s.unregister <- conn }()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Publish broadcasts event to every connected viewer, stamping its
// timestamp. Never blocks the caller beyond the hub's buffered channel.
func (s *Streamer) Publish(event SessionEvent) {
	event.Timestamp = time.Now()
	select {
	case s.broadcast <- event:
	default:
		slog.Warn("diagnostics: event dropped, broadcast channel full", "type", event.Type)
	}
}
