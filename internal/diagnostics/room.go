package diagnostics

import (
	"log/slog"
	"net/http"

	socketio "github.com/googollee/go-socket.io"
)

// Room mirrors Streamer's session events into a Socket.IO namespace so a
// bench technician's dashboard (built against Socket.IO rather than a raw
// WebSocket) can join the same live view.
type Room struct {
	server *socketio.Server
}

// NewRoom builds the Socket.IO server and registers it on mux at path.
// The caller is responsible for starting Serve in its own goroutine.
func NewRoom(mux *http.ServeMux, path string) *Room {
	server := socketio.NewServer(nil)
	server.OnConnect("/", func(s socketio.Conn) error {
		s.Join("bench")
		slog.Info("diagnostics: technician dashboard connected", "conn_id", s.ID())
		return nil
	})
	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		slog.Info("diagnostics: technician dashboard disconnected", "conn_id", s.ID(), "reason", reason)
	})
	server.OnError("/", func(s socketio.Conn, err error) {
		slog.Warn("diagnostics: socket.io error", "error", err)
	})
	mux.Handle(path, server)
	return &Room{server: server}
}

// Serve runs the Socket.IO server's accept loop until it errors or is
// closed; call it in its own goroutine.
func (r *Room) Serve() error {
	return r.server.Serve()
}

// Close releases the Socket.IO server's resources.
func (r *Room) Close() error {
	return r.server.Close()
}

// Broadcast pushes event to every connection in the "bench" room.
func (r *Room) Broadcast(event SessionEvent) {
	r.server.BroadcastToRoom("/", "bench", "session_event", event)
}
