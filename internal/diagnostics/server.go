package diagnostics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the orb's admin HTTP surface: health, Prometheus metrics, a
// WebSocket debug stream, and a Socket.IO room for the bench dashboard.
type Server struct {
	http     *http.Server
	Streamer *Streamer
	room     *Room
	stop     chan struct{}
}

// NewServer builds the admin router. Call Start to begin serving.
func NewServer(addr string) *Server {
	streamer := NewStreamer()
	router := mux.NewRouter()

	router.HandleFunc("/healthz", handleHealthz).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/ws", streamer.HandleWebSocket)

	socketMux := http.NewServeMux()
	room := NewRoom(socketMux, "/socket.io/")
	router.PathPrefix("/socket.io/").Handler(socketMux)

	return &Server{
		http:     &http.Server{Addr: addr, Handler: router},
		Streamer: streamer,
		room:     room,
		stop:     make(chan struct{}),
	}
}

// Start runs the streamer hub, the Socket.IO accept loop, and the HTTP
// server, all in background goroutines. It returns immediately.
func (s *Server) Start() {
	go s.Streamer.Run(s.stop)
	go func() {
		if err := s.room.Serve(); err != nil {
			slog.Warn("diagnostics: socket.io server stopped", "error", err)
		}
	}()
	go func() {
		slog.Info("diagnostics: admin server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("diagnostics: admin server failed", "error", err)
		}
	}()
}

// Publish fans a session event out to both the WebSocket stream and the
// Socket.IO bench room.
func (s *Server) Publish(event SessionEvent) {
	s.Streamer.Publish(event)
	s.room.Broadcast(event)
}

// Shutdown stops the admin server and both live-viewer transports,
// waiting up to timeout for in-flight connections to drain.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	close(s.stop)
	_ = s.room.Close()
	return s.http.Shutdown(ctx)
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
