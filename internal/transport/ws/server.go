// Package ws carries telemetry payloads over WebSocket: the emulator side
// streams the generator channel to every connected client, and the API side
// consumes that stream with a reconnecting client.
package ws

import (
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"vehicle-telemetry/internal/domain"
	"vehicle-telemetry/internal/metrics"
	"vehicle-telemetry/internal/pipeline"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Server streams every payload published on the channel to each client as
// one JSON text frame. Slow clients miss payloads rather than stall others.
type Server struct {
	ch       *pipeline.Broadcaster[domain.RawPayload]
	log      *slog.Logger
	upgrader websocket.Upgrader
	clients  atomic.Int64
}

func NewServer(ch *pipeline.Broadcaster[domain.RawPayload], log *slog.Logger) *Server {
	return &Server{
		ch:  ch,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Clients returns the number of connected stream clients.
func (s *Server) Clients() int {
	return int(s.clients.Load())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	sub := s.ch.Subscribe()
	n := s.clients.Add(1)
	metrics.StreamClients.Set(float64(n))
	s.log.Info("stream client connected", "client_id", sub.ID, "remote", r.RemoteAddr, "clients", n)

	defer func() {
		sub.Close()
		conn.Close()
		n := s.clients.Add(-1)
		metrics.StreamClients.Set(float64(n))
		s.log.Info("stream client disconnected", "client_id", sub.ID, "clients", n)
	}()

	closed := make(chan struct{})
	go readUntilClosed(conn, closed)

	s.writeLoop(conn, sub, closed)
}

// readUntilClosed discards client frames and handles pongs; it returns when
// the peer goes away.
func readUntilClosed(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writeLoop(conn *websocket.Conn, sub *pipeline.Subscription[domain.RawPayload], closed <-chan struct{}) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case p, ok := <-sub.C:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(p); err != nil {
				s.log.Debug("stream write failed", "client_id", sub.ID, "error", err)
				return
			}

		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-closed:
			return
		}
	}
}
