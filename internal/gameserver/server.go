package gameserver

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/udisondev/zombiearena/internal/config"
)

// Server accepts WebSocket connections and runs one read loop per client.
type Server struct {
	cfg      config.Server
	upgrader websocket.Upgrader
	handler  *Handler

	clientManager *ClientManager

	wg sync.WaitGroup
}

// NewServer creates a new game server. The handler must share clients.
func NewServer(cfg config.Server, clients *ClientManager, handler *Handler) *Server {
	s := &Server{
		cfg:           cfg,
		handler:       handler,
		clientManager: clients,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// ClientManager returns the client manager for this server.
func (s *Server) ClientManager() *ClientManager {
	return s.clientManager
}

// Handler returns the event handler.
func (s *Server) Handler() *Handler {
	return s.handler
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(s.cfg.AllowedOrigins, "*") {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return slices.ContainsFunc(s.cfg.AllowedOrigins, func(allowed string) bool {
		return strings.EqualFold(allowed, origin) || strings.EqualFold(allowed, u.Host)
	})
}

// ServeHTTP upgrades the request and serves the connection until it closes
// or the request context is cancelled.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	s.wg.Add(1)
	defer s.wg.Done()
	s.handleConnection(r.Context(), conn)
}

func (s *Server) handleConnection(ctx context.Context, conn wsConn) {
	client := NewGameClient(conn, s.cfg.SendQueueSize, s.cfg.WriteTimeout, s.cfg.ReadTimeout)
	s.clientManager.Register(client)

	slog.Info("new game client connection", "client", client.ID(), "remote", client.IP())

	defer func() {
		s.handler.OnDisconnect(client)
		s.clientManager.Unregister(client.ID())
		client.Close()
		slog.Info("client disconnected", "client", client.ID(), "account", client.Account())
	}()

	// Закрытие conn после writePump разблокирует readPump.
	go func() {
		client.writePump()
		conn.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			client.CloseAsync()
		case <-client.Done():
		}
	}()

	err := client.readPump(func(payload []byte) {
		s.handler.HandleMessage(ctx, client, payload)
	})
	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		slog.Debug("read loop ended", "client", client.ID(), "error", err)
	}
}

// Shutdown closes every connection and waits up to timeout for the read
// loops to finish.
func (s *Server) Shutdown(timeout time.Duration) {
	s.clientManager.CloseAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		slog.Warn("game server shutdown timed out", "clients", s.clientManager.Count())
	}
}
