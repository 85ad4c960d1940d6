// Package gateway accepts WebSocket connections from game clients,
// enforces the pre-connection handshake, and shuttles frames between the
// transport and the message dispatcher.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tabletop-net/internal/config"
	"github.com/cory-johannsen/tabletop-net/internal/dispatch"
	"github.com/cory-johannsen/tabletop-net/internal/game"
)

// Handshake header names supplied by connecting clients.
const (
	HeaderSecret     = "NetworkSecret"
	HeaderPlayerName = "PlayerName"
)

// Server listens for WebSocket connections and runs one read loop and one
// write pump per accepted connection. Inbound frames from a single
// connection are handled one at a time in arrival order; different
// connections proceed concurrently.
type Server struct {
	cfg         config.ServerConfig
	secrets     SecretSource
	connections *game.ConnectionRegistry
	dispatcher  *dispatch.Dispatcher
	admin       http.Handler
	logger      *zap.Logger

	upgrader   websocket.Upgrader
	httpServer *http.Server
	wg         sync.WaitGroup
	quit       chan struct{}
	mu         sync.Mutex
	running    bool
}

// NewServer creates a gateway Server. The admin handler is mounted under
// /api/ when non-nil.
//
// Precondition: secrets, connections, dispatcher and logger must be non-nil.
// Postcondition: Returns a Server ready to be started with ListenAndServe.
func NewServer(
	cfg config.ServerConfig,
	secrets SecretSource,
	connections *game.ConnectionRegistry,
	dispatcher *dispatch.Dispatcher,
	admin http.Handler,
	logger *zap.Logger,
) *Server {
	return &Server{
		cfg:         cfg,
		secrets:     secrets,
		connections: connections,
		dispatcher:  dispatcher,
		admin:       admin,
		logger:      logger,
		upgrader: websocket.Upgrader{
			// Game clients are native applications, not browsers; origin
			// checks carry no meaning for them.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		quit: make(chan struct{}),
	}
}

// ListenAndServe starts the HTTP listener and serves WebSocket upgrades
// until Stop is called. This method blocks.
//
// Precondition: The server must not already be running.
func (s *Server) ListenAndServe() error {
	start := time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.WSPath, s.handleWS)
	if s.admin != nil {
		mux.Handle("/api/", s.admin)
	}

	s.mu.Lock()
	s.httpServer = &http.Server{Addr: s.cfg.Addr(), Handler: mux}
	s.running = true
	s.mu.Unlock()

	s.logger.Info("gateway listening",
		zap.String("addr", s.cfg.Addr()),
		zap.String("ws_path", s.cfg.WSPath),
		zap.Bool("admin_api", s.admin != nil),
		zap.Duration("startup", time.Since(start)),
	)

	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop closes the listener and every active connection, then waits for all
// connection goroutines to finish.
//
// Postcondition: All connections are closed and goroutines have exited.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.quit)
	httpServer := s.httpServer
	s.mu.Unlock()

	// Close force-closes hijacked WebSocket connections too, which unblocks
	// every read loop.
	if httpServer != nil {
		_ = httpServer.Close()
	}
	s.wg.Wait()
	s.logger.Info("gateway stopped")
}

// handleWS performs the handshake check, upgrades the connection, registers
// a Player, and runs the connection's read loop.
//
// Rejections happen before any Player exists: missing headers are a 400,
// a wrong secret is a 401, and a secret-source fault is a 500.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.Header.Get(HeaderPlayerName))
	suppliedSecret := r.Header.Get(HeaderSecret)

	if name == "" || suppliedSecret == "" {
		http.Error(w, "missing handshake headers", http.StatusBadRequest)
		return
	}

	secret, err := s.secrets.NetworkSecret(r.Context())
	if err != nil {
		s.logger.Error("reading network secret", zap.Error(err))
		http.Error(w, "handshake unavailable", http.StatusInternalServerError)
		return
	}
	if suppliedSecret != secret {
		s.logger.Warn("handshake rejected",
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("player_name", name),
		)
		http.Error(w, "invalid network secret", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("upgrading connection",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	p := game.NewPlayer(name, s.cfg.OutboxSize)
	if err := s.connections.Register(p); err != nil {
		s.logger.Error("registering player", zap.Error(err))
		_ = conn.Close()
		return
	}

	s.logger.Info("player connected",
		zap.String("player", p.Name()),
		zap.String("connection", p.ID()),
		zap.String("remote_addr", r.RemoteAddr),
		zap.Int("connected", s.connections.Count()),
	)

	s.wg.Add(2)
	go s.writePump(p, conn)
	s.readLoop(p, conn)
}

// readLoop consumes inbound frames until the connection dies, then runs the
// disconnect flow. It serializes frame handling for its connection.
func (s *Server) readLoop(p *game.Player, conn *websocket.Conn) {
	defer s.wg.Done()
	start := time.Now()

	conn.SetReadLimit(s.cfg.MaxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	ctx := context.Background()
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("transport error",
					zap.String("player", p.Name()),
					zap.String("connection", p.ID()),
					zap.Error(err),
				)
			}
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		s.dispatcher.HandleFrame(ctx, p, data)
	}

	s.disconnect(p, conn)
	s.logger.Info("player disconnected",
		zap.String("player", p.Name()),
		zap.String("connection", p.ID()),
		zap.Duration("session", time.Since(start)),
	)
}

// disconnect treats the closed connection as a leave, notifies the
// remaining members, and releases all per-connection state.
func (s *Server) disconnect(p *game.Player, conn *websocket.Conn) {
	s.dispatcher.HandlePlayerExit(p)
	s.connections.Unregister(p.ID())
	_ = p.Outbox().Close()
	_ = conn.Close()
}

// writePump drains the player's outbox onto the socket and keeps the
// connection alive with pings. Sends are best effort; the first write
// failure abandons the connection and the read loop cleans up.
func (s *Server) writePump(p *game.Player, conn *websocket.Conn) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-p.Outbox().Frames():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(s.cfg.WriteTimeout))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.logger.Debug("write failed",
					zap.String("player", p.Name()),
					zap.Error(err),
				)
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		case <-s.quit:
			return
		}
	}
}
