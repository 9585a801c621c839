package admin

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	ws "github.com/gorilla/websocket"

	"github.com/pscheid92/chatroom/internal/chat"
	"github.com/pscheid92/chatroom/internal/config"
	"github.com/pscheid92/chatroom/internal/version"
	"github.com/pscheid92/chatroom/internal/websocket"
)

// ConnectionCounter reports the chat server's currently admitted connections.
type ConnectionCounter interface {
	ActiveConnections() int64
}

// Server is the HTTP observability surface next to the TCP chat server.
type Server struct {
	echo      *echo.Echo
	port      string
	ledger    *chat.Ledger
	hub       *websocket.Hub
	chat      ConnectionCounter
	clock     clockwork.Clock
	startTime time.Time
	upgrader  ws.Upgrader
}

// NewServer creates the admin server.
func NewServer(cfg *config.Config, ledger *chat.Ledger, hub *websocket.Hub, chat ConnectionCounter, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())

	srv := &Server{
		echo:      e,
		port:      cfg.AdminPort,
		ledger:    ledger,
		hub:       hub,
		chat:      chat,
		clock:     clock,
		startTime: clock.Now(),
		upgrader:  ws.Upgrader{},
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/api/stats", s.handleStats)
	s.echo.GET("/ws/firehose", s.handleFirehose)
}

// Start runs the HTTP server. Blocks until Shutdown.
func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.port))
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleLiveness(c echo.Context) error {
	uptime := s.clock.Since(s.startTime).Seconds()
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": uptime,
	})
}

func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"ledger_size":        s.ledger.Len(),
		"active_connections": s.chat.ActiveConnections(),
		"firehose_clients":   s.hub.ClientCount(),
		"uptime":             s.clock.Since(s.startTime).Seconds(),
		"version":            version.Get(),
	})
}

// handleFirehose upgrades the request and registers the observer with the
// hub. The read loop only exists to notice the peer going away.
func (s *Server) handleFirehose(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	if err := s.hub.Register(conn); err != nil {
		return nil
	}
	defer s.hub.Unregister(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}
