package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/chatroom/internal/admin"
	"github.com/pscheid92/chatroom/internal/chat"
	"github.com/pscheid92/chatroom/internal/config"
	"github.com/pscheid92/chatroom/internal/logging"
	"github.com/pscheid92/chatroom/internal/server"
	"github.com/pscheid92/chatroom/internal/version"
	"github.com/pscheid92/chatroom/internal/websocket"
)

const shutdownGracePeriod = 10 * time.Second

func runGracefulShutdown(chatSrv *server.Server, adminSrv *admin.Server, hub *websocket.Hub) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		chatSrv.Shutdown()

		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := chatSrv.Drain(drainCtx); err != nil {
			slog.Error("Chat server drain timed out", "error", err)
		}

		hub.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := adminSrv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Admin server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func main() {
	_ = godotenv.Load()

	clock := clockwork.NewRealClock()
	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	info := version.Get()
	slog.Info("Application starting",
		"env", cfg.AppEnv,
		"listen_addr", cfg.ListenAddr,
		"admin_port", cfg.AdminPort,
		"version", info.Version,
		"commit", info.Commit,
	)

	ledger := chat.NewLedger()
	chatSrv := server.NewServer(cfg, ledger, clock)
	hub := websocket.NewHub(ledger, clock, cfg.FirehoseTick)
	adminSrv := admin.NewServer(cfg, ledger, hub, chatSrv, clock)

	done := runGracefulShutdown(chatSrv, adminSrv, hub)

	go func() {
		if err := adminSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Admin server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server starting", "addr", cfg.ListenAddr)
	if err := chatSrv.Start(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
