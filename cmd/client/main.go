package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/chatroom/internal/client"
	"github.com/pscheid92/chatroom/internal/logging"
)

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", "127.0.0.1:4444", "chat server address")
	name := flag.String("name", "", "author name sent at handshake")
	interval := flag.Duration("interval", 500*time.Millisecond, "delay between generated notes")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	logging.InitLogger(*logLevel, "text")

	if *name == "" {
		*name = fmt.Sprintf("client #%d", os.Getpid())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(*addr, *name, *interval, clockwork.NewRealClock(), func(line string) {
		fmt.Println(line)
	})

	slog.Info("Client connecting", "addr", *addr, "name", *name)
	if err := c.Run(ctx); err != nil {
		slog.Error("communication error on client side", "error", err)
		os.Exit(1)
	}
}
