package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/preston-bernstein/game-ingest-service/internal/config"
	"github.com/preston-bernstein/game-ingest-service/internal/logging"
	"github.com/preston-bernstein/game-ingest-service/internal/server"
)

const appVersion = "dev"

func main() {
	if os.Getenv("SKIP_SERVER_RUN") == "1" {
		return
	}
	os.Exit(run())
}

func run() int {
	cfg := config.Load()
	logger := logging.NewLogger(logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: "game-ingest-service",
		Version: appVersion,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		logging.Error(logger, "startup failed", err)
		return 1
	}
	if err := srv.Run(ctx, stop); err != nil {
		logging.Error(logger, "server exited with error", err)
		return 1
	}
	return 0
}
