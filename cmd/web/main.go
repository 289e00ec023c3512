package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"sketchparty/internal/config"
	"sketchparty/internal/logging"
	"sketchparty/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logging.DefaultLogger().Fatalf("loading config: %v", err)
	}

	logger := logging.NewLogger(cfg.Debug)
	defer logger.Sync()
	ctx = logging.WithLogger(ctx, logger)

	if err := server.Run(ctx, cfg); err != nil {
		logger.Fatalf("server: %v", err)
	}
}
