package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"tensionmonitor/internal/app"
	"tensionmonitor/internal/config"
	"tensionmonitor/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("monitor stopped", "error", err)
		os.Exit(1)
	}
}
