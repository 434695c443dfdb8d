// main.go
// Application entry point: loads configuration, initializes the
// logger, and runs the relay server until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/matchlink/internal/api"
	"github.com/matchlink/internal/config"
	"github.com/matchlink/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		JSON:       cfg.LogJSON,
		FilePath:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAge,
	})
	log := logger.New("server")
	log.WithField("port", cfg.Port).Info("starting invitation relay")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := api.NewServer(cfg, log).Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}
