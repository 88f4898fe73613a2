// Command apiserver serves the Scholet HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ryanyen2/Scholet/internal/bootstrap"
	"github.com/ryanyen2/Scholet/internal/config"
	"github.com/ryanyen2/Scholet/internal/infrastructure/monitoring/logging"
)

// Set via -ldflags at build time.
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: environment only)")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting scholet api server",
		logging.String("version", version),
		logging.Int("port", cfg.Server.Port))

	api, err := bootstrap.NewAPI(ctx, cfg, version, logger)
	if err != nil {
		logger.Error("failed to initialize api server", logging.Err(err))
		os.Exit(1)
	}
	if err := api.Run(ctx); err != nil {
		logger.Error("api server stopped with error", logging.Err(err))
		os.Exit(1)
	}
	logger.Info("api server stopped")
}
