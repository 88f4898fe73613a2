// Command worker precomputes bin ladders into redis whenever a
// dataset.updated event arrives.
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

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: environment only)")
	once := flag.Bool("once", false, "precompute the configured dataset and exit")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := bootstrap.NewWorker(cfg, version, logger)
	if err != nil {
		logger.Error("failed to initialize worker", logging.Err(err))
		os.Exit(1)
	}

	if *once {
		res, err := w.RunConfigured(ctx)
		w.Close()
		if err != nil {
			logger.Error("precompute failed", logging.Err(err))
			os.Exit(1)
		}
		logger.Info("precompute finished",
			logging.String("version", res.Version),
			logging.Bool("skipped", res.Skipped))
		return
	}

	logger.Info("starting scholet worker",
		logging.String("version", version),
		logging.Int("health_port", cfg.Worker.HealthPort),
		logging.String("topic", cfg.Kafka.DatasetTopic))
	if err := w.Run(ctx); err != nil {
		logger.Error("worker stopped with error", logging.Err(err))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
