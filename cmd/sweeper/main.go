package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/your-org/eventface/internal/config"
	"github.com/your-org/eventface/internal/observability"
	"github.com/your-org/eventface/internal/retention"
	"github.com/your-org/eventface/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	db, err := storage.NewPostgresStore(cfg.Database, cfg.Extractor.Dimension)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}

	sweeper := retention.NewSweeper(db, db, minioStore, cfg.Retention.MaxAge)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *once {
		n, err := sweeper.Sweep(ctx)
		if err != nil {
			slog.Error("retention sweep", "error", err, "removed", n)
			os.Exit(1)
		}
		slog.Info("retention sweep done", "removed", n)
		return
	}

	scheduler, err := retention.Schedule(ctx, sweeper, cfg.Retention.Schedule)
	if err != nil {
		slog.Error("schedule sweep", "error", err)
		os.Exit(1)
	}
	scheduler.StartAsync()
	slog.Info("retention sweeper started", "schedule", cfg.Retention.Schedule, "max_age", cfg.Retention.MaxAge)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down sweeper...")
	cancel()
	scheduler.Stop()
	slog.Info("sweeper stopped")
}
