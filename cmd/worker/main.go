package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/eventface/internal/config"
	"github.com/your-org/eventface/internal/faceerr"
	"github.com/your-org/eventface/internal/facemodel"
	"github.com/your-org/eventface/internal/ingest"
	"github.com/your-org/eventface/internal/models"
	"github.com/your-org/eventface/internal/observability"
	"github.com/your-org/eventface/internal/queue"
	"github.com/your-org/eventface/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting eventface ingest worker",
		"workers", cfg.Ingest.WorkerCount,
		"face_workers", cfg.Ingest.FaceWorkers,
		"cpu_cores", runtime.NumCPU(),
	)

	ex, closeModel, err := facemodel.Open(cfg.Extractor)
	if err != nil {
		slog.Error("open face extractor", "error", err)
		os.Exit(1)
	}
	defer closeModel()

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database, cfg.Extractor.Dimension)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	pipeline := ingest.NewPipeline(ex, db, cfg.Ingest)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = consumer.ConsumeTasks(ctx, "ingest-workers", func(ctx context.Context, task models.IngestTask) error {
		data, err := minioStore.GetObject(ctx, task.ObjectKey)
		if err != nil {
			return fmt.Errorf("load media %s: %w", task.MediaID, err)
		}

		// Redelivery after a crash must not index the same faces twice.
		if err := db.Remove(ctx, task.MediaID); err != nil {
			return fmt.Errorf("clear media %s: %w", task.MediaID, err)
		}

		result, err := pipeline.Ingest(ctx, task.MediaID, task.EventID, data)
		if err != nil {
			if faceerr.Retriable(err) {
				return err // nak with delay, redelivered
			}
			slog.Warn("drop media", "media_id", task.MediaID, "error", err)
			return nil
		}

		if err := producer.PublishResult(ctx, result); err != nil {
			slog.Error("publish ingest result", "error", err, "media_id", task.MediaID)
		}
		return nil
	}, cfg.Ingest.WorkerCount)
	if err != nil {
		slog.Error("start task consumer", "error", err)
		os.Exit(1)
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		addr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
		slog.Info("worker metrics listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Periodically report queue depth
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				depth, err := producer.QueueDepth(ctx)
				if err == nil {
					observability.QueueDepth.Set(float64(depth))
				}
			}
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	cancel()

	// In-flight items run to completion; anything left after the ack wait
	// would be redelivered anyway.
	drainCtx, drainCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer drainCancel()
	if err := consumer.Wait(drainCtx); err != nil {
		slog.Warn("workers still busy at shutdown, tasks will be redelivered", "error", err)
	}
	slog.Info("worker stopped")
}
