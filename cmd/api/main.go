package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/your-org/eventface/internal/api"
	"github.com/your-org/eventface/internal/api/handlers"
	"github.com/your-org/eventface/internal/api/ws"
	"github.com/your-org/eventface/internal/config"
	"github.com/your-org/eventface/internal/facemodel"
	"github.com/your-org/eventface/internal/ingest"
	"github.com/your-org/eventface/internal/matcher"
	"github.com/your-org/eventface/internal/models"
	"github.com/your-org/eventface/internal/observability"
	"github.com/your-org/eventface/internal/queue"
	"github.com/your-org/eventface/internal/ratelimit"
	"github.com/your-org/eventface/internal/search"
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

	slog.Info("starting eventface API", "port", cfg.Server.Port, "extractor", cfg.Extractor.Backend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database, cfg.Extractor.Dimension)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		slog.Error("migrate postgres", "error", err)
		os.Exit(1)
	}

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(ctx); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(ctx); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// Face model
	ex, closeModel, err := facemodel.Open(cfg.Extractor)
	if err != nil {
		slog.Error("open face extractor", "error", err)
		os.Exit(1)
	}
	defer closeModel()

	// WebSocket hub, fed by worker results
	hub := ws.NewHub()
	go hub.Run()

	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create result consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	err = consumer.ConsumeResults(ctx, func(ctx context.Context, result models.IngestResult) error {
		hub.BroadcastResult(result)
		return nil
	})
	if err != nil {
		slog.Warn("start result consumer", "error", err)
	}

	// Search rate limit
	var limiter ratelimit.Limiter
	if cfg.Server.SearchPerHour > 0 {
		if cfg.Redis.Addr != "" {
			rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
			defer rdb.Close()
			limiter = ratelimit.NewRedisLimiter(rdb, "eventface", cfg.Server.SearchPerHour, time.Hour)
		} else {
			slog.Warn("redis not configured, search rate limit is per process")
			limiter = ratelimit.NewMemoryLimiter(cfg.Server.SearchPerHour, time.Hour)
		}
	}

	maxUpload := int64(cfg.Server.MaxUploadMB) << 20
	svc := search.NewService(ex, matcher.New(db), cfg.Matching, cfg.Ingest.ExtractorTimeout)
	pipeline := ingest.NewPipeline(ex, db, cfg.Ingest)

	mediaH := handlers.NewMediaHandler(db, minioStore, db, pipeline, producer, maxUpload)
	mediaH.OnIngested = hub.BroadcastResult

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.RouterConfig{
		OrganizerKey: cfg.Server.OrganizerKey,
		Search:       handlers.NewSearchHandler(svc, maxUpload),
		Media:        mediaH,
		System: handlers.NewSystemHandler(map[string]handlers.Check{
			"postgres": db.Ping,
			"minio":    minioStore.Ping,
			"nats":     func(context.Context) error { return producer.Ping() },
		}),
		Hub:     hub,
		Limiter: limiter,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}
