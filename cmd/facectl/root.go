package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/your-org/eventface/internal/config"
	"github.com/your-org/eventface/internal/observability"
	"github.com/your-org/eventface/internal/storage"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "facectl",
	Short: "Operate the eventface face index from the command line",
	Long: `facectl bulk-ingests event photos, runs selfie searches and removes media
directly against the Postgres face index, using the same configuration as the
API and worker.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at the configured level instead of warn")
}

type deps struct {
	cfg   *config.Config
	db    *storage.PostgresStore
	minio *storage.MinIOStore
}

func loadDeps() (*deps, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	// Progress bars own stdout; keep logs quiet unless asked.
	if !verbose {
		cfg.Logging.Level = "warn"
	}
	observability.SetupLogger(cfg.Logging.Level, "text")

	db, err := storage.NewPostgresStore(cfg.Database, cfg.Extractor.Dimension)
	if err != nil {
		return nil, err
	}
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &deps{cfg: cfg, db: db, minio: minioStore}, nil
}

func (d *deps) Close() {
	d.db.Close()
}
