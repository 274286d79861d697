package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	NATS      NATSConfig      `yaml:"nats"`
	MinIO     MinIOConfig     `yaml:"minio"`
	Redis     RedisConfig     `yaml:"redis"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Matching  MatchingConfig  `yaml:"matching"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Retention RetentionConfig `yaml:"retention"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
	// OrganizerKey protects media management endpoints. Search stays public.
	OrganizerKey  string `yaml:"organizer_key"`
	MaxUploadMB   int    `yaml:"max_upload_mb"`
	MetricsPort   int    `yaml:"metrics_port"`
	SearchPerHour int    `yaml:"search_per_hour"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ExtractorConfig selects the face model backend: "onnx" runs the models in
// process, "http" calls a remote face service.
type ExtractorConfig struct {
	Backend            string  `yaml:"backend"`
	ModelsDir          string  `yaml:"models_dir"`
	DetectionThreshold float64 `yaml:"detection_threshold"`
	URL                string  `yaml:"url"`
	Dimension          int     `yaml:"dimension"`
}

type MatchingConfig struct {
	DefaultThreshold float64 `yaml:"default_threshold"`
	MaxResults       int     `yaml:"max_results"`
}

type IngestConfig struct {
	ExtractorTimeout      time.Duration `yaml:"extractor_timeout"`
	MinDetectorConfidence float64       `yaml:"min_detector_confidence"`
	FaceWorkers           int           `yaml:"face_workers"`
	WorkerCount           int           `yaml:"worker_count"`
}

type RetentionConfig struct {
	MaxAge   time.Duration `yaml:"max_age"`
	Schedule string        `yaml:"schedule"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file, then .env, then environment variable
// overrides. A missing config file is not an error; defaults and the
// environment are enough to run.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	_ = godotenv.Load()
	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 8082
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 25
	}
	if cfg.Server.SearchPerHour == 0 {
		cfg.Server.SearchPerHour = 30
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = "eventface-media"
	}
	if cfg.Extractor.Backend == "" {
		cfg.Extractor.Backend = "onnx"
	}
	if cfg.Extractor.DetectionThreshold == 0 {
		cfg.Extractor.DetectionThreshold = 0.5
	}
	if cfg.Extractor.Dimension == 0 {
		cfg.Extractor.Dimension = 128
	}
	if cfg.Matching.DefaultThreshold == 0 {
		cfg.Matching.DefaultThreshold = 0.6
	}
	if cfg.Ingest.ExtractorTimeout == 0 {
		cfg.Ingest.ExtractorTimeout = 10 * time.Second
	}
	if cfg.Ingest.FaceWorkers == 0 {
		cfg.Ingest.FaceWorkers = 4
	}
	if cfg.Ingest.WorkerCount == 0 {
		cfg.Ingest.WorkerCount = 6
	}
	if cfg.Retention.MaxAge == 0 {
		cfg.Retention.MaxAge = 30 * 24 * time.Hour
	}
	if cfg.Retention.Schedule == "" {
		cfg.Retention.Schedule = "17 3 * * *"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EF_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("EF_ORGANIZER_KEY"); v != "" {
		cfg.Server.OrganizerKey = v
	}
	if v := os.Getenv("EF_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("EF_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("EF_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("EF_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("EF_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("EF_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("EF_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("EF_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("EF_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("EF_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("EF_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("EF_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("EF_EXTRACTOR_BACKEND"); v != "" {
		cfg.Extractor.Backend = v
	}
	if v := os.Getenv("EF_EXTRACTOR_URL"); v != "" {
		cfg.Extractor.URL = v
	}
	if v := os.Getenv("EF_MODELS_DIR"); v != "" {
		cfg.Extractor.ModelsDir = v
	}
	if v := os.Getenv("EF_EMBEDDING_DIM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Extractor.Dimension = n
		}
	}
	if v := os.Getenv("EF_MATCH_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Matching.DefaultThreshold = f
		}
	}
	if v := os.Getenv("EF_EXTRACTOR_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Ingest.ExtractorTimeout = d
		}
	}
	if v := os.Getenv("EF_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ingest.WorkerCount = n
		}
	}
	if v := os.Getenv("EF_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("EF_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
