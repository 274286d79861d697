package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 0.6, cfg.Matching.DefaultThreshold)
	assert.Equal(t, 128, cfg.Extractor.Dimension)
	assert.Equal(t, "onnx", cfg.Extractor.Backend)
	assert.Equal(t, 30*24*time.Hour, cfg.Retention.MaxAge)
	assert.Equal(t, 10*time.Second, cfg.Ingest.ExtractorTimeout)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9000
extractor:
  backend: http
  url: http://faces:5000
  dimension: 512
matching:
  default_threshold: 0.7
  max_results: 100
ingest:
  extractor_timeout: 3s
retention:
  max_age: 720h
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("EF_SERVER_PORT", "9100")
	t.Setenv("EF_EMBEDDING_DIM", "256")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "http", cfg.Extractor.Backend)
	assert.Equal(t, "http://faces:5000", cfg.Extractor.URL)
	assert.Equal(t, 256, cfg.Extractor.Dimension)
	assert.Equal(t, 0.7, cfg.Matching.DefaultThreshold)
	assert.Equal(t, 100, cfg.Matching.MaxResults)
	assert.Equal(t, 3*time.Second, cfg.Ingest.ExtractorTimeout)
	assert.Equal(t, 720*time.Hour, cfg.Retention.MaxAge)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, Name: "ef", User: "u", Password: "p"}
	assert.Equal(t, "postgres://u:p@db:5432/ef?sslmode=disable", d.DSN())
}
