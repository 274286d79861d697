// Package facemodel builds the configured face extractor backend.
package facemodel

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/eventface/internal/config"
	"github.com/your-org/eventface/internal/extractor"
	"github.com/your-org/eventface/internal/faceapi"
	"github.com/your-org/eventface/internal/vision"
)

// Open returns the extractor selected by cfg.Backend and a func that
// releases it.
func Open(cfg config.ExtractorConfig) (extractor.Extractor, func(), error) {
	switch cfg.Backend {
	case "http":
		if cfg.URL == "" {
			return nil, nil, fmt.Errorf("extractor.url is required for the http backend")
		}
		client := faceapi.NewClient(cfg.URL)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if !client.IsAvailable(ctx) {
			// Not fatal: the service may still be starting, and calls
			// surface ErrExtractorUnavailable until it is up.
			slog.Warn("face service not healthy yet", "url", cfg.URL)
		}
		return client, func() {}, nil

	case "onnx", "":
		ort.SetSharedLibraryPath(onnxLibPath())
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, nil, fmt.Errorf("init onnx runtime: %w", err)
		}
		ex, err := vision.NewExtractor(cfg)
		if err != nil {
			_ = ort.DestroyEnvironment()
			return nil, nil, err
		}
		return ex, func() {
			ex.Close()
			_ = ort.DestroyEnvironment()
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown extractor backend %q", cfg.Backend)
	}
}

// onnxLibPath returns the ONNX Runtime shared library name for this OS.
func onnxLibPath() string {
	switch runtime.GOOS {
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
