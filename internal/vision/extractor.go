package vision

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/m-mizutani/goerr/v2"

	"github.com/your-org/eventface/internal/config"
	"github.com/your-org/eventface/internal/extractor"
	"github.com/your-org/eventface/internal/faceerr"
	"github.com/your-org/eventface/internal/models"
)

const (
	detectorModel = "det_10g.onnx"
	embedderModel = "w600k_r50.onnx"
	nmsIoU        = 0.4
)

// Extractor runs RetinaFace detection and ArcFace embedding in process.
// ONNX sessions hold fixed input tensors, so calls are serialised.
// The ONNX Runtime environment must be initialised before NewExtractor.
type Extractor struct {
	mu       sync.Mutex
	detector *Detector
	embedder *Embedder
}

var _ extractor.Extractor = (*Extractor)(nil)

func NewExtractor(cfg config.ExtractorConfig) (*Extractor, error) {
	detPath := filepath.Join(cfg.ModelsDir, detectorModel)
	embPath := filepath.Join(cfg.ModelsDir, embedderModel)

	slog.Info("loading detection model", "path", detPath)
	det, err := NewDetector(detPath, float32(cfg.DetectionThreshold), nil)
	if err != nil {
		return nil, goerr.Wrap(faceerr.ErrExtractorUnavailable, "load detector", goerr.V("path", detPath), goerr.V("cause", err.Error()))
	}

	slog.Info("loading embedding model", "path", embPath)
	emb, err := NewEmbedder(embPath)
	if err != nil {
		det.Close()
		return nil, goerr.Wrap(faceerr.ErrExtractorUnavailable, "load embedder", goerr.V("path", embPath), goerr.V("cause", err.Error()))
	}

	if cfg.Dimension != 0 && cfg.Dimension != emb.EmbeddingDim() {
		det.Close()
		emb.Close()
		return nil, fmt.Errorf("embedding model produces %d dims, config expects %d", emb.EmbeddingDim(), cfg.Dimension)
	}

	slog.Info("vision extractor ready", "dim", emb.EmbeddingDim())
	return &Extractor{detector: det, embedder: emb}, nil
}

// Dimension is the length of embeddings this extractor produces.
func (e *Extractor) Dimension() int {
	return e.embedder.EmbeddingDim()
}

func (e *Extractor) DetectFaces(ctx context.Context, data []byte) ([]models.Detection, error) {
	img, err := decodeImage(data)
	if err != nil {
		return nil, goerr.Wrap(faceerr.ErrValidation, "detect faces", goerr.V("cause", err.Error()))
	}
	bounds := img.Bounds()
	input := preprocessForDetection(img, e.detector.inputW, e.detector.inputH)

	if err := e.lock(ctx); err != nil {
		return nil, err
	}
	raw, err := e.detector.Detect(input, bounds.Dx(), bounds.Dy())
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	dets := make([]models.Detection, 0, len(raw))
	for _, r := range raw {
		dets = append(dets, models.Detection{BoundingBox: boxFromCorners(r.BBox), Confidence: r.Confidence})
	}
	return dets, nil
}

func (e *Extractor) Embed(ctx context.Context, data []byte, box models.BoundingBox) (models.Embedding, error) {
	if box.Empty() {
		return nil, goerr.Wrap(faceerr.ErrValidation, "embed face: empty bounding box")
	}
	img, err := decodeImage(data)
	if err != nil {
		return nil, goerr.Wrap(faceerr.ErrValidation, "embed face", goerr.V("cause", err.Error()))
	}
	crop := cropFace(img, box)
	if crop == nil {
		return nil, goerr.Wrap(faceerr.ErrValidation, "embed face: box outside image", goerr.V("box", box))
	}
	input := preprocessForEmbedding(crop, e.embedder.inputW, e.embedder.inputH)

	if err := e.lock(ctx); err != nil {
		return nil, err
	}
	vec, err := e.embedder.Extract(input)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return models.Embedding(vec), nil
}

// lock acquires the session mutex unless ctx ends first. A call already
// running inside ONNX Runtime cannot be interrupted.
func (e *Extractor) lock(ctx context.Context) error {
	acquired := make(chan struct{})
	go func() {
		e.mu.Lock()
		close(acquired)
	}()
	select {
	case <-acquired:
		return nil
	case <-ctx.Done():
		go func() {
			<-acquired
			e.mu.Unlock()
		}()
		return ctx.Err()
	}
}

// Close releases all ONNX sessions.
func (e *Extractor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.detector != nil {
		e.detector.Close()
	}
	if e.embedder != nil {
		e.embedder.Close()
	}
}
