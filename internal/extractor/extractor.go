// Package extractor defines the face detection and embedding capability the
// pipeline depends on, and the timeout handling around every call to it.
package extractor

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/your-org/eventface/internal/faceerr"
	"github.com/your-org/eventface/internal/models"
	"github.com/your-org/eventface/internal/observability"
)

// Extractor wraps a face recognition model. Calls may be slow and out of
// process. Implementations return errors wrapping
// faceerr.ErrExtractorUnavailable when the model cannot be reached at all.
type Extractor interface {
	// DetectFaces locates faces in an encoded image.
	DetectFaces(ctx context.Context, image []byte) ([]models.Detection, error)
	// Embed computes the embedding of the face inside box.
	Embed(ctx context.Context, image []byte, box models.BoundingBox) (models.Embedding, error)
}

// Detect calls ex.DetectFaces with a per-call timeout.
func Detect(ctx context.Context, ex Extractor, image []byte, timeout time.Duration) ([]models.Detection, error) {
	callCtx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	dets, err := ex.DetectFaces(callCtx, image)
	observability.ExtractorDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, classify(ctx, callCtx, err, "detect faces")
	}
	return dets, nil
}

// Embed calls ex.Embed with a per-call timeout.
func Embed(ctx context.Context, ex Extractor, image []byte, box models.BoundingBox, timeout time.Duration) (models.Embedding, error) {
	callCtx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	emb, err := ex.Embed(callCtx, image, box)
	observability.ExtractorDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, classify(ctx, callCtx, err, "embed face")
	}
	return emb, nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// classify maps deadline expiry to ErrExtractorTimeout. Cancellation by the
// caller is returned as the context error so it is not mistaken for an
// extractor fault.
func classify(parent, callCtx context.Context, err error, op string) error {
	if errors.Is(err, faceerr.ErrExtractorUnavailable) || errors.Is(err, faceerr.ErrExtractorTimeout) {
		return err
	}
	if errors.Is(parent.Err(), context.Canceled) {
		return goerr.Wrap(parent.Err(), op)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return goerr.Wrap(faceerr.ErrExtractorTimeout, op, goerr.V("cause", err.Error()))
	}
	return goerr.Wrap(err, op)
}
