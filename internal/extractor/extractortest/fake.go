// Package extractortest provides a deterministic in-memory Extractor.
package extractortest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/your-org/eventface/internal/faceerr"
	"github.com/your-org/eventface/internal/models"
)

// Face is a face the fake "sees" in an image.
type Face struct {
	Box        models.BoundingBox
	Confidence float32
	Embedding  models.Embedding
	// EmbedErr, when set, is returned by Embed for this face.
	EmbedErr error
	// EmbedDelay blocks Embed for this face until it passes or ctx ends.
	EmbedDelay time.Duration
}

// Fake maps image bytes (as a string key) to the faces inside them.
type Fake struct {
	mu          sync.Mutex
	images      map[string][]Face
	Unavailable bool
	DetectDelay time.Duration
	EmbedCalls  int
}

func New() *Fake {
	return &Fake{images: make(map[string][]Face)}
}

// Add registers the faces contained in image.
func (f *Fake) Add(image string, faces ...Face) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images[image] = faces
}

func (f *Fake) DetectFaces(ctx context.Context, image []byte) ([]models.Detection, error) {
	if f.Unavailable {
		return nil, fmt.Errorf("dial model: %w", faceerr.ErrExtractorUnavailable)
	}
	if err := sleep(ctx, f.DetectDelay); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	faces := f.images[string(image)]
	dets := make([]models.Detection, len(faces))
	for i, face := range faces {
		dets[i] = models.Detection{BoundingBox: face.Box, Confidence: face.Confidence}
	}
	return dets, nil
}

func (f *Fake) Embed(ctx context.Context, image []byte, box models.BoundingBox) (models.Embedding, error) {
	f.mu.Lock()
	f.EmbedCalls++
	var face *Face
	for i := range f.images[string(image)] {
		if f.images[string(image)][i].Box == box {
			face = &f.images[string(image)][i]
			break
		}
	}
	f.mu.Unlock()

	if face == nil {
		return nil, fmt.Errorf("no face at %+v", box)
	}
	if err := sleep(ctx, face.EmbedDelay); err != nil {
		return nil, err
	}
	if face.EmbedErr != nil {
		return nil, face.EmbedErr
	}
	return face.Embedding, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
