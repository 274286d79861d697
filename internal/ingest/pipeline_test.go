package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/eventface/internal/config"
	"github.com/your-org/eventface/internal/extractor/extractortest"
	"github.com/your-org/eventface/internal/faceerr"
	"github.com/your-org/eventface/internal/faceindex"
	"github.com/your-org/eventface/internal/models"
)

func box(x float32) models.BoundingBox {
	return models.BoundingBox{X: x, Y: 0, Width: 50, Height: 50}
}

func newPipeline(fake *extractortest.Fake, idx faceindex.Index) *Pipeline {
	return NewPipeline(fake, idx, config.IngestConfig{
		ExtractorTimeout: 200 * time.Millisecond,
		FaceWorkers:      2,
	})
}

func TestIngestNoFaces(t *testing.T) {
	fake := extractortest.New()
	fake.Add("landscape.jpg")
	idx := faceindex.NewMemory(2)

	res, err := newPipeline(fake, idx).Ingest(context.Background(), "m1", "e1", []byte("landscape.jpg"))
	require.NoError(t, err)
	assert.Equal(t, 0, res.FacesFound)
	assert.Empty(t, res.Errors)
	assert.Zero(t, fake.EmbedCalls)
}

func TestIngestPartialFailure(t *testing.T) {
	fake := extractortest.New()
	fake.Add("group.jpg",
		extractortest.Face{Box: box(0), Confidence: 0.99, Embedding: models.Embedding{1, 0}},
		extractortest.Face{Box: box(100), Confidence: 0.9, EmbedErr: errors.New("crop too blurry")},
		extractortest.Face{Box: box(200), Confidence: 0.8, Embedding: models.Embedding{0, 1}},
	)
	idx := faceindex.NewMemory(2)

	res, err := newPipeline(fake, idx).Ingest(context.Background(), "m1", "e1", []byte("group.jpg"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.FacesFound)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 1, res.Errors[0].FaceIndex)
	assert.Equal(t, models.IngestErrorEmbed, res.Errors[0].Kind)
	assert.NotEmpty(t, res.Errors[0].Message)

	recs, err := idx.AllForEvent(context.Background(), "e1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, models.Embedding{1, 0}, recs[0].Embedding)
	assert.Equal(t, float32(0.99), recs[0].DetectorConfidence)
	assert.Equal(t, box(0), *recs[0].BoundingBox)
	assert.Equal(t, models.Embedding{0, 1}, recs[1].Embedding)
	for _, r := range recs {
		assert.Equal(t, "m1", r.MediaID)
		assert.Equal(t, "e1", r.EventID)
	}
}

func TestIngestFaceTimeout(t *testing.T) {
	fake := extractortest.New()
	fake.Add("slow.jpg",
		extractortest.Face{Box: box(0), Confidence: 0.9, Embedding: models.Embedding{1, 0}},
		extractortest.Face{Box: box(100), Confidence: 0.9, EmbedDelay: 5 * time.Second},
	)
	idx := faceindex.NewMemory(2)

	res, err := newPipeline(fake, idx).Ingest(context.Background(), "m1", "e1", []byte("slow.jpg"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.FacesFound)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, models.IngestErrorTimeout, res.Errors[0].Kind)
}

func TestIngestWrongDimensionIsPerFaceError(t *testing.T) {
	fake := extractortest.New()
	fake.Add("img",
		extractortest.Face{Box: box(0), Confidence: 0.9, Embedding: models.Embedding{1, 0, 0}},
		extractortest.Face{Box: box(100), Confidence: 0.9, Embedding: models.Embedding{1, 0}},
	)
	idx := faceindex.NewMemory(2)

	res, err := newPipeline(fake, idx).Ingest(context.Background(), "m1", "e1", []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.FacesFound)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 0, res.Errors[0].FaceIndex)
	assert.Equal(t, models.IngestErrorInvalid, res.Errors[0].Kind)
}

func TestIngestExtractorUnavailable(t *testing.T) {
	fake := extractortest.New()
	fake.Unavailable = true

	_, err := newPipeline(fake, faceindex.NewMemory(2)).Ingest(context.Background(), "m1", "e1", []byte("img"))
	require.Error(t, err)
	assert.ErrorIs(t, err, faceerr.ErrExtractorUnavailable)
	assert.True(t, faceerr.Retriable(err))
}

func TestIngestSkipsLowConfidenceDetections(t *testing.T) {
	fake := extractortest.New()
	fake.Add("img",
		extractortest.Face{Box: box(0), Confidence: 0.2, Embedding: models.Embedding{1, 0}},
		extractortest.Face{Box: box(100), Confidence: 0.9, Embedding: models.Embedding{0, 1}},
	)
	idx := faceindex.NewMemory(2)
	p := NewPipeline(fake, idx, config.IngestConfig{ExtractorTimeout: time.Second, MinDetectorConfidence: 0.5})

	res, err := p.Ingest(context.Background(), "m1", "e1", []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.FacesFound)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 1, fake.EmbedCalls)
}

func TestIngestIgnoresCallerCancellation(t *testing.T) {
	fake := extractortest.New()
	fake.Add("img", extractortest.Face{Box: box(0), Confidence: 0.9, Embedding: models.Embedding{1, 0}})
	idx := faceindex.NewMemory(2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newPipeline(fake, idx).Ingest(ctx, "m1", "e1", []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.FacesFound)
}

func TestIngestRequiresIDs(t *testing.T) {
	_, err := newPipeline(extractortest.New(), faceindex.NewMemory(2)).Ingest(context.Background(), "", "e1", nil)
	assert.ErrorIs(t, err, faceerr.ErrValidation)
}

func TestIngestErrorIndexCountsSkippedDetections(t *testing.T) {
	fake := extractortest.New()
	fake.Add("img",
		extractortest.Face{Box: box(0), Confidence: 0.2, Embedding: models.Embedding{1, 0}},
		extractortest.Face{Box: box(100), Confidence: 0.9, Embedding: models.Embedding{0, 1}},
		extractortest.Face{Box: box(200), Confidence: 0.9, EmbedErr: errors.New("crop too blurry")},
	)
	idx := faceindex.NewMemory(2)
	p := NewPipeline(fake, idx, config.IngestConfig{ExtractorTimeout: time.Second, MinDetectorConfidence: 0.5})

	res, err := p.Ingest(context.Background(), "m1", "e1", []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.FacesFound)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 2, res.Errors[0].FaceIndex)
}
