package matcher

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/eventface/internal/faceerr"
	"github.com/your-org/eventface/internal/faceindex"
	"github.com/your-org/eventface/internal/models"
)

// withSimilarity returns a unit 2-d vector whose cosine similarity to (1, 0)
// is sim.
func withSimilarity(sim float64) models.Embedding {
	return models.Embedding{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

func insert(t *testing.T, idx faceindex.Index, eventID, mediaID string, emb models.Embedding, box *models.BoundingBox) {
	t.Helper()
	err := idx.Insert(context.Background(), models.FaceRecord{
		EventID:            eventID,
		MediaID:            mediaID,
		Embedding:          emb,
		DetectorConfidence: 0.9,
		BoundingBox:        box,
	})
	require.NoError(t, err)
}

func query(eventID string, threshold float64) models.MatchQuery {
	return models.MatchQuery{EventID: eventID, Embedding: models.Embedding{1, 0}, Threshold: threshold}
}

func TestMatchThresholdScenario(t *testing.T) {
	idx := faceindex.NewMemory(2)
	box := &models.BoundingBox{X: 10, Y: 20, Width: 30, Height: 40}
	insert(t, idx, "e1", "m1", withSimilarity(0.9), box)
	insert(t, idx, "e1", "m2", withSimilarity(0.5), nil)

	got, err := New(idx).Match(context.Background(), query("e1", 0.6))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "m1", got[0].MediaID)
	assert.InDelta(t, 0.9, got[0].Confidence, 1e-6)
	require.NotNil(t, got[0].BoundingBox)
	assert.Equal(t, *box, *got[0].BoundingBox)
}

func TestMatchEmptyEvent(t *testing.T) {
	idx := faceindex.NewMemory(2)
	insert(t, idx, "other", "m1", withSimilarity(1), nil)

	got, err := New(idx).Match(context.Background(), query("e1", 0.6))
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMatchDedupesPerMedia(t *testing.T) {
	idx := faceindex.NewMemory(2)
	insert(t, idx, "e1", "group-photo", withSimilarity(0.7), &models.BoundingBox{X: 1, Width: 1, Height: 1})
	insert(t, idx, "e1", "group-photo", withSimilarity(0.95), &models.BoundingBox{X: 2, Width: 1, Height: 1})
	insert(t, idx, "e1", "group-photo", withSimilarity(0.8), &models.BoundingBox{X: 3, Width: 1, Height: 1})
	insert(t, idx, "e1", "portrait", withSimilarity(0.85), nil)

	got, err := New(idx).Match(context.Background(), query("e1", 0.6))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "group-photo", got[0].MediaID)
	assert.InDelta(t, 0.95, got[0].Confidence, 1e-6)
	assert.Equal(t, float32(2), got[0].BoundingBox.X, "box comes from the winning face")
	assert.Equal(t, "portrait", got[1].MediaID)
	assert.Nil(t, got[1].BoundingBox)
}

func TestMatchOrderingAndTies(t *testing.T) {
	idx := faceindex.NewMemory(2)
	insert(t, idx, "e1", "c", withSimilarity(0.8), nil)
	insert(t, idx, "e1", "a", withSimilarity(0.8), nil)
	insert(t, idx, "e1", "b", withSimilarity(0.9), nil)
	insert(t, idx, "e1", "d", withSimilarity(0.7), nil)

	got, err := New(idx).Match(context.Background(), query("e1", 0.6))
	require.NoError(t, err)

	ids := make([]string, len(got))
	for i, r := range got {
		ids[i] = r.MediaID
	}
	assert.Equal(t, []string{"b", "a", "c", "d"}, ids)
}

func TestMatchLimit(t *testing.T) {
	idx := faceindex.NewMemory(2)
	insert(t, idx, "e1", "a", withSimilarity(0.7), nil)
	insert(t, idx, "e1", "b", withSimilarity(0.9), nil)
	insert(t, idx, "e1", "c", withSimilarity(0.8), nil)

	q := query("e1", 0.6)
	q.Limit = 2
	got, err := New(idx).Match(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].MediaID)
	assert.Equal(t, "c", got[1].MediaID)
}

func TestMatchZeroVectorNeverMatches(t *testing.T) {
	idx := faceindex.NewMemory(2)
	insert(t, idx, "e1", "blank", models.Embedding{0, 0}, nil)

	got, err := New(idx).Match(context.Background(), query("e1", 0))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMatchDimensionMismatch(t *testing.T) {
	idx := faceindex.NewMemory(256)
	insert(t, idx, "e1", "m1", make(models.Embedding, 256), nil)

	q := models.MatchQuery{EventID: "e1", Embedding: make(models.Embedding, 128), Threshold: 0.6}
	_, err := New(idx).Match(context.Background(), q)
	require.Error(t, err)
	assert.ErrorIs(t, err, faceerr.ErrDimensionMismatch)
	assert.False(t, faceerr.Retriable(err))
}

func TestMatchRejectsBadThreshold(t *testing.T) {
	idx := faceindex.NewMemory(2)
	for _, th := range []float64{-0.1, 1.1, math.NaN()} {
		_, err := New(idx).Match(context.Background(), query("e1", th))
		assert.ErrorIs(t, err, faceerr.ErrValidation)
	}
}

func TestMatchInvariantsRandomised(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	idx := faceindex.NewMemory(16)

	for i := range 300 {
		insert(t, idx, "e1", fmt.Sprintf("m%02d", i%40), randomVector(r, 16), nil)
	}

	q := models.MatchQuery{EventID: "e1", Embedding: randomVector(r, 16), Threshold: 0.1}
	got, err := New(idx).Match(context.Background(), q)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i, res := range got {
		assert.False(t, seen[res.MediaID], "duplicate media %s", res.MediaID)
		seen[res.MediaID] = true
		assert.GreaterOrEqual(t, res.Confidence, q.Threshold)
		assert.LessOrEqual(t, res.Confidence, 1.0)
		if i > 0 {
			prev := got[i-1]
			assert.True(t, prev.Confidence > res.Confidence ||
				(prev.Confidence == res.Confidence && prev.MediaID < res.MediaID),
				"results out of order at %d", i)
		}
	}
}
