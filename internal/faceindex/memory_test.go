package faceindex

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/eventface/internal/faceerr"
	"github.com/your-org/eventface/internal/models"
)

func record(eventID, mediaID string, emb ...float32) models.FaceRecord {
	return models.FaceRecord{
		EventID:            eventID,
		MediaID:            mediaID,
		Embedding:          emb,
		DetectorConfidence: 0.9,
	}
}

func TestMemoryInsertValidation(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory(3)

	tests := []struct {
		name string
		rec  models.FaceRecord
	}{
		{"empty event id", record("", "m1", 1, 0, 0)},
		{"empty media id", record("e1", "", 1, 0, 0)},
		{"short embedding", record("e1", "m1", 1, 0)},
		{"long embedding", record("e1", "m1", 1, 0, 0, 0)},
		{"confidence above one", func() models.FaceRecord {
			r := record("e1", "m1", 1, 0, 0)
			r.DetectorConfidence = 1.5
			return r
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := idx.Insert(ctx, tt.rec)
			require.Error(t, err)
			assert.ErrorIs(t, err, faceerr.ErrValidation)
		})
	}

	got, err := idx.AllForEvent(ctx, "e1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryAllForEventOrderAndScope(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory(2)

	require.NoError(t, idx.Insert(ctx, record("e1", "m1", 1, 0)))
	require.NoError(t, idx.Insert(ctx, record("e2", "m9", 0, 1)))
	require.NoError(t, idx.Insert(ctx, record("e1", "m2", 0, 1)))
	require.NoError(t, idx.Insert(ctx, record("e1", "m1", 1, 1)))

	got, err := idx.AllForEvent(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"m1", "m2", "m1"}, []string{got[0].MediaID, got[1].MediaID, got[2].MediaID})
	for _, r := range got {
		assert.Equal(t, "e1", r.EventID)
		assert.NotEqual(t, uuid.Nil, r.FaceID)
		assert.False(t, r.CreatedAt.IsZero())
	}

	empty, err := idx.AllForEvent(ctx, "unknown")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestMemoryDoesNotAliasCallerData(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory(2)

	emb := models.Embedding{1, 2}
	box := &models.BoundingBox{X: 1, Y: 2, Width: 3, Height: 4}
	rec := record("e1", "m1", emb...)
	rec.Embedding = emb
	rec.BoundingBox = box
	require.NoError(t, idx.Insert(ctx, rec))

	emb[0] = 99
	box.X = 99

	got, err := idx.AllForEvent(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, float32(1), got[0].Embedding[0])
	assert.Equal(t, float32(1), got[0].BoundingBox.X)

	// Mutating the returned slice must not leak back into the index.
	got[0].MediaID = "changed"
	got[0].Embedding[0] = 42
	got[0].BoundingBox.X = 42
	again, err := idx.AllForEvent(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "m1", again[0].MediaID)
	assert.Equal(t, float32(1), again[0].Embedding[0])
	assert.Equal(t, float32(1), again[0].BoundingBox.X)
}

func TestMemoryRemove(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory(2)

	require.NoError(t, idx.Insert(ctx, record("e1", "m1", 1, 0)))
	require.NoError(t, idx.Insert(ctx, record("e1", "m2", 0, 1)))
	require.NoError(t, idx.Insert(ctx, record("e1", "m1", 1, 1)))

	before, err := idx.AllForEvent(ctx, "e1")
	require.NoError(t, err)

	require.NoError(t, idx.Remove(ctx, "m1"))
	require.NoError(t, idx.Remove(ctx, "does-not-exist"))

	after, err := idx.AllForEvent(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "m2", after[0].MediaID)

	// Snapshot taken before the removal is unchanged.
	assert.Len(t, before, 3)

	require.NoError(t, idx.Insert(ctx, record("e1", "m3", 1, 0)))
	after, err = idx.AllForEvent(ctx, "e1")
	require.NoError(t, err)
	assert.Len(t, after, 2)
}

func TestMemoryConcurrentInsertAndRead(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory(2)

	const writers = 8
	const perWriter = 200

	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWriter {
				err := idx.Insert(ctx, record("e1", fmt.Sprintf("m-%d-%d", w, i), 1, float32(i)))
				assert.NoError(t, err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 100 {
			snap, err := idx.AllForEvent(ctx, "e1")
			assert.NoError(t, err)
			for _, r := range snap {
				// A published record is always complete.
				assert.Len(t, r.Embedding, 2)
				assert.Equal(t, "e1", r.EventID)
			}
		}
	}()

	wg.Wait()
	<-done

	got, err := idx.AllForEvent(ctx, "e1")
	require.NoError(t, err)
	assert.Len(t, got, writers*perWriter)
}
