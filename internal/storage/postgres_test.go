//go:build integration

package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/your-org/eventface/internal/faceerr"
	"github.com/your-org/eventface/internal/matcher"
	"github.com/your-org/eventface/internal/models"
)

func setupPostgres(t *testing.T, dim int) *PostgresStore {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available, skipping integration test: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())
	store, err := newPostgresStore(ctx, dsn, 5, dim)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	require.NoError(t, store.Migrate(ctx))
	// Second run is a no-op.
	require.NoError(t, store.Migrate(ctx))
	return store
}

func TestPostgresFaceIndex(t *testing.T) {
	store := setupPostgres(t, 3)
	ctx := context.Background()

	box := &models.BoundingBox{X: 1, Y: 2, Width: 3, Height: 4}
	require.NoError(t, store.Insert(ctx, models.FaceRecord{EventID: "e1", MediaID: "m1", Embedding: models.Embedding{1, 0, 0}, DetectorConfidence: 0.9, BoundingBox: box}))
	require.NoError(t, store.Insert(ctx, models.FaceRecord{EventID: "e1", MediaID: "m2", Embedding: models.Embedding{0, 1, 0}, DetectorConfidence: 0.8}))
	require.NoError(t, store.Insert(ctx, models.FaceRecord{EventID: "e2", MediaID: "m3", Embedding: models.Embedding{0, 0, 1}, DetectorConfidence: 0.7}))

	err := store.Insert(ctx, models.FaceRecord{EventID: "e1", MediaID: "m4", Embedding: models.Embedding{1, 0}, DetectorConfidence: 0.9})
	assert.ErrorIs(t, err, faceerr.ErrValidation)

	t.Run("AllForEvent", func(t *testing.T) {
		recs, err := store.AllForEvent(ctx, "e1")
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "m1", recs[0].MediaID)
		assert.Equal(t, models.Embedding{1, 0, 0}, recs[0].Embedding)
		require.NotNil(t, recs[0].BoundingBox)
		assert.Equal(t, *box, *recs[0].BoundingBox)
		assert.Equal(t, "m2", recs[1].MediaID)
		assert.Nil(t, recs[1].BoundingBox)

		empty, err := store.AllForEvent(ctx, "nope")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("Match", func(t *testing.T) {
		got, err := matcher.New(store).Match(ctx, models.MatchQuery{EventID: "e1", Embedding: models.Embedding{1, 0.1, 0}, Threshold: 0.6})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "m1", got[0].MediaID)
	})

	t.Run("Remove", func(t *testing.T) {
		require.NoError(t, store.Remove(ctx, "m1"))
		require.NoError(t, store.Remove(ctx, "m1"))

		count, err := store.CountFaces(ctx, "e1")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestPostgresMedia(t *testing.T) {
	store := setupPostgres(t, 3)
	ctx := context.Background()

	m := &models.Media{ID: "m1", EventID: "e1", ObjectKey: "events/e1/m1.jpg", ContentType: "image/jpeg"}
	require.NoError(t, store.CreateMedia(ctx, m))
	assert.False(t, m.CreatedAt.IsZero())

	got, err := store.GetMedia(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "events/e1/m1.jpg", got.ObjectKey)

	expired, err := store.ListMediaBefore(ctx, time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, expired, 1)

	fresh, err := store.ListMediaBefore(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, fresh)

	require.NoError(t, store.DeleteMedia(ctx, "m1"))
	missing, err := store.GetMedia(ctx, "m1")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
