package faceapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/eventface/internal/extractor"
	"github.com/your-org/eventface/internal/faceerr"
	"github.com/your-org/eventface/internal/models"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/detect", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) == "broken" {
			http.Error(w, "model crashed", http.StatusInternalServerError)
			return
		}
		if string(body) == "garbage" {
			http.Error(w, "cannot decode", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(DetectResponse{
			Success: true,
			Faces: []DetectedFace{
				{BboxX: 10, BboxY: 20, BboxWidth: 30, BboxHeight: 40, Confidence: 0.97},
			},
		})
	})
	mux.HandleFunc("/embed", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("width") != "30" || q.Get("x") != "10.5" {
			http.Error(w, "bad box", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(EmbedResponse{Success: true, Embedding: []float32{0.6, 0.8}})
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(HealthResponse{Status: "ok", Model: "buffalo_l"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDetectFaces(t *testing.T) {
	c := NewClient(newTestServer(t).URL)

	dets, err := c.DetectFaces(context.Background(), []byte("jpeg"))
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, models.BoundingBox{X: 10, Y: 20, Width: 30, Height: 40}, dets[0].BoundingBox)
	assert.InDelta(t, 0.97, dets[0].Confidence, 1e-6)
}

func TestDetectFacesErrors(t *testing.T) {
	c := NewClient(newTestServer(t).URL)

	_, err := c.DetectFaces(context.Background(), []byte("broken"))
	assert.ErrorIs(t, err, faceerr.ErrExtractorUnavailable)

	_, err = c.DetectFaces(context.Background(), []byte("garbage"))
	assert.ErrorIs(t, err, faceerr.ErrValidation)
	assert.False(t, faceerr.Retriable(err))
}

func TestEmbed(t *testing.T) {
	c := NewClient(newTestServer(t).URL)

	emb, err := c.Embed(context.Background(), []byte("jpeg"), models.BoundingBox{X: 10.5, Y: 20, Width: 30, Height: 40})
	require.NoError(t, err)
	assert.Equal(t, models.Embedding{0.6, 0.8}, emb)
}

func TestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url)
	_, err := c.DetectFaces(context.Background(), []byte("jpeg"))
	assert.ErrorIs(t, err, faceerr.ErrExtractorUnavailable)
	assert.False(t, c.IsAvailable(context.Background()))
}

func TestTimeoutThroughExtractor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	_, err := extractor.Detect(context.Background(), NewClient(srv.URL), []byte("jpeg"), 20*time.Millisecond)
	assert.ErrorIs(t, err, faceerr.ErrExtractorTimeout)
}

func TestHealth(t *testing.T) {
	c := NewClient(newTestServer(t).URL)
	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "buffalo_l", h.Model)
	assert.True(t, c.IsAvailable(context.Background()))
}
