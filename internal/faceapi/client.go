// Package faceapi is an extractor backed by a remote face detection and
// embedding service speaking JSON over HTTP.
package faceapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/your-org/eventface/internal/extractor"
	"github.com/your-org/eventface/internal/faceerr"
	"github.com/your-org/eventface/internal/models"
)

// Client communicates with the face service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ extractor.Extractor = (*Client)(nil)

// DetectedFace is one face in a /detect response. Box is in pixels.
type DetectedFace struct {
	BboxX      float32 `json:"bbox_x"`
	BboxY      float32 `json:"bbox_y"`
	BboxWidth  float32 `json:"bbox_width"`
	BboxHeight float32 `json:"bbox_height"`
	Confidence float32 `json:"confidence"`
}

type DetectResponse struct {
	Success bool           `json:"success"`
	Faces   []DetectedFace `json:"faces"`
	Error   string         `json:"error,omitempty"`
}

type EmbedResponse struct {
	Success   bool      `json:"success"`
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Model   string `json:"model"`
	Version string `json:"version"`
}

// NewClient creates a face service client. The HTTP timeout is a backstop;
// callers bound each call with their own context deadline.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (c *Client) DetectFaces(ctx context.Context, image []byte) ([]models.Detection, error) {
	var result DetectResponse
	if err := c.postImage(ctx, "/detect", nil, image, &result); err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, goerr.Wrap(faceerr.ErrValidation, "face detection failed", goerr.V("error", result.Error))
	}

	dets := make([]models.Detection, 0, len(result.Faces))
	for _, f := range result.Faces {
		dets = append(dets, models.Detection{
			BoundingBox: models.BoundingBox{X: f.BboxX, Y: f.BboxY, Width: f.BboxWidth, Height: f.BboxHeight},
			Confidence:  f.Confidence,
		})
	}
	return dets, nil
}

func (c *Client) Embed(ctx context.Context, image []byte, box models.BoundingBox) (models.Embedding, error) {
	q := url.Values{}
	q.Set("x", formatFloat(box.X))
	q.Set("y", formatFloat(box.Y))
	q.Set("width", formatFloat(box.Width))
	q.Set("height", formatFloat(box.Height))

	var result EmbedResponse
	if err := c.postImage(ctx, "/embed", q, image, &result); err != nil {
		return nil, err
	}
	if !result.Success || len(result.Embedding) == 0 {
		return nil, goerr.New("face embedding failed", goerr.V("error", result.Error))
	}
	return models.Embedding(result.Embedding), nil
}

// Health checks if the face service is healthy.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, unavailable("health", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, goerr.Wrap(faceerr.ErrExtractorUnavailable, "health check failed", goerr.V("status", resp.StatusCode))
	}

	var result HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("parse health response: %w", err)
	}
	return &result, nil
}

// IsAvailable reports whether the face service answers health checks.
func (c *Client) IsAvailable(ctx context.Context) bool {
	health, err := c.Health(ctx)
	if err != nil {
		return false
	}
	return health.Status == "ok"
}

func (c *Client) postImage(ctx context.Context, path string, query url.Values, image []byte, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(image))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", http.DetectContentType(image))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return unavailable(path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return unavailable(path, err)
	}

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return goerr.Wrap(faceerr.ErrExtractorUnavailable, "face service error",
			goerr.V("path", path), goerr.V("status", resp.StatusCode), goerr.V("body", truncate(body)))
	case resp.StatusCode >= 400:
		return goerr.Wrap(faceerr.ErrValidation, "face service rejected request",
			goerr.V("path", path), goerr.V("status", resp.StatusCode), goerr.V("body", truncate(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse %s response: %w", path, err)
	}
	return nil
}

// unavailable classifies a transport failure. Context expiry is passed
// through so the caller can tell a timeout from an unreachable service.
func unavailable(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("call face service %s: %w", op, err)
	}
	return goerr.Wrap(faceerr.ErrExtractorUnavailable, "call face service", goerr.V("op", op), goerr.V("cause", err.Error()))
}

func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'f', -1, 32)
}

func truncate(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max])
	}
	return string(b)
}
