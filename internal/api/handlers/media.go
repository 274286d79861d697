package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/eventface/internal/faceindex"
	"github.com/your-org/eventface/internal/ingest"
	"github.com/your-org/eventface/internal/models"
	"github.com/your-org/eventface/internal/storage"
	"github.com/your-org/eventface/pkg/dto"
)

// MediaCatalog records which media items exist and where their bytes live.
type MediaCatalog interface {
	CreateMedia(ctx context.Context, m *models.Media) error
	GetMedia(ctx context.Context, id string) (*models.Media, error)
	DeleteMedia(ctx context.Context, id string) error
	CountFaces(ctx context.Context, eventID string) (int, error)
}

type ObjectStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	GetObject(ctx context.Context, key string) ([]byte, error)
	DeleteObject(ctx context.Context, key string) error
}

type TaskPublisher interface {
	PublishTask(ctx context.Context, task models.IngestTask) error
}

var imageExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type MediaHandler struct {
	catalog   MediaCatalog
	objects   ObjectStore
	index     faceindex.Index
	pipeline  *ingest.Pipeline
	publisher TaskPublisher
	maxUpload int64
	// OnIngested is called after a synchronous ingest, e.g. to notify
	// WebSocket clients.
	OnIngested func(models.IngestResult)
}

func NewMediaHandler(catalog MediaCatalog, objects ObjectStore, index faceindex.Index, pipeline *ingest.Pipeline, publisher TaskPublisher, maxUploadBytes int64) *MediaHandler {
	return &MediaHandler{
		catalog:   catalog,
		objects:   objects,
		index:     index,
		pipeline:  pipeline,
		publisher: publisher,
		maxUpload: maxUploadBytes,
	}
}

// Upload stores a photo and queues it for face indexing.
func (h *MediaHandler) Upload(c *gin.Context) {
	ctx := c.Request.Context()
	eventID := c.Param("eventId")

	data, ok := readUpload(c, "file", h.maxUpload)
	if !ok {
		return
	}
	contentType := http.DetectContentType(data)
	ext, ok := imageExt[contentType]
	if !ok {
		c.JSON(http.StatusUnsupportedMediaType, dto.ErrorResponse{Error: "unsupported image type " + contentType, Code: "unsupported_media_type"})
		return
	}

	media := &models.Media{
		ID:          uuid.NewString(),
		EventID:     eventID,
		ContentType: contentType,
	}
	media.ObjectKey = storage.MediaKey(eventID, media.ID, ext)

	if err := h.objects.PutObject(ctx, media.ObjectKey, data, contentType); err != nil {
		respondError(c, err)
		return
	}
	if err := h.catalog.CreateMedia(ctx, media); err != nil {
		respondError(c, err)
		return
	}

	task := models.IngestTask{MediaID: media.ID, EventID: eventID, ObjectKey: media.ObjectKey, Queued: time.Now().UTC()}
	if err := h.publisher.PublishTask(ctx, task); err != nil {
		// The media is stored; the organizer can trigger the ingest endpoint.
		slog.Error("queue ingest task", "media_id", media.ID, "error", err)
		c.JSON(http.StatusAccepted, dto.UploadResponse{MediaID: media.ID, EventID: eventID, ObjectKey: media.ObjectKey, Status: "stored"})
		return
	}

	c.JSON(http.StatusAccepted, dto.UploadResponse{MediaID: media.ID, EventID: eventID, ObjectKey: media.ObjectKey, Status: "queued"})
}

// Ingest re-indexes a stored media item synchronously. Existing faces of the
// item are removed first so re-running is idempotent.
func (h *MediaHandler) Ingest(c *gin.Context) {
	ctx := c.Request.Context()
	media, ok := h.lookup(c)
	if !ok {
		return
	}

	data, err := h.objects.GetObject(ctx, media.ObjectKey)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.index.Remove(ctx, media.ID); err != nil {
		respondError(c, err)
		return
	}

	result, err := h.pipeline.Ingest(ctx, media.ID, media.EventID, data)
	if err != nil {
		respondError(c, err)
		return
	}
	if h.OnIngested != nil {
		h.OnIngested(result)
	}
	c.JSON(http.StatusOK, dto.NewIngestResponse(result))
}

// Delete removes a media item's faces and bytes.
func (h *MediaHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	media, ok := h.lookup(c)
	if !ok {
		return
	}

	// Faces go first: once they are gone the photo can no longer be found,
	// which is what the organizer asked for.
	if err := h.index.Remove(ctx, media.ID); err != nil {
		respondError(c, err)
		return
	}
	if err := h.objects.DeleteObject(ctx, media.ObjectKey); err != nil {
		slog.Warn("delete media object", "key", media.ObjectKey, "error", err)
	}
	if err := h.catalog.DeleteMedia(ctx, media.ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// CountFaces reports how many faces the event has indexed.
func (h *MediaHandler) CountFaces(c *gin.Context) {
	eventID := c.Param("eventId")
	count, err := h.catalog.CountFaces(c.Request.Context(), eventID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FaceCountResponse{EventID: eventID, Faces: count})
}

func (h *MediaHandler) lookup(c *gin.Context) (*models.Media, bool) {
	media, err := h.catalog.GetMedia(c.Request.Context(), c.Param("mediaId"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	// Media of another event is reported as missing, not forbidden.
	if media == nil || media.EventID != c.Param("eventId") {
		notFound(c, "media not found")
		return nil, false
	}
	return media, true
}
