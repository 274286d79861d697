package dto

import "github.com/your-org/eventface/internal/models"

type UploadResponse struct {
	MediaID   string `json:"media_id"`
	EventID   string `json:"event_id"`
	ObjectKey string `json:"object_key"`
	Status    string `json:"status"`
}

type IngestResponse struct {
	MediaID    string               `json:"media_id"`
	EventID    string               `json:"event_id"`
	FacesFound int                  `json:"faces_found"`
	Errors     []models.IngestError `json:"errors"`
}

type FaceCountResponse struct {
	EventID string `json:"event_id"`
	Faces   int    `json:"faces"`
}

// WSEvent is a WebSocket message for real-time ingest notifications.
type WSEvent struct {
	Type       string               `json:"type"` // media_ingested
	EventID    string               `json:"event_id"`
	MediaID    string               `json:"media_id"`
	FacesFound int                  `json:"faces_found"`
	Errors     []models.IngestError `json:"errors,omitempty"`
}

func NewIngestResponse(r models.IngestResult) IngestResponse {
	errs := r.Errors
	if errs == nil {
		errs = []models.IngestError{}
	}
	return IngestResponse{MediaID: r.MediaID, EventID: r.EventID, FacesFound: r.FacesFound, Errors: errs}
}

func NewWSEvent(r models.IngestResult) WSEvent {
	return WSEvent{
		Type:       "media_ingested",
		EventID:    r.EventID,
		MediaID:    r.MediaID,
		FacesFound: r.FacesFound,
		Errors:     r.Errors,
	}
}
