package models

import (
	"time"
)

// Media is an uploaded photo or video frame stored in object storage.
type Media struct {
	ID          string    `json:"id" db:"id"`
	EventID     string    `json:"event_id" db:"event_id"`
	ObjectKey   string    `json:"object_key" db:"object_key"`
	ContentType string    `json:"content_type" db:"content_type"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// IngestTask is the message published to NATS for worker processing.
type IngestTask struct {
	MediaID   string    `json:"media_id"`
	EventID   string    `json:"event_id"`
	ObjectKey string    `json:"object_key"`
	Queued    time.Time `json:"queued"`
}

// IngestErrorKind classifies why one face of a media item was not indexed.
type IngestErrorKind string

const (
	IngestErrorTimeout     IngestErrorKind = "extractor_timeout"
	IngestErrorUnavailable IngestErrorKind = "extractor_unavailable"
	IngestErrorEmbed       IngestErrorKind = "embed_failed"
	IngestErrorInvalid     IngestErrorKind = "invalid_record"
)

// IngestError records a per-face failure. It is collected, not returned.
type IngestError struct {
	FaceIndex int             `json:"face_index"`
	Kind      IngestErrorKind `json:"kind"`
	Message   string          `json:"message"`
}

func (e IngestError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// IngestResult summarises the processing of one media item.
type IngestResult struct {
	MediaID    string        `json:"media_id"`
	EventID    string        `json:"event_id"`
	FacesFound int           `json:"faces_found"`
	Errors     []IngestError `json:"errors,omitempty"`
}
