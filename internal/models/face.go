package models

import (
	"time"

	"github.com/google/uuid"
)

// Embedding is a face's position in similarity space as produced by the
// embedding model. Never mutated after creation.
type Embedding []float32

// BoundingBox locates a face within its media item, in pixels.
type BoundingBox struct {
	X      float32 `json:"x"`
	Y      float32 `json:"y"`
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
}

// Empty reports whether the box has no area.
func (b BoundingBox) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// FaceRecord is one detected face of one media item within an event.
type FaceRecord struct {
	FaceID             uuid.UUID    `json:"face_id" db:"id"`
	EventID            string       `json:"event_id" db:"event_id" validate:"required"`
	MediaID            string       `json:"media_id" db:"media_id" validate:"required"`
	Embedding          Embedding    `json:"-" db:"embedding"`
	DetectorConfidence float32      `json:"detector_confidence" db:"detector_confidence" validate:"gte=0,lte=1"`
	BoundingBox        *BoundingBox `json:"bounding_box,omitempty"`
	CreatedAt          time.Time    `json:"created_at" db:"created_at"`
}

// Detection is one face found by the extractor's detector.
type Detection struct {
	BoundingBox BoundingBox `json:"bounding_box"`
	Confidence  float32     `json:"confidence"`
}
