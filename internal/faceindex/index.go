// Package faceindex stores detected faces partitioned by event.
//
// Every query is scoped to one event; there is no way to read faces across
// events through this package.
package faceindex

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"github.com/your-org/eventface/internal/faceerr"
	"github.com/your-org/eventface/internal/models"
)

// Index is the storage contract for face records. Implementations must be
// safe for concurrent Insert and AllForEvent calls and must never expose a
// partially written record.
type Index interface {
	// Insert adds a record to its event. Returns faceerr.ErrValidation for a
	// malformed record.
	Insert(ctx context.Context, rec models.FaceRecord) error
	// AllForEvent returns a point-in-time snapshot of the event's records in
	// insertion order. An unknown event yields an empty slice.
	AllForEvent(ctx context.Context, eventID string) ([]models.FaceRecord, error)
	// Remove deletes every record of the media item. Removing an unknown
	// media item is not an error.
	Remove(ctx context.Context, mediaID string) error
}

var validate = validator.New()

// Validate checks a record before insertion against the configured
// embedding dimension.
func Validate(rec *models.FaceRecord, dim int) error {
	if err := validate.Struct(rec); err != nil {
		return goerr.Wrap(faceerr.ErrValidation, err.Error(),
			goerr.V("event_id", rec.EventID), goerr.V("media_id", rec.MediaID))
	}
	if len(rec.Embedding) != dim {
		return goerr.Wrap(faceerr.ErrValidation, fmt.Sprintf("embedding has %d dimensions, index expects %d", len(rec.Embedding), dim),
			goerr.V("event_id", rec.EventID), goerr.V("media_id", rec.MediaID))
	}
	return nil
}

// Prepare fills in generated fields and detaches the record from caller
// owned memory.
func Prepare(rec models.FaceRecord) models.FaceRecord {
	if rec.FaceID == uuid.Nil {
		rec.FaceID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return Clone(rec)
}

// Clone returns a copy of rec that shares no memory with it.
func Clone(rec models.FaceRecord) models.FaceRecord {
	rec.Embedding = slices.Clone(rec.Embedding)
	if rec.BoundingBox != nil {
		box := *rec.BoundingBox
		rec.BoundingBox = &box
	}
	return rec
}
