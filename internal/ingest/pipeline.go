// Package ingest turns one uploaded media item into face records.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/your-org/eventface/internal/config"
	"github.com/your-org/eventface/internal/extractor"
	"github.com/your-org/eventface/internal/faceerr"
	"github.com/your-org/eventface/internal/faceindex"
	"github.com/your-org/eventface/internal/models"
	"github.com/your-org/eventface/internal/observability"
)

// Pipeline orchestrates detect → embed → insert for one media item.
type Pipeline struct {
	extractor     extractor.Extractor
	index         faceindex.Index
	timeout       time.Duration
	minConfidence float32
	faceWorkers   int
}

func NewPipeline(ex extractor.Extractor, index faceindex.Index, cfg config.IngestConfig) *Pipeline {
	workers := cfg.FaceWorkers
	if workers <= 0 {
		workers = 1
	}
	return &Pipeline{
		extractor:     ex,
		index:         index,
		timeout:       cfg.ExtractorTimeout,
		minConfidence: float32(cfg.MinDetectorConfidence),
		faceWorkers:   workers,
	}
}

// embedded is the outcome for one detection; index is its position in the
// detector output.
type embedded struct {
	index int
	det   models.Detection
	emb   models.Embedding
	err   error
}

// Ingest indexes every face found in image. A failure on one face is recorded
// in the result and does not stop the others. The returned error is non-nil
// only when detection itself failed, in which case nothing was indexed.
//
// Once started, an item runs to completion even if ctx is cancelled; the
// per-call extractor timeout still applies.
func (p *Pipeline) Ingest(ctx context.Context, mediaID, eventID string, image []byte) (models.IngestResult, error) {
	ctx = context.WithoutCancel(ctx)
	result := models.IngestResult{MediaID: mediaID, EventID: eventID}

	if mediaID == "" || eventID == "" {
		return result, goerr.Wrap(faceerr.ErrValidation, "media id and event id are required",
			goerr.V("media_id", mediaID), goerr.V("event_id", eventID))
	}

	dets, err := extractor.Detect(ctx, p.extractor, image, p.timeout)
	if err != nil {
		observability.MediaIngested.WithLabelValues("failed").Inc()
		return result, fmt.Errorf("ingest media %s: %w", mediaID, err)
	}

	faces := make([]embedded, 0, len(dets))
	for i, d := range dets {
		if d.Confidence >= p.minConfidence {
			faces = append(faces, embedded{index: i, det: d})
		}
	}
	if len(faces) == 0 {
		observability.MediaIngested.WithLabelValues("no_faces").Inc()
		slog.Debug("no faces in media", "media_id", mediaID, "event_id", eventID, "detections", len(dets))
		return result, nil
	}

	p.embedAll(ctx, image, faces)

	// Insert in detection order so the index order is reproducible.
	for _, e := range faces {
		if e.err != nil {
			result.Errors = append(result.Errors, faceError(e.index, e.err))
			continue
		}

		box := e.det.BoundingBox
		rec := models.FaceRecord{
			EventID:            eventID,
			MediaID:            mediaID,
			Embedding:          e.emb,
			DetectorConfidence: e.det.Confidence,
		}
		if !box.Empty() {
			rec.BoundingBox = &box
		}
		if err := p.index.Insert(ctx, rec); err != nil {
			result.Errors = append(result.Errors, faceError(e.index, err))
			continue
		}
		result.FacesFound++
	}

	observability.FacesIndexed.Add(float64(result.FacesFound))
	for _, e := range result.Errors {
		observability.IngestFaceErrors.WithLabelValues(string(e.Kind)).Inc()
	}
	outcome := "ok"
	if len(result.Errors) > 0 {
		outcome = "partial"
	}
	observability.MediaIngested.WithLabelValues(outcome).Inc()

	slog.Info("media ingested",
		"media_id", mediaID,
		"event_id", eventID,
		"faces_found", result.FacesFound,
		"face_errors", len(result.Errors),
	)
	return result, nil
}

// embedAll fills in emb or err for every face, with up to faceWorkers
// concurrent extractor calls.
func (p *Pipeline) embedAll(ctx context.Context, image []byte, faces []embedded) {
	sem := make(chan struct{}, p.faceWorkers)
	var wg sync.WaitGroup

	for i := range faces {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			f := &faces[i]
			f.emb, f.err = extractor.Embed(ctx, p.extractor, image, f.det.BoundingBox, p.timeout)
		}()
	}
	wg.Wait()
}

func faceError(i int, err error) models.IngestError {
	kind := models.IngestErrorEmbed
	switch {
	case errors.Is(err, faceerr.ErrExtractorTimeout):
		kind = models.IngestErrorTimeout
	case errors.Is(err, faceerr.ErrExtractorUnavailable):
		kind = models.IngestErrorUnavailable
	case errors.Is(err, faceerr.ErrValidation):
		kind = models.IngestErrorInvalid
	}
	return models.IngestError{FaceIndex: i, Kind: kind, Message: err.Error()}
}
