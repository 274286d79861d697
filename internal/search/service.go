// Package search answers "find my photos" requests for one event.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/your-org/eventface/internal/config"
	"github.com/your-org/eventface/internal/extractor"
	"github.com/your-org/eventface/internal/faceerr"
	"github.com/your-org/eventface/internal/matcher"
	"github.com/your-org/eventface/internal/models"
	"github.com/your-org/eventface/internal/observability"
)

// UseDefaultThreshold asks FindMyPhotos for the configured default threshold.
// Any negative value has the same effect.
const UseDefaultThreshold = -1.0

type Service struct {
	extractor        extractor.Extractor
	matcher          *matcher.Matcher
	timeout          time.Duration
	defaultThreshold float64
	maxResults       int
}

func NewService(ex extractor.Extractor, m *matcher.Matcher, cfg config.MatchingConfig, timeout time.Duration) *Service {
	threshold := cfg.DefaultThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = models.DefaultThreshold
	}
	return &Service{
		extractor:        ex,
		matcher:          m,
		timeout:          timeout,
		defaultThreshold: threshold,
		maxResults:       cfg.MaxResults,
	}
}

// FindMyPhotos matches the dominant face of selfie against the event's
// indexed faces. A negative threshold selects the configured default; 0 is a
// real threshold and anything above 1 is a validation error.
//
// Errors: faceerr.ErrNoFaceDetected when the selfie has no face,
// faceerr.ErrExtractorTimeout / ErrExtractorUnavailable when the model fails
// (retriable), faceerr.ErrDimensionMismatch when the index was built by a
// different model.
func (s *Service) FindMyPhotos(ctx context.Context, eventID string, selfie []byte, threshold float64) ([]models.MatchResult, error) {
	results, err := s.find(ctx, eventID, selfie, threshold)
	if err != nil {
		observability.Searches.WithLabelValues(faceerr.Code(err)).Inc()
		return nil, err
	}
	outcome := "matched"
	if len(results) == 0 {
		outcome = "no_match"
	}
	observability.Searches.WithLabelValues(outcome).Inc()
	return results, nil
}

func (s *Service) find(ctx context.Context, eventID string, selfie []byte, threshold float64) ([]models.MatchResult, error) {
	if threshold < 0 {
		threshold = s.defaultThreshold
	}
	if !(threshold <= 1) {
		return nil, goerr.Wrap(faceerr.ErrValidation, fmt.Sprintf("threshold %v outside [0,1]", threshold),
			goerr.V("event_id", eventID))
	}

	dets, err := extractor.Detect(ctx, s.extractor, selfie, s.timeout)
	if err != nil {
		return nil, fmt.Errorf("selfie detection: %w", err)
	}
	if len(dets) == 0 {
		return nil, goerr.Wrap(faceerr.ErrNoFaceDetected, "selfie contains no detectable face", goerr.V("event_id", eventID))
	}

	// A bystander in the background should not fail the search; use the
	// face the detector is most sure about.
	best := dets[0]
	for _, d := range dets[1:] {
		if d.Confidence > best.Confidence {
			best = d
		}
	}

	emb, err := extractor.Embed(ctx, s.extractor, selfie, best.BoundingBox, s.timeout)
	if err != nil {
		return nil, fmt.Errorf("selfie embedding: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results, err := s.matcher.Match(ctx, models.MatchQuery{
		EventID:   eventID,
		Embedding: emb,
		Threshold: threshold,
		Limit:     s.maxResults,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("selfie search",
		"event_id", eventID,
		"faces_in_selfie", len(dets),
		"selfie_confidence", best.Confidence,
		"threshold", threshold,
		"matches", len(results),
	)
	return results, nil
}
