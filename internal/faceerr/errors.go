// Package faceerr holds the error kinds shared by the face index, matcher,
// ingestion pipeline and query service.
package faceerr

import (
	"errors"

	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrValidation is returned for malformed input: a bad FaceRecord, an
	// undecodable image or an out-of-range parameter.
	ErrValidation = goerr.New("validation failed")

	// ErrDimensionMismatch means the query and stored embeddings come from
	// different models and cannot be compared.
	ErrDimensionMismatch = goerr.New("embedding dimension mismatch")

	// ErrExtractorUnavailable means the embedding extractor could not be reached.
	ErrExtractorUnavailable = goerr.New("embedding extractor unavailable")

	// ErrExtractorTimeout means an extractor call exceeded its deadline.
	ErrExtractorTimeout = goerr.New("embedding extractor timed out")

	// ErrNoFaceDetected means the selfie has no detectable face. The user can
	// fix this by uploading a clearer picture.
	ErrNoFaceDetected = goerr.New("no face detected")
)

// Retriable reports whether the caller may retry the same input with backoff.
func Retriable(err error) bool {
	return errors.Is(err, ErrExtractorUnavailable) || errors.Is(err, ErrExtractorTimeout)
}

// Code returns a stable machine-readable code for a known error kind, or
// "internal" for anything else.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation_failed"
	case errors.Is(err, ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, ErrExtractorUnavailable):
		return "extractor_unavailable"
	case errors.Is(err, ErrExtractorTimeout):
		return "extractor_timeout"
	case errors.Is(err, ErrNoFaceDetected):
		return "no_face_detected"
	default:
		return "internal"
	}
}
