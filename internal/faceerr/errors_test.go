package faceerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/stretchr/testify/assert"
)

func TestRetriable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unavailable", goerr.Wrap(ErrExtractorUnavailable, "detect", goerr.V("media_id", "m1")), true},
		{"timeout wrapped twice", fmt.Errorf("query: %w", goerr.Wrap(ErrExtractorTimeout, "embed")), true},
		{"no face", ErrNoFaceDetected, false},
		{"dimension", ErrDimensionMismatch, false},
		{"validation", ErrValidation, false},
		{"plain", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retriable(tt.err))
		})
	}
}

func TestCode(t *testing.T) {
	assert.Equal(t, "no_face_detected", Code(goerr.Wrap(ErrNoFaceDetected, "selfie")))
	assert.Equal(t, "dimension_mismatch", Code(ErrDimensionMismatch))
	assert.Equal(t, "extractor_timeout", Code(ErrExtractorTimeout))
	assert.Equal(t, "extractor_unavailable", Code(ErrExtractorUnavailable))
	assert.Equal(t, "validation_failed", Code(ErrValidation))
	assert.Equal(t, "internal", Code(errors.New("boom")))
}
