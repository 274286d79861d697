package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMediaKey(t *testing.T) {
	tests := []struct {
		event, media, ext string
		want              string
	}{
		{"e1", "m1", ".jpg", "events/e1/m1.jpg"},
		{"e1", "m1", "PNG", "events/e1/m1.png"},
		{"e1", "m1", "", "events/e1/m1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MediaKey(tt.event, tt.media, tt.ext))
	}
}
