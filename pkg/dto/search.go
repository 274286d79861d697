package dto

import "github.com/your-org/eventface/internal/models"

// SearchRequest holds the form fields of a selfie search next to the
// multipart "selfie" file. A missing threshold selects the server default.
type SearchRequest struct {
	Threshold *float64 `form:"threshold" binding:"omitempty,gte=0,lte=1"`
	Limit     int      `form:"limit" binding:"omitempty,gte=1,lte=1000"`
}

type MatchResponse struct {
	MediaID     string              `json:"media_id"`
	Confidence  float64             `json:"confidence"`
	BoundingBox *models.BoundingBox `json:"bounding_box,omitempty"`
}

type SearchResponse struct {
	EventID string          `json:"event_id"`
	Results []MatchResponse `json:"results"`
	Total   int             `json:"total"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retriable bool   `json:"retriable,omitempty"`
}
