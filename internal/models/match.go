package models

// DefaultThreshold is the minimum similarity a face needs to count as a match
// when the caller does not pick one.
const DefaultThreshold = 0.6

// MatchQuery is a single search against one event's faces.
type MatchQuery struct {
	EventID   string
	Embedding Embedding
	Threshold float64
	// Limit caps the number of results; 0 returns every match.
	Limit int
}

// MatchResult is one matching media item. Confidence is the similarity of the
// best face in that media.
type MatchResult struct {
	MediaID     string       `json:"media_id"`
	Confidence  float64      `json:"confidence"`
	BoundingBox *BoundingBox `json:"bounding_box,omitempty"`
}
