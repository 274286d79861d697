// Package matcher ranks an event's faces against a query embedding.
package matcher

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/m-mizutani/goerr/v2"

	"github.com/your-org/eventface/internal/faceerr"
	"github.com/your-org/eventface/internal/faceindex"
	"github.com/your-org/eventface/internal/models"
	"github.com/your-org/eventface/internal/observability"
)

// Matcher is read-only over the index and keeps no state between queries.
type Matcher struct {
	index faceindex.Index
}

func New(index faceindex.Index) *Matcher {
	return &Matcher{index: index}
}

type candidate struct {
	rec *models.FaceRecord
	sim float64
}

// Match returns one result per matching media item, best first. Ties are
// ordered by media id.
func (m *Matcher) Match(ctx context.Context, q models.MatchQuery) ([]models.MatchResult, error) {
	if !(q.Threshold >= 0 && q.Threshold <= 1) {
		return nil, goerr.Wrap(faceerr.ErrValidation, fmt.Sprintf("threshold %v outside [0,1]", q.Threshold),
			goerr.V("event_id", q.EventID))
	}

	records, err := m.index.AllForEvent(ctx, q.EventID)
	if err != nil {
		return nil, fmt.Errorf("load faces for event %s: %w", q.EventID, err)
	}
	if len(records) == 0 {
		return []models.MatchResult{}, nil
	}

	best := make(map[string]candidate)
	for i := range records {
		rec := &records[i]
		if len(rec.Embedding) != len(q.Embedding) {
			return nil, goerr.Wrap(faceerr.ErrDimensionMismatch,
				fmt.Sprintf("query has %d dimensions, indexed face has %d", len(q.Embedding), len(rec.Embedding)),
				goerr.V("event_id", q.EventID), goerr.V("face_id", rec.FaceID.String()))
		}

		sim := CosineSimilarity(q.Embedding, rec.Embedding)
		// Zero similarity covers degenerate embeddings; never a match.
		if sim <= 0 || sim < q.Threshold {
			continue
		}
		if cur, ok := best[rec.MediaID]; !ok || sim > cur.sim {
			best[rec.MediaID] = candidate{rec: rec, sim: sim}
		}
	}

	ranked := make([]candidate, 0, len(best))
	for _, c := range best {
		ranked = append(ranked, c)
	}
	slices.SortFunc(ranked, func(a, b candidate) int {
		if c := cmp.Compare(b.sim, a.sim); c != 0 {
			return c
		}
		return cmp.Compare(a.rec.MediaID, b.rec.MediaID)
	})
	if q.Limit > 0 && len(ranked) > q.Limit {
		ranked = ranked[:q.Limit]
	}

	results := make([]models.MatchResult, len(ranked))
	for i, c := range ranked {
		results[i] = models.MatchResult{
			MediaID:    c.rec.MediaID,
			Confidence: c.sim,
		}
		if c.rec.BoundingBox != nil {
			box := *c.rec.BoundingBox
			results[i].BoundingBox = &box
		}
	}

	observability.MatchCandidates.Observe(float64(len(records)))
	slog.Debug("match complete",
		"event_id", q.EventID,
		"faces", len(records),
		"matches", len(results),
		"threshold", q.Threshold,
	)

	return results, nil
}
