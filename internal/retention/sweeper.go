// Package retention deletes media past the retention window. It only removes
// faces through the Face Index and bytes through object storage; what counts
// as expired (for example media a guest has paid for) is decided by the
// catalogue query, not here.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/your-org/eventface/internal/faceindex"
	"github.com/your-org/eventface/internal/models"
	"github.com/your-org/eventface/internal/observability"
)

const defaultBatch = 500

type Catalog interface {
	ListMediaBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Media, error)
	DeleteMedia(ctx context.Context, id string) error
}

type ObjectDeleter interface {
	DeleteObjects(ctx context.Context, keys []string) error
}

type Sweeper struct {
	catalog Catalog
	index   faceindex.Index
	objects ObjectDeleter
	maxAge  time.Duration
	batch   int
	now     func() time.Time
}

func NewSweeper(catalog Catalog, index faceindex.Index, objects ObjectDeleter, maxAge time.Duration) *Sweeper {
	return &Sweeper{
		catalog: catalog,
		index:   index,
		objects: objects,
		maxAge:  maxAge,
		batch:   defaultBatch,
		now:     time.Now,
	}
}

// Sweep deletes every media item older than maxAge and returns how many were
// removed. A failed item is skipped and retried on the next run.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.maxAge)
	removed := 0
	skipped := map[string]bool{}

	for {
		media, err := s.catalog.ListMediaBefore(ctx, cutoff, s.batch+len(skipped))
		if err != nil {
			return removed, fmt.Errorf("list expired media: %w", err)
		}

		var keys []string
		var done []models.Media
		for _, m := range media {
			if skipped[m.ID] {
				continue
			}
			if err := s.index.Remove(ctx, m.ID); err != nil {
				slog.Warn("retention: remove faces", "media_id", m.ID, "error", err)
				skipped[m.ID] = true
				continue
			}
			keys = append(keys, m.ObjectKey)
			done = append(done, m)
		}

		if err := s.objects.DeleteObjects(ctx, keys); err != nil {
			// Faces are already gone so the photos are unreachable; leave the
			// rows so the objects are retried next run.
			return removed, fmt.Errorf("delete expired objects: %w", err)
		}
		for _, m := range done {
			if err := s.catalog.DeleteMedia(ctx, m.ID); err != nil {
				slog.Warn("retention: delete media row", "media_id", m.ID, "error", err)
				skipped[m.ID] = true
				continue
			}
			removed++
			observability.MediaExpired.Inc()
		}

		if len(done) == 0 || len(media) < s.batch+len(skipped) {
			break
		}
		if err := ctx.Err(); err != nil {
			return removed, err
		}
	}

	if removed > 0 || len(skipped) > 0 {
		slog.Info("retention sweep finished", "removed", removed, "skipped", len(skipped), "cutoff", cutoff)
	}
	return removed, nil
}

// Schedule runs Sweep on cronExpr (UTC). Overlapping runs are skipped.
// The caller starts and stops the returned scheduler.
func Schedule(ctx context.Context, s *Sweeper, cronExpr string) (*gocron.Scheduler, error) {
	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()

	_, err := scheduler.Cron(cronExpr).Do(func() {
		if _, err := s.Sweep(ctx); err != nil {
			slog.Error("retention sweep", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule retention sweep %q: %w", cronExpr, err)
	}
	return scheduler, nil
}
