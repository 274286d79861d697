package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/eventface/internal/config"
	"github.com/your-org/eventface/internal/faceindex"
	"github.com/your-org/eventface/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore is the durable faceindex.Index plus the media catalogue.
type PostgresStore struct {
	pool *pgxpool.Pool
	dim  int
}

var _ faceindex.Index = (*PostgresStore)(nil)

func NewPostgresStore(cfg config.DatabaseConfig, dim int) (*PostgresStore, error) {
	return newPostgresStore(context.Background(), cfg.DSN(), cfg.MaxConns, dim)
}

func newPostgresStore(ctx context.Context, dsn string, maxConns, dim int) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool, dim: dim}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies embedded SQL migrations that have not run yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		var applied bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, name,
		).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if applied {
			continue
		}

		body, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(body)); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, name)
			return err
		}); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		slog.Info("applied migration", "version", name)
	}
	return nil
}

// --- Face records ---

func (s *PostgresStore) Insert(ctx context.Context, rec models.FaceRecord) error {
	if err := faceindex.Validate(&rec, s.dim); err != nil {
		return err
	}
	rec = faceindex.Prepare(rec)

	var x, y, w, h *float32
	if b := rec.BoundingBox; b != nil {
		x, y, w, h = &b.X, &b.Y, &b.Width, &b.Height
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO face_records (id, event_id, media_id, embedding, detector_confidence, bbox_x, bbox_y, bbox_w, bbox_h, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.FaceID, rec.EventID, rec.MediaID, pgvector.NewVector(rec.Embedding),
		rec.DetectorConfidence, x, y, w, h, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert face record: %w", err)
	}
	return nil
}

// AllForEvent reads the event's rows in one statement, which gives the
// snapshot semantics the index contract requires.
func (s *PostgresStore) AllForEvent(ctx context.Context, eventID string) ([]models.FaceRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, event_id, media_id, embedding, detector_confidence, bbox_x, bbox_y, bbox_w, bbox_h, created_at
		 FROM face_records WHERE event_id = $1 ORDER BY seq`, eventID)
	if err != nil {
		return nil, fmt.Errorf("query face records: %w", err)
	}
	defer rows.Close()

	records := []models.FaceRecord{}
	for rows.Next() {
		var rec models.FaceRecord
		var vec pgvector.Vector
		var x, y, w, h *float32
		if err := rows.Scan(&rec.FaceID, &rec.EventID, &rec.MediaID, &vec,
			&rec.DetectorConfidence, &x, &y, &w, &h, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan face record: %w", err)
		}
		rec.Embedding = vec.Slice()
		if x != nil && y != nil && w != nil && h != nil {
			rec.BoundingBox = &models.BoundingBox{X: *x, Y: *y, Width: *w, Height: *h}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate face records: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) Remove(ctx context.Context, mediaID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM face_records WHERE media_id = $1`, mediaID); err != nil {
		return fmt.Errorf("remove face records: %w", err)
	}
	return nil
}

// CountFaces returns the number of indexed faces for an event.
func (s *PostgresStore) CountFaces(ctx context.Context, eventID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM face_records WHERE event_id = $1`, eventID,
	).Scan(&count)
	return count, err
}

// --- Media ---

func (s *PostgresStore) CreateMedia(ctx context.Context, m *models.Media) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO media (id, event_id, object_key, content_type) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		m.ID, m.EventID, m.ObjectKey, m.ContentType,
	).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("create media: %w", err)
	}
	return nil
}

// GetMedia returns nil, nil when the media item does not exist.
func (s *PostgresStore) GetMedia(ctx context.Context, id string) (*models.Media, error) {
	m := &models.Media{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, event_id, object_key, content_type, created_at FROM media WHERE id = $1`, id,
	).Scan(&m.ID, &m.EventID, &m.ObjectKey, &m.ContentType, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get media: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) DeleteMedia(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM media WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	return nil
}

// ListMediaBefore returns up to limit media items created before cutoff,
// oldest first.
func (s *PostgresStore) ListMediaBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Media, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, event_id, object_key, content_type, created_at
		 FROM media WHERE created_at < $1 ORDER BY created_at LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired media: %w", err)
	}
	defer rows.Close()

	var media []models.Media
	for rows.Next() {
		var m models.Media
		if err := rows.Scan(&m.ID, &m.EventID, &m.ObjectKey, &m.ContentType, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		media = append(media, m)
	}
	return media, rows.Err()
}
