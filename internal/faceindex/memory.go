package faceindex

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/your-org/eventface/internal/models"
)

// partition holds one event's records. Writers serialise on mu and publish a
// new slice header; readers load the header without locking. Appends only
// ever write past the published length, so a loaded snapshot never changes.
type partition struct {
	mu      sync.Mutex
	records atomic.Pointer[[]models.FaceRecord]
	media   map[string]int // face count per media item, guarded by mu
}

func (p *partition) snapshot() []models.FaceRecord {
	if s := p.records.Load(); s != nil {
		return *s
	}
	return nil
}

// Memory is an in-process Index. Events are independent partitions; no lock
// is ever held across two events.
type Memory struct {
	dim    int
	events sync.Map // event id -> *partition
}

// NewMemory returns an empty index accepting embeddings of dim dimensions.
func NewMemory(dim int) *Memory {
	return &Memory{dim: dim}
}

// Dimension returns the embedding dimension the index accepts.
func (m *Memory) Dimension() int {
	return m.dim
}

func (m *Memory) partition(eventID string) *partition {
	if p, ok := m.events.Load(eventID); ok {
		return p.(*partition)
	}
	p, _ := m.events.LoadOrStore(eventID, &partition{media: make(map[string]int)})
	return p.(*partition)
}

func (m *Memory) Insert(ctx context.Context, rec models.FaceRecord) error {
	if err := Validate(&rec, m.dim); err != nil {
		return err
	}
	rec = Prepare(rec)

	p := m.partition(rec.EventID)
	p.mu.Lock()
	defer p.mu.Unlock()

	next := append(p.snapshot(), rec)
	p.records.Store(&next)
	p.media[rec.MediaID]++
	return nil
}

func (m *Memory) AllForEvent(ctx context.Context, eventID string) ([]models.FaceRecord, error) {
	v, ok := m.events.Load(eventID)
	if !ok {
		return []models.FaceRecord{}, nil
	}
	snap := v.(*partition).snapshot()
	out := make([]models.FaceRecord, len(snap))
	for i, rec := range snap {
		out[i] = Clone(rec)
	}
	return out, nil
}

func (m *Memory) Remove(ctx context.Context, mediaID string) error {
	m.events.Range(func(_, v any) bool {
		p := v.(*partition)
		p.mu.Lock()
		defer p.mu.Unlock()

		if p.media[mediaID] == 0 {
			return true
		}
		// Build a fresh backing array; readers may still hold the old one.
		kept := slices.DeleteFunc(slices.Clone(p.snapshot()), func(r models.FaceRecord) bool {
			return r.MediaID == mediaID
		})
		kept = slices.Clip(kept)
		p.records.Store(&kept)
		delete(p.media, mediaID)
		return true
	})
	return nil
}
