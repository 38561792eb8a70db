package calls

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is a simple in-memory call-history repository useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	mu      sync.Mutex
	records map[string]Record
	order   []string
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{records: map[string]Record{}}
}

func (r *MemoryRepo) Create(ctx context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[rec.ID]; !exists {
		r.order = append(r.order, rec.ID)
	}
	r.records[rec.ID] = rec
	return nil
}

func (r *MemoryRepo) Patch(ctx context.Context, id string, p RecordPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.Status = p.Status
	rec.DurationSeconds = p.DurationSeconds
	if !p.StartedAt.IsZero() {
		rec.StartedAt = p.StartedAt
	}
	if !p.EndedAt.IsZero() {
		t := p.EndedAt
		rec.EndedAt = &t
	}
	r.records[id] = rec
	return nil
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit int) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Record
	for _, id := range r.order {
		rec := r.records[id]
		if rec.CallerID == userID || rec.CalleeID == userID {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Records returns a copy of everything stored, in insertion order.
func (r *MemoryRepo) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Record, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.records[id])
	}
	return out
}
