package backup

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository persists backup history.
type Repository interface {
	Append(ctx context.Context, rec *Record) error

	// List returns history entries, newest first.
	List(ctx context.Context, limit int) ([]*Record, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records []*Record
}

// NewInMemoryRepository creates a new in-memory backup history repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Append records one backup attempt.
func (r *InMemoryRepository) Append(ctx context.Context, rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	applyDefaults(rec)

	c := *rec
	r.records = append(r.records, &c)
	return nil
}

// List returns history entries, newest first.
func (r *InMemoryRepository) List(ctx context.Context, limit int) ([]*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		c := *rec
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func applyDefaults(rec *Record) {
	if rec.Type == "" {
		rec.Type = TypeFull
	}
	if rec.Status == "" {
		rec.Status = StatusSuccess
	}
}
