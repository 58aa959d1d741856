package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidModule is returned when an entry names no module.
	ErrInvalidModule = errors.New("audit module cannot be empty")
	// ErrInvalidAction is returned when an entry names no action.
	ErrInvalidAction = errors.New("audit action cannot be empty")
)

// Repository defines persistence for audit entries. The log is append-only:
// there is deliberately no update or delete operation.
type Repository interface {
	// Append records one audit event and returns the stored entry.
	Append(ctx context.Context, entry NewEntry) (*Entry, error)

	// Paginate returns a reverse-chronological slice of the log.
	// Pages are 1-based; a page beyond the available data yields an empty
	// slice, not an error. The second return value is the total entry count.
	Paginate(ctx context.Context, page, size int) ([]*Entry, int, error)

	// QueryRange returns entries within [from, to] (zero values disable the
	// bound), optionally filtered by module, newest first.
	// Limit 0 means no limit.
	QueryRange(ctx context.Context, from, to time.Time, module string, limit int) ([]*Entry, error)
}

// validateEntry checks the required fields of a new entry.
func validateEntry(entry NewEntry) error {
	if entry.Module == "" {
		return ErrInvalidModule
	}
	if entry.Action == "" {
		return ErrInvalidAction
	}
	return nil
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu      sync.RWMutex
	entries []*Entry // insertion order, oldest first
}

// NewInMemoryRepository creates a new in-memory audit repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Append records one audit event.
func (r *InMemoryRepository) Append(ctx context.Context, entry NewEntry) (*Entry, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}

	stored := &Entry{
		ID:          uuid.New().String(),
		UserID:      entry.UserID,
		Module:      entry.Module,
		Action:      entry.Action,
		Description: entry.Description,
		Detail:      copyDetail(entry.Detail),
		CreatedAt:   time.Now().UTC(),
	}

	r.mu.Lock()
	r.entries = append(r.entries, stored)
	r.mu.Unlock()

	// Return a copy to prevent external modification
	return copyEntry(stored), nil
}

// Paginate returns a reverse-chronological page of the log.
func (r *InMemoryRepository) Paginate(ctx context.Context, page, size int) ([]*Entry, int, error) {
	if page < 1 || size < 1 {
		return []*Entry{}, 0, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	total := len(r.entries)
	offset := (page - 1) * size
	if offset >= total {
		return []*Entry{}, total, nil
	}

	end := offset + size
	if end > total {
		end = total
	}

	results := make([]*Entry, 0, end-offset)
	// Iterate in reverse order (newest first)
	for i := total - 1 - offset; i >= total-end; i-- {
		results = append(results, copyEntry(r.entries[i]))
	}
	return results, total, nil
}

// QueryRange returns entries within the time range, newest first.
func (r *InMemoryRepository) QueryRange(ctx context.Context, from, to time.Time, module string, limit int) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]*Entry, 0)
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if !from.IsZero() && e.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && e.CreatedAt.After(to) {
			continue
		}
		if module != "" && e.Module != module {
			continue
		}
		results = append(results, copyEntry(e))
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, nil
}

func copyEntry(e *Entry) *Entry {
	c := *e
	c.Detail = copyDetail(e.Detail)
	return &c
}

func copyDetail(detail map[string]any) map[string]any {
	if detail == nil {
		return nil
	}
	c := make(map[string]any, len(detail))
	for k, v := range detail {
		c[k] = v
	}
	return c
}
