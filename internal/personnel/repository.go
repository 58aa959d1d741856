package personnel

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Common errors for personnel operations.
var (
	ErrRecordNotFound = errors.New("personnel record not found")
	ErrDuplicateDNI   = errors.New("DNI already registered")
	ErrDuplicateEmail = errors.New("email already in use")
)

// Repository defines persistence for legajos.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	GetByID(ctx context.Context, id string) (*Record, error)
	Update(ctx context.Context, rec *Record) error

	// SoftDelete deactivates a record without destroying it.
	SoftDelete(ctx context.Context, id string) error

	// List returns active records matching the filter, newest first,
	// 1-based pages. Out-of-range pages yield an empty slice plus the
	// total match count.
	List(ctx context.Context, filter Filter, page, size int) ([]*Record, int, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewInMemoryRepository creates a new in-memory personnel repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		records: make(map[string]*Record),
	}
}

// Create inserts a new record, assigning an ID if absent.
func (r *InMemoryRepository) Create(ctx context.Context, rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.records {
		if existing.DNI == rec.DNI {
			return ErrDuplicateDNI
		}
		if rec.Email != "" && strings.EqualFold(existing.Email, rec.Email) {
			return ErrDuplicateEmail
		}
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	c := *rec
	r.records[rec.ID] = &c
	return nil
}

// GetByID retrieves a record by ID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	c := *rec
	return &c, nil
}

// Update replaces the mutable fields of a record.
func (r *InMemoryRepository) Update(ctx context.Context, rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.records[rec.ID]
	if !ok {
		return ErrRecordNotFound
	}

	for id, other := range r.records {
		if id == rec.ID {
			continue
		}
		if other.DNI == rec.DNI {
			return ErrDuplicateDNI
		}
		if rec.Email != "" && strings.EqualFold(other.Email, rec.Email) {
			return ErrDuplicateEmail
		}
	}

	existing.FirstName = rec.FirstName
	existing.LastName = rec.LastName
	existing.DNI = rec.DNI
	existing.Email = rec.Email
	existing.Phone = rec.Phone
	existing.Address = rec.Address
	existing.Unit = rec.Unit
	existing.HireDate = rec.HireDate
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

// SoftDelete deactivates a record.
func (r *InMemoryRepository) SoftDelete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return ErrRecordNotFound
	}
	rec.Active = false
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

// List returns active records matching the filter, newest first.
func (r *InMemoryRepository) List(ctx context.Context, filter Filter, page, size int) ([]*Record, int, error) {
	if page < 1 || size < 1 {
		return []*Record{}, 0, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*Record, 0)
	for _, rec := range r.records {
		if !rec.Active {
			continue
		}
		if filter.DNI != "" && rec.DNI != filter.DNI {
			continue
		}
		if filter.Name != "" {
			name := strings.ToLower(rec.FirstName + " " + rec.LastName)
			if !strings.Contains(name, strings.ToLower(filter.Name)) {
				continue
			}
		}
		c := *rec
		matched = append(matched, &c)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	offset := (page - 1) * size
	if offset >= total {
		return []*Record{}, total, nil
	}
	end := offset + size
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}
