package request

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository errors.
var (
	ErrRequestNotFound         = errors.New("change request not found")
	ErrRequestAlreadyProcessed = errors.New("change request already processed")
)

// Repository persists change requests.
type Repository interface {
	Create(ctx context.Context, req *Request) error
	GetByID(ctx context.Context, id string) (*Request, error)

	// ListPending returns pending requests, oldest first.
	ListPending(ctx context.Context) ([]*Request, error)

	// Decide moves a pending request to a terminal status. A request that
	// is no longer pending yields ErrRequestAlreadyProcessed, so two
	// concurrent decisions cannot both win.
	Decide(ctx context.Context, id, status string, decidedBy *string, decidedAt time.Time) error
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu       sync.RWMutex
	requests map[string]*Request
}

// NewInMemoryRepository creates a new in-memory change request repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{requests: make(map[string]*Request)}
}

// Create inserts a new request, assigning an ID if absent.
func (r *InMemoryRepository) Create(ctx context.Context, req *Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	req.Status = StatusPending
	req.CreatedAt = time.Now().UTC()

	c := *req
	r.requests[req.ID] = &c
	return nil
}

// GetByID retrieves a request by ID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	c := *req
	return &c, nil
}

// ListPending returns pending requests, oldest first.
func (r *InMemoryRepository) ListPending(ctx context.Context) ([]*Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pending := make([]*Request, 0)
	for _, req := range r.requests {
		if req.Status != StatusPending {
			continue
		}
		c := *req
		pending = append(pending, &c)
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].ID < pending[j].ID
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending, nil
}

// Decide moves a pending request to a terminal status.
func (r *InMemoryRepository) Decide(ctx context.Context, id, status string, decidedBy *string, decidedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[id]
	if !ok {
		return ErrRequestNotFound
	}
	if req.Status != StatusPending {
		return ErrRequestAlreadyProcessed
	}
	req.Status = status
	req.DecidedBy = decidedBy
	req.DecidedAt = &decidedAt
	return nil
}
