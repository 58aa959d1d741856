package document

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrDocumentNotFound is returned when no active document matches.
var ErrDocumentNotFound = errors.New("document not found")

// Repository defines persistence for document metadata.
type Repository interface {
	Create(ctx context.Context, doc *Document) error
	GetByID(ctx context.Context, id string) (*Document, error)

	// ListByRecord returns the active documents of one legajo, newest first.
	ListByRecord(ctx context.Context, recordID string) ([]*Document, error)

	// SoftDelete hides a document from listings and downloads. The blob
	// and the row survive for operator tooling.
	SoftDelete(ctx context.Context, id string) error
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

// NewInMemoryRepository creates a new in-memory document repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{docs: make(map[string]*Document)}
}

// Create inserts a new document, assigning an ID if absent.
func (r *InMemoryRepository) Create(ctx context.Context, doc *Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	doc.CreatedAt = time.Now().UTC()

	c := *doc
	r.docs[doc.ID] = &c
	return nil
}

// GetByID retrieves an active document by ID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.docs[id]
	if !ok || !doc.Active {
		return nil, ErrDocumentNotFound
	}
	c := *doc
	return &c, nil
}

// ListByRecord returns the active documents of one legajo, newest first.
func (r *InMemoryRepository) ListByRecord(ctx context.Context, recordID string) ([]*Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	docs := make([]*Document, 0)
	for _, doc := range r.docs {
		if doc.RecordID != recordID || !doc.Active {
			continue
		}
		c := *doc
		docs = append(docs, &c)
	}

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID > docs[j].ID
		}
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	return docs, nil
}

// SoftDelete hides a document from listings and downloads.
func (r *InMemoryRepository) SoftDelete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.docs[id]
	if !ok || !doc.Active {
		return ErrDocumentNotFound
	}
	doc.Active = false
	return nil
}
