package user

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Common errors for user operations.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("username or email already in use")
)

// Repository defines persistence for user accounts.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error

	// SetOneTimeCode stores the hash and expiry of a pending 2FA code,
	// overwriting any previous slot content.
	SetOneTimeCode(ctx context.Context, id, hash string, expiry time.Time) error
	// ClearOneTimeCode empties the pending code slot.
	ClearOneTimeCode(ctx context.Context, id string) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error

	// List returns all accounts ordered by username.
	List(ctx context.Context) ([]*User, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu    sync.RWMutex
	users map[string]*User // ID -> User
}

// NewInMemoryRepository creates a new in-memory user repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		users: make(map[string]*User),
	}
}

// FindByUsername retrieves a user by username (case-insensitive).
func (r *InMemoryRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Username, username) {
			return copyUser(u), nil
		}
	}
	return nil, ErrUserNotFound
}

// FindByID retrieves a user by ID.
func (r *InMemoryRepository) FindByID(ctx context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(u), nil
}

// Create inserts a new account, assigning an ID if absent.
func (r *InMemoryRepository) Create(ctx context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return ErrDuplicateUser
		}
		if u.Email != "" && strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicateUser
		}
	}

	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	r.users[u.ID] = copyUser(u)
	return nil
}

// Update replaces the mutable profile fields of an account.
func (r *InMemoryRepository) Update(ctx context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[u.ID]
	if !ok {
		return ErrUserNotFound
	}

	for id, other := range r.users {
		if id == u.ID {
			continue
		}
		if strings.EqualFold(other.Username, u.Username) {
			return ErrDuplicateUser
		}
		if u.Email != "" && strings.EqualFold(other.Email, u.Email) {
			return ErrDuplicateUser
		}
	}

	existing.Username = u.Username
	existing.Email = u.Email
	existing.FullName = u.FullName
	existing.Role = u.Role
	existing.Active = u.Active
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdatePasswordHash replaces the stored password hash.
func (r *InMemoryRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// SetOneTimeCode stores the pending code slot, overwriting any previous code.
func (r *InMemoryRepository) SetOneTimeCode(ctx context.Context, id, hash string, expiry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.TwoFactorHash = &hash
	expiryCopy := expiry
	u.TwoFactorExpiry = &expiryCopy
	return nil
}

// ClearOneTimeCode empties the pending code slot.
func (r *InMemoryRepository) ClearOneTimeCode(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.TwoFactorHash = nil
	u.TwoFactorExpiry = nil
	return nil
}

// UpdateLastLogin stamps the last successful login time.
func (r *InMemoryRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	atCopy := at
	u.LastLogin = &atCopy
	return nil
}

// List returns all accounts ordered by username.
func (r *InMemoryRepository) List(ctx context.Context) ([]*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]*User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, copyUser(u))
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].Username < users[j].Username
	})
	return users, nil
}

func copyUser(u *User) *User {
	c := *u
	if u.TwoFactorHash != nil {
		h := *u.TwoFactorHash
		c.TwoFactorHash = &h
	}
	if u.TwoFactorExpiry != nil {
		e := *u.TwoFactorExpiry
		c.TwoFactorExpiry = &e
	}
	if u.LastLogin != nil {
		l := *u.LastLogin
		c.LastLogin = &l
	}
	return &c
}
