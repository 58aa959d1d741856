package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// pqUniqueViolation is the PostgreSQL error code for unique constraint violations.
const pqUniqueViolation = "23505"

// PostgresRepository implements Repository on PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, username, password_hash, role, active, email, full_name,
	two_factor_hash, two_factor_expiry, last_login, created_at, updated_at`

// FindByUsername retrieves a user by username (case-insensitive).
func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM usuarios WHERE LOWER(username) = LOWER($1)`, userColumns)
	return r.scanOne(r.db.QueryRowContext(ctx, query, username))
}

// FindByID retrieves a user by ID.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM usuarios WHERE id = $1`, userColumns)
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// Create inserts a new account, assigning an ID if absent.
func (r *PostgresRepository) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	const query = `
		INSERT INTO usuarios (id, username, password_hash, role, active, email, full_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		u.ID, u.Username, u.PasswordHash, u.Role, u.Active, u.Email, u.FullName, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return translateUserError(err, "failed to create user")
	}
	return nil
}

// Update replaces the mutable profile fields of an account.
func (r *PostgresRepository) Update(ctx context.Context, u *User) error {
	const query = `
		UPDATE usuarios
		SET username = $2, email = $3, full_name = $4, role = $5, active = $6, updated_at = NOW()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, u.ID, u.Username, u.Email, u.FullName, u.Role, u.Active)
	if err != nil {
		return translateUserError(err, "failed to update user")
	}
	return requireRow(res)
}

// UpdatePasswordHash replaces the stored password hash.
func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE usuarios SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	if err != nil {
		return fmt.Errorf("failed to update password hash: %w", err)
	}
	return requireRow(res)
}

// SetOneTimeCode stores the pending code slot, overwriting any previous code.
func (r *PostgresRepository) SetOneTimeCode(ctx context.Context, id, hash string, expiry time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE usuarios SET two_factor_hash = $2, two_factor_expiry = $3 WHERE id = $1`, id, hash, expiry)
	if err != nil {
		return fmt.Errorf("failed to set one-time code: %w", err)
	}
	return requireRow(res)
}

// ClearOneTimeCode empties the pending code slot.
func (r *PostgresRepository) ClearOneTimeCode(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE usuarios SET two_factor_hash = NULL, two_factor_expiry = NULL WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to clear one-time code: %w", err)
	}
	return requireRow(res)
}

// UpdateLastLogin stamps the last successful login time.
func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE usuarios SET last_login = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return requireRow(res)
}

// List returns all accounts ordered by username.
func (r *PostgresRepository) List(ctx context.Context) ([]*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM usuarios ORDER BY username`, userColumns)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*User, error) {
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func scanUser(s rowScanner) (*User, error) {
	var (
		u         User
		tfHash    sql.NullString
		tfExpiry  sql.NullTime
		lastLogin sql.NullTime
	)
	err := s.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Active, &u.Email, &u.FullName,
		&tfHash, &tfExpiry, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	if tfHash.Valid {
		u.TwoFactorHash = &tfHash.String
	}
	if tfExpiry.Valid {
		u.TwoFactorExpiry = &tfExpiry.Time
	}
	if lastLogin.Valid {
		u.LastLogin = &lastLogin.Time
	}
	return &u, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func translateUserError(err error, msg string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return ErrDuplicateUser
	}
	return fmt.Errorf("%s: %w", msg, err)
}
