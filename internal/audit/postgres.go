package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresRepository implements Repository on PostgreSQL.
// Rows in bitacora are insert-only; no UPDATE or DELETE is ever issued.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append records one audit event.
func (r *PostgresRepository) Append(ctx context.Context, entry NewEntry) (*Entry, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}

	stored := &Entry{
		ID:          uuid.New().String(),
		UserID:      entry.UserID,
		Module:      entry.Module,
		Action:      entry.Action,
		Description: entry.Description,
		Detail:      entry.Detail,
		CreatedAt:   time.Now().UTC(),
	}

	var detail []byte
	if entry.Detail != nil {
		var err error
		detail, err = json.Marshal(entry.Detail)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal audit detail: %w", err)
		}
	}

	const query = `
		INSERT INTO bitacora (id, user_id, module, action, description, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := r.db.ExecContext(ctx, query,
		stored.ID, stored.UserID, stored.Module, stored.Action,
		stored.Description, nullableBytes(detail), stored.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to append audit entry: %w", err)
	}

	return stored, nil
}

// Paginate returns a reverse-chronological page of the log.
func (r *PostgresRepository) Paginate(ctx context.Context, page, size int) ([]*Entry, int, error) {
	if page < 1 || size < 1 {
		return []*Entry{}, 0, nil
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bitacora`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	const query = `
		SELECT id, user_id, module, action, description, detail, created_at
		FROM bitacora
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, query, size, (page-1)*size)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// QueryRange returns entries within the time range, newest first.
func (r *PostgresRepository) QueryRange(ctx context.Context, from, to time.Time, module string, limit int) ([]*Entry, error) {
	query := `
		SELECT id, user_id, module, action, description, detail, created_at
		FROM bitacora
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at <= $2)
		  AND ($3::text IS NULL OR module = $3)
		ORDER BY created_at DESC, id DESC
	`
	args := []any{nullableTime(from), nullableTime(to), nullableString(module)}
	if limit > 0 {
		query += ` LIMIT $4`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit range: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]*Entry, error) {
	entries := make([]*Entry, 0)
	for rows.Next() {
		var (
			e      Entry
			userID sql.NullString
			detail []byte
		)
		if err := rows.Scan(&e.ID, &userID, &e.Module, &e.Action, &e.Description, &detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if userID.Valid {
			e.UserID = &userID.String
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit detail: %w", err)
			}
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit entries: %w", err)
	}
	return entries, nil
}

func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
