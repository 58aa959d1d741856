package backup

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresRepository implements Repository on PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append records one backup attempt.
func (r *PostgresRepository) Append(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	applyDefaults(rec)

	const query = `
		INSERT INTO backup_history (id, type, status, path, size_bytes, detail, started_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.Type, rec.Status, rec.Path, rec.SizeBytes, rec.Detail, rec.StartedBy, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record backup: %w", err)
	}
	return nil
}

// List returns history entries, newest first. Null type and status columns
// fall back to the defaults.
func (r *PostgresRepository) List(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 100
	}

	const query = `
		SELECT id, type, status, path, size_bytes, detail, started_by, created_at
		FROM backup_history
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list backup history: %w", err)
	}
	defer rows.Close()

	records := make([]*Record, 0)
	for rows.Next() {
		var (
			rec       Record
			typ       sql.NullString
			status    sql.NullString
			detail    sql.NullString
			startedBy sql.NullString
		)
		err := rows.Scan(&rec.ID, &typ, &status, &rec.Path, &rec.SizeBytes, &detail, &startedBy, &rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan backup record: %w", err)
		}
		rec.Type = typ.String
		rec.Status = status.String
		rec.Detail = detail.String
		if startedBy.Valid {
			rec.StartedBy = &startedBy.String
		}
		applyDefaults(&rec)
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate backup history: %w", err)
	}
	return records, nil
}
