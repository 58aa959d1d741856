package request

import (
	"context"
	"database/sql"
	"errors"
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

const requestColumns = `id, legajo_id, requested_by, field, new_value, reason,
	status, decided_by, decided_at, created_at`

// Create inserts a new request, assigning an ID if absent.
func (r *PostgresRepository) Create(ctx context.Context, req *Request) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	req.Status = StatusPending
	req.CreatedAt = time.Now().UTC()

	const query = `
		INSERT INTO solicitudes (id, legajo_id, requested_by, field, new_value, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		req.ID, req.RecordID, req.RequestedBy, req.Field, req.NewValue, req.Reason, req.Status, req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create change request: %w", err)
	}
	return nil
}

// GetByID retrieves a request by ID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM solicitudes WHERE id = $1`, requestColumns)
	req, err := scanRequest(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return req, nil
}

// ListPending returns pending requests, oldest first.
func (r *PostgresRepository) ListPending(ctx context.Context) ([]*Request, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM solicitudes
		WHERE status = $1
		ORDER BY created_at ASC, id ASC
	`, requestColumns)
	rows, err := r.db.QueryContext(ctx, query, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	defer rows.Close()

	requests := make([]*Request, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending requests: %w", err)
	}
	return requests, nil
}

// Decide moves a pending request to a terminal status. The status guard in
// the WHERE clause makes the transition atomic: a row that is no longer
// pending matches nothing.
func (r *PostgresRepository) Decide(ctx context.Context, id, status string, decidedBy *string, decidedAt time.Time) error {
	const query = `
		UPDATE solicitudes
		SET status = $2, decided_by = $3, decided_at = $4
		WHERE id = $1 AND status = $5
	`
	res, err := r.db.ExecContext(ctx, query, id, status, decidedBy, decidedAt, StatusPending)
	if err != nil {
		return fmt.Errorf("failed to decide change request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		// Distinguish missing from already processed.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrRequestAlreadyProcessed
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(s rowScanner) (*Request, error) {
	var (
		req         Request
		requestedBy sql.NullString
		decidedBy   sql.NullString
		decidedAt   sql.NullTime
	)
	err := s.Scan(&req.ID, &req.RecordID, &requestedBy, &req.Field, &req.NewValue, &req.Reason,
		&req.Status, &decidedBy, &decidedAt, &req.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan change request: %w", err)
	}
	if requestedBy.Valid {
		req.RequestedBy = &requestedBy.String
	}
	if decidedBy.Valid {
		req.DecidedBy = &decidedBy.String
	}
	if decidedAt.Valid {
		req.DecidedAt = &decidedAt.Time
	}
	return &req, nil
}
