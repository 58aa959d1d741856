package personnel

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/diresa-ti/legajos/internal/tracing"
)

const pqUniqueViolation = "23505"

// PostgresRepository implements Repository on PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const recordColumns = `id, first_name, last_name, dni, email, phone, address, unit,
	hire_date, active, created_by, created_at, updated_at`

// Create inserts a new record, assigning an ID if absent.
func (r *PostgresRepository) Create(ctx context.Context, rec *Record) (err error) {
	ctx, done := tracing.StartDBSpan(ctx, "personal", tracing.DBOperationInsert)
	defer func() { done(err) }()

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	const query = `
		INSERT INTO personal (id, first_name, last_name, dni, email, phone, address, unit,
			hire_date, active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = r.db.ExecContext(ctx, query,
		rec.ID, rec.FirstName, rec.LastName, rec.DNI, rec.Email, rec.Phone, rec.Address, rec.Unit,
		rec.HireDate, rec.Active, rec.CreatedBy, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return translateRecordError(err, "failed to create personnel record")
	}
	return nil
}

// GetByID retrieves a record by ID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (rec *Record, err error) {
	ctx, done := tracing.StartDBSpan(ctx, "personal", tracing.DBOperationQuery)
	defer func() { done(err) }()

	query := fmt.Sprintf(`SELECT %s FROM personal WHERE id = $1`, recordColumns)
	rec, err = scanRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return rec, nil
}

// Update replaces the mutable fields of a record.
func (r *PostgresRepository) Update(ctx context.Context, rec *Record) (err error) {
	ctx, done := tracing.StartDBSpan(ctx, "personal", tracing.DBOperationUpdate)
	defer func() { done(err) }()

	const query = `
		UPDATE personal
		SET first_name = $2, last_name = $3, dni = $4, email = $5, phone = $6,
			address = $7, unit = $8, hire_date = $9, updated_at = NOW()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.FirstName, rec.LastName, rec.DNI, rec.Email, rec.Phone,
		rec.Address, rec.Unit, rec.HireDate,
	)
	if err != nil {
		return translateRecordError(err, "failed to update personnel record")
	}
	return requireRecordRow(res)
}

// SoftDelete deactivates a record.
func (r *PostgresRepository) SoftDelete(ctx context.Context, id string) (err error) {
	ctx, done := tracing.StartDBSpan(ctx, "personal", tracing.DBOperationUpdate)
	defer func() { done(err) }()

	res, err := r.db.ExecContext(ctx,
		`UPDATE personal SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate personnel record: %w", err)
	}
	return requireRecordRow(res)
}

// List returns active records matching the filter, newest first.
func (r *PostgresRepository) List(ctx context.Context, filter Filter, page, size int) (_ []*Record, _ int, err error) {
	ctx, done := tracing.StartDBSpan(ctx, "personal", tracing.DBOperationQuery)
	defer func() { done(err) }()

	if page < 1 || size < 1 {
		return []*Record{}, 0, nil
	}

	const where = `
		WHERE active = TRUE
		  AND ($1::text IS NULL OR dni = $1)
		  AND ($2::text IS NULL OR LOWER(first_name || ' ' || last_name) LIKE '%' || LOWER($2) || '%')
	`
	dni := nullableString(filter.DNI)
	name := nullableString(filter.Name)

	var total int
	if err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM personal`+where, dni, name).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count personnel records: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM personal %s ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4`,
		recordColumns, where)
	rows, err := r.db.QueryContext(ctx, query, dni, name, size, (page-1)*size)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list personnel records: %w", err)
	}
	defer rows.Close()

	records := make([]*Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate personnel records: %w", err)
	}
	return records, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(s rowScanner) (*Record, error) {
	var (
		rec       Record
		hireDate  sql.NullTime
		createdBy sql.NullString
	)
	err := s.Scan(&rec.ID, &rec.FirstName, &rec.LastName, &rec.DNI, &rec.Email, &rec.Phone,
		&rec.Address, &rec.Unit, &hireDate, &rec.Active, &createdBy, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan personnel record: %w", err)
	}
	if hireDate.Valid {
		rec.HireDate = &hireDate.Time
	}
	if createdBy.Valid {
		rec.CreatedBy = &createdBy.String
	}
	return &rec, nil
}

func requireRecordRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func translateRecordError(err error, msg string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		// Constraint names come from the migration
		if pqErr.Constraint == "personal_dni_key" {
			return ErrDuplicateDNI
		}
		return ErrDuplicateEmail
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
