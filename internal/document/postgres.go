package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresRepository implements Repository on PostgreSQL. The documentos
// table carries a foreign key to personal with ON DELETE CASCADE, so hard
// deletion of a legajo removes its document rows with it.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const documentColumns = `id, legajo_id, file_name, content_type, size_bytes,
	storage_key, description, uploaded_by, active, created_at`

// Create inserts a new document, assigning an ID if absent.
func (r *PostgresRepository) Create(ctx context.Context, doc *Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	doc.CreatedAt = time.Now().UTC()

	const query = `
		INSERT INTO documentos (id, legajo_id, file_name, content_type, size_bytes,
			storage_key, description, uploaded_by, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		doc.ID, doc.RecordID, doc.FileName, doc.ContentType, doc.SizeBytes,
		doc.StorageKey, doc.Description, doc.UploadedBy, doc.Active, doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// GetByID retrieves an active document by ID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documentos WHERE id = $1 AND active = TRUE`, documentColumns)
	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return doc, nil
}

// ListByRecord returns the active documents of one legajo, newest first.
func (r *PostgresRepository) ListByRecord(ctx context.Context, recordID string) ([]*Document, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM documentos
		WHERE legajo_id = $1 AND active = TRUE
		ORDER BY created_at DESC, id DESC
	`, documentColumns)
	rows, err := r.db.QueryContext(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]*Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

// SoftDelete hides a document from listings and downloads.
func (r *PostgresRepository) SoftDelete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE documentos SET active = FALSE WHERE id = $1 AND active = TRUE`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(s rowScanner) (*Document, error) {
	var (
		doc        Document
		uploadedBy sql.NullString
	)
	err := s.Scan(&doc.ID, &doc.RecordID, &doc.FileName, &doc.ContentType, &doc.SizeBytes,
		&doc.StorageKey, &doc.Description, &uploadedBy, &doc.Active, &doc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}
	if uploadedBy.Valid {
		doc.UploadedBy = &uploadedBy.String
	}
	return &doc, nil
}
