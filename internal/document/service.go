package document

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/diresa-ti/legajos/internal/audit"
	"github.com/diresa-ti/legajos/internal/validate"
)

// UploadInput carries one file upload.
type UploadInput struct {
	FileName    string
	ContentType string // inferred from the extension when empty
	SizeBytes   int64
	Body        io.Reader
	Description string
}

// Service implements document upload, download and deletion for legajos.
type Service struct {
	repo         Repository
	blobs        BlobStore
	audit        *audit.Service
	logger       *slog.Logger
	maxSizeBytes int64
}

// NewService creates a document Service. maxSizeBytes <= 0 applies the
// validation default. auditSvc may be nil in tests.
func NewService(repo Repository, blobs BlobStore, auditSvc *audit.Service, logger *slog.Logger, maxSizeBytes int64) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:         repo,
		blobs:        blobs,
		audit:        auditSvc,
		logger:       logger,
		maxSizeBytes: maxSizeBytes,
	}
}

// Upload validates, stores and records one file for a legajo. The blob is
// written before the metadata row so a failed insert never leaves a row
// pointing at missing bytes.
func (s *Service) Upload(ctx context.Context, actorID *string, recordID string, in UploadInput) (*Document, error) {
	ext, err := validate.FileExtension(in.FileName, validate.AllowedDocumentExtensions)
	if err != nil {
		return nil, err
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(ext)
	}
	contentType, err = validate.DocumentFile(contentType, in.SizeBytes, s.maxSizeBytes)
	if err != nil {
		return nil, err
	}

	desc, err := validate.Description(in.Description)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("legajos/%s/%s%s", recordID, uuid.New().String(), ext)
	if err := s.blobs.Put(ctx, key, contentType, in.Body, in.SizeBytes); err != nil {
		return nil, err
	}

	doc := &Document{
		RecordID:    recordID,
		FileName:    sanitizeFileName(in.FileName),
		ContentType: contentType,
		SizeBytes:   in.SizeBytes,
		StorageKey:  key,
		Description: desc,
		UploadedBy:  actorID,
		Active:      true,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.logger.Warn("orphaned blob after failed metadata insert",
				"key", key, "error", delErr)
		}
		return nil, err
	}

	if s.audit != nil {
		s.audit.Log(ctx, actorID, audit.ModuleLegajos, "SUBIR_DOCUMENTO",
			fmt.Sprintf("uploaded %s to legajo %s", doc.FileName, recordID),
			map[string]any{"document_id": doc.ID, "size_bytes": doc.SizeBytes})
	}
	return doc, nil
}

// GetForDownload returns a document and its bytes. The caller closes the body.
func (s *Service) GetForDownload(ctx context.Context, id string) (*Document, io.ReadCloser, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	body, err := s.blobs.Get(ctx, doc.StorageKey)
	if err != nil {
		return nil, nil, err
	}
	return doc, body, nil
}

// ListByRecord returns the active documents of one legajo.
func (s *Service) ListByRecord(ctx context.Context, recordID string) ([]*Document, error) {
	return s.repo.ListByRecord(ctx, recordID)
}

// Delete soft-deletes a document. The blob stays in place so the row can be
// restored by operator tooling.
func (s *Service) Delete(ctx context.Context, actorID *string, id string) error {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}

	if s.audit != nil {
		s.audit.Log(ctx, actorID, audit.ModuleLegajos, "ELIMINAR_DOCUMENTO",
			fmt.Sprintf("deleted %s from legajo %s", doc.FileName, doc.RecordID),
			map[string]any{"document_id": doc.ID})
	}
	return nil
}

// sanitizeFileName strips any path components a client may have sent.
func sanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == ".." {
		return "documento"
	}
	return name
}
