package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/diresa-ti/legajos/internal/audit"
	"github.com/diresa-ti/legajos/internal/document"
)

// ErrNoDatabaseName is returned when the backup target database is not
// configured. The check runs before anything is executed or recorded.
var ErrNoDatabaseName = errors.New("backup database name is not configured")

// Service orchestrates backups. An optional archive store receives a copy
// of each successful dump.
type Service struct {
	runner  Runner
	history Repository
	audit   *audit.Service
	logger  *slog.Logger

	databaseName string
	outputDir    string
	archive      document.BlobStore // nil disables offsite copies

	now func() time.Time
}

// NewService creates a backup Service. archive may be nil. auditSvc may be
// nil in tests.
func NewService(runner Runner, history Repository, auditSvc *audit.Service, logger *slog.Logger,
	databaseName, outputDir string, archive document.BlobStore) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		runner:       runner,
		history:      history,
		audit:        auditSvc,
		logger:       logger,
		databaseName: databaseName,
		outputDir:    outputDir,
		archive:      archive,
		now:          time.Now,
	}
}

// ExecuteFullBackup runs one full dump. Both outcomes land in history and
// the bitácora; neither write aborts the operation's result.
func (s *Service) ExecuteFullBackup(ctx context.Context, actorID *string) (*Record, error) {
	if s.databaseName == "" {
		return nil, ErrNoDatabaseName
	}

	stamp := s.now().UTC().Format("20060102_150405")
	path := filepath.Join(s.outputDir, fmt.Sprintf("legajos_%s.dump", stamp))

	rec := &Record{Type: TypeFull, Path: path, StartedBy: actorID}

	runErr := s.runner.Run(ctx, s.databaseName, path)
	if runErr != nil {
		rec.Status = StatusFailed
		rec.Detail = runErr.Error()
	} else {
		rec.Status = StatusSuccess
		if info, err := os.Stat(path); err == nil {
			rec.SizeBytes = info.Size()
		}
		s.uploadArchive(ctx, rec)
	}

	if err := s.history.Append(ctx, rec); err != nil {
		s.logger.Error("failed to record backup in history", "path", path, "error", err)
	}
	s.auditBackup(ctx, actorID, rec)

	if runErr != nil {
		return rec, runErr
	}
	return rec, nil
}

// uploadArchive copies the dump to the archive store. Failure downgrades to
// a log line; the local dump already succeeded.
func (s *Service) uploadArchive(ctx context.Context, rec *Record) {
	if s.archive == nil {
		return
	}

	f, err := os.Open(rec.Path)
	if err != nil {
		s.logger.Error("failed to open dump for archiving", "path", rec.Path, "error", err)
		return
	}
	defer f.Close()

	key := "backups/" + filepath.Base(rec.Path)
	if err := s.archive.Put(ctx, key, "application/octet-stream", f, rec.SizeBytes); err != nil {
		s.logger.Error("failed to archive dump", "key", key, "error", err)
		return
	}
	s.logger.Info("archived backup", "key", key, "size_bytes", rec.SizeBytes)
}

func (s *Service) auditBackup(ctx context.Context, actorID *string, rec *Record) {
	if s.audit == nil {
		return
	}
	action := "BACKUP_OK"
	if rec.Status == StatusFailed {
		action = "BACKUP_ERROR"
	}
	s.audit.Log(ctx, actorID, audit.ModuleMantenimiento, action,
		fmt.Sprintf("full backup to %s", rec.Path),
		map[string]any{"status": rec.Status, "size_bytes": rec.SizeBytes})
}

// History lists past backups, newest first. A failed read degrades to an
// empty listing with Degraded set rather than an error.
func (s *Service) History(ctx context.Context, limit int) *HistoryResult {
	records, err := s.history.List(ctx, limit)
	if err != nil {
		s.logger.Error("failed to read backup history", "error", err)
		return &HistoryResult{Backups: []*Record{}, Degraded: true}
	}
	return &HistoryResult{Backups: records}
}
