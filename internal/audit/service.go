package audit

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricAuditWriteFailures counts audit appends that were lost.
const MetricAuditWriteFailures = "audit_write_failures_total"

// Page is one paginated view of the log.
type Page struct {
	Entries []*Entry `json:"entries"`
	Page    int      `json:"page"`
	Size    int      `json:"size"`
	Total   int      `json:"total"`
}

// Service wraps the repository with the application's audit policy:
// appends are fail-open (a bitácora outage must never abort the business
// operation it is documenting), reads are paginated.
type Service struct {
	repo          Repository
	logger        *slog.Logger
	broadcaster   *Broadcaster
	writeFailures prometheus.Counter
}

// NewService creates an audit Service. broadcaster may be nil.
func NewService(repo Repository, logger *slog.Logger, broadcaster *Broadcaster) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		logger:      logger,
		broadcaster: broadcaster,
		writeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricAuditWriteFailures,
			Help: "Total number of audit log writes that failed and were dropped",
		}),
	}
}

// Register registers the service's metrics with the given registry.
func (s *Service) Register(reg prometheus.Registerer) error {
	return reg.Register(s.writeFailures)
}

// Log appends one audit event. It never returns an error: failures are
// logged operationally and counted so operators can alert on audit gaps.
// There is no retry or queue; completeness is a monitoring concern.
func (s *Service) Log(ctx context.Context, userID *string, module, action, description string, detail map[string]any) {
	entry, err := s.repo.Append(ctx, NewEntry{
		UserID:      userID,
		Module:      module,
		Action:      action,
		Description: description,
		Detail:      detail,
	})
	if err != nil {
		s.writeFailures.Inc()
		s.logger.ErrorContext(ctx, "audit write failed",
			"error", err,
			"module", module,
			"action", action,
		)
		return
	}

	if s.broadcaster != nil {
		s.broadcast(ctx, entry)
	}
}

// broadcast hands the entry to the live tail. The broadcaster writes to
// network connections from the business request's goroutine, so any panic
// is contained here: logging must never abort the operation it documents.
func (s *Service) broadcast(ctx context.Context, entry *Entry) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.ErrorContext(ctx, "audit broadcast panicked", "panic", rec)
		}
	}()
	s.broadcaster.Broadcast(entry)
}

// GetLogs returns a reverse-chronological page of the log. Pages are
// 1-based; out-of-range pages yield an empty slice with the total count.
func (s *Service) GetLogs(ctx context.Context, page, size int) (*Page, error) {
	entries, total, err := s.repo.Paginate(ctx, page, size)
	if err != nil {
		return nil, err
	}
	return &Page{
		Entries: entries,
		Page:    page,
		Size:    size,
		Total:   total,
	}, nil
}
