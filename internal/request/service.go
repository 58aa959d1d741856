package request

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/diresa-ti/legajos/internal/audit"
)

// Service errors.
var (
	ErrInvalidDecision = errors.New("decision must be aprobar or rechazar")
	ErrMissingFields   = errors.New("record, field and new value are required")
)

// Service implements the change request workflow.
type Service struct {
	repo   Repository
	audit  *audit.Service
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a request Service. auditSvc may be nil in tests.
func NewService(repo Repository, auditSvc *audit.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: auditSvc, logger: logger, now: time.Now}
}

// SubmitInput carries one new change request.
type SubmitInput struct {
	RecordID string `json:"record_id"`
	Field    string `json:"field"`
	NewValue string `json:"new_value"`
	Reason   string `json:"reason"`
}

// Submit files a new pending request.
func (s *Service) Submit(ctx context.Context, actorID *string, in SubmitInput) (*Request, error) {
	if in.RecordID == "" || in.Field == "" || in.NewValue == "" {
		return nil, ErrMissingFields
	}

	req := &Request{
		RecordID:    in.RecordID,
		RequestedBy: actorID,
		Field:       in.Field,
		NewValue:    in.NewValue,
		Reason:      in.Reason,
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return nil, err
	}

	if s.audit != nil {
		s.audit.Log(ctx, actorID, audit.ModuleSolicitudes, "NUEVA_SOLICITUD",
			fmt.Sprintf("requested change to %s on legajo %s", req.Field, req.RecordID),
			map[string]any{"request_id": req.ID})
	}
	return req, nil
}

// Pending lists requests awaiting a decision. A failed read degrades to an
// empty listing with Degraded set rather than an error, so the review page
// stays up when the store is down.
func (s *Service) Pending(ctx context.Context) *PendingResult {
	requests, err := s.repo.ListPending(ctx)
	if err != nil {
		s.logger.Error("failed to read pending requests", "error", err)
		return &PendingResult{Requests: []*Request{}, Degraded: true}
	}
	return &PendingResult{Requests: requests}
}

// Process applies a decision to a pending request. Deciding an already
// processed request fails with ErrRequestAlreadyProcessed; the stored
// outcome never changes after the first decision.
func (s *Service) Process(ctx context.Context, actorID *string, id, decision string) (*Request, error) {
	var status string
	switch decision {
	case DecisionApprove:
		status = StatusApproved
	case DecisionReject:
		status = StatusRejected
	default:
		return nil, ErrInvalidDecision
	}

	if err := s.repo.Decide(ctx, id, status, actorID, s.now().UTC()); err != nil {
		return nil, err
	}

	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		action := "APROBAR_SOLICITUD"
		if status == StatusRejected {
			action = "RECHAZAR_SOLICITUD"
		}
		s.audit.Log(ctx, actorID, audit.ModuleSolicitudes, action,
			fmt.Sprintf("request %s %s", req.ID, status),
			map[string]any{"record_id": req.RecordID, "field": req.Field})
	}
	return req, nil
}
