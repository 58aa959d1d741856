package personnel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/diresa-ti/legajos/internal/audit"
)

// DefaultPageSize is used when a listing request gives no size.
const DefaultPageSize = 15

// Input validation errors.
var (
	ErrMissingName = errors.New("first and last name are required")
	ErrMissingDNI  = errors.New("DNI is required")
)

// Input carries the fields for registering or updating a legajo.
type Input struct {
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	DNI       string     `json:"dni"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	Address   string     `json:"address"`
	Unit      string     `json:"unit"`
	HireDate  *time.Time `json:"hire_date,omitempty"`
}

func (in Input) validate() error {
	if in.FirstName == "" || in.LastName == "" {
		return ErrMissingName
	}
	if in.DNI == "" {
		return ErrMissingDNI
	}
	return nil
}

// Service implements legajo administration. Every mutation is recorded in
// the bitácora; audit failures never abort the mutation.
type Service struct {
	repo   Repository
	audit  *audit.Service
	logger *slog.Logger
}

// NewService creates a personnel Service. auditSvc may be nil in tests.
func NewService(repo Repository, auditSvc *audit.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: auditSvc, logger: logger}
}

// Register creates a new legajo.
func (s *Service) Register(ctx context.Context, actorID *string, in Input) (*Record, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	rec := &Record{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		DNI:       in.DNI,
		Email:     in.Email,
		Phone:     in.Phone,
		Address:   in.Address,
		Unit:      in.Unit,
		HireDate:  in.HireDate,
		Active:    true,
		CreatedBy: actorID,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}

	if s.audit != nil {
		s.audit.Log(ctx, actorID, audit.ModuleLegajos, "ALTA",
			fmt.Sprintf("created legajo for %s %s", rec.FirstName, rec.LastName),
			map[string]any{"dni": rec.DNI})
	}
	return rec, nil
}

// Update modifies an existing legajo.
func (s *Service) Update(ctx context.Context, actorID *string, id string, in Input) (*Record, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.FirstName = in.FirstName
	rec.LastName = in.LastName
	rec.DNI = in.DNI
	rec.Email = in.Email
	rec.Phone = in.Phone
	rec.Address = in.Address
	rec.Unit = in.Unit
	rec.HireDate = in.HireDate

	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}

	if s.audit != nil {
		s.audit.Log(ctx, actorID, audit.ModuleLegajos, "MODIFICACION",
			fmt.Sprintf("updated legajo %s", rec.ID), nil)
	}
	return rec, nil
}

// Deactivate soft-deletes a legajo. The record and its documents survive.
func (s *Service) Deactivate(ctx context.Context, actorID *string, id string) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}

	if s.audit != nil {
		s.audit.Log(ctx, actorID, audit.ModuleLegajos, "BAJA",
			fmt.Sprintf("deactivated legajo %s", id), nil)
	}
	return nil
}

// GetByID returns one legajo.
func (s *Service) GetByID(ctx context.Context, id string) (*Record, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns a filtered page of active legajos. Pages are 1-based and
// out-of-range pages come back empty with the total count.
func (s *Service) List(ctx context.Context, filter Filter, page, size int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}

	records, total, err := s.repo.List(ctx, filter, page, size)
	if err != nil {
		return nil, err
	}
	return &Page{Records: records, Page: page, Size: size, Total: total}, nil
}
