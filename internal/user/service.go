package user

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/diresa-ti/legajos/internal/audit"
	"github.com/diresa-ti/legajos/internal/auth"
)

// CodeTTL is how long an issued one-time code stays valid.
const CodeTTL = 10 * time.Minute

// MetricLoginAttempts counts login attempts by outcome.
const MetricLoginAttempts = "login_attempts_total"

// Service errors. ErrInvalidCredentials deliberately covers unknown users,
// inactive accounts and wrong passwords alike so callers cannot enumerate
// accounts.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrCodeNotVerified    = errors.New("code not verified")
	ErrInvalidRole        = errors.New("invalid role")
	ErrMissingFields      = errors.New("username and password are required")
)

// CodeSender delivers a one-time code out-of-band. The clear-text code never
// travels back through the HTTP response.
type CodeSender interface {
	SendCode(ctx context.Context, u *User, code string) error
}

// SlogCodeSender writes the code to the application log. It stands in for
// email delivery on development deployments where no mail relay is
// configured.
type SlogCodeSender struct {
	Logger *slog.Logger
}

// SendCode logs the code for the operator to relay.
func (s *SlogCodeSender) SendCode(ctx context.Context, u *User, code string) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "2FA code issued", "username", u.Username, "code", code)
	return nil
}

// Service implements the login and account-administration operations.
type Service struct {
	repo   Repository
	sender CodeSender
	audit  *audit.Service
	logger *slog.Logger

	logins *prometheus.CounterVec

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewService creates a user Service. audit may be nil in tests.
func NewService(repo Repository, sender CodeSender, auditSvc *audit.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		sender: sender,
		audit:  auditSvc,
		logger: logger,
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricLoginAttempts,
			Help: "Total number of login attempts by outcome",
		}, []string{"outcome"}),
		now: time.Now,
	}
}

// Register registers the service's metrics with the given registry.
func (s *Service) Register(reg prometheus.Registerer) error {
	return reg.Register(s.logins)
}

// AttemptLogin verifies credentials. On success it issues a fresh one-time
// code (overwriting any pending one, so only the most recent code is valid),
// hands it to the CodeSender and returns the account ID. All failure modes
// collapse into ErrInvalidCredentials.
func (s *Service) AttemptLogin(ctx context.Context, username, password string) (string, error) {
	u, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.logins.WithLabelValues("rejected").Inc()
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("failed to look up user: %w", err)
	}

	if !u.Active || !auth.CheckPassword(u.PasswordHash, password) {
		s.logins.WithLabelValues("rejected").Inc()
		return "", ErrInvalidCredentials
	}

	code, err := auth.GenerateCode()
	if err != nil {
		return "", err
	}
	hash, err := auth.HashCode(code)
	if err != nil {
		return "", err
	}

	expiry := s.now().Add(CodeTTL)
	if err := s.repo.SetOneTimeCode(ctx, u.ID, hash, expiry); err != nil {
		return "", fmt.Errorf("failed to store one-time code: %w", err)
	}

	if s.sender != nil {
		if err := s.sender.SendCode(ctx, u, code); err != nil {
			// The code is already stored; the user can retry delivery by
			// logging in again, which rotates the slot.
			s.logger.ErrorContext(ctx, "failed to deliver 2FA code", "error", err, "username", u.Username)
			return "", fmt.Errorf("failed to deliver verification code: %w", err)
		}
	}

	s.logins.WithLabelValues("code_issued").Inc()
	return u.ID, nil
}

// VerifyCode checks the supplied one-time code. Fails closed when no code is
// pending or the stored expiry has passed (the slot is cleared on expiry).
// On a match the slot is cleared (single use) and the account is returned;
// on a mismatch the slot is left intact so the user may retry until expiry.
func (s *Service) VerifyCode(ctx context.Context, userID, code string) (*User, error) {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrCodeNotVerified
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if u.TwoFactorHash == nil || u.TwoFactorExpiry == nil {
		return nil, ErrCodeNotVerified
	}
	if !s.now().Before(*u.TwoFactorExpiry) {
		if err := s.repo.ClearOneTimeCode(ctx, u.ID); err != nil {
			s.logger.WarnContext(ctx, "failed to clear expired code", "error", err, "user_id", u.ID)
		}
		return nil, ErrCodeNotVerified
	}

	if !auth.CheckCode(*u.TwoFactorHash, code) {
		return nil, ErrCodeNotVerified
	}

	if err := s.repo.ClearOneTimeCode(ctx, u.ID); err != nil {
		return nil, fmt.Errorf("failed to clear one-time code: %w", err)
	}
	u.TwoFactorHash = nil
	u.TwoFactorExpiry = nil

	s.logins.WithLabelValues("verified").Inc()
	if s.audit != nil {
		s.audit.Log(ctx, &u.ID, audit.ModuleAuth, "LOGIN",
			fmt.Sprintf("user %s completed two-factor login", u.Username), nil)
	}
	return u, nil
}

// UpdateLastLogin stamps the current time as the account's last successful
// login. Invoked only after 2FA success.
func (s *Service) UpdateLastLogin(ctx context.Context, userID string) error {
	return s.repo.UpdateLastLogin(ctx, userID, s.now().UTC())
}

// GetByID returns one account.
func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

// List returns all accounts for the administration screen.
func (s *Service) List(ctx context.Context) ([]*User, error) {
	return s.repo.List(ctx)
}

// NewUserInput carries the fields for creating or updating an account.
type NewUserInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Active   bool   `json:"active"`
}

// Create registers a new account with a hashed password.
func (s *Service) Create(ctx context.Context, actorID *string, in NewUserInput) (*User, error) {
	if in.Username == "" || in.Password == "" {
		return nil, ErrMissingFields
	}
	if !ValidRoles[in.Role] {
		return nil, ErrInvalidRole
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &User{
		Username:     in.Username,
		PasswordHash: hash,
		Role:         in.Role,
		Active:       in.Active,
		Email:        in.Email,
		FullName:     in.FullName,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	if s.audit != nil {
		s.audit.Log(ctx, actorID, audit.ModuleUsuarios, "ALTA",
			fmt.Sprintf("created account %s with role %s", u.Username, u.Role), nil)
	}
	return u, nil
}

// Update modifies an account's profile fields.
func (s *Service) Update(ctx context.Context, actorID *string, id string, in NewUserInput) (*User, error) {
	if !ValidRoles[in.Role] {
		return nil, ErrInvalidRole
	}

	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Username = in.Username
	u.Email = in.Email
	u.FullName = in.FullName
	u.Role = in.Role
	u.Active = in.Active

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}

	if s.audit != nil {
		s.audit.Log(ctx, actorID, audit.ModuleUsuarios, "MODIFICACION",
			fmt.Sprintf("updated account %s", u.Username), nil)
	}
	return u, nil
}

// ResetPassword replaces an account's password with a random temporary one
// and returns the clear-text value for the administrator to hand over.
func (s *Service) ResetPassword(ctx context.Context, actorID *string, id string) (string, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return "", err
	}

	raw := make([]byte, 12)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate temporary password: %w", err)
	}
	tempPassword := hex.EncodeToString(raw)

	hash, err := auth.HashPassword(tempPassword)
	if err != nil {
		return "", err
	}
	if err := s.repo.UpdatePasswordHash(ctx, id, hash); err != nil {
		return "", err
	}

	if s.audit != nil {
		s.audit.Log(ctx, actorID, audit.ModuleUsuarios, "RESET_PASSWORD",
			fmt.Sprintf("reset password for account %s", u.Username), nil)
	}
	return tempPassword, nil
}
