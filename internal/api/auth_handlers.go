package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/diresa-ti/legajos/internal/audit"
	"github.com/diresa-ti/legajos/internal/auth"
	"github.com/diresa-ti/legajos/internal/middleware"
	"github.com/diresa-ti/legajos/internal/user"
)

// LoginRequest represents the request body for the first login step.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the pending token for the 2FA step. The one-time
// code itself travels out-of-band; the response only hints where to look.
type LoginResponse struct {
	PendingToken string `json:"pending_token"`
	Message      string `json:"message"`
}

// VerifyRequest represents the request body for the 2FA verification step.
type VerifyRequest struct {
	Code string `json:"code"`
}

// VerifyResponse carries the full session token after 2FA success.
type VerifyResponse struct {
	Token string      `json:"token"`
	User  SessionUser `json:"user"`
}

// SessionUser is the slice of the account the client needs after login.
type SessionUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	FullName string `json:"full_name,omitempty"`
}

// AuthHandlers holds dependencies for the authentication endpoints.
type AuthHandlers struct {
	users  *user.Service
	tokens *auth.TokenService
	audit  *audit.Service
	logger *slog.Logger
}

// NewAuthHandlers creates an AuthHandlers instance. auditSvc may be nil.
func NewAuthHandlers(users *user.Service, tokens *auth.TokenService, auditSvc *audit.Service, logger *slog.Logger) *AuthHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandlers{users: users, tokens: tokens, audit: auditSvc, logger: logger}
}

// Login handles POST /auth/login. On valid credentials a one-time code is
// issued out-of-band and a pending token is returned for the verify step.
// Every failure mode answers with the same 401 so accounts cannot be
// enumerated.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "username y password son requeridos")
		return
	}

	userID, err := h.users.AttemptLogin(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			WriteError(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthFailed, "credenciales inválidas")
			return
		}
		h.logger.ErrorContext(r.Context(), "login attempt failed", "error", err)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "error interno")
		return
	}

	token, err := h.tokens.GeneratePendingToken(userID, req.Username)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to generate pending token", "error", err)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "error interno")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, LoginResponse{
		PendingToken: token,
		Message:      "código de verificación enviado",
	})
}

// Verify handles POST /auth/login/verify. It accepts only pending tokens;
// on a matching code it issues the session token and stamps the last login.
func (h *AuthHandlers) Verify(w http.ResponseWriter, r *http.Request) {
	claims := h.pendingClaims(r)
	if claims == nil {
		WriteError(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthFailed, "token inválido")
		return
	}

	var req VerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Code == "" {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "code es requerido")
		return
	}

	u, err := h.users.VerifyCode(r.Context(), claims.Subject, req.Code)
	if err != nil {
		if errors.Is(err, user.ErrCodeNotVerified) {
			WriteError(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthFailed, "código inválido o expirado")
			return
		}
		h.logger.ErrorContext(r.Context(), "code verification failed", "error", err)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "error interno")
		return
	}

	token, err := h.tokens.GenerateSessionToken(u.ID, u.Username, u.Role)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to generate session token", "error", err)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "error interno")
		return
	}

	if err := h.users.UpdateLastLogin(r.Context(), u.ID); err != nil {
		// The session is already valid; a missing stamp is an operational
		// concern, not a login failure.
		h.logger.WarnContext(r.Context(), "failed to stamp last login", "error", err, "user_id", u.ID)
	}

	writeJSON(w, r.Context(), http.StatusOK, VerifyResponse{
		Token: token,
		User: SessionUser{
			ID:       u.ID,
			Username: u.Username,
			Role:     u.Role,
			FullName: u.FullName,
		},
	})
}

// Logout handles POST /auth/logout. Tokens are stateless, so logout is a
// client-side discard; the endpoint exists to audit the event.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if h.audit != nil {
		id := middleware.GetUserID(r.Context())
		h.audit.Log(r.Context(), actorID(r.Context()), audit.ModuleAuth, "LOGOUT",
			fmt.Sprintf("user %s logged out", id), nil)
	}
	w.WriteHeader(http.StatusNoContent)
}

// pendingClaims extracts and validates the bearer token, returning its
// claims only when it is a pending-typed token.
func (h *AuthHandlers) pendingClaims(r *http.Request) *auth.Claims {
	header := r.Header.Get("Authorization")
	scheme, raw, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return nil
	}
	claims, err := h.tokens.ValidateToken(strings.TrimSpace(raw))
	if err != nil || claims.Type != auth.TokenTypePending {
		return nil
	}
	return claims
}
