package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/diresa-ti/legajos/internal/user"
)

// AccountResponse is the public view of an account. The password hash and
// 2FA slot never leave the server.
type AccountResponse struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Role      string     `json:"role"`
	Active    bool       `json:"active"`
	Email     string     `json:"email,omitempty"`
	FullName  string     `json:"full_name,omitempty"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ResetPasswordResponse carries the temporary password for the
// administrator to hand over out-of-band.
type ResetPasswordResponse struct {
	TemporaryPassword string `json:"temporary_password"`
}

// UserHandlers holds dependencies for the account-administration endpoints.
type UserHandlers struct {
	svc    *user.Service
	logger *slog.Logger
}

// NewUserHandlers creates a UserHandlers instance.
func NewUserHandlers(svc *user.Service, logger *slog.Logger) *UserHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandlers{svc: svc, logger: logger}
}

func accountResponse(u *user.User) AccountResponse {
	return AccountResponse{
		ID:        u.ID,
		Username:  u.Username,
		Role:      u.Role,
		Active:    u.Active,
		Email:     u.Email,
		FullName:  u.FullName,
		LastLogin: u.LastLogin,
		CreatedAt: u.CreatedAt,
	}
}

// List handles GET /sistemas/usuarios.
func (h *UserHandlers) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list accounts", "error", err)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "error interno")
		return
	}

	out := make([]AccountResponse, 0, len(users))
	for _, u := range users {
		out = append(out, accountResponse(u))
	}
	writeJSON(w, r.Context(), http.StatusOK, map[string]any{"users": out})
}

// Create handles POST /sistemas/usuarios.
func (h *UserHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var in user.NewUserInput
	if !decodeJSON(w, r, &in) {
		return
	}

	u, err := h.svc.Create(r.Context(), actorID(r.Context()), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r.Context(), http.StatusCreated, accountResponse(u))
}

// Update handles PUT /sistemas/usuarios/{id}.
func (h *UserHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var in user.NewUserInput
	if !decodeJSON(w, r, &in) {
		return
	}

	u, err := h.svc.Update(r.Context(), actorID(r.Context()), r.PathValue("id"), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, accountResponse(u))
}

// ResetPassword handles POST /sistemas/usuarios/{id}/reset_password.
// Returns the temporary clear-text password exactly once.
func (h *UserHandlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	temp, err := h.svc.ResetPassword(r.Context(), actorID(r.Context()), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, ResetPasswordResponse{TemporaryPassword: temp})
}

// writeServiceError maps user service errors onto the API error taxonomy.
func (h *UserHandlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, user.ErrUserNotFound):
		WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "usuario no encontrado")
	case errors.Is(err, user.ErrMissingFields), errors.Is(err, user.ErrInvalidRole):
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, user.ErrDuplicateUser):
		WriteError(w, r.Context(), http.StatusConflict, ErrCodeDuplicateUser, "el usuario o email ya existe")
	default:
		h.logger.ErrorContext(r.Context(), "account operation failed", "error", err)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "error interno")
	}
}
