// Package api provides the HTTP handlers for the legajos API server.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/diresa-ti/legajos/internal/middleware"
)

// Common error codes used throughout the API.
const (
	// ErrCodeValidation indicates input validation failure.
	ErrCodeValidation = "validation_error"

	// ErrCodeAuthFailed indicates authentication failure. Deliberately the
	// same for unknown users, wrong passwords and bad 2FA codes.
	ErrCodeAuthFailed = "auth_failed"

	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"

	// ErrCodeForbidden indicates the caller's role does not allow the operation.
	ErrCodeForbidden = "forbidden"

	// ErrCodeConflict indicates a conflict with the current state.
	ErrCodeConflict = "conflict"

	// ErrCodeBadRequest indicates a malformed request.
	ErrCodeBadRequest = "bad_request"

	// ErrCodeDuplicateDNI indicates the DNI is already registered.
	ErrCodeDuplicateDNI = "duplicate_dni"

	// ErrCodeDuplicateUser indicates the username or email is taken.
	ErrCodeDuplicateUser = "duplicate_user"

	// ErrCodeAlreadyProcessed indicates the change request reached a
	// terminal state before this decision arrived.
	ErrCodeAlreadyProcessed = "already_processed"

	// ErrCodeUnsupportedType indicates an unsupported file type for upload.
	ErrCodeUnsupportedType = "unsupported_type"

	// ErrCodeFileTooLarge indicates the upload exceeds the size limit.
	ErrCodeFileTooLarge = "file_too_large"

	// ErrCodeBackupNotConfigured indicates no backup database name is set.
	ErrCodeBackupNotConfigured = "backup_not_configured"
)

// ErrorResponse represents the standard error response format.
// All API errors return JSON in this structure: {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a standardized JSON error response and records the error
// code for the logging middleware.
//
// Format: {"error": {"code": "error_code", "message": "Error description"}}
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	middleware.SetErrorCode(ctx, code)

	errResp := ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}

	data, err := json.Marshal(errResp)
	if err != nil {
		// Fallback to plain text if JSON marshaling fails
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// writeJSON writes a JSON success response with the given status.
func writeJSON(w http.ResponseWriter, ctx context.Context, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// decodeJSON decodes the request body into v, writing a standard error
// response on failure. Returns false when decoding failed and the handler
// should return immediately.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON in request body")
		return false
	}
	return true
}

// actorID returns the authenticated user's ID as a nullable pointer for
// audit attribution. Nil when the request is unauthenticated.
func actorID(ctx context.Context) *string {
	if id := middleware.GetUserID(ctx); id != "" {
		return &id
	}
	return nil
}
