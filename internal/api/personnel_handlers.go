package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/diresa-ti/legajos/internal/personnel"
)

// PersonnelHandlers holds dependencies for legajo HTTP handlers.
type PersonnelHandlers struct {
	svc    *personnel.Service
	logger *slog.Logger
}

// NewPersonnelHandlers creates a PersonnelHandlers instance.
func NewPersonnelHandlers(svc *personnel.Service, logger *slog.Logger) *PersonnelHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersonnelHandlers{svc: svc, logger: logger}
}

// List handles GET /legajos/personal. Supports `page`, `size`, `dni`
// (exact) and `nombre` (case-insensitive substring) query parameters.
func (h *PersonnelHandlers) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := parseIntParam(q.Get("page"), 1)
	size := parseIntParam(q.Get("size"), personnel.DefaultPageSize)

	filter := personnel.Filter{
		DNI:  q.Get("dni"),
		Name: q.Get("nombre"),
	}

	result, err := h.svc.List(r.Context(), filter, page, size)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list records", "error", err)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "error interno")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, result)
}

// Create handles POST /legajos/personal.
func (h *PersonnelHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var in personnel.Input
	if !decodeJSON(w, r, &in) {
		return
	}

	rec, err := h.svc.Register(r.Context(), actorID(r.Context()), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r.Context(), http.StatusCreated, rec)
}

// Get handles GET /legajos/personal/{id}.
func (h *PersonnelHandlers) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, rec)
}

// Update handles PUT /legajos/personal/{id}.
func (h *PersonnelHandlers) Update(w http.ResponseWriter, r *http.Request) {
	var in personnel.Input
	if !decodeJSON(w, r, &in) {
		return
	}

	rec, err := h.svc.Update(r.Context(), actorID(r.Context()), r.PathValue("id"), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, rec)
}

// Deactivate handles DELETE /legajos/personal/{id}. The record is soft
// deleted; attached documents remain until the row itself is purged.
func (h *PersonnelHandlers) Deactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Deactivate(r.Context(), actorID(r.Context()), r.PathValue("id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError maps personnel service errors onto the API error
// taxonomy. Repository internals are never leaked.
func (h *PersonnelHandlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, personnel.ErrRecordNotFound):
		WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "legajo no encontrado")
	case errors.Is(err, personnel.ErrMissingName), errors.Is(err, personnel.ErrMissingDNI):
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, personnel.ErrDuplicateDNI):
		WriteError(w, r.Context(), http.StatusConflict, ErrCodeDuplicateDNI, "el DNI ya está registrado")
	case errors.Is(err, personnel.ErrDuplicateEmail):
		WriteError(w, r.Context(), http.StatusConflict, ErrCodeConflict, "el email ya está en uso")
	default:
		h.logger.ErrorContext(r.Context(), "personnel operation failed", "error", err)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "error interno")
	}
}

// parseIntParam parses a positive integer query parameter, falling back to
// the default on absence or garbage.
func parseIntParam(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}
