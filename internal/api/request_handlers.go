package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/diresa-ti/legajos/internal/request"
)

// ProcessRequestBody carries the decision for one change request.
type ProcessRequestBody struct {
	Action string `json:"action"`
}

// RequestHandlers holds dependencies for the change-request endpoints.
type RequestHandlers struct {
	svc    *request.Service
	logger *slog.Logger
}

// NewRequestHandlers creates a RequestHandlers instance.
func NewRequestHandlers(svc *request.Service, logger *slog.Logger) *RequestHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestHandlers{svc: svc, logger: logger}
}

// Submit handles POST /legajos/solicitudes: files a change request against
// a legajo for the Sistemas queue.
func (h *RequestHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	var in request.SubmitInput
	if !decodeJSON(w, r, &in) {
		return
	}

	req, err := h.svc.Submit(r.Context(), actorID(r.Context()), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r.Context(), http.StatusCreated, req)
}

// Pending handles GET /sistemas/solicitudes. A repository outage yields an
// empty queue flagged as degraded rather than an error.
func (h *RequestHandlers) Pending(w http.ResponseWriter, r *http.Request) {
	result := h.svc.Pending(r.Context())
	writeJSON(w, r.Context(), http.StatusOK, result)
}

// Process handles POST /sistemas/solicitudes/{id}/procesar with an
// `action` of aprobar or rechazar. A request reaches a terminal state
// exactly once.
func (h *RequestHandlers) Process(w http.ResponseWriter, r *http.Request) {
	var body ProcessRequestBody
	if !decodeJSON(w, r, &body) {
		return
	}

	req, err := h.svc.Process(r.Context(), actorID(r.Context()), r.PathValue("id"), body.Action)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, req)
}

// writeServiceError maps request service errors onto the API error taxonomy.
func (h *RequestHandlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, request.ErrRequestNotFound):
		WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "solicitud no encontrada")
	case errors.Is(err, request.ErrRequestAlreadyProcessed):
		WriteError(w, r.Context(), http.StatusConflict, ErrCodeAlreadyProcessed, "la solicitud ya fue procesada")
	case errors.Is(err, request.ErrMissingFields), errors.Is(err, request.ErrInvalidDecision):
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "change request operation failed", "error", err)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "error interno")
	}
}
