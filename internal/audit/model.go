// Package audit provides the append-only bitácora: structured events
// recording security- and maintenance-relevant operations for compliance
// and incident response.
package audit

import (
	"time"
)

// Well-known module names used across the application.
const (
	ModuleAuth          = "AUTENTICACION"
	ModuleLegajos       = "LEGAJOS"
	ModuleUsuarios      = "USUARIOS"
	ModuleMantenimiento = "MANTENIMIENTO"
	ModuleAuditoria     = "AUDITORIA"
	ModuleSolicitudes   = "SOLICITUDES"
)

// Entry is a single immutable audit event. Entries are never updated or
// deleted; the repository interface exposes no mutation beyond Append.
type Entry struct {
	ID          string         `json:"id"`
	UserID      *string        `json:"user_id,omitempty"` // nil for anonymous events
	Module      string         `json:"module"`
	Action      string         `json:"action"`
	Description string         `json:"description"`
	Detail      map[string]any `json:"detail,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NewEntry is the input for appending an audit event.
type NewEntry struct {
	UserID      *string
	Module      string
	Action      string
	Description string
	Detail      map[string]any
}
