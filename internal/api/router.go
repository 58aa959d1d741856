package api

import (
	"net/http"

	"github.com/diresa-ti/legajos/internal/middleware"
	"github.com/diresa-ti/legajos/internal/user"
)

// RouterConfig wires the handler groups and cross-cutting pieces into one mux.
type RouterConfig struct {
	Auth        *AuthHandlers
	Personnel   *PersonnelHandlers
	Documents   *DocumentHandlers
	Users       *UserHandlers
	Audit       *AuditHandlers
	Requests    *RequestHandlers
	Maintenance *MaintenanceHandlers
	Health      *HealthHandlers

	Tokens         middleware.SessionValidator
	RateLimitStore middleware.RateLimitStore
	MetricsHandler http.Handler
}

// NewRouter builds the route table. Authentication and role checks are
// applied per route; the outer request middleware chain (request ID,
// tracing, metrics, logging) wraps the returned handler in main.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	authn := middleware.Authenticate(cfg.Tokens)
	anyReader := middleware.RequireRole(user.RoleSistemas, user.RoleRRHH, user.RoleAdminLegajos)
	adminLegajos := middleware.RequireRole(user.RoleAdminLegajos)
	submitters := middleware.RequireRole(user.RoleRRHH, user.RoleAdminLegajos)
	sistemas := middleware.RequireRole(user.RoleSistemas)

	authLimit := middleware.RateLimiter(cfg.RateLimitStore, middleware.DefaultAuthLimit(), middleware.IPKeyFunc())
	uploadLimit := middleware.RateLimiter(cfg.RateLimitStore, middleware.DefaultUploadLimit(), middleware.UserKeyFunc())

	// Authentication. Login and verification are rate limited by client IP.
	mux.Handle("POST /auth/login", authLimit(http.HandlerFunc(cfg.Auth.Login)))
	mux.Handle("POST /auth/login/verify", authLimit(http.HandlerFunc(cfg.Auth.Verify)))
	mux.Handle("POST /auth/logout", chain(cfg.Auth.Logout, authn))

	// Legajos. Reading is open to the three roles; mutation is reserved to
	// AdministradorLegajos.
	mux.Handle("GET /legajos/personal", chain(cfg.Personnel.List, authn, anyReader))
	mux.Handle("POST /legajos/personal", chain(cfg.Personnel.Create, authn, adminLegajos))
	mux.Handle("GET /legajos/personal/{id}", chain(cfg.Personnel.Get, authn, anyReader))
	mux.Handle("PUT /legajos/personal/{id}", chain(cfg.Personnel.Update, authn, adminLegajos))
	mux.Handle("DELETE /legajos/personal/{id}", chain(cfg.Personnel.Deactivate, authn, adminLegajos))

	mux.Handle("GET /legajos/personal/{id}/documentos", chain(cfg.Documents.ListByRecord, authn, anyReader))
	// The upload limiter keys on the authenticated user, so it sits inside
	// Authenticate.
	mux.Handle("POST /legajos/personal/{id}/documento/subir",
		chain(cfg.Documents.Upload, authn, uploadLimit, adminLegajos))
	mux.Handle("GET /legajos/documento/{id}/ver", chain(cfg.Documents.View, authn, anyReader))
	mux.Handle("POST /legajos/documento/{id}/eliminar", chain(cfg.Documents.Delete, authn, adminLegajos))

	mux.Handle("POST /legajos/solicitudes", chain(cfg.Requests.Submit, authn, submitters))

	// Sistemas back office.
	mux.Handle("GET /sistemas/auditoria", chain(cfg.Audit.List, authn, sistemas))
	mux.Handle("GET /sistemas/auditoria/export", chain(cfg.Audit.Export, authn, sistemas))
	mux.Handle("GET /sistemas/auditoria/stream", chain(cfg.Audit.Stream, authn, sistemas))

	mux.Handle("GET /sistemas/usuarios", chain(cfg.Users.List, authn, sistemas))
	mux.Handle("POST /sistemas/usuarios", chain(cfg.Users.Create, authn, sistemas))
	mux.Handle("PUT /sistemas/usuarios/{id}", chain(cfg.Users.Update, authn, sistemas))
	mux.Handle("POST /sistemas/usuarios/{id}/reset_password", chain(cfg.Users.ResetPassword, authn, sistemas))

	mux.Handle("GET /sistemas/solicitudes", chain(cfg.Requests.Pending, authn, sistemas))
	mux.Handle("POST /sistemas/solicitudes/{id}/procesar", chain(cfg.Requests.Process, authn, sistemas))

	mux.Handle("GET /sistemas/mantenimiento/backups", chain(cfg.Maintenance.History, authn, sistemas))
	mux.Handle("POST /sistemas/mantenimiento/run_backup", chain(cfg.Maintenance.RunBackup, authn, sistemas))

	// Probes and metrics stay unauthenticated; they are reachable only from
	// inside the deployment network.
	mux.HandleFunc("GET /health", cfg.Health.Health)
	mux.HandleFunc("GET /ready", cfg.Health.Ready)
	if cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", cfg.MetricsHandler)
	}

	return mux
}

// chain wraps a handler func with middleware, outermost first.
func chain(h http.HandlerFunc, mws ...func(http.Handler) http.Handler) http.Handler {
	var wrapped http.Handler = h
	for i := len(mws) - 1; i >= 0; i-- {
		wrapped = mws[i](wrapped)
	}
	return wrapped
}
