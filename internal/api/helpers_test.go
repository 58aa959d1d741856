package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/diresa-ti/legajos/internal/audit"
	"github.com/diresa-ti/legajos/internal/auth"
	"github.com/diresa-ti/legajos/internal/backup"
	"github.com/diresa-ti/legajos/internal/document"
	"github.com/diresa-ti/legajos/internal/health"
	"github.com/diresa-ti/legajos/internal/middleware"
	"github.com/diresa-ti/legajos/internal/personnel"
	"github.com/diresa-ti/legajos/internal/request"
	"github.com/diresa-ti/legajos/internal/user"
)

// captureSender records issued one-time codes instead of delivering them.
type captureSender struct {
	mu       sync.Mutex
	lastCode string
}

func (s *captureSender) SendCode(_ context.Context, _ *user.User, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCode = code
	return nil
}

func (s *captureSender) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCode
}

// stubRunner stands in for pg_dump and writes a fixed payload.
type stubRunner struct {
	err   error
	calls int
}

func (r *stubRunner) Run(_ context.Context, _, outputPath string) error {
	r.calls++
	if r.err != nil {
		return r.err
	}
	return os.WriteFile(outputPath, []byte("-- dump --\n"), 0o600)
}

type testEnv struct {
	router http.Handler
	tokens *auth.TokenService

	users     *user.Service
	personnel *personnel.Service
	documents *document.Service
	requests  *request.Service
	audits    *audit.Service

	auditRepo *audit.InMemoryRepository
	sender    *captureSender
	runner    *stubRunner
}

// newTestEnv assembles the full route table over in-memory stores.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := auth.NewTokenService("test-secret-for-handlers")

	auditRepo := audit.NewInMemoryRepository()
	auditSvc := audit.NewService(auditRepo, logger, nil)

	sender := &captureSender{}
	userSvc := user.NewService(user.NewInMemoryRepository(), sender, auditSvc, logger)
	personnelSvc := personnel.NewService(personnel.NewInMemoryRepository(), auditSvc, logger)
	documentSvc := document.NewService(document.NewInMemoryRepository(), document.NewInMemoryBlobStore(), auditSvc, logger, 0)
	requestSvc := request.NewService(request.NewInMemoryRepository(), auditSvc, logger)

	runner := &stubRunner{}
	backupSvc := backup.NewService(runner, backup.NewInMemoryRepository(), auditSvc, logger,
		"legajos", t.TempDir(), nil)

	env := &testEnv{
		tokens:    tokens,
		users:     userSvc,
		personnel: personnelSvc,
		documents: documentSvc,
		requests:  requestSvc,
		audits:    auditSvc,
		auditRepo: auditRepo,
		sender:    sender,
		runner:    runner,
	}

	env.router = NewRouter(RouterConfig{
		Auth:           NewAuthHandlers(userSvc, tokens, auditSvc, logger),
		Personnel:      NewPersonnelHandlers(personnelSvc, logger),
		Documents:      NewDocumentHandlers(documentSvc, logger),
		Users:          NewUserHandlers(userSvc, logger),
		Audit:          NewAuditHandlers(auditSvc, nil, logger),
		Requests:       NewRequestHandlers(requestSvc, logger),
		Maintenance:    NewMaintenanceHandlers(backupSvc, logger),
		Health:         NewHealthHandlers(health.NewRegistry()),
		Tokens:         tokens,
		RateLimitStore: middleware.NewInMemoryRateLimitStore(),
	})
	return env
}

// sessionToken mints a session token directly, bypassing the login flow.
func (env *testEnv) sessionToken(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := env.tokens.GenerateSessionToken(userID, "test-"+role, role)
	if err != nil {
		t.Fatalf("GenerateSessionToken() error = %v", err)
	}
	return token
}

// do runs one request through the router. body is JSON-encoded when non-nil.
func (env *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

// decodeBody unmarshals a JSON response body into v.
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal response %q: %v", rec.Body.String(), err)
	}
}

// errorCode extracts the code from an error envelope.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	decodeBody(t, rec, &resp)
	return resp.Error.Code
}

// mustCreateUser seeds an account through the service layer.
func (env *testEnv) mustCreateUser(t *testing.T, in user.NewUserInput) *user.User {
	t.Helper()
	u, err := env.users.Create(context.Background(), nil, in)
	if err != nil {
		t.Fatalf("users.Create() error = %v", err)
	}
	return u
}

// mustRegisterRecord seeds a legajo through the service layer.
func (env *testEnv) mustRegisterRecord(t *testing.T, in personnel.Input) *personnel.Record {
	t.Helper()
	rec, err := env.personnel.Register(context.Background(), nil, in)
	if err != nil {
		t.Fatalf("personnel.Register() error = %v", err)
	}
	return rec
}
