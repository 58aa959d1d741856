package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type accessLogEntry struct {
	Level     string `json:"level"`
	Msg       string `json:"msg"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	Status    int    `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Size      int    `json:"size"`
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`
	ErrorCode string `json:"error_code"`
}

// logRequest runs one request through Logging (optionally wrapped in extra
// middleware) and returns the parsed access log line.
func logRequest(t *testing.T, req *http.Request, inner http.HandlerFunc, outer ...func(http.Handler) http.Handler) accessLogEntry {
	t.Helper()

	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var handler http.Handler = Logging(logger)(inner)
	for _, mw := range outer {
		handler = mw(handler)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry accessLogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("parse log entry: %v, log: %s", err, buf.String())
	}
	return entry
}

func TestLogging_SuccessLine(t *testing.T) {
	entry := logRequest(t,
		httptest.NewRequest(http.MethodGet, "/legajos/personal", nil),
		func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("hello"))
		})

	if entry.Method != "GET" || entry.Path != "/legajos/personal" {
		t.Errorf("method/path = %s %s", entry.Method, entry.Path)
	}
	if entry.Status != 200 {
		t.Errorf("status = %d, want implicit 200", entry.Status)
	}
	if entry.Size != len("hello") {
		t.Errorf("size = %d, want %d", entry.Size, len("hello"))
	}
	if entry.LatencyMS < 0 {
		t.Errorf("latency_ms = %d", entry.LatencyMS)
	}
	if entry.Level != "INFO" {
		t.Errorf("level = %s, want INFO", entry.Level)
	}
}

func TestLogging_CarriesRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/sistemas/usuarios", nil)
	req.Header.Set(RequestIDHeader, "req-456")

	entry := logRequest(t, req,
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		},
		RequestID)

	if entry.RequestID != "req-456" {
		t.Errorf("request_id = %q, want req-456", entry.RequestID)
	}
}

func TestLogging_CarriesUserID(t *testing.T) {
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Authenticate hands the next handler a new request with a child
	// context; the log line must still carry the user ID.
	entry := logRequest(t,
		httptest.NewRequest(http.MethodGet, "/sistemas/auditoria", nil),
		func(w http.ResponseWriter, r *http.Request) {
			ctx := SetUserRole(SetUserID(r.Context(), "u-123"), "Sistemas")
			final.ServeHTTP(w, r.WithContext(ctx))
		})

	if entry.UserID != "u-123" {
		t.Errorf("user_id = %q, want u-123", entry.UserID)
	}
	if entry.Status != http.StatusOK {
		t.Errorf("status = %d, want 200", entry.Status)
	}
}

func TestLogging_ErrorLevels(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		errorCode string
		wantLevel string
	}{
		{"client error", http.StatusBadRequest, "validation_error", "WARN"},
		{"server error", http.StatusInternalServerError, "internal_error", "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := logRequest(t,
				httptest.NewRequest(http.MethodPost, "/legajos/personal", nil),
				func(w http.ResponseWriter, r *http.Request) {
					SetErrorCode(r.Context(), tt.errorCode)
					w.WriteHeader(tt.status)
				})

			if entry.Status != tt.status {
				t.Errorf("status = %d, want %d", entry.Status, tt.status)
			}
			if entry.ErrorCode != tt.errorCode {
				t.Errorf("error_code = %q, want %q", entry.ErrorCode, tt.errorCode)
			}
			if entry.Level != tt.wantLevel {
				t.Errorf("level = %s, want %s", entry.Level, tt.wantLevel)
			}
		})
	}
}

func TestLogging_NoErrorCodeOnSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buf, nil))

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetErrorCode(r.Context(), "ignored")
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	if strings.Contains(buf.String(), "error_code") {
		t.Error("error_code must not be logged for 2xx responses")
	}
}

func TestNewLogger(t *testing.T) {
	if NewLogger("production") == nil {
		t.Fatal("production logger is nil")
	}
	if NewLogger("development") == nil {
		t.Fatal("development logger is nil")
	}
}

func TestUserContext(t *testing.T) {
	ctx := context.Background()
	if GetUserID(ctx) != "" || GetUserRole(ctx) != "" {
		t.Error("expected empty identity on a fresh context")
	}

	ctx = SetUserRole(SetUserID(ctx, "u-1"), "RRHH")
	if got := GetUserID(ctx); got != "u-1" {
		t.Errorf("GetUserID() = %q, want u-1", got)
	}
	if got := GetUserRole(ctx); got != "RRHH" {
		t.Errorf("GetUserRole() = %q, want RRHH", got)
	}
}

func TestRequestInfoHolder(t *testing.T) {
	ctx := context.Background()

	// Without a seeded holder SetErrorCode is a no-op.
	SetErrorCode(ctx, "not_found")
	if got := GetErrorCode(ctx); got != "" {
		t.Errorf("GetErrorCode() = %q, want empty without holder", got)
	}

	ctx = WithRequestInfo(ctx)
	SetErrorCode(ctx, "not_found")
	if got := GetErrorCode(ctx); got != "not_found" {
		t.Errorf("GetErrorCode() = %q, want not_found", got)
	}

	// SetUserID on a child context writes through to the seeded holder.
	_ = SetUserID(ctx, "u-7")
	if got := GetUserID(ctx); got != "u-7" {
		t.Errorf("GetUserID() on the holder context = %q, want u-7", got)
	}
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	rw.WriteHeader(http.StatusCreated)
	rw.WriteHeader(http.StatusTeapot) // ignored, first status wins
	if rw.statusCode != http.StatusCreated || rec.Code != http.StatusCreated {
		t.Errorf("statusCode = %d, recorder = %d, want 201", rw.statusCode, rec.Code)
	}

	body := []byte("respuesta")
	n, err := rw.Write(body)
	if err != nil || n != len(body) {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	if rw.size != len(body) {
		t.Errorf("size = %d, want %d", rw.size, len(body))
	}
}
