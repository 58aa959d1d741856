package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"
)

type (
	userIDKey      struct{}
	userRoleKey    struct{}
	requestInfoKey struct{}
)

// requestInfo lets inner middleware and handlers publish values to the
// logging middleware, which runs earlier in the chain and cannot see
// context values added by its children. Authenticate writes the user ID
// through it and handlers write error codes.
type requestInfo struct {
	errorCode string
	userID    string
}

// SetUserID stores the authenticated user's ID in the context. Called by
// Authenticate after validating the session token. The ID is also written
// through to the request info holder so the access log can attribute the
// request.
func SetUserID(ctx context.Context, id string) context.Context {
	if info, ok := ctx.Value(requestInfoKey{}).(*requestInfo); ok {
		info.userID = id
	}
	return context.WithValue(ctx, userIDKey{}, id)
}

// GetUserID returns the authenticated user's ID, or "" when unauthenticated.
// Outside the Authenticate subtree the ID is resolved from the request info
// holder, so the Logging middleware sees it too.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey{}).(string); ok {
		return id
	}
	if info, ok := ctx.Value(requestInfoKey{}).(*requestInfo); ok {
		return info.userID
	}
	return ""
}

// SetUserRole stores the authenticated user's role in the context.
func SetUserRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, userRoleKey{}, role)
}

// GetUserRole returns the authenticated user's role, or "".
func GetUserRole(ctx context.Context) string {
	role, _ := ctx.Value(userRoleKey{}).(string)
	return role
}

// WithRequestInfo seeds an empty request info holder into the context.
// The Logging middleware does this for every request.
func WithRequestInfo(ctx context.Context) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, &requestInfo{})
}

// SetErrorCode records an error code for the current request. Handlers call
// this when writing error responses. It is a no-op when the request did not
// pass through the Logging middleware.
func SetErrorCode(ctx context.Context, code string) {
	if info, ok := ctx.Value(requestInfoKey{}).(*requestInfo); ok {
		info.errorCode = code
	}
}

// GetErrorCode returns the error code recorded for this request, or "".
func GetErrorCode(ctx context.Context) string {
	if info, ok := ctx.Value(requestInfoKey{}).(*requestInfo); ok {
		return info.errorCode
	}
	return ""
}

// responseWriter captures the status code and body size of a response.
// Only the first WriteHeader call sets the status, matching net/http.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int
	wroteHeader bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// NewLogger builds the process logger: JSON at info level in production,
// text at debug level everywhere else.
func NewLogger(env string) *slog.Logger {
	if env == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// levelForStatus maps response status to log level: 5xx error, 4xx warn,
// everything else info.
func levelForStatus(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// Logging writes one structured access log line per request: method, path,
// status, latency, sizes, plus request ID, user ID and error code when set.
//
// A panicking handler skips the log line; put a recovery middleware outside
// this one if that matters.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := newResponseWriter(w)
			r = r.WithContext(WithRequestInfo(r.Context()))

			next.ServeHTTP(rw, r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rw.statusCode),
				slog.Int64("latency_ms", time.Since(start).Milliseconds()),
				slog.Int("size", rw.size),
			}
			if requestID := GetRequestID(r.Context()); requestID != "" {
				attrs = append(attrs, slog.String("request_id", requestID))
			}
			if userID := GetUserID(r.Context()); userID != "" {
				attrs = append(attrs, slog.String("user_id", userID))
			}
			if rw.statusCode >= 400 {
				if code := GetErrorCode(r.Context()); code != "" {
					attrs = append(attrs, slog.String("error_code", code))
				}
			}

			logger.LogAttrs(r.Context(), levelForStatus(rw.statusCode), "request completed", attrs...)
		})
	}
}
