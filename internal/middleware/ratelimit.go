// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig defines a fixed-window rate limit.
type RateLimitConfig struct {
	// RequestsPerWindow is the maximum number of requests allowed per window.
	RequestsPerWindow int
	// WindowDuration is the length of the window.
	WindowDuration time.Duration
}

// Validate reports whether the config describes a usable limit.
func (c RateLimitConfig) Validate() error {
	if c.RequestsPerWindow <= 0 {
		return fmt.Errorf("RequestsPerWindow must be > 0 (got %d)", c.RequestsPerWindow)
	}
	if c.WindowDuration <= 0 {
		return fmt.Errorf("WindowDuration must be > 0 (got %s)", c.WindowDuration)
	}
	return nil
}

// DefaultGlobalLimit is the fallback limit for routes without a dedicated
// one: 100 requests per minute.
func DefaultGlobalLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerWindow: 100, WindowDuration: time.Minute}
}

// DefaultAuthLimit is the login limit: 10 requests per minute per client IP.
// Login and code verification share it, which also caps brute force attempts
// on the one-time code.
func DefaultAuthLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerWindow: 10, WindowDuration: time.Minute}
}

// DefaultUploadLimit is the document upload limit: 30 requests per minute
// per user.
func DefaultUploadLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerWindow: 30, WindowDuration: time.Minute}
}

// RateLimitStore tracks request counts per key. Implementations exist for
// a single process (in-memory) and for a shared Redis instance.
type RateLimitStore interface {
	// Allow records a request under key and reports whether it fits the
	// limit. When it does not, retryAfter is the number of seconds until
	// the window resets.
	Allow(ctx context.Context, key string, config RateLimitConfig) (allowed bool, retryAfter int)
}

// window is the per-key counter state for the in-memory store.
type window struct {
	count   int
	expires time.Time
}

// InMemoryRateLimitStore is a fixed-window counter over a mutex-guarded
// map. It is safe for concurrent use. State is per process, so multi-replica
// deployments should use the Redis store instead.
type InMemoryRateLimitStore struct {
	mu      sync.RWMutex
	windows map[string]*window
}

// NewInMemoryRateLimitStore creates an empty in-memory store.
func NewInMemoryRateLimitStore() *InMemoryRateLimitStore {
	return &InMemoryRateLimitStore{windows: make(map[string]*window)}
}

// Allow implements RateLimitStore.
func (s *InMemoryRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	w := s.windows[key]
	if w == nil || now.After(w.expires) {
		s.windows[key] = &window{count: 1, expires: now.Add(config.WindowDuration)}
		return true, 0
	}

	if w.count < config.RequestsPerWindow {
		w.count++
		return true, 0
	}

	retryAfter := int(w.expires.Sub(now).Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	return false, retryAfter
}

// Cleanup drops expired windows. Call it periodically (a few multiples of
// the longest configured WindowDuration) to keep the map bounded.
func (s *InMemoryRateLimitStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, w := range s.windows {
		if now.After(w.expires) {
			delete(s.windows, key)
		}
	}
}

// KeyFunc extracts a rate limit key from an HTTP request.
type KeyFunc func(r *http.Request) string

// clientIP resolves the caller's address, trusting proxy headers when
// present. X-Forwarded-For may carry a chain; the first hop is the client.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, found := strings.Cut(xff, ","); found {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr without a port, keep as-is
		return r.RemoteAddr
	}
	return host
}

// IPKeyFunc keys limits by client IP.
func IPKeyFunc() KeyFunc {
	return clientIP
}

// UserKeyFunc keys limits by authenticated user ID, falling back to client
// IP for unauthenticated requests. Use it only inside Authenticate, where
// the user ID is in the request context.
func UserKeyFunc() KeyFunc {
	return func(r *http.Request) string {
		if id := GetUserID(r.Context()); id != "" {
			return "user:" + id
		}
		return "ip:" + clientIP(r)
	}
}

// RateLimiter rejects requests over the limit with 429 Too Many Requests,
// a Retry-After header in seconds and an X-RateLimit-Reset Unix timestamp.
func RateLimiter(store RateLimitStore, config RateLimitConfig, keyFunc KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, retryAfter := store.Allow(r.Context(), keyFunc(r), config)
			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			SetErrorCode(r.Context(), "rate_limit_exceeded")

			reset := time.Now().Add(time.Duration(retryAfter) * time.Second).Unix()
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
		})
	}
}
