// Package health provides readiness checks for external dependencies.
package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Checker reports whether a single dependency is reachable.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// checkTimeout bounds each dependency probe so one hung connection cannot
// stall the whole readiness response.
const checkTimeout = 2 * time.Second

// Report is the outcome of probing all registered dependencies.
type Report struct {
	Ready   bool              `json:"ready"`
	Details map[string]string `json:"details"`
}

// Registry holds named dependency checkers for the readiness endpoint.
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{checkers: make(map[string]Checker)}
}

// Register adds a named checker. Registering the same name twice replaces
// the previous checker.
func (r *Registry) Register(name string, c Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[name] = c
}

// Check probes every registered dependency concurrently and returns a
// Report. A dependency that errors is reported with its error message;
// healthy dependencies report "ok".
func (r *Registry) Check(ctx context.Context) Report {
	r.mu.RLock()
	names := make([]string, 0, len(r.checkers))
	for name := range r.checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	type result struct {
		name string
		err  error
	}

	results := make(chan result, len(names))
	for _, name := range names {
		checker := r.checkers[name]
		go func(name string, c Checker) {
			probeCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			results <- result{name: name, err: c.HealthCheck(probeCtx)}
		}(name, checker)
	}
	r.mu.RUnlock()

	report := Report{Ready: true, Details: make(map[string]string, len(names))}
	for range names {
		res := <-results
		if res.err != nil {
			report.Ready = false
			report.Details[res.name] = res.err.Error()
			continue
		}
		report.Details[res.name] = "ok"
	}
	return report
}
