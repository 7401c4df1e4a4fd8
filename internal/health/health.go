// Package health runs dependency checks for the health and readiness endpoints.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Status represents the health status of a dependency.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// Result is the outcome of one check.
type Result struct {
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// OK is the passing Result.
func OK() Result { return Result{Status: StatusOK} }

// Down builds a failing Result from err.
func Down(err error) Result {
	r := Result{Status: StatusDown}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// CheckFunc is a function that checks a dependency's health.
type CheckFunc func(ctx context.Context) Result

// Checker manages health checks for all dependencies.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	timeout time.Duration
	logger  zerolog.Logger
}

// NewChecker creates a new health checker.
func NewChecker(logger zerolog.Logger) *Checker {
	return &Checker{
		checks:  make(map[string]CheckFunc),
		timeout: 5 * time.Second,
		logger:  logger.With().Str("component", "health").Logger(),
	}
}

// Register adds a named health check.
func (c *Checker) Register(name string, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = fn
}

// Names returns the registered check names, sorted.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.checks))
	for n := range c.checks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RunAll executes all health checks concurrently.
func (c *Checker) RunAll(ctx context.Context) map[string]Result {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for k, v := range c.checks {
		checks[k] = v
	}
	c.mu.RUnlock()

	results := make(map[string]Result, len(checks))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, fn := range checks {
		wg.Add(1)
		go func(n string, f CheckFunc) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			r := f(checkCtx)
			if r.Status != StatusOK {
				c.logger.Warn().Str("check", n).Str("status", string(r.Status)).Str("error", r.Error).Msg("health check failing")
			}
			mu.Lock()
			results[n] = r
			mu.Unlock()
		}(name, fn)
	}

	wg.Wait()
	return results
}

// Overall folds check results: any down check degrades the whole service.
func Overall(results map[string]Result) Status {
	for _, r := range results {
		if r.Status == StatusDown {
			return StatusDegraded
		}
	}
	return StatusOK
}

// ReadinessHandler returns an HTTP handler for /ready (readiness).
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		results := c.RunAll(r.Context())

		resp := map[string]interface{}{
			"checks": results,
		}

		if Overall(results) == StatusOK {
			resp["status"] = "ready"
			w.WriteHeader(http.StatusOK)
		} else {
			resp["status"] = "not_ready"
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		json.NewEncoder(w).Encode(resp)
	}
}

// Pinger is anything that can verify its connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck reports down when p cannot be reached.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) Result {
		if err := p.Ping(ctx); err != nil {
			return Down(err)
		}
		return OK()
	}
}
