// Package health runs named readiness checks shared by the gateway's gRPC health service and the worker's /readyz.
package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Check returns nil when the dependency is usable.
type Check func(ctx context.Context) error

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingCheck adapts a Pinger to a Check.
func PingCheck(p Pinger) Check {
	return func(ctx context.Context) error { return p.PingContext(ctx) }
}

// checkTimeout bounds each check so one slow dependency cannot stall the probe.
const checkTimeout = 2 * time.Second

// Checker holds the registered checks.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]Check
}

// NewChecker returns a Checker with no checks; it reports ready until one is added.
func NewChecker() *Checker {
	return &Checker{checks: map[string]Check{}}
}

// Add registers fn under name, replacing any previous check of that name.
func (c *Checker) Add(name string, fn Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = fn
}

// Result is the outcome of one check; Error is empty when it passed.
type Result struct {
	Name  string `json:"name"`
	Error string `json:"error,omitempty"`
}

// Run executes every check and reports whether all passed. Results are sorted by name.
func (c *Checker) Run(ctx context.Context) ([]Result, bool) {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	checks := make(map[string]Check, len(c.checks))
	for k, v := range c.checks {
		checks[k] = v
	}
	c.mu.RUnlock()
	sort.Strings(names)

	ok := true
	results := make([]Result, 0, len(names))
	for _, name := range names {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := checks[name](cctx)
		cancel()
		r := Result{Name: name}
		if err != nil {
			ok = false
			r.Error = err.Error()
		}
		results = append(results, r)
	}
	return results, ok
}
