// Package health provides a concurrent health-check framework. Components
// register Check functions, and the Checker runs them in parallel to produce
// an aggregate Report. It backs the dataset and dependency preflight.
package health

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"net"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Search-Evaluation-Engine/pkg/resilience"
)

// Status represents the health state of a component or the system overall.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

// Check is a function that probes a single dependency and returns its status.
type Check func(ctx context.Context) ComponentHealth

// ComponentHealth holds the result of a single component check.
type ComponentHealth struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Report is the aggregated result of all component checks.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// Names returns the component names in ascending order.
func (r Report) Names() []string {
	return slices.Sorted(maps.Keys(r.Components))
}

// Checker manages registered health checks and runs them concurrently.
type Checker struct {
	checks  map[string]Check
	timeout time.Duration
	mu      sync.RWMutex
	logger  *slog.Logger
}

// NewChecker creates an empty Checker. Each check is bounded by timeout when
// it is positive.
func NewChecker(timeout time.Duration) *Checker {
	return &Checker{
		checks:  make(map[string]Check),
		timeout: timeout,
		logger:  slog.Default().With("component", "health"),
	}
}

// Register adds a named health check.
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Run executes all registered checks concurrently and returns an aggregated
// Report. The overall status is the worst status among all components.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := maps.Clone(c.checks)
	c.mu.RUnlock()
	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(checks)),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, check := range checks {
		wg.Add(1)
		go func(n string, ch Check) {
			defer wg.Done()
			start := time.Now()
			done := make(chan ComponentHealth, 1)
			var result ComponentHealth
			err := resilience.WithTimeout(ctx, c.timeout, n, func(ctx context.Context) error {
				done <- ch(ctx)
				return nil
			})
			if err != nil {
				result = ComponentHealth{Status: StatusDown, Message: err.Error()}
			} else {
				result = <-done
			}
			result.Latency = time.Since(start).Round(time.Millisecond).String()
			if result.Status != StatusUp {
				c.logger.Warn("health check failed", "check", n, "status", result.Status, "message", result.Message)
			}
			mu.Lock()
			report.Components[n] = result
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()
	for _, comp := range report.Components {
		switch comp.Status {
		case StatusDown:
			report.Status = StatusDown
			return report
		case StatusDegraded:
			report.Status = StatusDegraded
		}
	}
	return report
}

// FileCheck reports whether path exists and is a non-empty regular file.
func FileCheck(path string) Check {
	return func(context.Context) ComponentHealth {
		info, err := os.Stat(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return ComponentHealth{Status: StatusDown, Message: "missing: " + path}
		case err != nil:
			return ComponentHealth{Status: StatusDown, Message: err.Error()}
		case info.IsDir():
			return ComponentHealth{Status: StatusDown, Message: "is a directory: " + path}
		case info.Size() == 0:
			return ComponentHealth{Status: StatusDegraded, Message: "empty: " + path}
		}
		return ComponentHealth{Status: StatusUp, Message: fmt.Sprintf("%d bytes", info.Size())}
	}
}

// PingCheck wraps a ping function such as a Redis or PostgreSQL ping.
// Optional dependencies report degraded instead of down on failure.
func PingCheck(ping func(ctx context.Context) error, optional bool) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			status := StatusDown
			if optional {
				status = StatusDegraded
			}
			return ComponentHealth{Status: status, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// TCPCheck dials every address and succeeds if any of them accepts.
func TCPCheck(addrs []string, optional bool) Check {
	return PingCheck(func(ctx context.Context) error {
		var d net.Dialer
		var errs []error
		for _, addr := range addrs {
			conn, err := d.DialContext(ctx, "tcp", addr)
			if err == nil {
				return conn.Close()
			}
			errs = append(errs, err)
		}
		if len(errs) == 0 {
			return errors.New("no addresses configured")
		}
		return errors.Join(errs...)
	}, optional)
}
