// Package health provides liveness and readiness probes for the gateway.
//
// Each check runs in its own goroutine at a fixed interval. A check turns
// unhealthy after failureThreshold consecutive failures and healthy again
// after successThreshold consecutive passes. Optional checks are reported
// but never fail readiness: the gateway keeps serving guest features while
// the backend is unreachable.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Status values reported by the endpoints.
const (
	StatusOK        = "ok"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// CheckFunc returns nil if the checked component is healthy.
type CheckFunc func(ctx context.Context) error

type check struct {
	name             string
	timeout          time.Duration
	fn               CheckFunc
	optional         bool
	failureThreshold int
	successThreshold int

	// healthy and lastErr are read by handlers; the counters are owned by
	// the single goroutine calling run.
	healthy          atomic.Bool
	lastErr          atomic.Pointer[error]
	consecutiveFails int
	consecutiveOK    int
}

func newCheck(name string, timeout time.Duration, fn CheckFunc, optional bool) *check {
	c := &check{
		name:             name,
		timeout:          timeout,
		fn:               fn,
		optional:         optional,
		failureThreshold: 3,
		successThreshold: 1,
	}
	c.healthy.Store(true)
	return c
}

func (c *check) isHealthy() bool {
	return c.healthy.Load()
}

func (c *check) lastError() error {
	if p := c.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

func (c *check) run(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(checkCtx)
	c.lastErr.Store(&err)

	if err != nil {
		c.consecutiveOK = 0
		c.consecutiveFails++
		if c.consecutiveFails >= c.failureThreshold {
			c.healthy.Store(false)
		}
		return
	}
	c.consecutiveFails = 0
	c.consecutiveOK++
	if c.consecutiveOK >= c.successThreshold {
		c.healthy.Store(true)
	}
}

// Health manages liveness and readiness checks.
type Health struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []*check
	readiness []*check
	cancel    context.CancelFunc
}

// New creates a Health in the not-ready state.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a check of process health.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newCheck(name, timeout, fn, false))
}

// AddReadinessCheck registers a dependency that must be up to serve traffic.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newCheck(name, timeout, fn, false))
}

// AddOptionalCheck registers a dependency whose failure degrades the service
// without making it unready.
func (h *Health) AddOptionalCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newCheck(name, timeout, fn, true))
}

// Start runs every registered check at interval until Stop or ctx is done.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	checks := make([]*check, 0, len(h.liveness)+len(h.readiness))
	checks = append(checks, h.liveness...)
	checks = append(checks, h.readiness...)
	h.mu.Unlock()

	for _, c := range checks {
		go loop(ctx, c, interval)
	}
}

func loop(ctx context.Context, c *check, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.run(ctx)
		}
	}
}

// SetReady sets the manual readiness flag.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and every required
// readiness check passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	for _, c := range h.snapshot(&h.readiness) {
		if !c.optional && !c.isHealthy() {
			return false
		}
	}
	return true
}

// Stop cancels all check goroutines. It is idempotent.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

func (h *Health) snapshot(list *[]*check) []*check {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]*check(nil), (*list)...)
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeResponse(w, evaluate(h.snapshot(&h.liveness), true))
}

// ReadyEndpoint serves /readyz. Failing optional checks yield 200 with
// status "degraded".
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	res := evaluate(h.snapshot(&h.readiness), h.ready.Load())
	if !h.ready.Load() {
		res.failures["_readiness"] = "service is not ready"
		res.status = StatusUnhealthy
	}
	writeResponse(w, res)
}

type result struct {
	status   string
	failures map[string]string
}

func evaluate(checks []*check, ready bool) result {
	res := result{status: StatusOK, failures: make(map[string]string)}
	for _, c := range checks {
		if c.isHealthy() {
			continue
		}
		msg := "check is unhealthy"
		if err := c.lastError(); err != nil {
			msg = err.Error()
		}
		res.failures[c.name] = msg
		switch {
		case !c.optional || !ready:
			res.status = StatusUnhealthy
		case res.status == StatusOK:
			res.status = StatusDegraded
		}
	}
	return res
}

func writeResponse(w http.ResponseWriter, res result) {
	w.Header().Set("Content-Type", "application/json")

	resp := statusResponse{Status: res.status}
	if len(res.failures) > 0 {
		resp.Checks = res.failures
	}
	code := http.StatusOK
	if res.status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
