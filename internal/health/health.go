// Package health serves the liveness and readiness checks. Every replica is
// live; only the replica that leads the market and whose dependencies answer
// is ready.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/jensholdgaard/claim-market/internal/clock"
)

// Roles reported by both checks.
const (
	RoleLeader  = "leader"
	RoleStandby = "standby"
)

// checkTimeout bounds a whole readiness check.
const checkTimeout = 5 * time.Second

// Report is the JSON body of both checks.
type Report struct {
	Status    string            `json:"status"`
	Role      string            `json:"role"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// Checker is a named dependency check, such as the store or the Redis bank.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler tracks whether this replica leads the market.
type Handler struct {
	mu       sync.RWMutex
	leading  bool
	checkers []Checker
	clock    clock.Clock
}

// NewHandler returns a Handler that starts as a standby.
func NewHandler(clk clock.Clock, checkers ...Checker) *Handler {
	return &Handler{checkers: checkers, clock: clk}
}

// SetReady is called with true once the market is loaded on the leader and
// with false when leadership ends.
func (h *Handler) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leading = ready
}

// Ready reports whether SetReady(true) is in force. Checkers are not run.
func (h *Handler) Ready() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.leading
}

func (h *Handler) role() string {
	if h.Ready() {
		return RoleLeader
	}
	return RoleStandby
}

// LivenessHandler always answers 200 while the process serves HTTP.
func (h *Handler) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, h.report("ok", nil))
	}
}

// ReadinessHandler answers 200 on the leader when every check passes and 503
// otherwise. A standby does not run its checks.
func (h *Handler) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.Ready() {
			writeJSON(w, http.StatusServiceUnavailable, h.report("not_ready", nil))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		defer cancel()

		checks, ok := h.runChecks(ctx)
		if !ok {
			writeJSON(w, http.StatusServiceUnavailable, h.report("degraded", checks))
			return
		}
		writeJSON(w, http.StatusOK, h.report("ready", checks))
	}
}

// runChecks runs every checker concurrently and reports each result.
func (h *Handler) runChecks(ctx context.Context) (map[string]string, bool) {
	results := make([]error, len(h.checkers))
	var wg sync.WaitGroup
	for i, c := range h.checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.Check(ctx)
		}()
	}
	wg.Wait()

	checks := make(map[string]string, len(h.checkers))
	ok := true
	for i, c := range h.checkers {
		if results[i] != nil {
			checks[c.Name] = results[i].Error()
			ok = false
			continue
		}
		checks[c.Name] = "ok"
	}
	return checks, ok
}

func (h *Handler) report(status string, checks map[string]string) Report {
	return Report{
		Status:    status,
		Role:      h.role(),
		Checks:    checks,
		Timestamp: h.clock.Now().UTC().Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
