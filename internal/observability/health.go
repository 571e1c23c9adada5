package observability

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthChecker tracks readiness per dependency. The ledger is ready only
// when Postgres is reachable, NATS is connected, and recovery (snapshot
// restore plus command-log replay) has finished; readyz reports each one so
// an operator can see which stage a stuck startup is in.
type HealthChecker struct {
	startTime time.Time

	mu   sync.RWMutex
	deps map[string]bool
}

// NewHealthChecker registers the named dependencies, all initially not ready.
func NewHealthChecker(deps ...string) *HealthChecker {
	m := make(map[string]bool, len(deps))
	for _, d := range deps {
		m[d] = false
	}
	return &HealthChecker{
		startTime: time.Now(),
		deps:      m,
	}
}

// SetReady flips one dependency. Unknown names register on first use.
func (h *HealthChecker) SetReady(dep string, ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deps[dep] = ready
}

// IsReady reports whether every registered dependency is ready.
func (h *HealthChecker) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ok := range h.deps {
		if !ok {
			return false
		}
	}
	return true
}

func (h *HealthChecker) snapshot() (map[string]bool, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]bool, len(h.deps))
	ready := true
	for dep, ok := range h.deps {
		out[dep] = ok
		ready = ready && ok
	}
	return out, ready
}

// LivenessHandler answers 200 whenever the process is up; it says nothing
// about dependencies.
func (h *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "alive",
		"uptime": time.Since(h.startTime).String(),
	})
}

// ReadinessHandler answers 200 once all dependencies are ready, 503 before
// that, with the per-dependency breakdown either way.
func (h *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	deps, ready := h.snapshot()

	status := "ready"
	code := http.StatusOK
	if !ready {
		status = "not_ready"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":       status,
		"dependencies": deps,
	})
}
