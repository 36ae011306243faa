package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// ready gates the readiness probe during graceful shutdown. It starts true so
// a process that never calls SetReady behaves like before.
var ready atomic.Bool

func init() {
	ready.Store(true)
}

// SetReady flips the readiness gate. Shutdown sets it false so load balancers
// drain the instance before the listener closes.
func SetReady(v bool) {
	ready.Store(v)
}

// Checker represents dependencies that can be probed for readiness.
type Checker interface {
	PingCatalog(ctx context.Context, timeout time.Duration) error
	PingRedis(ctx context.Context, timeout time.Duration) error
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checker        Checker
	CatalogTimeout time.Duration
	RedisTimeout   time.Duration
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency probes. A disabled dependency
// reports "disabled" and does not fail the probe.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !ready.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	if h.Checker == nil {
		http.Error(w, "dependencies unavailable", http.StatusServiceUnavailable)
		return
	}
	ctx := r.Context()
	catalogStatus := "ok"
	if err := h.Checker.PingCatalog(ctx, h.catalogTimeout()); err != nil {
		catalogStatus = statusFor(err)
	}
	redisStatus := "ok"
	if err := h.Checker.PingRedis(ctx, h.redisTimeout()); err != nil {
		redisStatus = statusFor(err)
	}
	status := map[string]string{
		"catalog": catalogStatus,
		"redis":   redisStatus,
	}
	if failed(catalogStatus) || failed(redisStatus) {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

type disabledError struct{}

func (disabledError) Error() string { return "disabled" }

// Disabled is returned by checkers for dependencies that are intentionally
// not configured.
var Disabled error = disabledError{}

func statusFor(err error) string {
	if err == Disabled {
		return "disabled"
	}
	return err.Error()
}

func failed(status string) bool {
	return status != "ok" && status != "disabled"
}

func (h Handler) catalogTimeout() time.Duration {
	if h.CatalogTimeout <= 0 {
		return 500 * time.Millisecond
	}
	return h.CatalogTimeout
}

func (h Handler) redisTimeout() time.Duration {
	if h.RedisTimeout <= 0 {
		return 300 * time.Millisecond
	}
	return h.RedisTimeout
}
