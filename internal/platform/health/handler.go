// Package health serves the liveness, readiness and status endpoints.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"attesto/pkg/platform/httputil"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

// Version is set at build time via ldflags.
var Version = "dev"

// CheckFunc reports a dependency as healthy by returning nil.
type CheckFunc func(ctx context.Context) error

const checkTimeout = 2 * time.Second

const (
	statusReady    = "ready"
	statusDegraded = "degraded"
	statusNotReady = "not_ready"
)

type check struct {
	name     string
	fn       CheckFunc
	advisory bool
}

// Handler answers health requests for the claim service.
type Handler struct {
	startTime   time.Time
	environment string
	now         func() time.Time

	mu     sync.RWMutex
	checks []check
}

func New(environment string) *Handler {
	return &Handler{
		startTime:   time.Now(),
		environment: environment,
		now:         time.Now,
	}
}

// RegisterCheck adds a dependency that must be healthy for the service to
// accept claims. A later registration under the same name replaces the earlier one.
func (h *Handler) RegisterCheck(name string, fn CheckFunc) {
	h.register(check{name: name, fn: fn})
}

// RegisterAdvisory adds a dependency whose failure degrades the service
// without taking it out of rotation.
func (h *Handler) RegisterAdvisory(name string, fn CheckFunc) {
	h.register(check{name: name, fn: fn, advisory: true})
}

func (h *Handler) register(c check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.checks {
		if h.checks[i].name == c.name {
			h.checks[i] = c
			return
		}
	}
	h.checks = append(h.checks, c)
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.HandleStatus)
	r.Get("/health/live", h.HandleLiveness)
	r.Get("/health/ready", h.HandleReadiness)
}

type LivenessResponse struct {
	Status string `json:"status"`
}

// HandleLiveness answers 200 while the process is serving.
func (h *Handler) HandleLiveness(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, LivenessResponse{Status: "alive"})
}

// CheckResult is the outcome of one dependency check.
type CheckResult struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	Advisory  bool   `json:"advisory,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

type ReadinessResponse struct {
	Status string        `json:"status"`
	Checks []CheckResult `json:"checks,omitempty"`
}

// HandleReadiness runs every registered check in parallel. A failing required
// check answers 503; failing advisory checks only mark the response degraded.
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	resp := h.Readiness(r.Context())
	code := http.StatusOK
	if resp.Status == statusNotReady {
		code = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, code, resp)
}

// Readiness evaluates the registered checks. Results are sorted by name.
func (h *Handler) Readiness(ctx context.Context) ReadinessResponse {
	h.mu.RLock()
	checks := make([]check, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	results := make([]CheckResult, len(checks))
	var g errgroup.Group
	for i, c := range checks {
		g.Go(func() error {
			results[i] = h.run(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	status := statusReady
	for _, res := range results {
		if res.Status == "up" {
			continue
		}
		if !res.Advisory {
			status = statusNotReady
			break
		}
		status = statusDegraded
	}
	return ReadinessResponse{Status: status, Checks: results}
}

func (h *Handler) run(ctx context.Context, c check) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	started := h.now()
	err := c.fn(ctx)
	res := CheckResult{
		Name:      c.name,
		Status:    "up",
		Advisory:  c.advisory,
		LatencyMS: h.now().Sub(started).Milliseconds(),
	}
	if err != nil {
		res.Status = "down"
		res.Error = err.Error()
	}
	return res
}

type StatusResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Environment   string `json:"environment"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Timestamp     string `json:"timestamp"`
}

// HandleStatus reports build version and uptime.
func (h *Handler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	now := h.now()
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{
		Status:        "healthy",
		Version:       Version,
		Environment:   h.environment,
		UptimeSeconds: int64(now.Sub(h.startTime).Seconds()),
		Timestamp:     now.UTC().Format(time.RFC3339),
	})
}
