package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	claimsHandler "attesto/internal/claims/handler"
	"attesto/internal/platform/health"
	"attesto/internal/platform/tracer"
	"attesto/pkg/platform/middleware/auth"
	"attesto/pkg/platform/middleware/request"
	"attesto/pkg/platform/validation"
)

// requestTimeout bounds a whole request, including the identity directory round
// trips and credential issuance.
const requestTimeout = 30 * time.Second

// Routes is what the router mounts. Nil fields are left unmounted.
type Routes struct {
	Claims  *claimsHandler.Handler
	Health  *health.Handler
	Metrics http.Handler
	Latency *request.Metrics
}

// NewRouter wires all public endpoints with middleware.
func NewRouter(routes Routes, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(tracer.Propagate)
	r.Use(request.RequestTime)
	r.Use(request.Logger(logger))
	if routes.Latency != nil {
		r.Use(routes.Latency.Middleware)
	}
	r.Use(request.Timeout(requestTimeout))
	r.Use(request.BodyLimit(validation.MaxBodySize, logger))
	r.Use(request.ContentTypeJSON)

	if routes.Health != nil {
		routes.Health.Register(r)
	}
	if routes.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", routes.Metrics)
	}

	if routes.Claims != nil {
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAccessToken(logger))
			routes.Claims.Register(r)
		})
	}

	return r
}
