package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/traceline-scm/traceline/internal/auth"
	"github.com/traceline-scm/traceline/internal/observability"
	"github.com/traceline-scm/traceline/internal/ownership"
	"github.com/traceline-scm/traceline/internal/product"
	"github.com/traceline-scm/traceline/internal/registry"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	AuthHandler      *auth.Handler
	RegistryHandler  *registry.Handler
	OwnershipHandler *ownership.Handler
	ProductHandler   *product.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with traceline defaults. Enrollment,
// liveness and metrics stay public; everything else requires a bearer token.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/accounts", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(params.AuthHandler.RequireAccount)
		params.RegistryHandler.MountRoutes(r)
		params.OwnershipHandler.MountRoutes(r)
		r.Route("/products", params.ProductHandler.MountRoutes)
	})

	return r
}
