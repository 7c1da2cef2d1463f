package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/chiffre-app/chiffre/internal/auth"
	"github.com/chiffre-app/chiffre/internal/contrib"
	"github.com/chiffre-app/chiffre/internal/enterprise"
	"github.com/chiffre-app/chiffre/internal/observability"
	"github.com/chiffre-app/chiffre/internal/rates"
	"github.com/chiffre-app/chiffre/internal/shared"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	SessionManager    *shared.SessionManager
	AuthHandler       *auth.Handler
	EnterpriseHandler *enterprise.Handler
	ContribHandler    *contrib.Handler
	RatesHandler      *rates.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(RequireUser)

		r.Route("/enterprises", func(r chi.Router) {
			params.EnterpriseHandler.MountRoutes(r)
			params.ContribHandler.MountEnterpriseRoutes(r)
		})
		r.Route("/contributions", params.ContribHandler.MountRoutes)

		// Reads on the rate table are open to any signed-in user; mutations
		// stay behind the admin gate inside the handler mount.
		r.Route("/rates", func(r chi.Router) {
			params.RatesHandler.MountReadRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin(params.Config))
				params.RatesHandler.MountAdminRoutes(r)
			})
		})
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
