package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/warehouse-console/internal/auth"
	"github.com/odyssey-erp/warehouse-console/internal/authz"
	"github.com/odyssey-erp/warehouse-console/internal/dashboard"
	"github.com/odyssey-erp/warehouse-console/internal/observability"
	"github.com/odyssey-erp/warehouse-console/internal/platform/httpx"
	"github.com/odyssey-erp/warehouse-console/internal/shared"
	"github.com/odyssey-erp/warehouse-console/jobs"
	"github.com/odyssey-erp/warehouse-console/web"
)

// LandingPath is where authenticated visitors land when a route is denied.
const LandingPath = "/"

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Routes           *authz.RouteTable
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	AuthHandler      *auth.Handler
	DashboardHandler *dashboard.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with console defaults. Everything but
// auth, health, metrics, job health and static assets sits behind the route
// guard.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	r.Group(func(r chi.Router) {
		for _, mw := range MiddlewareStack(MiddlewareConfig{
			Logger:         params.Logger,
			Config:         params.Config,
			SessionManager: params.SessionManager,
			CSRFManager:    params.CSRFManager,
			Metrics:        params.Metrics,
		}) {
			r.Use(mw)
		}
		r.Use(chimw.Logger)

		r.Route("/auth", params.AuthHandler.MountRoutes)

		r.Group(func(r chi.Router) {
			r.Use(authz.RouteGuard{
				Table:       params.Routes,
				Source:      shared.IdentitySource,
				LoginPath:   auth.LoginPath,
				LandingPath: LandingPath,
				Logger:      params.Logger,
				Observe:     params.Metrics.ObserveRouteDecision,
			}.Middleware)
			params.DashboardHandler.MountRoutes(r)
		})
	})

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
