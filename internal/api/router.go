package api

import (
	"net/http"

	"github.com/Rrens/text-to-dashboard/internal/api/handler"
	customMiddleware "github.com/Rrens/text-to-dashboard/internal/api/middleware"
	"github.com/Rrens/text-to-dashboard/internal/config"
	"github.com/Rrens/text-to-dashboard/internal/llm"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators the router wires into handlers. Optional members
// may be nil.
type Deps struct {
	LLMRouter        *llm.Router
	DashboardService handler.DashboardService
	QueryService     handler.SQLGenerator

	// Auth is set when API tokens are required
	Auth *customMiddleware.AuthMiddleware
	// RateLimit is set when Redis is enabled
	RateLimit *customMiddleware.RateLimitMiddleware
	// Cache is set when generated SQL is cached
	Cache handler.CacheFlusher
	// Ready lists the dependencies checked by /ready
	Ready map[string]handler.Pinger
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(customMiddleware.RequestIDHeader)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)
	if cfg.Server.MiddlewareTimeout > 0 {
		r.Use(middleware.Timeout(cfg.Server.MiddlewareTimeout))
	}

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, promhttp.Handler())
	}

	queryHandler := handler.NewQueryHandler(deps.QueryService)
	dashboardHandler := handler.NewDashboardHandler(deps.DashboardService)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(deps.Ready))

		// Protected routes
		r.Group(func(r chi.Router) {
			if deps.Auth != nil {
				r.Use(deps.Auth.Authenticate)
			}
			if deps.RateLimit != nil {
				r.Use(deps.RateLimit.Limit)
			}

			r.Get("/llm-providers", handler.ListLLMProviders(deps.LLMRouter))

			r.Post("/generate-sql", queryHandler.Generate)
			r.Post("/generate-dashboard", dashboardHandler.Generate)

			r.Route("/dashboards", func(r chi.Router) {
				r.Get("/", dashboardHandler.List)
				r.Get("/{dashboardID}", dashboardHandler.Get)
				r.Get("/{dashboardID}/charts", dashboardHandler.Charts)
			})

			r.Route("/charts", func(r chi.Router) {
				r.Get("/", dashboardHandler.ListCharts)
				r.Get("/{chartID}", dashboardHandler.GetChart)
				r.Post("/{chartID}/data", dashboardHandler.ChartData)
			})

			if deps.Cache != nil {
				r.Post("/cache/flush", handler.FlushCache(deps.Cache))
			}
		})
	})

	return r
}
