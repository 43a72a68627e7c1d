// Package rest wires the HTTP surface: routing, middleware and the
// handlers behind it.
package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"flowcanvas-backend/application/ports"
	"flowcanvas-backend/infrastructure/config"
	"flowcanvas-backend/interfaces/http/rest/handlers"
	"flowcanvas-backend/interfaces/http/rest/middleware"
	"flowcanvas-backend/pkg/observability"
)

// Router creates and configures the HTTP router
type Router struct {
	cfg      *config.Config
	auth     *handlers.AuthHandler
	diagrams *handlers.DiagramHandler
	verifier ports.TokenVerifier
	metrics  *observability.Collector
	logger   *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	diagramHandler *handlers.DiagramHandler,
	verifier ports.TokenVerifier,
	metrics *observability.Collector,
	logger *zap.Logger,
) *Router {
	return &Router{
		cfg:      cfg,
		auth:     authHandler,
		diagrams: diagramHandler,
		verifier: verifier,
		metrics:  metrics,
		logger:   logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	if rt.cfg.EnableMetrics {
		router.Use(rt.metrics.Middleware)
	}

	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   rt.cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.cfg.EnableMetrics {
		router.Handle("/metrics", rt.metrics.Handler())
	}

	// One middleware value for every authenticated group, so the rate
	// limit budgets are shared across the whole API surface.
	authenticate := middleware.Authenticate(rt.verifier, rt.logger)

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", rt.auth.SignUp)
			r.Post("/signin", rt.auth.SignIn)

			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Post("/signout", rt.auth.SignOut)
				r.Get("/me", rt.auth.Me)
			})
		})

		r.Route("/diagrams", func(r chi.Router) {
			r.Use(authenticate)

			r.Get("/", rt.diagrams.List)
			r.Post("/", rt.diagrams.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", rt.diagrams.Get)
				r.Put("/", rt.diagrams.Update)
				r.Delete("/", rt.diagrams.Delete)
				r.Post("/share", rt.diagrams.Share)
				r.Post("/nodes", rt.diagrams.AddNode)
				r.Delete("/nodes/{nodeID}", rt.diagrams.DeleteNode)
			})
		})
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

func (rt *Router) readinessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
