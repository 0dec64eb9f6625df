package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/upb/tracking-bridge/app"
	"github.com/upb/tracking-bridge/handlers"
	"github.com/upb/tracking-bridge/middleware"
	"github.com/upb/tracking-bridge/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	if deps.Config.Server.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", deps.Config.Auth.TrustedHeader},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	var db handlers.DatabaseChecker
	if deps.DB != nil {
		db = deps.DB
	}
	health := handlers.NewHealthHandler(db, deps.Sessions, deps.Logger)
	bridge := handlers.NewBridgeHandler(deps.Bridge, deps.Logger)
	proxy := handlers.NewProxyHandler(deps.Forwarder, deps.Logger)
	users := handlers.NewUserHandler(deps.Users, deps.LoginAudits, deps.Logger)

	// Health check endpoints
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	if deps.Config.Observability.MetricsEnabled && deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(deps.AuthMiddleware.Authenticate)

		r.Route("/auth", func(r chi.Router) {
			r.Get("/me", bridge.HandleAuthMe)

			r.Route("/vendor", func(r chi.Router) {
				r.Post("/login", bridge.HandleLogin)
				r.Post("/logout", bridge.HandleLogout)
				r.With(deps.AuthMiddleware.RequireAuth).Get("/me", bridge.HandleVendorMe)
			})
		})

		r.With(deps.AuthMiddleware.RequireAuth).Post("/vendor/proxy", proxy.HandleProxy)

		// User management (require admin role)
		r.Route("/users", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAdmin)
			r.Get("/", users.HandleList)
			r.Put("/{id}", users.HandleUpdate)
			r.Get("/{id}/logins", users.HandleLogins)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	return r
}
