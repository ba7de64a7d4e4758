package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spec-kit/token-gate/internal/api/http/handlers"
	"github.com/spec-kit/token-gate/internal/auth"
)

// NewApp builds the fiber app. Routing is case sensitive and strict so a path
// reaches a handler only in the exact form the gate classified.
func NewApp(name string, logger *zap.Logger) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               name,
		CaseSensitive:         true,
		StrictRouting:         true,
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler(logger),
	})
}

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health    *handlers.HealthHandler
	Auth      *handlers.AuthHandler
	Protected *handlers.ProtectedHandler
	// Metrics is served at /metrics to ROLE_ADMIN; nil disables the route.
	Metrics *prometheus.Registry
}

// RegisterRoutes wires HTTP routes. The gate runs ahead of all of them as
// global middleware.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/hello", auth.RequireRole(), cfg.Protected.Hello)
	authGroup.Get("/me", auth.RequireRole(), cfg.Protected.Me)

	app.Get("/protected", auth.RequireRole(), cfg.Protected.Hello)

	if cfg.Metrics != nil {
		metricsHandler := adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics, promhttp.HandlerOpts{}))
		app.Get("/metrics", auth.RequireRole(auth.RoleAdmin), metricsHandler)
	}
}
