package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/realty-service/internal/api/http/handlers"
	"github.com/spec-kit/realty-service/internal/auth"
	"github.com/spec-kit/realty-service/internal/domain"
	"github.com/spec-kit/realty-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Signup         *handlers.SignupHandler
	Entitlements   *handlers.EntitlementHandler
	Connections    *handlers.ConnectionHandler
	Billing        *handlers.BillingHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
	RateLimiter    fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	limited := cfg.RateLimiter
	if limited == nil {
		limited = func(c *fiber.Ctx) error { return c.Next() }
	}
	app.Post("/signup", limited, cfg.Signup.Signup)
	app.Post("/verify-otp", limited, cfg.Signup.VerifyOTP)
	app.Post("/login", limited, cfg.Signup.Login)
	app.Post("/token/refresh", limited, cfg.Signup.Refresh)

	app.Post("/payment/callback", cfg.Signup.PaymentCallback)
	app.Get("/payment/success", cfg.Signup.PaymentSuccess)
	app.Get("/entitlement/callback", cfg.Entitlements.Callback)
	app.Get("/realtors", cfg.Connections.ListRealtors)

	buyer := []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleBuyer)}
	app.Post("/entitlement/purchase", append(buyer, cfg.Entitlements.Purchase)...)
	app.Get("/entitlement", append(buyer, cfg.Entitlements.Status)...)
	app.Post("/connections", append(buyer, cfg.Connections.Create)...)
	app.Get("/connections", append(buyer, cfg.Connections.ListForBuyer)...)

	if cfg.Billing != nil {
		app.Get("/billing/portal", cfg.AuthMiddleware.Handle, auth.RequireAnyRole(), cfg.Billing.Portal)
	}

	realtor := []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleRealtor)}
	app.Get("/connection-requests", append(realtor, cfg.Connections.ListPendingForRealtor)...)
	app.Post("/connection-requests/:id", append(realtor, cfg.Connections.Respond)...)
}
