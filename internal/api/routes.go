// Package api wires the HTTP router and server.
package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/calebhrenchir/granted.gg-sub001/internal/handler"
	"github.com/calebhrenchir/granted.gg-sub001/internal/metrics"
	"github.com/calebhrenchir/granted.gg-sub001/internal/middleware"
)

// Handlers bundles the route handlers for registration.
type Handlers struct {
	Health   *handler.HealthHandler
	Link     *handler.LinkHandler
	Click    *handler.ClickHandler
	Checkout *handler.CheckoutHandler
	Withdraw *handler.WithdrawHandler
	Account  *handler.AccountHandler
}

// SetupRoutes configures all API routes.
func SetupRoutes(
	router *gin.Engine,
	h Handlers,
	m *metrics.Metrics,
	jwtSecret string,
	maxClicksPerMin int,
	rateLimitWindow time.Duration,
	done <-chan struct{},
) {
	router.Use(m.Middleware())

	router.GET("/health", h.Health.Health)
	router.GET("/metrics", m.Handler())

	// Public buyer surface.
	public := router.Group("")
	public.GET("/l/:slug", h.Link.GetBySlug)
	public.POST("/l/:slug/checkout", h.Checkout.Create)
	public.POST("/checkout/:session/confirm", h.Checkout.Confirm)

	click := router.Group("")
	click.Use(middleware.RateLimiter(maxClicksPerMin, rateLimitWindow, done))
	click.POST("/l/:slug/click", h.Click.Record)

	// Authenticated seller surface.
	seller := router.Group("")
	seller.Use(middleware.Auth(jwtSecret))
	seller.POST("/links", h.Link.Create)
	seller.GET("/links", h.Link.List)
	seller.DELETE("/links/:id", h.Link.Delete)
	seller.POST("/links/:id/recompute", h.Link.Recompute)

	seller.GET("/balance", h.Withdraw.Balance)
	seller.POST("/withdraw", h.Withdraw.Withdraw)

	seller.PUT("/account/onboarding", h.Account.UpdateOnboarding)
	seller.POST("/account", h.Account.Create)
	seller.POST("/account/remediate", h.Account.Remediate)
	seller.POST("/account/ssn", h.Account.SubmitSSN)
	seller.PUT("/account/bank", h.Account.UpdateBank)
}
