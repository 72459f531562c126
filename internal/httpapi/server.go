package httpapi

import (
	"github.com/labstack/echo/v4"

	"receiptcore/internal/workflow"
)

// NewServer builds an *echo.Echo wired with the route-access logger, IP
// rate limiter, and bearer auth in front of the submission endpoint,
// mirroring the teacher's middleware ordering (log, then rate limit, then
// auth, then the handler).
func NewServer(services *workflow.Services, requestsPerSecond float64, burst int) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(RouteAccessLoggerMiddleware)

	limiter := NewIPRateLimiter(requestsPerSecond, burst)
	e.Use(limiter.Middleware)

	h := &Handler{Services: services}
	e.GET("/healthz", h.Healthz)

	authed := e.Group("/receipts")
	authed.Use(RequireBearerToken)
	authed.POST("", h.SubmitReceipt)

	return e
}
