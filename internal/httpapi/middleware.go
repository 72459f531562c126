// Package httpapi is the thin HTTP adapter the orchestrator is driven
// from: bearer auth, route-access logging, and rate-limiting middleware
// fronting a receipt submission endpoint. The HTTP surface itself is an
// external collaborator with a fixed-but-unspecified interface; this
// package exists only so the orchestrator has a caller, adapted from
// pkg/echo-middleware's RequireBearerToken/RouteAccessLoggerMiddleware/
// RateLimiterMiddleware.
package httpapi

import (
	"crypto/subtle"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
)

// EnvBearerToken is the environment variable RequireBearerToken reads its
// expected token from.
const EnvBearerToken = "RECEIPTCORE_BEARER_TOKEN"

const authRealm = "receiptcore-intake"

var (
	tokenOnce sync.Once
	cachedTok string
)

// RequireBearerToken validates Authorization: Bearer <token> against
// EnvBearerToken. On failure it responds 401.
func RequireBearerToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		exp := expectedToken()
		if exp == "" {
			return unauthorized(c)
		}

		auth := strings.TrimSpace(c.Request().Header.Get("Authorization"))
		if auth == "" {
			return unauthorized(c)
		}

		const bearer = "bearer "
		if len(auth) < len(bearer) || !strings.EqualFold(auth[:len(bearer)], bearer) {
			return unauthorized(c)
		}
		received := strings.TrimSpace(auth[len(bearer):])
		if received == "" {
			return unauthorized(c)
		}

		if subtle.ConstantTimeCompare([]byte(received), []byte(exp)) != 1 {
			return unauthorized(c)
		}

		return next(c)
	}
}

func expectedToken() string {
	tokenOnce.Do(func() {
		cachedTok = strings.TrimSpace(os.Getenv(EnvBearerToken))
	})
	return cachedTok
}

func unauthorized(c echo.Context) error {
	logRouteAccess(c, tl.Info, "Unauthorized access attempt", palette.Yellow)
	c.Response().Header().Set("WWW-Authenticate", `Bearer realm="`+authRealm+`"`)
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
}

// RouteAccessLoggerMiddleware logs every request at entry and exit.
func RouteAccessLoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		defer logRouteAccess(c, tl.Info1, "Route accessed", palette.Green)
		logRouteAccess(c, tl.Info, "Accessing route", palette.Blue)
		return next(c)
	}
}

func logRouteAccess(c echo.Context, level tl.LogLevel, action string, color palette.Colorizer) {
	tl.Log(level, color, "%s: Method='%s', Path='%s', ClientIP='%s'", action, c.Request().Method, c.Path(), c.RealIP())
}

// ipLimiter is a per-client-IP token bucket, distinct from
// internal/ratelimit's per-(user,provider) admission control: this one
// protects the HTTP surface itself from abusive request volume, the same
// concern pkg/echo-middleware/rate-limiter.go addresses for the teacher's
// API.
type ipLimiter struct {
	mu       sync.Mutex
	clients  map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewIPRateLimiter builds an ipLimiter allowing requestsPerSecond sustained
// with the given burst, per client IP. Each IP's entry is evicted one minute
// after it was created, whether or not it is still in use.
func NewIPRateLimiter(requestsPerSecond float64, burst int) *ipLimiter {
	return &ipLimiter{
		clients: make(map[string]*rate.Limiter),
		rate:    rate.Limit(requestsPerSecond),
		burst:   burst,
	}
}

func (l *ipLimiter) limiterFor(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.clients[ip]
	if !exists {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.clients[ip] = limiter
		go func() {
			time.Sleep(time.Minute)
			l.mu.Lock()
			delete(l.clients, ip)
			l.mu.Unlock()
		}()
	}
	return limiter
}

// Middleware returns the echo.MiddlewareFunc enforcing l against each
// request's client IP.
func (l *ipLimiter) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !l.limiterFor(c.RealIP()).Allow() {
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
		}
		return next(c)
	}
}
