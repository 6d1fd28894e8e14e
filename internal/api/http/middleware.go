package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tadbeer/helpdesk/internal/observability"
	apperrors "github.com/tadbeer/helpdesk/pkg/util/errorutil"
)

const requestIDHeader = "X-Request-ID"

// MiddlewareConfig bundles settings for the global middleware chain.
type MiddlewareConfig struct {
	Logger      *zap.Logger
	Metrics     *observability.Metrics
	Timeout     time.Duration
	Production  bool
	CORSOrigins []string
	RateLimit   float64
	Burst       int
}

// RegisterMiddlewares attaches global middlewares. The request logger sits
// outside the error handler so it sees the final status code.
func RegisterMiddlewares(app *fiber.App, cfg MiddlewareConfig) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	app.Use(requestIDMiddleware())
	app.Use(observability.RequestLogger(logger))
	app.Use(metricsMiddleware(cfg.Metrics))
	app.Use(errorHandlingMiddleware(logger, cfg.Metrics, cfg.Production))
	if len(cfg.CORSOrigins) > 0 {
		app.Use(cors.New(cors.Config{
			AllowOrigins:  strings.Join(cfg.CORSOrigins, ","),
			AllowHeaders:  "Origin, Content-Type, Accept, Authorization, " + requestIDHeader,
			AllowMethods:  "GET,POST,PUT,PATCH,DELETE,OPTIONS",
			ExposeHeaders: requestIDHeader,
		}))
	}
	if cfg.RateLimit > 0 {
		app.Use(ipRateLimitMiddleware(cfg.RateLimit, cfg.Burst))
	}
	if cfg.Timeout > 0 {
		app.Use(requestTimeoutMiddleware(cfg.Timeout))
	}
}

func requestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = ulid.Make().String()
		}
		c.Locals(observability.RequestIDKey, id)
		c.Set(requestIDHeader, id)
		return c.Next()
	}
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func metricsMiddleware(metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if metrics == nil {
			return c.Next()
		}
		done := metrics.RequestStarted()
		defer done()
		start := time.Now()
		err := c.Next()
		metrics.RecordRequest(c.Route().Path, c.Method(), c.Response().StatusCode(), time.Since(start))
		return err
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics, production bool) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			var stack []byte
			if r := recover(); r != nil {
				stack = debug.Stack()
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", stack))
				err = apperrors.NewInternalError(fmt.Errorf("panic: %v", r))
			}
			if err != nil {
				domainErr := toDomainError(err)
				metrics.RecordError(c.Route().Path, c.Method(), domainErr.Code)

				body := fiber.Map{
					"code":    domainErr.Code,
					"message": domainErr.Message,
				}
				details := map[string]any{}
				for k, v := range domainErr.Details {
					details[k] = v
				}
				if domainErr.HTTPStatus >= http.StatusInternalServerError {
					logger.Error("request failed",
						zap.String("path", c.Path()),
						zap.Any("request_id", c.Locals(observability.RequestIDKey)),
						zap.Error(domainErr))
					if !production && domainErr.Err != nil {
						details["cause"] = domainErr.Err.Error()
					}
					if !production && len(stack) > 0 {
						details["stack"] = string(stack)
					}
				}
				if len(details) > 0 {
					body["details"] = details
				}
				c.Status(domainErr.HTTPStatus)
				_ = c.JSON(fiber.Map{"error": body})
				err = nil
			}
		}()
		return c.Next()
	}
}

// toDomainError also understands fiber's own errors, such as unknown routes
// and malformed bodies.
func toDomainError(err error) *apperrors.DomainError {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code := "INTERNAL_ERROR"
		switch fiberErr.Code {
		case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge:
			code = "VALIDATION_FAILED"
		case http.StatusUnauthorized:
			code = "UNAUTHORIZED"
		case http.StatusForbidden:
			code = "FORBIDDEN"
		case http.StatusNotFound:
			code = "NOT_FOUND"
		case http.StatusMethodNotAllowed:
			code = "METHOD_NOT_ALLOWED"
		case http.StatusTooManyRequests:
			code = "RATE_LIMITED"
		case http.StatusServiceUnavailable:
			code = "SERVICE_UNAVAILABLE"
		}
		return &apperrors.DomainError{Code: code, Message: fiberErr.Message, HTTPStatus: fiberErr.Code}
	}
	return apperrors.ToDomainError(err)
}

// ipRateLimitMiddleware keeps one token bucket per client IP. Idle buckets are
// pruned lazily.
func ipRateLimitMiddleware(perSecond float64, burst int) fiber.Handler {
	type bucket struct {
		lim  *rate.Limiter
		seen time.Time
	}
	const idleTTL = 5 * time.Minute
	if burst <= 0 {
		burst = int(perSecond) + 1
	}

	var (
		mu        sync.Mutex
		buckets   = make(map[string]*bucket)
		lastPrune = time.Now()
	)

	return func(c *fiber.Ctx) error {
		now := time.Now()
		ip := c.IP()

		mu.Lock()
		if now.Sub(lastPrune) > time.Minute {
			for key, b := range buckets {
				if now.Sub(b.seen) > idleTTL {
					delete(buckets, key)
				}
			}
			lastPrune = now
		}
		b, ok := buckets[ip]
		if !ok {
			b = &bucket{lim: rate.NewLimiter(rate.Limit(perSecond), burst)}
			buckets[ip] = b
		}
		b.seen = now
		allowed := b.lim.AllowN(now, 1)
		mu.Unlock()

		if !allowed {
			return apperrors.NewRateLimited("too many requests")
		}
		return c.Next()
	}
}
