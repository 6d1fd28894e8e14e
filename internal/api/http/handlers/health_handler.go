package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger is any dependency that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	store       Pinger
	redis       Pinger
}

// NewHealthHandler returns a new handler instance. redis may be nil when the
// deployment runs without it.
func NewHealthHandler(serviceName, version string, store, redis Pinger) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, store: store, redis: redis}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready reports readiness. Only the store is critical; redis only backs the
// AI quota, which fails open.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	depStatus := fiber.Map{}
	ready := true

	if err := h.store.Ping(ctx); err != nil {
		depStatus["store"] = err.Error()
		ready = false
	} else {
		depStatus["store"] = "ok"
	}

	switch {
	case h.redis == nil:
		depStatus["redis"] = "disabled"
	default:
		if err := h.redis.Ping(ctx); err != nil {
			depStatus["redis"] = err.Error()
		} else {
			depStatus["redis"] = "ok"
		}
	}

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"dependencies": depStatus,
		})
	}

	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": depStatus,
		},
	})
}
