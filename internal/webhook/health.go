package webhook

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/redhat-data-and-ai/hookbot/internal/config"
)

const (
	serviceName = "hookbot"
	version     = "v1.0.0"
)

// Readiness is what the ready probe checks
type Readiness interface {
	// Loaded reports whether the joined rooms were fetched
	Loaded() bool
}

// Pinger checks the message store
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	config    *config.Config
	rooms     Readiness
	store     Pinger
	tasks     StatsSource
	startTime time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(cfg *config.Config, rooms Readiness, store Pinger, tasks StatsSource) *HealthHandler {
	return &HealthHandler{
		config:    cfg,
		rooms:     rooms,
		store:     store,
		tasks:     tasks,
		startTime: time.Now(),
	}
}

// HandleHealth reports liveness. It does not touch the homeserver or the store.
func (h *HealthHandler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":         "healthy",
		"service":        serviceName,
		"version":        version,
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"store_backend":  h.config.StoreBackend(),
		"webhook_secret": h.config.HasWebhookSecret(),
	})
}

// HandleReady returns 503 until the joined rooms are known, while the store
// is unreachable and once shutdown has started
func (h *HealthHandler) HandleReady(c *fiber.Ctx) error {
	ready := fiber.Map{
		"ready":     true,
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	notReady := func(reason string) error {
		ready["ready"] = false
		ready["reason"] = reason
		return c.Status(fiber.StatusServiceUnavailable).JSON(ready)
	}

	if h.tasks != nil && h.tasks.Stats().Draining {
		return notReady("Shutting down")
	}
	if !h.rooms.Loaded() {
		return notReady("Joined rooms not loaded yet")
	}
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			return notReady("Message store unreachable")
		}
	}

	return c.JSON(ready)
}
