package webhook

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/redhat-data-and-ai/hookbot/internal/config"
	apperrors "github.com/redhat-data-and-ai/hookbot/internal/errors"
)

// NewApp creates the fiber application serving the webhook, health and
// management endpoints
func NewApp(cfg *config.Config, webhook *Handler, health *HealthHandler, mgmt *ManagementHandler) *fiber.App {
	errHandler := apperrors.NewHandler()
	if cfg.LogLevel == "debug" {
		errHandler = apperrors.NewDevelopmentHandler()
	}

	app := fiber.New(fiber.Config{
		AppName:               "hookbot",
		DisableStartupMessage: true,
		ErrorHandler:          errHandler.FiberErrorHandler(),
		BodyLimit:             16 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	app.Get("/health", health.HandleHealth)
	app.Get("/ready", health.HandleReady)
	app.Get("/api/status", mgmt.HandleStatus)
	app.Get("/api/system", mgmt.HandleSystemInfo)
	app.Post(cfg.Server.WebhookPath, webhook.HandleWebhook)

	return app
}
