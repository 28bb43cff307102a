package webhook

import (
	"github.com/gofiber/fiber/v2"

	"github.com/redhat-data-and-ai/hookbot/internal/config"
	"github.com/redhat-data-and-ai/hookbot/internal/gitlab"
	"github.com/redhat-data-and-ai/hookbot/internal/supervisor"
)

// StatsSource exposes the background task counters
type StatsSource interface {
	Stats() supervisor.Stats
}

// RoomCounter reports how many rooms the bot is in
type RoomCounter interface {
	Len() int
}

// TemplateLister lists the registered templates
type TemplateLister interface {
	TemplateNames() []string
}

// ManagementHandler handles management and introspection endpoints
type ManagementHandler struct {
	config    *config.Config
	tasks     StatsSource
	rooms     RoomCounter
	templates TemplateLister
}

// NewManagementHandler creates a new management handler
func NewManagementHandler(cfg *config.Config, tasks StatsSource, rooms RoomCounter, templates TemplateLister) *ManagementHandler {
	return &ManagementHandler{
		config:    cfg,
		tasks:     tasks,
		rooms:     rooms,
		templates: templates,
	}
}

// HandleStatus returns the runtime state of webhook processing
func (h *ManagementHandler) HandleStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"tasks":         h.tasks.Stats(),
		"joined_rooms":  h.rooms.Len(),
		"store_backend": h.config.StoreBackend(),
		"templates":     h.templates.TemplateNames(),
	})
}

// HandleSystemInfo returns static information about the service
func (h *ManagementHandler) HandleSystemInfo(c *fiber.Ctx) error {
	hooks := make([]string, 0, len(gitlab.Hooks))
	for _, hook := range gitlab.Hooks {
		hooks = append(hooks, string(hook))
	}

	return c.JSON(fiber.Map{
		"service":         serviceName,
		"version":         version,
		"webhook_path":    h.config.Server.WebhookPath,
		"webhook_url":     h.config.WebhookURL(),
		"supported_hooks": hooks,
		"messages": fiber.Map{
			"send_as_notice": h.config.Messages.SendAsNotice,
			"hide_details":   h.config.Messages.HideDetails,
			"time_format":    h.config.Messages.TimeFormat,
		},
		"task_timeout":     h.config.Tasks.TaskTimeout.String(),
		"shutdown_timeout": h.config.Tasks.ShutdownTimeout.String(),
		"endpoints": []string{
			"/health",
			"/ready",
			h.config.Server.WebhookPath,
			"/api/status",
			"/api/system",
		},
	})
}
