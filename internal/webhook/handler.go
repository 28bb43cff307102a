package webhook

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/redhat-data-and-ai/hookbot/internal/config"
	apperrors "github.com/redhat-data-and-ai/hookbot/internal/errors"
	"github.com/redhat-data-and-ai/hookbot/internal/gitlab"
	"github.com/redhat-data-and-ai/hookbot/internal/logging"
	"github.com/redhat-data-and-ai/hookbot/internal/store"
	"github.com/redhat-data-and-ai/hookbot/internal/supervisor"
)

const (
	headerToken = "X-Gitlab-Token"
	headerEvent = "X-Gitlab-Event"

	acceptedBody = "202: Accepted\nWebhook processing started.\n"
)

// RoomSet reports whether the bot is in a room
type RoomSet interface {
	Contains(roomID string) bool
}

// TaskRunner starts background work
type TaskRunner interface {
	Go(name string, fn supervisor.Task) (uint64, error)
}

// Processor handles an accepted webhook in the background
type Processor interface {
	Process(ctx context.Context, hook, roomID string, body []byte) error
}

// Handler is the GitLab webhook endpoint
type Handler struct {
	secret    []byte
	botUserID string
	bindings  store.BindingStore
	rooms     RoomSet
	tasks     TaskRunner
	processor Processor
}

// NewHandler creates the webhook endpoint. botUserID is shown in the error
// asking operators to invite the bot.
func NewHandler(cfg *config.Config, botUserID string, bindings store.BindingStore, rooms RoomSet, tasks TaskRunner, processor Processor) *Handler {
	return &Handler{
		secret:    []byte(cfg.Webhook.Secret),
		botUserID: botUserID,
		bindings:  bindings,
		rooms:     rooms,
		tasks:     tasks,
		processor: processor,
	}
}

// HandleWebhook validates the request and starts processing it in the
// background. Each check rejects with its own status; the response never
// waits for delivery.
func (h *Handler) HandleWebhook(c *fiber.Ctx) error {
	token := c.Get(headerToken)
	if token == "" {
		return apperrors.NewError(apperrors.ErrMissingAuthToken, "Missing auth token header")
	}

	hook, ok := gitlab.ParseHookName(c.Get(headerEvent))
	if !ok {
		return apperrors.NewError(apperrors.ErrUnknownEventType, "Event type not specified").
			WithContext("event_header", c.Get(headerEvent))
	}

	roomID, err := h.resolveRoom(c, token)
	if err != nil {
		return err
	}

	body := c.Body()
	if len(body) == 0 {
		return apperrors.NewError(apperrors.ErrMissingBody, "Missing request body")
	}

	if !h.rooms.Contains(roomID) {
		return apperrors.NewError(apperrors.ErrRoomNotJoined,
			fmt.Sprintf("The bot is not in the room. Please invite %s to the room.", h.botUserID)).
			WithRoomContext(roomID, string(hook))
	}

	if c.Get(fiber.HeaderContentType) != fiber.MIMEApplicationJSON {
		return apperrors.NewError(apperrors.ErrUnsupportedMediaType, "").
			WithContext("content_type", c.Get(fiber.HeaderContentType))
	}

	if !json.Valid(body) {
		return apperrors.NewError(apperrors.ErrInvalidJSON, "Body is not valid JSON").
			WithRoomContext(roomID, string(hook))
	}

	// fiber reuses the request buffer once the handler returns
	payload := bytes.Clone(body)
	eventUUID := c.Get("X-Gitlab-Event-UUID")
	taskID, err := h.tasks.Go(fmt.Sprintf("%s -> %s", hook, roomID), func(ctx context.Context) error {
		return h.processor.Process(ctx, string(hook), roomID, payload)
	})
	if err != nil {
		return err
	}

	logging.RoomInfo(roomID, "Accepted webhook",
		zap.String("event_type", string(hook)),
		zap.Uint64("task_id", taskID),
		zap.String("event_uuid", eventUUID))

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(fiber.StatusAccepted).SendString(acceptedBody)
}

// resolveRoom authenticates the token. The shared secret needs the room in
// the query; a per-room token carries its own room.
func (h *Handler) resolveRoom(c *fiber.Ctx, token string) (string, error) {
	if len(h.secret) > 0 && subtle.ConstantTimeCompare([]byte(token), h.secret) == 1 {
		roomID := c.Query("room")
		if roomID == "" {
			return "", apperrors.NewError(apperrors.ErrMissingRoom,
				"No room specified. Did you forget the ?room query parameter?")
		}
		return roomID, nil
	}

	if h.bindings != nil {
		roomID, found, err := h.bindings.GetWebhookRoom(c.UserContext(), token)
		if err != nil {
			return "", err
		}
		if found {
			return roomID, nil
		}
	}
	return "", apperrors.NewError(apperrors.ErrInvalidAuthToken, "").WithContext("remote_ip", c.IP())
}
