// Package delivery turns accepted webhooks into room messages: it decodes and
// renders the payload, then sends or edits messages according to the stored
// message identities.
package delivery

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	apperrors "github.com/redhat-data-and-ai/hookbot/internal/errors"
	"github.com/redhat-data-and-ai/hookbot/internal/gitlab"
	"github.com/redhat-data-and-ai/hookbot/internal/logging"
	"github.com/redhat-data-and-ai/hookbot/internal/matrix"
	"github.com/redhat-data-and-ai/hookbot/internal/render"
	"github.com/redhat-data-and-ai/hookbot/internal/store"
)

// Sender is the chat transport used for delivery
type Sender interface {
	Send(ctx context.Context, roomID string, content *matrix.Content) (string, error)
	Edit(ctx context.Context, roomID, original string, content *matrix.Content) (string, error)
	React(ctx context.Context, roomID, eventID, key string) (string, error)
	Redact(ctx context.Context, roomID, eventID, reason string) error
}

// Processor runs the decode, render and deliver pipeline for one webhook
type Processor struct {
	renderer *render.Renderer
	messages store.MessageStore
	sender   Sender
	logger   *logging.Logger
}

// NewProcessor creates a processor
func NewProcessor(renderer *render.Renderer, messages store.MessageStore, sender Sender) *Processor {
	return &Processor{
		renderer: renderer,
		messages: messages,
		sender:   sender,
		logger:   logging.GetLogger(),
	}
}

// Process handles one accepted webhook. Failures are returned to the caller;
// nothing is reported into the room.
func (p *Processor) Process(ctx context.Context, hook, roomID string, body []byte) error {
	evt, err := gitlab.Decode(hook, body)
	if err != nil {
		logging.EventError(hook, "Failed to decode webhook", err,
			zap.String("room_id", roomID),
			zap.Int("body_size", len(body)))
		return err
	}

	if job, ok := evt.(*gitlab.JobEvent); ok {
		return p.React(ctx, roomID, job)
	}

	messages, err := p.renderer.Render(evt)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		p.logger.Debug("Webhook produced no messages",
			zap.String("event_type", hook),
			zap.String("room_id", roomID))
		return nil
	}

	for _, msg := range messages {
		if err := p.Deliver(ctx, roomID, msg); err != nil {
			return err
		}
	}
	return nil
}

// Deliver sends one rendered message. A tracked message that was sent before
// is edited in place; an edit failure is returned and never turns into a
// second message. The identity record keeps pointing at the first message.
func (p *Processor) Deliver(ctx context.Context, roomID string, msg render.Message) error {
	eventType, _ := msg.Meta["event_type"].(string)
	content := matrix.NewContent(msg.Body, msg.HTML, p.renderer.Options().SendAsNotice, msg.Meta)

	existing, found, err := p.messages.GetMessage(ctx, msg.MessageKey, roomID)
	if err != nil {
		return deliveryError("Failed to look up previous message", err, roomID, eventType, msg.MessageKey)
	}

	if found {
		if _, err := p.sender.Edit(ctx, roomID, existing, content); err != nil {
			return deliveryError("Failed to edit message", err, roomID, eventType, msg.MessageKey).
				WithContext("original_event_id", existing)
		}
		logging.RoomInfo(roomID, "Edited message",
			zap.String("event_type", eventType),
			zap.String("message_key", msg.MessageKey),
			zap.String("event_id", existing))
		return nil
	}

	eventID, err := p.sender.Send(ctx, roomID, content)
	if err != nil {
		return deliveryError("Failed to send message", err, roomID, eventType, msg.MessageKey)
	}
	logging.RoomInfo(roomID, "Sent message",
		zap.String("event_type", eventType),
		zap.String("message_key", msg.MessageKey),
		zap.String("event_id", eventID))

	if msg.MessageKey == "" {
		return nil
	}
	if err := p.messages.PutMessage(ctx, msg.MessageKey, roomID, eventID); err != nil {
		return deliveryError("Failed to record sent message", err, roomID, eventType, msg.MessageKey).
			WithContext("event_id", eventID)
	}
	return nil
}

// React shows the job status as a reaction on the push message of the same
// commit and ref. Each job has at most one reaction; the previous one is
// redacted before the new one is added.
func (p *Processor) React(ctx context.Context, roomID string, job *gitlab.JobEvent) error {
	eventType := string(job.Hook())

	pushEventID, found, err := p.messages.GetMessage(ctx, job.PushKey(), roomID)
	if err != nil {
		return deliveryError("Failed to look up push message", err, roomID, eventType, job.PushKey())
	}
	if !found {
		p.logger.Debug("No push message to annotate",
			zap.String("room_id", roomID),
			zap.String("push_key", job.PushKey()),
			zap.String("job", job.BuildName))
		return nil
	}

	reactionKey := job.ReactionKey()
	previous, found, err := p.messages.GetMessage(ctx, reactionKey, roomID)
	if err != nil {
		return deliveryError("Failed to look up previous reaction", err, roomID, eventType, reactionKey)
	}
	if found {
		if err := p.sender.Redact(ctx, roomID, previous, "Job status changed"); err != nil {
			return deliveryError("Failed to retract previous reaction", err, roomID, eventType, reactionKey).
				WithContext("event_id", previous)
		}
	}

	key := fmt.Sprintf("%s %s", job.BuildStatus.Circle(), job.BuildName)
	reactionID, err := p.sender.React(ctx, roomID, pushEventID, key)
	if err != nil {
		return deliveryError("Failed to add job reaction", err, roomID, eventType, reactionKey)
	}
	logging.RoomInfo(roomID, "Updated job reaction",
		zap.String("job", job.BuildName),
		zap.String("status", string(job.BuildStatus)),
		zap.String("push_event_id", pushEventID))

	if err := p.messages.PutMessage(ctx, reactionKey, roomID, reactionID); err != nil {
		return deliveryError("Failed to record job reaction", err, roomID, eventType, reactionKey).
			WithContext("event_id", reactionID)
	}
	return nil
}

func deliveryError(message string, cause error, roomID, eventType, key string) *apperrors.AppError {
	code := apperrors.ErrDeliveryFailed
	if c := apperrors.CodeOf(cause); c == apperrors.ErrStoreFailed || c == apperrors.ErrStoreUnavailable {
		code = c
	}
	appErr := apperrors.NewErrorWithCause(code, message, cause).WithRoomContext(roomID, eventType)
	if key != "" {
		appErr.WithContext("message_key", key)
	}
	return appErr
}
