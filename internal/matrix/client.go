// Package matrix wraps mautrix for the parts of the Matrix client-server API
// the bot needs: sending, editing and reacting to messages, redactions, room
// membership and the /sync stream.
package matrix

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	apperrors "github.com/redhat-data-and-ai/hookbot/internal/errors"
	"github.com/redhat-data-and-ai/hookbot/internal/logging"
)

// ClientConfig configures a Client
type ClientConfig struct {
	HomeserverURL string
	AccessToken   string
	UserID        string // resolved with whoami when empty
	HTTPClient    *http.Client
	// MaxConcurrentRequests bounds requests in flight, /sync excluded
	MaxConcurrentRequests int64
	Retry                 *apperrors.RetryConfig
}

// Client talks to one homeserver as one user
type Client struct {
	mx     *mautrix.Client
	sem    *semaphore.Weighted
	retry  apperrors.RetryConfig
	logger *logging.Logger
}

// NewClient validates the configuration and creates a client
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.HomeserverURL == "" {
		return nil, apperrors.NewValidationError("matrix.homeserver_url", "Field is required")
	}
	if cfg.AccessToken == "" {
		return nil, apperrors.NewValidationError("matrix.access_token", "Field is required")
	}

	mx, err := mautrix.NewClient(cfg.HomeserverURL, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, apperrors.NewValidationError("matrix.homeserver_url", err.Error())
	}
	if cfg.HTTPClient != nil {
		mx.Client = cfg.HTTPClient
	}
	// retries go through RetryWithContext
	mx.DefaultHTTPRetries = 0

	limit := cfg.MaxConcurrentRequests
	if limit < 1 {
		limit = 1
	}
	retry := apperrors.MatrixRetryConfig()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}

	return &Client{
		mx:     mx,
		sem:    semaphore.NewWeighted(limit),
		retry:  retry,
		logger: logging.GetLogger(),
	}, nil
}

// UserID is the bot's own user id
func (c *Client) UserID() string {
	return string(c.mx.UserID)
}

// EnsureUserID resolves the user id with whoami when it was not configured.
// Call it before the client is shared.
func (c *Client) EnsureUserID(ctx context.Context) (string, error) {
	if c.mx.UserID != "" {
		return string(c.mx.UserID), nil
	}
	userID, err := c.WhoAmI(ctx)
	if err != nil {
		return "", err
	}
	c.mx.UserID = id.UserID(userID)
	return userID, nil
}

// WhoAmI returns the user id owning the access token
func (c *Client) WhoAmI(ctx context.Context) (string, error) {
	var resp *mautrix.RespWhoami
	err := c.call(ctx, "whoami", func() (err error) {
		resp, err = c.mx.Whoami(ctx)
		return err
	})
	if err != nil {
		return "", err
	}
	return string(resp.UserID), nil
}

// JoinedRooms lists the rooms the bot is joined to
func (c *Client) JoinedRooms(ctx context.Context) ([]string, error) {
	var resp *mautrix.RespJoinedRooms
	err := c.call(ctx, "joined_rooms", func() (err error) {
		resp, err = c.mx.JoinedRooms(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	rooms := make([]string, 0, len(resp.JoinedRooms))
	for _, roomID := range resp.JoinedRooms {
		rooms = append(rooms, string(roomID))
	}
	return rooms, nil
}

// Join joins a room the bot was invited to
func (c *Client) Join(ctx context.Context, roomID string) error {
	return c.call(ctx, "join", func() error {
		_, err := c.mx.JoinRoomByID(ctx, id.RoomID(roomID))
		return err
	})
}

// Send sends a new message and returns its event id
func (c *Client) Send(ctx context.Context, roomID string, content *Content) (string, error) {
	msg := content.MessageEventContent
	return c.sendEvent(ctx, "send", roomID, event.EventMessage, eventContent(&msg, content.Meta))
}

// Edit replaces the content of the original message. It returns the id of
// the edit event; the original id stays the one to edit next time.
func (c *Client) Edit(ctx context.Context, roomID, original string, content *Content) (string, error) {
	return c.sendEvent(ctx, "edit", roomID, event.EventMessage, eventContent(content.editOf(original), content.Meta))
}

// React annotates an event with key and returns the reaction's event id
func (c *Client) React(ctx context.Context, roomID, eventID, key string) (string, error) {
	content := &event.ReactionEventContent{
		RelatesTo: event.RelatesTo{
			Type:    event.RelAnnotation,
			EventID: id.EventID(eventID),
			Key:     key,
		},
	}
	return c.sendEvent(ctx, "react", roomID, event.EventReaction, content)
}

// Redact removes an event, used to retract reactions
func (c *Client) Redact(ctx context.Context, roomID, eventID, reason string) error {
	return c.callWithRetry(ctx, "redact", func() error {
		_, err := c.mx.RedactEvent(ctx, id.RoomID(roomID), id.EventID(eventID), mautrix.ReqRedact{Reason: reason})
		return err
	})
}

// sendEvent sends an event under a fresh transaction id. Retries reuse the
// id so the homeserver deduplicates them.
func (c *Client) sendEvent(ctx context.Context, op, roomID string, eventType event.Type, content any) (string, error) {
	txnID := newTxnID()

	var resp *mautrix.RespSendEvent
	err := c.callWithRetry(ctx, op, func() (err error) {
		resp, err = c.mx.SendMessageEvent(ctx, id.RoomID(roomID), eventType, content,
			mautrix.ReqSendEvent{TransactionID: txnID})
		return err
	})
	if err != nil {
		return "", err
	}
	if resp == nil || resp.EventID == "" {
		return "", apperrors.NewError(apperrors.ErrMatrixAPIFailed, fmt.Sprintf("Matrix %s returned no event id", op)).
			WithContext("room_id", roomID)
	}
	return string(resp.EventID), nil
}

func (c *Client) callWithRetry(ctx context.Context, op string, fn func() error) error {
	return apperrors.RetryWithContext(ctx, func() error {
		return c.call(ctx, op, fn)
	}, c.retry)
}

// call runs one request while holding a concurrency slot
func (c *Client) call(ctx context.Context, op string, fn func() error) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return apperrors.NewErrorWithCause(apperrors.ErrMatrixTimeout, fmt.Sprintf("Matrix %s not started", op), err)
	}
	defer c.sem.Release(1)

	if err := fn(); err != nil {
		return c.classify(op, err)
	}
	return nil
}

// classify turns mautrix errors into MATRIX_* AppErrors, with rate limits
// carrying the server's retry delay
func (c *Client) classify(op string, err error) error {
	var httpErr mautrix.HTTPError
	if !stderrors.As(err, &httpErr) || httpErr.Response == nil {
		return transportError(op, err)
	}

	var errcode, message string
	var retryAfter time.Duration
	if httpErr.RespError != nil {
		errcode = httpErr.RespError.ErrCode
		message = httpErr.RespError.Err
		if ms, ok := httpErr.RespError.ExtraData["retry_after_ms"].(float64); ok && ms > 0 {
			retryAfter = time.Duration(ms) * time.Millisecond
		}
	} else {
		message = http.StatusText(httpErr.Response.StatusCode)
	}

	appErr := apperrors.NewMatrixError(op, httpErr.Response.StatusCode, errcode, message)
	if retryAfter > 0 {
		appErr.WithRetryAfter(retryAfter)
	}
	c.logger.Debug("Matrix request failed",
		zap.String("operation", op),
		zap.Int("status", httpErr.Response.StatusCode),
		zap.String("errcode", errcode))
	return appErr
}

func transportError(op string, err error) *apperrors.AppError {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return apperrors.NewErrorWithCause(apperrors.ErrMatrixTimeout, fmt.Sprintf("Matrix %s timed out", op), err)
	}
	appErr := apperrors.NewErrorWithCause(apperrors.ErrMatrixAPIFailed, fmt.Sprintf("Matrix %s request failed", op), err)
	if apperrors.IsTemporaryError(err) {
		appErr.Retry.Retryable = true
	}
	return appErr
}

func newTxnID() string {
	return "hookbot-" + uuid.NewString()
}
