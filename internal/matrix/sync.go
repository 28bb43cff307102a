package matrix

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/redhat-data-and-ai/hookbot/internal/logging"
)

// memberFilter limits /sync to membership events
const memberFilter = `{"presence":{"not_types":["*"]},"account_data":{"not_types":["*"]},` +
	`"room":{"state":{"types":["m.room.member"]},"timeline":{"types":["m.room.member"],"limit":50},` +
	`"ephemeral":{"not_types":["*"]},"account_data":{"not_types":["*"]}}}`

const (
	syncMinBackoff = time.Second
	syncMaxBackoff = time.Minute
)

// MembershipHandler receives membership changes of the bot's own user
type MembershipHandler func(ctx context.Context, change MembershipChange)

// memberSyncer is a DefaultSyncer with the membership filter and a doubling
// backoff between failed polls
type memberSyncer struct {
	*mautrix.DefaultSyncer
	filter  *mautrix.Filter
	backoff time.Duration
	logger  *logging.Logger
}

func newMemberSyncer(userID id.UserID, handle MembershipHandler, logger *logging.Logger) (*memberSyncer, error) {
	var filter mautrix.Filter
	if err := json.Unmarshal([]byte(memberFilter), &filter); err != nil {
		return nil, err
	}

	s := &memberSyncer{
		DefaultSyncer: mautrix.NewDefaultSyncer(),
		filter:        &filter,
		backoff:       syncMinBackoff,
		logger:        logger,
	}
	s.OnEventType(event.StateMember, func(ctx context.Context, evt *event.Event) {
		if change, ok := ownMembership(userID, evt); ok {
			handle(ctx, change)
		}
	})
	return s, nil
}

func (s *memberSyncer) GetFilterJSON(id.UserID) *mautrix.Filter {
	return s.filter
}

func (s *memberSyncer) ProcessResponse(ctx context.Context, resp *mautrix.RespSync, since string) error {
	s.backoff = syncMinBackoff
	return s.DefaultSyncer.ProcessResponse(ctx, resp, since)
}

func (s *memberSyncer) OnFailedSync(_ *mautrix.RespSync, err error) (time.Duration, error) {
	delay := s.backoff
	s.backoff = min(s.backoff*2, syncMaxBackoff)
	s.logger.Warn("Sync failed, retrying",
		zap.Error(err),
		zap.Duration("retry_delay", delay))
	return delay, nil
}

// RunSync long-polls /sync until ctx is done, passing every membership change
// of the bot's own user to handle. Failed polls back off up to a minute.
// Call EnsureUserID first.
func (c *Client) RunSync(ctx context.Context, handle MembershipHandler) error {
	syncer, err := newMemberSyncer(c.mx.UserID, handle, c.logger)
	if err != nil {
		return err
	}
	c.mx.Syncer = syncer
	c.mx.Store = mautrix.NewMemorySyncStore()

	for {
		err := c.mx.SyncWithContext(ctx)
		if ctx.Err() != nil {
			return nil
		}

		// filter upload failures end SyncWithContext early
		delay, _ := syncer.OnFailedSync(nil, err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func ownMembership(userID id.UserID, evt *event.Event) (MembershipChange, bool) {
	if evt.StateKey == nil || id.UserID(*evt.StateKey) != userID {
		return MembershipChange{}, false
	}
	membership := evt.Content.AsMember().Membership
	if membership == "" {
		return MembershipChange{}, false
	}
	return MembershipChange{
		RoomID:     string(evt.RoomID),
		Membership: string(membership),
		Sender:     string(evt.Sender),
	}, true
}
