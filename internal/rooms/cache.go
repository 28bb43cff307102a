// Package rooms tracks which rooms the bot is currently joined to.
package rooms

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/redhat-data-and-ai/hookbot/internal/logging"
	"github.com/redhat-data-and-ai/hookbot/internal/matrix"
)

// Transport is the part of the Matrix client the cache needs
type Transport interface {
	JoinedRooms(ctx context.Context) ([]string, error)
	Join(ctx context.Context, roomID string) error
}

// Cache is the set of joined rooms. It is filled once with Load and then
// kept current by HandleMembership.
type Cache struct {
	mu       sync.RWMutex
	rooms    map[string]struct{}
	loaded   bool
	autoJoin bool
	client   Transport
	logger   *logging.Logger
}

// NewCache creates an empty cache. With autoJoin, invites are accepted.
func NewCache(client Transport, autoJoin bool) *Cache {
	return &Cache{
		rooms:    make(map[string]struct{}),
		autoJoin: autoJoin,
		client:   client,
		logger:   logging.GetLogger(),
	}
}

// Load replaces the set with the rooms the homeserver reports as joined
func (c *Cache) Load(ctx context.Context) error {
	joined, err := c.client.JoinedRooms(ctx)
	if err != nil {
		return err
	}

	set := make(map[string]struct{}, len(joined))
	for _, id := range joined {
		set[id] = struct{}{}
	}

	c.mu.Lock()
	c.rooms = set
	c.loaded = true
	c.mu.Unlock()

	c.logger.Info("Loaded joined rooms", zap.Int("rooms", len(set)))
	return nil
}

// Loaded reports whether Load has succeeded
func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Contains reports whether the bot is in the room
func (c *Cache) Contains(roomID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.rooms[roomID]
	return ok
}

// Len is the number of joined rooms
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rooms)
}

func (c *Cache) add(roomID string) {
	c.mu.Lock()
	c.rooms[roomID] = struct{}{}
	c.mu.Unlock()
}

func (c *Cache) remove(roomID string) {
	c.mu.Lock()
	delete(c.rooms, roomID)
	c.mu.Unlock()
}

// HandleMembership applies a membership change of the bot's own user.
// It has the signature of matrix.MembershipHandler.
func (c *Cache) HandleMembership(ctx context.Context, change matrix.MembershipChange) {
	switch change.Membership {
	case matrix.MembershipJoin:
		if !c.Contains(change.RoomID) {
			logging.RoomInfo(change.RoomID, "Joined room")
		}
		c.add(change.RoomID)
	case matrix.MembershipLeave:
		if c.Contains(change.RoomID) {
			logging.RoomInfo(change.RoomID, "Left room", zap.String("sender", change.Sender))
		}
		c.remove(change.RoomID)
	case matrix.MembershipBan:
		logging.RoomWarn(change.RoomID, "Banned from room", zap.String("banned_by", change.Sender))
		c.remove(change.RoomID)
	case matrix.MembershipInvite:
		if c.Contains(change.RoomID) {
			return
		}
		if !c.autoJoin {
			logging.RoomWarn(change.RoomID, "Ignoring invite, autojoin is disabled", zap.String("inviter", change.Sender))
			return
		}
		if err := c.client.Join(ctx, change.RoomID); err != nil {
			logging.RoomError(change.RoomID, "Failed to accept invite", err, zap.String("inviter", change.Sender))
			return
		}
		logging.RoomInfo(change.RoomID, "Accepted invite", zap.String("inviter", change.Sender))
		c.add(change.RoomID)
	}
}
