package rooms

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/redhat-data-and-ai/hookbot/internal/logging"
	"github.com/redhat-data-and-ai/hookbot/internal/matrix"
)

type fakeTransport struct {
	joined  []string
	err     error
	joinErr error
	joins   []string
}

func (f *fakeTransport) JoinedRooms(context.Context) ([]string, error) {
	return f.joined, f.err
}

func (f *fakeTransport) Join(_ context.Context, roomID string) error {
	f.joins = append(f.joins, roomID)
	return f.joinErr
}

func TestLoad(t *testing.T) {
	c := NewCache(&fakeTransport{joined: []string{"!a:x", "!b:x"}}, false)
	assert.False(t, c.Loaded())
	assert.False(t, c.Contains("!a:x"))

	require.NoError(t, c.Load(context.Background()))
	assert.True(t, c.Loaded())
	assert.True(t, c.Contains("!a:x"))
	assert.True(t, c.Contains("!b:x"))
	assert.False(t, c.Contains("!c:x"))
	assert.Equal(t, 2, c.Len())
}

func TestLoad_Error(t *testing.T) {
	c := NewCache(&fakeTransport{err: errors.New("unreachable")}, false)
	assert.Error(t, c.Load(context.Background()))
	assert.False(t, c.Loaded())
}

func TestHandleMembership(t *testing.T) {
	ctx := context.Background()
	c := NewCache(&fakeTransport{joined: []string{"!a:x"}}, false)
	require.NoError(t, c.Load(ctx))

	c.HandleMembership(ctx, matrix.MembershipChange{RoomID: "!b:x", Membership: matrix.MembershipJoin})
	assert.True(t, c.Contains("!b:x"))

	c.HandleMembership(ctx, matrix.MembershipChange{RoomID: "!a:x", Membership: matrix.MembershipLeave})
	assert.False(t, c.Contains("!a:x"))

	c.HandleMembership(ctx, matrix.MembershipChange{RoomID: "!b:x", Membership: matrix.MembershipBan})
	assert.False(t, c.Contains("!b:x"))

	// leaving a room that was never joined is harmless
	c.HandleMembership(ctx, matrix.MembershipChange{RoomID: "!z:x", Membership: matrix.MembershipLeave})
	assert.Equal(t, 0, c.Len())
}

func TestHandleMembership_Invite(t *testing.T) {
	ctx := context.Background()

	t.Run("ignored without autojoin", func(t *testing.T) {
		logs := observeLogs(t)
		transport := &fakeTransport{}
		c := NewCache(transport, false)
		c.HandleMembership(ctx, matrix.MembershipChange{RoomID: "!i:x", Membership: matrix.MembershipInvite, Sender: "@alice:x"})
		assert.Empty(t, transport.joins)
		assert.False(t, c.Contains("!i:x"))

		entries := logs.FilterMessage("Ignoring invite, autojoin is disabled").All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
		assert.Equal(t, "!i:x", entries[0].ContextMap()["room_id"])
		assert.Equal(t, "@alice:x", entries[0].ContextMap()["inviter"])
	})

	t.Run("accepted with autojoin", func(t *testing.T) {
		transport := &fakeTransport{}
		c := NewCache(transport, true)
		c.HandleMembership(ctx, matrix.MembershipChange{RoomID: "!i:x", Membership: matrix.MembershipInvite})
		assert.Equal(t, []string{"!i:x"}, transport.joins)
		assert.True(t, c.Contains("!i:x"))
	})

	t.Run("failed join", func(t *testing.T) {
		transport := &fakeTransport{joinErr: errors.New("forbidden")}
		c := NewCache(transport, true)
		c.HandleMembership(ctx, matrix.MembershipChange{RoomID: "!i:x", Membership: matrix.MembershipInvite})
		assert.False(t, c.Contains("!i:x"))
	})
}

func TestHandleMembership_BanIsWarned(t *testing.T) {
	logs := observeLogs(t)
	ctx := context.Background()
	c := NewCache(&fakeTransport{joined: []string{"!a:x"}}, false)
	require.NoError(t, c.Load(ctx))

	c.HandleMembership(ctx, matrix.MembershipChange{RoomID: "!a:x", Membership: matrix.MembershipBan, Sender: "@mod:x"})
	assert.False(t, c.Contains("!a:x"))

	entries := logs.FilterMessage("Banned from room").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "!a:x", entries[0].ContextMap()["room_id"])
	assert.Equal(t, "@mod:x", entries[0].ContextMap()["banned_by"])
}

// observeLogs routes the package-level logger to an in-memory core
func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	previous := logging.GetLogger()
	logging.SetLogger(logging.NewFromZap(zap.New(core), logging.DEBUG))
	t.Cleanup(func() { logging.SetLogger(previous) })
	return logs
}
