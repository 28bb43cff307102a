package matrix

import (
	"context"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const syncBody = `{
  "next_batch": "s2",
  "rooms": {
    "join": {
      "!joined:x": {
        "timeline": {"events": [
          {"type": "m.room.member", "state_key": "@hookbot:example.org", "sender": "@hookbot:example.org",
           "content": {"membership": "join"}},
          {"type": "m.room.member", "state_key": "@alice:example.org", "sender": "@alice:example.org",
           "content": {"membership": "join"}},
          {"type": "m.room.message", "sender": "@alice:example.org", "content": {"body": "hi"}}
        ]}
      }
    },
    "leave": {
      "!kicked:x": {
        "timeline": {"events": [
          {"type": "m.room.member", "state_key": "@hookbot:example.org", "sender": "@mod:example.org",
           "content": {"membership": "ban"}}
        ]}
      }
    },
    "invite": {
      "!invited:x": {
        "invite_state": {"events": [
          {"type": "m.room.member", "state_key": "@hookbot:example.org", "sender": "@alice:example.org",
           "content": {"membership": "invite"}}
        ]}
      }
    }
  }
}`

func TestSync_MembershipChanges(t *testing.T) {
	var since []string
	var filterBody string
	var mu sync.Mutex
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/filter") {
			assert.Equal(t, "/_matrix/client/v3/user/@hookbot:example.org/filter", r.URL.Path)
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			filterBody = string(body)
			mu.Unlock()
			writeJSON(w, http.StatusOK, map[string]string{"filter_id": "7"})
			return
		}

		assert.Equal(t, "/_matrix/client/v3/sync", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("filter"))
		mu.Lock()
		since = append(since, r.URL.Query().Get("since"))
		n := len(since)
		mu.Unlock()
		if n == 1 {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(syncBody))
			return
		}
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	changes := make(chan MembershipChange, 10)
	done := make(chan error, 1)
	go func() {
		done <- client.RunSync(ctx, func(_ context.Context, c MembershipChange) {
			changes <- c
		})
	}()

	var got []MembershipChange
	for len(got) < 3 {
		select {
		case c := <-changes:
			got = append(got, c)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for membership changes")
		}
	}
	// the next poll carries the batch token
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(since) >= 2
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	sort.Slice(got, func(i, j int) bool { return got[i].RoomID < got[j].RoomID })
	assert.Equal(t, []MembershipChange{
		{RoomID: "!invited:x", Membership: MembershipInvite, Sender: "@alice:example.org"},
		{RoomID: "!joined:x", Membership: MembershipJoin, Sender: "@hookbot:example.org"},
		{RoomID: "!kicked:x", Membership: MembershipBan, Sender: "@mod:example.org"},
	}, got)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, filterBody, "m.room.member")
	require.GreaterOrEqual(t, len(since), 2)
	assert.Equal(t, "", since[0])
	assert.Equal(t, "s2", since[1])
}

func TestRunSync_StopsWhenCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, client.RunSync(ctx, func(context.Context, MembershipChange) {
		t.Error("no changes expected")
	}))
}
