package matrix

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/redhat-data-and-ai/hookbot/internal/errors"
)

const testToken = "syt_test"

// sentMessage is the wire shape of m.room.message events the client sends
type sentMessage struct {
	MsgType       string         `json:"msgtype"`
	Body          string         `json:"body"`
	Format        string         `json:"format"`
	FormattedBody string         `json:"formatted_body"`
	NewContent    *sentMessage   `json:"m.new_content"`
	RelatesTo     *sentRelation  `json:"m.relates_to"`
	Meta          map[string]any `json:"hookbot.gitlab.webhook"`
}

type sentRelation struct {
	RelType string `json:"rel_type"`
	EventID string `json:"event_id"`
	Key     string `json:"key"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	retry := apperrors.MatrixRetryConfig()
	retry.InitialDelay = time.Millisecond
	retry.MaxDelay = 5 * time.Millisecond
	retry.Jitter = false

	client, err := NewClient(ClientConfig{
		HomeserverURL:         server.URL + "/",
		AccessToken:           testToken,
		UserID:                "@hookbot:example.org",
		MaxConcurrentRequests: 4,
		Retry:                 &retry,
	})
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(ClientConfig{AccessToken: "x"})
	assert.Error(t, err)

	_, err = NewClient(ClientConfig{HomeserverURL: "https://matrix.example.org"})
	assert.Error(t, err)

	c, err := NewClient(ClientConfig{HomeserverURL: "https://matrix.example.org/", AccessToken: "x"})
	require.NoError(t, err)
	assert.Empty(t, c.UserID())
}

func TestSend(t *testing.T) {
	var got sentMessage
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.True(t, strings.HasPrefix(r.URL.Path, "/_matrix/client/v3/rooms/!abc:example.org/send/m.room.message/hookbot-"), r.URL.Path)
		assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]string{"event_id": "$sent"})
	})

	content := NewContent("**hi**", "<strong>hi</strong>", true, map[string]any{"event_type": "Push Hook"})
	id, err := client.Send(context.Background(), "!abc:example.org", content)
	require.NoError(t, err)
	assert.Equal(t, "$sent", id)

	assert.Equal(t, "m.notice", got.MsgType)
	assert.Equal(t, "**hi**", got.Body)
	assert.Equal(t, "org.matrix.custom.html", got.Format)
	assert.Equal(t, "<strong>hi</strong>", got.FormattedBody)
	assert.Equal(t, map[string]any{"event_type": "Push Hook"}, got.Meta)
	assert.Nil(t, got.RelatesTo)
}

func TestNewContent_Text(t *testing.T) {
	c := NewContent("b", "h", false, nil)
	assert.Equal(t, MsgTypeText, c.MsgType)
	assert.Equal(t, FormatHTML, c.Format)
}

func TestEdit(t *testing.T) {
	var got sentMessage
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]string{"event_id": "$edit"})
	})

	content := NewContent("passed", "<p>passed</p>", true, map[string]any{"event_type": "Pipeline Hook"})
	id, err := client.Edit(context.Background(), "!abc:example.org", "$original", content)
	require.NoError(t, err)
	assert.Equal(t, "$edit", id)

	assert.Equal(t, "* passed", got.Body)
	assert.Equal(t, "* <p>passed</p>", got.FormattedBody)
	require.NotNil(t, got.RelatesTo)
	assert.Equal(t, "m.replace", got.RelatesTo.RelType)
	assert.Equal(t, "$original", got.RelatesTo.EventID)
	require.NotNil(t, got.NewContent)
	assert.Equal(t, "passed", got.NewContent.Body)
	assert.Nil(t, got.NewContent.RelatesTo)
	assert.Equal(t, "Pipeline Hook", got.Meta["event_type"])

	// the caller's content is not modified
	assert.Equal(t, "passed", content.Body)
	assert.Nil(t, content.RelatesTo)
	assert.Nil(t, content.NewContent)
}

func TestReactAndRedact(t *testing.T) {
	var reaction struct {
		RelatesTo sentRelation `json:"m.relates_to"`
	}
	var redactPath, redactReason string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/send/m.reaction/hookbot-"):
			require.NoError(t, json.NewDecoder(r.Body).Decode(&reaction))
			writeJSON(w, http.StatusOK, map[string]string{"event_id": "$reaction"})
		case strings.Contains(r.URL.Path, "/redact/"):
			redactPath = r.URL.Path
			var body struct {
				Reason string `json:"reason"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			redactReason = body.Reason
			writeJSON(w, http.StatusOK, map[string]string{"event_id": "$redaction"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	ctx := context.Background()
	id, err := client.React(ctx, "!abc:example.org", "$push", "🟢 test")
	require.NoError(t, err)
	assert.Equal(t, "$reaction", id)
	assert.Equal(t, sentRelation{RelType: "m.annotation", EventID: "$push", Key: "🟢 test"}, reaction.RelatesTo)

	require.NoError(t, client.Redact(ctx, "!abc:example.org", "$reaction", "job status changed"))
	assert.True(t, strings.HasPrefix(redactPath, "/_matrix/client/v3/rooms/!abc:example.org/redact/$reaction/"), redactPath)
	assert.Equal(t, "job status changed", redactReason)
}

func TestSend_RetriesRateLimitWithSameTransaction(t *testing.T) {
	var calls atomic.Int32
	var mu sync.Mutex
	var paths []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		if calls.Add(1) == 1 {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"errcode": "M_LIMIT_EXCEEDED", "error": "Too many requests", "retry_after_ms": 1,
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"event_id": "$sent"})
	})

	id, err := client.Send(context.Background(), "!abc:example.org", NewContent("x", "x", true, nil))
	require.NoError(t, err)
	assert.Equal(t, "$sent", id)
	require.Len(t, paths, 2)
	assert.Equal(t, paths[0], paths[1])
}

func TestSend_ForbiddenIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusForbidden, map[string]string{"errcode": "M_FORBIDDEN", "error": "not in room"})
	})

	_, err := client.Send(context.Background(), "!abc:example.org", NewContent("x", "x", true, nil))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrMatrixAPIFailed, apperrors.CodeOf(err))
	assert.Equal(t, int32(1), calls.Load())

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "M_FORBIDDEN", appErr.Context["errcode"])
	assert.Equal(t, http.StatusForbidden, appErr.Context["status"])
}

func TestSend_ServerErrorExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusBadGateway, map[string]string{"errcode": "M_UNKNOWN", "error": "upstream down"})
	})

	_, err := client.Send(context.Background(), "!abc:example.org", NewContent("x", "x", true, nil))
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

// joinTarget accepts both join endpoints of the client-server API
func joinTarget(path string) (string, bool) {
	if strings.HasPrefix(path, "/_matrix/client/v3/join/") {
		return strings.TrimPrefix(path, "/_matrix/client/v3/join/"), true
	}
	if strings.HasPrefix(path, "/_matrix/client/v3/rooms/") && strings.HasSuffix(path, "/join") {
		return strings.TrimSuffix(strings.TrimPrefix(path, "/_matrix/client/v3/rooms/"), "/join"), true
	}
	return "", false
}

func TestJoinedRoomsAndJoin(t *testing.T) {
	var joined string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if room, ok := joinTarget(r.URL.Path); ok {
			assert.Equal(t, http.MethodPost, r.Method)
			joined = room
			writeJSON(w, http.StatusOK, map[string]string{"room_id": room})
			return
		}
		if r.URL.Path == "/_matrix/client/v3/joined_rooms" {
			writeJSON(w, http.StatusOK, map[string]any{"joined_rooms": []string{"!a:x", "!b:x"}})
			return
		}
		http.NotFound(w, r)
	})

	ctx := context.Background()
	rooms, err := client.JoinedRooms(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"!a:x", "!b:x"}, rooms)

	require.NoError(t, client.Join(ctx, "!c:x"))
	assert.Equal(t, "!c:x", joined)
}

func TestEnsureUserID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_matrix/client/v3/account/whoami", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]string{"user_id": "@bot:example.org"})
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{HomeserverURL: server.URL, AccessToken: testToken})
	require.NoError(t, err)
	assert.Empty(t, client.UserID())

	id, err := client.EnsureUserID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "@bot:example.org", id)
	assert.Equal(t, "@bot:example.org", client.UserID())
}
