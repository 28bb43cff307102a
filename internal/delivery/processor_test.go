package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	apperrors "github.com/redhat-data-and-ai/hookbot/internal/errors"
	"github.com/redhat-data-and-ai/hookbot/internal/gitlab"
	"github.com/redhat-data-and-ai/hookbot/internal/logging"
	"github.com/redhat-data-and-ai/hookbot/internal/matrix"
	"github.com/redhat-data-and-ai/hookbot/internal/render"
	"github.com/redhat-data-and-ai/hookbot/internal/store"
)

const room = "!abc:example.org"

const pushKey = "push-da1560886d4f094c3e6c9ef40349f7d38b5d27d7-main"

type sentEvent struct {
	room     string
	content  *matrix.Content
	original string
}

type reaction struct {
	eventID string
	key     string
}

type fakeSender struct {
	sent      []sentEvent
	edits     []sentEvent
	reactions []reaction
	redacted  []string
	sendErr   error
	editErr   error
	redactErr error
	n         int
}

func (f *fakeSender) nextID() string {
	f.n++
	return fmt.Sprintf("$event%d", f.n)
}

func (f *fakeSender) Send(_ context.Context, roomID string, content *matrix.Content) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, sentEvent{room: roomID, content: content})
	return f.nextID(), nil
}

func (f *fakeSender) Edit(_ context.Context, roomID, original string, content *matrix.Content) (string, error) {
	if f.editErr != nil {
		return "", f.editErr
	}
	f.edits = append(f.edits, sentEvent{room: roomID, content: content, original: original})
	return f.nextID(), nil
}

func (f *fakeSender) React(_ context.Context, _ string, eventID, key string) (string, error) {
	f.reactions = append(f.reactions, reaction{eventID: eventID, key: key})
	return f.nextID(), nil
}

func (f *fakeSender) Redact(_ context.Context, _ string, eventID, _ string) error {
	if f.redactErr != nil {
		return f.redactErr
	}
	f.redacted = append(f.redacted, eventID)
	return nil
}

func newProcessor(sender Sender, messages store.MessageStore) *Processor {
	r := render.NewRenderer(render.Options{SendAsNotice: true, TimeFormat: "Jan 2, 2006 15:04 MST"})
	return NewProcessor(r, messages, sender)
}

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "gitlab", "testdata", name))
	require.NoError(t, err)
	return data
}

// withPipelineStatus rewrites object_attributes.status of the pipeline fixture
func withPipelineStatus(t *testing.T, status string) []byte {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(fixture(t, "pipeline.json"), &payload))
	payload["object_attributes"].(map[string]any)["status"] = status
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return data
}

func withJobStatus(t *testing.T, status string) []byte {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(fixture(t, "job.json"), &payload))
	payload["build_status"] = status
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return data
}

func TestProcess_Push(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{}
	messages := store.NewMemory()
	p := newProcessor(sender, messages)

	require.NoError(t, p.Process(ctx, string(gitlab.HookPush), room, fixture(t, "push.json")))

	require.Len(t, sender.sent, 1)
	content := sender.sent[0].content
	assert.Equal(t, room, sender.sent[0].room)
	assert.Equal(t, matrix.MsgTypeNotice, content.MsgType)
	assert.Equal(t, matrix.FormatHTML, content.Format)
	assert.Contains(t, content.Body, "pushed [3 commits]")
	assert.Equal(t, "Push Hook", content.Meta["event_type"])

	id, ok, err := messages.GetMessage(ctx, pushKey, room)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "$event1", id)
}

func TestProcess_PipelineEditsInPlace(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{}
	messages := store.NewMemory()
	p := newProcessor(sender, messages)

	require.NoError(t, p.Process(ctx, string(gitlab.HookPipeline), room, withPipelineStatus(t, "running")))
	require.NoError(t, p.Process(ctx, string(gitlab.HookPipeline), room, withPipelineStatus(t, "success")))

	require.Len(t, sender.sent, 1)
	require.Len(t, sender.edits, 1)
	assert.Contains(t, sender.sent[0].content.Body, "is running")
	assert.Contains(t, sender.edits[0].content.Body, "passed after")
	assert.Equal(t, "$event1", sender.edits[0].original)

	id, ok, err := messages.GetMessage(ctx, "pipeline-31", room)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "$event1", id, "the record keeps pointing at the original message")
}

func TestProcess_SameStatusTwiceEditsOnce(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{}
	p := newProcessor(sender, store.NewMemory())

	body := withPipelineStatus(t, "running")
	require.NoError(t, p.Process(ctx, string(gitlab.HookPipeline), room, body))
	require.NoError(t, p.Process(ctx, string(gitlab.HookPipeline), room, body))

	assert.Len(t, sender.sent, 1)
	assert.Len(t, sender.edits, 1)
}

func TestProcess_RoomsAreIndependent(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{}
	p := newProcessor(sender, store.NewMemory())

	body := withPipelineStatus(t, "running")
	require.NoError(t, p.Process(ctx, string(gitlab.HookPipeline), room, body))
	require.NoError(t, p.Process(ctx, string(gitlab.HookPipeline), "!other:example.org", body))

	assert.Len(t, sender.sent, 2)
	assert.Empty(t, sender.edits)
}

func TestProcess_EditFailureDoesNotSendDuplicate(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{}
	messages := store.NewMemory()
	p := newProcessor(sender, messages)

	require.NoError(t, p.Process(ctx, string(gitlab.HookPipeline), room, withPipelineStatus(t, "running")))

	sender.editErr = apperrors.NewMatrixError("edit", 404, "M_NOT_FOUND", "Event not found")
	err := p.Process(ctx, string(gitlab.HookPipeline), room, withPipelineStatus(t, "failed"))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrDeliveryFailed, apperrors.CodeOf(err))

	assert.Len(t, sender.sent, 1)
	id, _, _ := messages.GetMessage(ctx, "pipeline-31", room)
	assert.Equal(t, "$event1", id)
}

func TestProcess_SendFailureKeepsRecord(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{sendErr: errors.New("connection refused")}
	messages := store.NewMemory()
	p := newProcessor(sender, messages)

	err := p.Process(ctx, string(gitlab.HookPipeline), room, withPipelineStatus(t, "running"))
	require.Error(t, err)

	_, ok, err := messages.GetMessage(ctx, "pipeline-31", room)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProcess_KeylessEventsAreNotRecorded(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{}
	p := newProcessor(sender, store.NewMemory())

	require.NoError(t, p.Process(ctx, string(gitlab.HookNote), room, fixture(t, "note_issue.json")))
	require.NoError(t, p.Process(ctx, string(gitlab.HookNote), room, fixture(t, "note_issue.json")))

	assert.Len(t, sender.sent, 2)
	assert.Empty(t, sender.edits)
}

func TestProcess_IssueUpdateSplitsIntoMessages(t *testing.T) {
	sender := &fakeSender{}
	p := newProcessor(sender, store.NewMemory())

	require.NoError(t, p.Process(context.Background(), string(gitlab.HookIssue), room, fixture(t, "issue_update.json")))
	assert.Len(t, sender.sent, 3)
}

func TestProcess_DecodeError(t *testing.T) {
	sender := &fakeSender{}
	p := newProcessor(sender, store.NewMemory())

	logs := observeLogs(t)

	err := p.Process(context.Background(), string(gitlab.HookPush), room, []byte(`{"object_kind":"push"}`))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrDecodeFailed, apperrors.CodeOf(err))
	assert.Empty(t, sender.sent)

	entries := logs.FilterMessage("Failed to decode webhook").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, string(gitlab.HookPush), fields["event_type"])
	assert.Equal(t, room, fields["room_id"])
	assert.Contains(t, fields, "error")
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

func TestProcess_JobWithoutPushMessage(t *testing.T) {
	sender := &fakeSender{}
	p := newProcessor(sender, store.NewMemory())

	require.NoError(t, p.Process(context.Background(), string(gitlab.HookJob), room, fixture(t, "job.json")))
	assert.Empty(t, sender.reactions)
	assert.Empty(t, sender.sent)
}

func TestProcess_JobReactions(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{}
	messages := store.NewMemory()
	p := newProcessor(sender, messages)

	require.NoError(t, p.Process(ctx, string(gitlab.HookPush), room, fixture(t, "push.json")))
	pushID, ok, err := messages.GetMessage(ctx, pushKey, room)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, p.Process(ctx, string(gitlab.HookJob), room, withJobStatus(t, "running")))
	require.Len(t, sender.reactions, 1)
	assert.Equal(t, reaction{eventID: pushID, key: "🔵 test"}, sender.reactions[0])
	assert.Empty(t, sender.redacted)

	firstReaction, ok, err := messages.GetMessage(ctx, "job-da1560886d4f094c3e6c9ef40349f7d38b5d27d7-main-test", room)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, p.Process(ctx, string(gitlab.HookJob), room, withJobStatus(t, "success")))
	require.Len(t, sender.reactions, 2)
	assert.Equal(t, reaction{eventID: pushID, key: "🟢 test"}, sender.reactions[1])
	assert.Equal(t, []string{firstReaction}, sender.redacted)
	assert.Len(t, sender.sent, 1, "jobs never send messages")
}

func TestProcess_RedactFailureStopsReaction(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{}
	p := newProcessor(sender, store.NewMemory())

	require.NoError(t, p.Process(ctx, string(gitlab.HookPush), room, fixture(t, "push.json")))
	require.NoError(t, p.Process(ctx, string(gitlab.HookJob), room, withJobStatus(t, "running")))

	sender.redactErr = errors.New("forbidden")
	assert.Error(t, p.Process(ctx, string(gitlab.HookJob), room, withJobStatus(t, "failed")))
	assert.Len(t, sender.reactions, 1)
}
