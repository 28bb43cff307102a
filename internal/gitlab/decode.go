package gitlab

import (
	"encoding/json"
	"fmt"

	apperrors "github.com/redhat-data-and-ai/hookbot/internal/errors"
)

// HookName is the value of the X-Gitlab-Event header
type HookName string

const (
	HookPush              HookName = "Push Hook"
	HookTagPush           HookName = "Tag Push Hook"
	HookIssue             HookName = "Issue Hook"
	HookConfidentialIssue HookName = "Confidential Issue Hook"
	HookNote              HookName = "Note Hook"
	HookConfidentialNote  HookName = "Confidential Note Hook"
	HookMergeRequest      HookName = "Merge Request Hook"
	HookWikiPage          HookName = "Wiki Page Hook"
	HookPipeline          HookName = "Pipeline Hook"
	HookJob               HookName = "Job Hook"
)

// Hooks lists every supported hook name
var Hooks = []HookName{
	HookPush, HookTagPush, HookIssue, HookConfidentialIssue, HookNote,
	HookConfidentialNote, HookMergeRequest, HookWikiPage, HookPipeline, HookJob,
}

// ParseHookName matches s case-sensitively against the supported hooks
func ParseHookName(s string) (HookName, bool) {
	name := HookName(s)
	if newEvent(name) == nil {
		return "", false
	}
	return name, true
}

// newEvent returns an empty event of the type decoded for name, or nil.
func newEvent(name HookName) Event {
	switch name {
	case HookPush, HookTagPush:
		return &PushEvent{}
	case HookIssue, HookConfidentialIssue:
		return &IssueEvent{}
	case HookNote, HookConfidentialNote:
		return &CommentEvent{}
	case HookMergeRequest:
		return &MergeRequestEvent{}
	case HookWikiPage:
		return &WikiPageEvent{}
	case HookPipeline:
		return &PipelineEvent{}
	case HookJob:
		return &JobEvent{}
	default:
		return nil
	}
}

// Decode decodes body as the event named by hook. Unknown hooks fail with
// UNKNOWN_EVENT_TYPE; malformed payloads and missing required fields fail
// with DECODE_FAILED. Unknown JSON fields are ignored.
func Decode(hook string, body []byte) (Event, error) {
	name := HookName(hook)
	evt := newEvent(name)
	if evt == nil {
		return nil, apperrors.NewError(apperrors.ErrUnknownEventType,
			fmt.Sprintf("Unknown event type %q", hook))
	}

	if err := json.Unmarshal(body, evt); err != nil {
		return nil, apperrors.NewErrorWithCause(apperrors.ErrDecodeFailed,
			fmt.Sprintf("Failed to decode %s payload", name), err).
			WithContext("event_type", hook)
	}
	evt.setHook(name)

	v := apperrors.NewValidator()
	evt.validate(v)
	if appErr := v.ToAppErrorWithCode(apperrors.ErrDecodeFailed,
		fmt.Sprintf("Missing required fields in %s payload", name)); appErr != nil {
		return nil, appErr.WithContext("event_type", hook)
	}

	return evt, nil
}
