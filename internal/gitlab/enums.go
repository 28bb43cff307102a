package gitlab

import "strings"

// BuildStatus is the status of a pipeline or job. Values GitLab adds later are
// kept as-is; IsKnown reports whether the value is one of the constants below.
type BuildStatus string

const (
	BuildStatusCreated            BuildStatus = "created"
	BuildStatusWaitingForResource BuildStatus = "waiting_for_resource"
	BuildStatusPreparing          BuildStatus = "preparing"
	BuildStatusPending            BuildStatus = "pending"
	BuildStatusRunning            BuildStatus = "running"
	BuildStatusSuccess            BuildStatus = "success"
	BuildStatusFailed             BuildStatus = "failed"
	BuildStatusCanceled           BuildStatus = "canceled"
	BuildStatusSkipped            BuildStatus = "skipped"
	BuildStatusManual             BuildStatus = "manual"
	BuildStatusScheduled          BuildStatus = "scheduled"
)

var knownBuildStatuses = map[BuildStatus]bool{
	BuildStatusCreated: true, BuildStatusWaitingForResource: true, BuildStatusPreparing: true,
	BuildStatusPending: true, BuildStatusRunning: true, BuildStatusSuccess: true,
	BuildStatusFailed: true, BuildStatusCanceled: true, BuildStatusSkipped: true,
	BuildStatusManual: true, BuildStatusScheduled: true,
}

func (s BuildStatus) IsKnown() bool { return knownBuildStatuses[s] }

// Circle is the colored glyph used for job reactions
func (s BuildStatus) Circle() string {
	switch s {
	case BuildStatusCreated, BuildStatusPending, BuildStatusWaitingForResource, BuildStatusPreparing:
		return "🟡"
	case BuildStatusRunning:
		return "🔵"
	case BuildStatusSuccess:
		return "🟢"
	case BuildStatusFailed:
		return "🔴"
	case BuildStatusCanceled:
		return "⚫"
	default:
		return "⚪"
	}
}

// IsFinished reports whether the status is terminal
func (s BuildStatus) IsFinished() bool {
	switch s {
	case BuildStatusSuccess, BuildStatusFailed, BuildStatusCanceled, BuildStatusSkipped:
		return true
	}
	return false
}

// FailureReason explains why a job failed
type FailureReason string

const (
	FailureReasonUnknown             FailureReason = "unknown_failure"
	FailureReasonScriptFailure       FailureReason = "script_failure"
	FailureReasonAPIFailure          FailureReason = "api_failure"
	FailureReasonStuckOrTimeout      FailureReason = "stuck_or_timeout_failure"
	FailureReasonRunnerSystem        FailureReason = "runner_system_failure"
	FailureReasonMissingDependency   FailureReason = "missing_dependency_failure"
	FailureReasonJobExecutionTimeout FailureReason = "job_execution_timeout"
)

var failureReasonText = map[FailureReason]string{
	FailureReasonUnknown:             "unknown failure",
	FailureReasonScriptFailure:       "script failure",
	FailureReasonAPIFailure:          "API failure",
	FailureReasonStuckOrTimeout:      "stuck or timed out",
	FailureReasonRunnerSystem:        "runner system failure",
	FailureReasonMissingDependency:   "missing dependency",
	FailureReasonJobExecutionTimeout: "job execution timed out",
}

func (r FailureReason) IsKnown() bool {
	_, ok := failureReasonText[r]
	return ok
}

// Text is a human readable form; unknown reasons have underscores replaced.
func (r FailureReason) Text() string {
	if text, ok := failureReasonText[r]; ok {
		return text
	}
	return strings.ReplaceAll(string(r), "_", " ")
}

// NoteableType is the kind of object a comment was left on
type NoteableType string

const (
	NoteableIssue        NoteableType = "Issue"
	NoteableMergeRequest NoteableType = "MergeRequest"
	NoteableCommit       NoteableType = "Commit"
	NoteableSnippet      NoteableType = "Snippet"
)

func (n NoteableType) IsKnown() bool {
	switch n {
	case NoteableIssue, NoteableMergeRequest, NoteableCommit, NoteableSnippet:
		return true
	}
	return false
}

// Text is the lower-case noun used in messages
func (n NoteableType) Text() string {
	if n == NoteableMergeRequest {
		return "merge request"
	}
	return strings.ToLower(string(n))
}

// Action is the object_attributes.action of issue, merge request and wiki hooks
type Action string

const (
	ActionOpen       Action = "open"
	ActionClose      Action = "close"
	ActionReopen     Action = "reopen"
	ActionUpdate     Action = "update"
	ActionMerge      Action = "merge"
	ActionApproved   Action = "approved"
	ActionUnapproved Action = "unapproved"
	ActionApproval   Action = "approval"
	ActionUnapproval Action = "unapproval"
	ActionCreate     Action = "create"
	ActionDelete     Action = "delete"
)

func (a Action) IsKnown() bool {
	switch a {
	case ActionOpen, ActionClose, ActionReopen, ActionUpdate, ActionMerge, ActionApproved,
		ActionUnapproved, ActionApproval, ActionUnapproval, ActionCreate, ActionDelete:
		return true
	}
	return false
}

// PastTense returns the verb used in messages, e.g. "close" -> "closed".
func (a Action) PastTense() string {
	switch a {
	case ActionApproval:
		return "approved"
	case ActionUnapproval:
		return "unapproved"
	case "":
		return ""
	}
	s := string(a)
	switch {
	case strings.HasSuffix(s, "ed"):
		return s
	case strings.HasSuffix(s, "e"):
		return s + "d"
	default:
		return s + "ed"
	}
}
