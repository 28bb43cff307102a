package gitlab

import (
	"fmt"
	"strings"

	apperrors "github.com/redhat-data-and-ai/hookbot/internal/errors"
)

// Event is one decoded webhook. The set of implementations is closed; see
// newEvent for the mapping from hook name to type.
type Event interface {
	// Hook is the X-Gitlab-Event name the event was decoded from
	Hook() HookName
	// TemplateName selects the renderer template
	TemplateName() string
	// MessageKey identifies the logical unit repeated deliveries update, or ""
	MessageKey() string
	// Preprocess normalizes the event and splits batched updates
	Preprocess() []Event
	// Meta is attached to outgoing messages as provenance
	Meta() map[string]any

	setHook(HookName)
	validate(v *apperrors.Validator)
}

type hookBase struct {
	hook HookName
}

func (b *hookBase) Hook() HookName { return b.hook }
func (b *hookBase) setHook(h HookName) { b.hook = h }

// RefType discriminates the ref a push updated
type RefType string

const (
	RefTypeBranch RefType = "branch"
	RefTypeTag    RefType = "tag"
	RefTypeRef    RefType = "ref"
)

func isZeroSHA(sha string) bool {
	return sha != "" && strings.Trim(sha, "0") == ""
}

// PushEvent is a "Push Hook" or "Tag Push Hook"
type PushEvent struct {
	hookBase
	ObjectKind        string      `json:"object_kind"`
	EventName         string      `json:"event_name"`
	Before            string      `json:"before"`
	After             string      `json:"after"`
	Ref               string      `json:"ref"`
	RefProtected      bool        `json:"ref_protected"`
	CheckoutSHA       string      `json:"checkout_sha"`
	Message           string      `json:"message"`
	UserID            int64       `json:"user_id"`
	UserName          string      `json:"user_name"`
	UserUsername      string      `json:"user_username"`
	UserEmail         string      `json:"user_email"`
	UserAvatar        string      `json:"user_avatar"`
	ProjectID         int64       `json:"project_id"`
	Project           *Project    `json:"project"`
	Commits           []Commit    `json:"commits"`
	TotalCommitsCount int         `json:"total_commits_count"`
	Repository        *Repository `json:"repository"`
}

// User assembles the pusher from the flattened user_* fields
func (e *PushEvent) User() *User {
	u := &User{
		ID:        e.UserID,
		Name:      e.UserName,
		Username:  e.UserUsername,
		AvatarURL: e.UserAvatar,
		Email:     e.UserEmail,
	}
	u.setWebURL(e.Project.GitlabBaseURL())
	return u
}

// RefName is the ref without its refs/heads/ or refs/tags/ prefix
func (e *PushEvent) RefName() string {
	parts := strings.SplitN(e.Ref, "/", 3)
	if len(parts) == 3 {
		return parts[2]
	}
	return e.Ref
}

func (e *PushEvent) RefType() RefType {
	switch {
	case strings.HasPrefix(e.Ref, "refs/heads/"):
		return RefTypeBranch
	case strings.HasPrefix(e.Ref, "refs/tags/"):
		return RefTypeTag
	default:
		return RefTypeRef
	}
}

// IsNewRef reports whether the push created the ref
func (e *PushEvent) IsNewRef() bool { return isZeroSHA(e.Before) }

// IsDeletedRef reports whether the push deleted the ref
func (e *PushEvent) IsDeletedRef() bool { return isZeroSHA(e.After) }

// RefURL links to the branch or tag
func (e *PushEvent) RefURL() string {
	switch e.RefType() {
	case RefTypeBranch:
		return e.Project.WebURL + "/-/tree/" + e.RefName()
	case RefTypeTag:
		return e.Project.WebURL + "/-/tags/" + e.RefName()
	default:
		return e.Project.WebURL
	}
}

// DiffURL compares the ref before and after the push. New refs are
// compared against the default branch.
func (e *PushEvent) DiffURL() string {
	before := e.Before
	if e.IsNewRef() {
		before = e.Project.DefaultBranch
	}
	return fmt.Sprintf("%s/-/compare/%s...%s", e.Project.WebURL, before, e.After)
}

// CommitsNewestFirst returns the commits in reverse delivery order
func (e *PushEvent) CommitsNewestFirst() []Commit {
	out := make([]Commit, 0, len(e.Commits))
	for i := len(e.Commits) - 1; i >= 0; i-- {
		out = append(out, e.Commits[i])
	}
	return out
}

// OmittedCommits is how many commits GitLab left out of the payload
func (e *PushEvent) OmittedCommits() int {
	if n := e.TotalCommitsCount - len(e.Commits); n > 0 {
		return n
	}
	return 0
}

func (e *PushEvent) TemplateName() string {
	if e.RefType() == RefTypeTag {
		return "tag"
	}
	return "push"
}

// MessageKey is push-<checkout_sha>-<ref_name>. Deleted refs have no
// checkout sha, so the after sha is used instead.
func (e *PushEvent) MessageKey() string {
	sha := e.CheckoutSHA
	if sha == "" {
		sha = e.After
	}
	return fmt.Sprintf("push-%s-%s", sha, e.RefName())
}

func (e *PushEvent) Preprocess() []Event { return []Event{e} }

func (e *PushEvent) Meta() map[string]any {
	return map[string]any{
		"push": map[string]any{
			"ref":          e.Ref,
			"checkout_sha": e.CheckoutSHA,
			"commits":      e.TotalCommitsCount,
		},
	}
}

func (e *PushEvent) validate(v *apperrors.Validator) {
	v.RequiredField("ref", e.Ref)
	v.RequiredField("before", e.Before)
	v.RequiredField("after", e.After)
	v.RequiredObject("project", e.Project != nil)
	if e.Project != nil {
		v.Nested("project").RequiredField("web_url", e.Project.WebURL)
	}
}

// Trackable is implemented by issue and merge request events, which share
// the per-field update template.
type Trackable interface {
	Event
	Actor() *User
	ObjectNoun() string
	Reference() string
	ObjectTitle() string
	ObjectURL() string
	ObjectAction() Action
	ChangeSet() *Changes
	ProjectInfo() *Project
}

// IssueEvent is an "Issue Hook" or "Confidential Issue Hook"
type IssueEvent struct {
	hookBase
	ObjectKind       string           `json:"object_kind"`
	User             *User            `json:"user"`
	Project          *Project         `json:"project"`
	Repository       *Repository      `json:"repository"`
	ObjectAttributes *IssueAttributes `json:"object_attributes"`
	Assignees        []User           `json:"assignees"`
	Labels           []Label          `json:"labels"`
	Changes          *Changes         `json:"changes"`
}

func (e *IssueEvent) Actor() *User { return e.User }
func (e *IssueEvent) ObjectNoun() string { return "issue" }
func (e *IssueEvent) Reference() string { return fmt.Sprintf("#%d", e.ObjectAttributes.IID) }
func (e *IssueEvent) ObjectTitle() string { return e.ObjectAttributes.Title }
func (e *IssueEvent) ObjectURL() string { return e.ObjectAttributes.URL }
func (e *IssueEvent) ObjectAction() Action { return e.ObjectAttributes.Action }
func (e *IssueEvent) ChangeSet() *Changes { return e.Changes }
func (e *IssueEvent) ProjectInfo() *Project { return e.Project }

// IsConfidential reports whether the hook was the confidential variant
func (e *IssueEvent) IsConfidential() bool {
	return e.hook == HookConfidentialIssue || e.ObjectAttributes.Confidential
}

func (e *IssueEvent) TemplateName() string {
	return "issue_" + string(e.ObjectAttributes.Action)
}

func (e *IssueEvent) MessageKey() string { return "" }

func (e *IssueEvent) Preprocess() []Event {
	base := e.Project.GitlabBaseURL()
	e.User.setWebURL(base)
	for i := range e.Assignees {
		e.Assignees[i].setWebURL(base)
	}
	e.Changes.setWebURLs(base)
	if e.ObjectAttributes.Action != ActionUpdate {
		return []Event{e}
	}
	var out []Event
	for _, single := range e.Changes.Split() {
		sub := *e
		sub.Changes = single
		out = append(out, &sub)
	}
	return out
}

func (e *IssueEvent) Meta() map[string]any { return map[string]any{} }

func (e *IssueEvent) validate(v *apperrors.Validator) {
	v.RequiredObject("user", e.User != nil)
	v.RequiredObject("project", e.Project != nil)
	v.RequiredObject("object_attributes", e.ObjectAttributes != nil)
	if e.ObjectAttributes != nil {
		attrs := v.Nested("object_attributes")
		attrs.RequiredPositive("iid", e.ObjectAttributes.IID)
		attrs.RequiredField("title", e.ObjectAttributes.Title)
		attrs.RequiredField("url", e.ObjectAttributes.URL)
	}
}

// MergeRequestEvent is a "Merge Request Hook"
type MergeRequestEvent struct {
	hookBase
	ObjectKind       string                  `json:"object_kind"`
	User             *User                   `json:"user"`
	Project          *Project                `json:"project"`
	Repository       *Repository             `json:"repository"`
	ObjectAttributes *MergeRequestAttributes `json:"object_attributes"`
	Labels           []Label                 `json:"labels"`
	Assignees        []User                  `json:"assignees"`
	Reviewers        []User                  `json:"reviewers"`
	Changes          *Changes                `json:"changes"`
}

func (e *MergeRequestEvent) Actor() *User { return e.User }
func (e *MergeRequestEvent) ObjectNoun() string { return "merge request" }
func (e *MergeRequestEvent) Reference() string { return fmt.Sprintf("!%d", e.ObjectAttributes.IID) }
func (e *MergeRequestEvent) ObjectTitle() string { return e.ObjectAttributes.Title }
func (e *MergeRequestEvent) ObjectURL() string { return e.ObjectAttributes.URL }
func (e *MergeRequestEvent) ObjectAction() Action { return e.ObjectAttributes.Action }
func (e *MergeRequestEvent) ChangeSet() *Changes { return e.Changes }
func (e *MergeRequestEvent) ProjectInfo() *Project { return e.Project }

// TemplateName is issue_update for split field updates, merge_request otherwise
func (e *MergeRequestEvent) TemplateName() string {
	if e.ObjectAttributes.Action == ActionUpdate && len(e.Changes.Fields()) > 0 {
		return "issue_update"
	}
	return "merge_request"
}

func (e *MergeRequestEvent) MessageKey() string { return "" }

// Preprocess splits field updates like issues do. An update without field
// changes (new commits pushed to the source branch) stays a single event.
func (e *MergeRequestEvent) Preprocess() []Event {
	base := e.Project.GitlabBaseURL()
	e.User.setWebURL(base)
	for i := range e.Assignees {
		e.Assignees[i].setWebURL(base)
	}
	for i := range e.Reviewers {
		e.Reviewers[i].setWebURL(base)
	}
	e.Changes.setWebURLs(base)
	if e.ObjectAttributes.Action != ActionUpdate || len(e.Changes.Fields()) == 0 {
		return []Event{e}
	}
	var out []Event
	for _, single := range e.Changes.Split() {
		sub := *e
		sub.Changes = single
		out = append(out, &sub)
	}
	return out
}

func (e *MergeRequestEvent) Meta() map[string]any { return map[string]any{} }

func (e *MergeRequestEvent) validate(v *apperrors.Validator) {
	v.RequiredObject("user", e.User != nil)
	v.RequiredObject("project", e.Project != nil)
	v.RequiredObject("object_attributes", e.ObjectAttributes != nil)
	if e.ObjectAttributes != nil {
		attrs := v.Nested("object_attributes")
		attrs.RequiredPositive("iid", e.ObjectAttributes.IID)
		attrs.RequiredField("title", e.ObjectAttributes.Title)
		attrs.RequiredField("url", e.ObjectAttributes.URL)
	}
}

// CommentEvent is a "Note Hook" or "Confidential Note Hook". Exactly one of
// Issue, MergeRequest, Commit or Snippet is set, matching NoteableType.
type CommentEvent struct {
	hookBase
	ObjectKind       string                  `json:"object_kind"`
	User             *User                   `json:"user"`
	ProjectID        int64                   `json:"project_id"`
	Project          *Project                `json:"project"`
	Repository       *Repository             `json:"repository"`
	ObjectAttributes *NoteAttributes         `json:"object_attributes"`
	Issue            *IssueAttributes        `json:"issue"`
	MergeRequest     *MergeRequestAttributes `json:"merge_request"`
	Commit           *Commit                 `json:"commit"`
	Snippet          *Snippet                `json:"snippet"`
}

// Target returns the title, reference and URL of the commented object
func (e *CommentEvent) Target() (title, ref, url string) {
	switch e.ObjectAttributes.NoteableType {
	case NoteableIssue:
		if e.Issue != nil {
			return e.Issue.Title, fmt.Sprintf("#%d", e.Issue.IID), e.Issue.URL
		}
	case NoteableMergeRequest:
		if e.MergeRequest != nil {
			return e.MergeRequest.Title, fmt.Sprintf("!%d", e.MergeRequest.IID), e.MergeRequest.URL
		}
	case NoteableCommit:
		if e.Commit != nil {
			return e.Commit.Title, e.Commit.ShortID(), e.Commit.URL
		}
	case NoteableSnippet:
		if e.Snippet != nil {
			return e.Snippet.Title, fmt.Sprintf("$%d", e.Snippet.ID), e.Snippet.URL
		}
	}
	return "", "", e.ObjectAttributes.URL
}

func (e *CommentEvent) TemplateName() string { return "comment" }
func (e *CommentEvent) MessageKey() string { return "" }

func (e *CommentEvent) Preprocess() []Event {
	e.User.setWebURL(e.Project.GitlabBaseURL())
	return []Event{e}
}

func (e *CommentEvent) Meta() map[string]any { return map[string]any{} }

func (e *CommentEvent) validate(v *apperrors.Validator) {
	v.RequiredObject("user", e.User != nil)
	v.RequiredObject("project", e.Project != nil)
	v.RequiredObject("object_attributes", e.ObjectAttributes != nil)
	if e.ObjectAttributes == nil {
		return
	}
	attrs := v.Nested("object_attributes")
	attrs.RequiredField("noteable_type", string(e.ObjectAttributes.NoteableType))
	attrs.RequiredField("url", e.ObjectAttributes.URL)
	switch e.ObjectAttributes.NoteableType {
	case NoteableIssue:
		v.RequiredObject("issue", e.Issue != nil)
	case NoteableMergeRequest:
		v.RequiredObject("merge_request", e.MergeRequest != nil)
	case NoteableCommit:
		v.RequiredObject("commit", e.Commit != nil)
	case NoteableSnippet:
		v.RequiredObject("snippet", e.Snippet != nil)
	}
}

// WikiPageEvent is a "Wiki Page Hook"
type WikiPageEvent struct {
	hookBase
	ObjectKind       string              `json:"object_kind"`
	User             *User               `json:"user"`
	Project          *Project            `json:"project"`
	Wiki             *Wiki               `json:"wiki"`
	ObjectAttributes *WikiPageAttributes `json:"object_attributes"`
}

func (e *WikiPageEvent) TemplateName() string { return "wiki" }
func (e *WikiPageEvent) MessageKey() string { return "" }

func (e *WikiPageEvent) Preprocess() []Event {
	e.User.setWebURL(e.Project.GitlabBaseURL())
	return []Event{e}
}

func (e *WikiPageEvent) Meta() map[string]any { return map[string]any{} }

func (e *WikiPageEvent) validate(v *apperrors.Validator) {
	v.RequiredObject("user", e.User != nil)
	v.RequiredObject("project", e.Project != nil)
	v.RequiredObject("object_attributes", e.ObjectAttributes != nil)
	if e.ObjectAttributes != nil {
		attrs := v.Nested("object_attributes")
		attrs.RequiredField("title", e.ObjectAttributes.Title)
		attrs.RequiredField("action", string(e.ObjectAttributes.Action))
	}
}

// PipelineEvent is a "Pipeline Hook"
type PipelineEvent struct {
	hookBase
	ObjectKind       string                  `json:"object_kind"`
	ObjectAttributes *PipelineAttributes     `json:"object_attributes"`
	MergeRequest     *MergeRequestAttributes `json:"merge_request"`
	User             *User                   `json:"user"`
	Project          *Project                `json:"project"`
	Commit           *Commit                 `json:"commit"`
	Builds           []Build                 `json:"builds"`
}

// URL links to the pipeline page
func (e *PipelineEvent) URL() string {
	if e.ObjectAttributes.URL != "" {
		return e.ObjectAttributes.URL
	}
	return fmt.Sprintf("%s/-/pipelines/%d", e.Project.WebURL, e.ObjectAttributes.ID)
}

// RefURL links to the branch or tag the pipeline ran for
func (e *PipelineEvent) RefURL() string {
	if e.ObjectAttributes.Tag {
		return e.Project.WebURL + "/-/tags/" + e.ObjectAttributes.Ref
	}
	return e.Project.WebURL + "/-/tree/" + e.ObjectAttributes.Ref
}

// FailedBuilds returns builds that failed and were not allowed to
func (e *PipelineEvent) FailedBuilds() []Build {
	var out []Build
	for _, b := range e.Builds {
		if b.Status == BuildStatusFailed && !b.AllowFailure {
			out = append(out, b)
		}
	}
	return out
}

// BuildURL links to a single job of the pipeline
func (e *PipelineEvent) BuildURL(b Build) string {
	return fmt.Sprintf("%s/-/jobs/%d", e.Project.WebURL, b.ID)
}

func (e *PipelineEvent) TemplateName() string { return "pipeline" }

func (e *PipelineEvent) MessageKey() string {
	return fmt.Sprintf("pipeline-%d", e.ObjectAttributes.ID)
}

func (e *PipelineEvent) Preprocess() []Event {
	e.User.setWebURL(e.Project.GitlabBaseURL())
	return []Event{e}
}

func (e *PipelineEvent) Meta() map[string]any {
	return map[string]any{
		"pipeline": map[string]any{
			"id":     e.ObjectAttributes.ID,
			"status": e.ObjectAttributes.Status,
		},
	}
}

func (e *PipelineEvent) validate(v *apperrors.Validator) {
	v.RequiredObject("project", e.Project != nil)
	v.RequiredObject("object_attributes", e.ObjectAttributes != nil)
	if e.ObjectAttributes != nil {
		attrs := v.Nested("object_attributes")
		attrs.RequiredPositive("id", e.ObjectAttributes.ID)
		attrs.RequiredField("status", string(e.ObjectAttributes.Status))
		attrs.RequiredField("ref", e.ObjectAttributes.Ref)
	}
}

// JobEvent is a "Job Hook". Jobs do not get their own message; their status
// is shown as a reaction on the push message of the same commit and ref.
type JobEvent struct {
	hookBase
	ObjectKind          string        `json:"object_kind"`
	Ref                 string        `json:"ref"`
	Tag                 bool          `json:"tag"`
	BeforeSHA           string        `json:"before_sha"`
	SHA                 string        `json:"sha"`
	BuildID             int64         `json:"build_id"`
	BuildName           string        `json:"build_name"`
	BuildStage          string        `json:"build_stage"`
	BuildStatus         BuildStatus   `json:"build_status"`
	BuildCreatedAt      Time          `json:"build_created_at"`
	BuildStartedAt      Time          `json:"build_started_at"`
	BuildFinishedAt     Time          `json:"build_finished_at"`
	BuildDuration       float64       `json:"build_duration"`
	BuildQueuedDuration float64       `json:"build_queued_duration"`
	BuildAllowFailure   bool          `json:"build_allow_failure"`
	BuildFailureReason  FailureReason `json:"build_failure_reason"`
	PipelineID          int64         `json:"pipeline_id"`
	ProjectID           int64         `json:"project_id"`
	ProjectName         string        `json:"project_name"`
	User                *User         `json:"user"`
	Commit              *JobCommit    `json:"commit"`
	Repository          *Repository   `json:"repository"`
	Project             *Project      `json:"project"`
	Runner              *Runner       `json:"runner"`
}

// PushKey is the message key of the push that triggered this job
func (e *JobEvent) PushKey() string {
	return fmt.Sprintf("push-%s-%s", e.SHA, e.Ref)
}

// ReactionKey identifies the single status reaction of this job
func (e *JobEvent) ReactionKey() string {
	return fmt.Sprintf("job-%s-%s-%s", e.SHA, e.Ref, e.BuildName)
}

// BuildURL links to the job page
func (e *JobEvent) BuildURL() string {
	return fmt.Sprintf("%s/-/jobs/%d", e.Repository.Homepage, e.BuildID)
}

func (e *JobEvent) TemplateName() string { return "job" }
func (e *JobEvent) MessageKey() string { return "" }
func (e *JobEvent) Preprocess() []Event { return []Event{e} }

func (e *JobEvent) Meta() map[string]any {
	return map[string]any{
		"build": map[string]any{
			"pipeline_id": e.PipelineID,
			"id":          e.BuildID,
			"name":        e.BuildName,
			"stage":       e.BuildStage,
			"status":      e.BuildStatus,
			"url":         e.BuildURL(),
		},
	}
}

func (e *JobEvent) validate(v *apperrors.Validator) {
	v.RequiredPositive("build_id", e.BuildID)
	v.RequiredField("build_name", e.BuildName)
	v.RequiredField("build_status", string(e.BuildStatus))
	v.RequiredField("sha", e.SHA)
	v.RequiredField("ref", e.Ref)
	v.RequiredObject("repository", e.Repository != nil)
}
