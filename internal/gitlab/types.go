package gitlab

import (
	"strings"
)

// Project is the project object embedded in most hooks
type Project struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	WebURL            string `json:"web_url"`
	AvatarURL         string `json:"avatar_url"`
	GitSSHURL         string `json:"git_ssh_url"`
	GitHTTPURL        string `json:"git_http_url"`
	Namespace         string `json:"namespace"`
	VisibilityLevel   int    `json:"visibility_level"`
	PathWithNamespace string `json:"path_with_namespace"`
	DefaultBranch     string `json:"default_branch"`
	Homepage          string `json:"homepage"`
	URL               string `json:"url"`
	SSHURL            string `json:"ssh_url"`
	HTTPURL           string `json:"http_url"`
}

// GitlabBaseURL is the instance root, e.g. https://gitlab.example.com
func (p *Project) GitlabBaseURL() string {
	if p == nil {
		return ""
	}
	base := p.WebURL
	if p.PathWithNamespace != "" {
		if idx := strings.LastIndex(base, "/"+p.PathWithNamespace); idx >= 0 {
			base = base[:idx]
		}
	}
	return strings.TrimRight(base, "/")
}

// FullName is "namespace / name" when the namespace is known
func (p *Project) FullName() string {
	if p.PathWithNamespace != "" {
		return p.PathWithNamespace
	}
	if p.Namespace != "" {
		return p.Namespace + "/" + p.Name
	}
	return p.Name
}

// Repository is the legacy repository object
type Repository struct {
	Name            string `json:"name"`
	URL             string `json:"url"`
	Description     string `json:"description"`
	Homepage        string `json:"homepage"`
	GitHTTPURL      string `json:"git_http_url"`
	GitSSHURL       string `json:"git_ssh_url"`
	VisibilityLevel int    `json:"visibility_level"`
}

// User is a GitLab user. WebURL is not sent by GitLab; it is filled in
// from the instance URL and the username before rendering.
type User struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
	Email     string `json:"email"`
	WebURL    string `json:"web_url,omitempty"`
}

func (u *User) setWebURL(base string) {
	if u != nil && u.Username != "" && base != "" {
		u.WebURL = base + "/" + u.Username
	}
}

// CommitAuthor is the author object of push and pipeline commits
type CommitAuthor struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Commit is a commit as it appears in push, note and pipeline hooks
type Commit struct {
	ID        string        `json:"id"`
	Message   string        `json:"message"`
	Title     string        `json:"title"`
	Timestamp Time          `json:"timestamp"`
	URL       string        `json:"url"`
	Author    *CommitAuthor `json:"author"`
	Added     []string      `json:"added"`
	Modified  []string      `json:"modified"`
	Removed   []string      `json:"removed"`
}

// ShortID is the first 8 characters of the commit sha
func (c Commit) ShortID() string {
	if len(c.ID) > 8 {
		return c.ID[:8]
	}
	return c.ID
}

// JobCommit is the flattened commit object of job hooks
type JobCommit struct {
	ID          int64   `json:"id"`
	SHA         string  `json:"sha"`
	Message     string  `json:"message"`
	AuthorName  string  `json:"author_name"`
	AuthorEmail string  `json:"author_email"`
	AuthorURL   string  `json:"author_url"`
	Status      string  `json:"status"`
	Duration    float64 `json:"duration"`
	StartedAt   Time    `json:"started_at"`
	FinishedAt  Time    `json:"finished_at"`
}

// Label is a project or group label
type Label struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Color       string `json:"color"`
	ProjectID   *int64 `json:"project_id"`
	CreatedAt   Time   `json:"created_at"`
	UpdatedAt   Time   `json:"updated_at"`
	Template    bool   `json:"template"`
	Description string `json:"description"`
	Type        string `json:"type"`
	GroupID     *int64 `json:"group_id"`
}

// Milestone as embedded in issue hooks
type Milestone struct {
	ID          int64  `json:"id"`
	IID         int64  `json:"iid"`
	Title       string `json:"title"`
	Description string `json:"description"`
	State       string `json:"state"`
	DueDate     Time   `json:"due_date"`
	WebURL      string `json:"web_url"`
}

// IssueAttributes is object_attributes of issue hooks and the issue of note hooks
type IssueAttributes struct {
	ID                  int64      `json:"id"`
	IID                 int64      `json:"iid"`
	ProjectID           int64      `json:"project_id"`
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	State               string     `json:"state"`
	Action              Action     `json:"action"`
	URL                 string     `json:"url"`
	AuthorID            int64      `json:"author_id"`
	AssigneeIDs         []int64    `json:"assignee_ids"`
	MilestoneID         *int64     `json:"milestone_id"`
	Milestone           *Milestone `json:"milestone"`
	CreatedAt           Time       `json:"created_at"`
	UpdatedAt           Time       `json:"updated_at"`
	ClosedAt            Time       `json:"closed_at"`
	DueDate             Time       `json:"due_date"`
	Confidential        bool       `json:"confidential"`
	DiscussionLocked    bool       `json:"discussion_locked"`
	TimeEstimate        int64      `json:"time_estimate"`
	TotalTimeSpent      int64      `json:"total_time_spent"`
	HumanTimeEstimate   string     `json:"human_time_estimate"`
	HumanTotalTimeSpent string     `json:"human_total_time_spent"`
	Weight              *int64     `json:"weight"`
	Labels              []Label    `json:"labels"`
}

// MergeRequestAttributes is object_attributes of merge request hooks and the
// merge request of note and pipeline hooks
type MergeRequestAttributes struct {
	ID              int64   `json:"id"`
	IID             int64   `json:"iid"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	State           string  `json:"state"`
	Action          Action  `json:"action"`
	URL             string  `json:"url"`
	SourceBranch    string  `json:"source_branch"`
	TargetBranch    string  `json:"target_branch"`
	SourceProjectID int64   `json:"source_project_id"`
	TargetProjectID int64   `json:"target_project_id"`
	MergeStatus     string  `json:"merge_status"`
	Draft           bool    `json:"draft"`
	WorkInProgress  bool    `json:"work_in_progress"`
	AuthorID        int64   `json:"author_id"`
	AssigneeIDs     []int64 `json:"assignee_ids"`
	MilestoneID     *int64  `json:"milestone_id"`
	MergeCommitSHA  string  `json:"merge_commit_sha"`
	LastCommit      *Commit `json:"last_commit"`
	OldRev          string  `json:"oldrev"`
	CreatedAt       Time    `json:"created_at"`
	UpdatedAt       Time    `json:"updated_at"`
	Labels          []Label `json:"labels"`
	TimeEstimate    int64   `json:"time_estimate"`
	TotalTimeSpent  int64   `json:"total_time_spent"`
}

// IsDraft reports whether the merge request is marked as draft
func (m *MergeRequestAttributes) IsDraft() bool {
	return m.Draft || m.WorkInProgress
}

// NoteAttributes is object_attributes of note hooks
type NoteAttributes struct {
	ID           int64        `json:"id"`
	Note         string       `json:"note"`
	NoteableType NoteableType `json:"noteable_type"`
	NoteableID   *int64       `json:"noteable_id"`
	AuthorID     int64        `json:"author_id"`
	CommitID     string       `json:"commit_id"`
	LineCode     string       `json:"line_code"`
	DiscussionID string       `json:"discussion_id"`
	System       bool         `json:"system"`
	Type         string       `json:"type"`
	URL          string       `json:"url"`
	CreatedAt    Time         `json:"created_at"`
	UpdatedAt    Time         `json:"updated_at"`
}

// Snippet commented on by a note hook
type Snippet struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	FileName   string `json:"file_name"`
	Visibility string `json:"visibility"`
	URL        string `json:"url"`
	CreatedAt  Time   `json:"created_at"`
	UpdatedAt  Time   `json:"updated_at"`
}

// Wiki is the wiki object of wiki page hooks
type Wiki struct {
	WebURL            string `json:"web_url"`
	GitSSHURL         string `json:"git_ssh_url"`
	GitHTTPURL        string `json:"git_http_url"`
	PathWithNamespace string `json:"path_with_namespace"`
	DefaultBranch     string `json:"default_branch"`
}

// WikiPageAttributes is object_attributes of wiki page hooks
type WikiPageAttributes struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Format  string `json:"format"`
	Message string `json:"message"`
	Slug    string `json:"slug"`
	URL     string `json:"url"`
	Action  Action `json:"action"`
	DiffURL string `json:"diff_url"`
}

// Runner that picked up a job
type Runner struct {
	ID          int64    `json:"id"`
	Description string   `json:"description"`
	RunnerType  string   `json:"runner_type"`
	Active      bool     `json:"active"`
	IsShared    bool     `json:"is_shared"`
	Tags        []string `json:"tags"`
}

// Artifact is the artifacts_file object of a build
type Artifact struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// Build is one job of a pipeline hook
type Build struct {
	ID             int64         `json:"id"`
	Stage          string        `json:"stage"`
	Name           string        `json:"name"`
	Status         BuildStatus   `json:"status"`
	CreatedAt      Time          `json:"created_at"`
	StartedAt      Time          `json:"started_at"`
	FinishedAt     Time          `json:"finished_at"`
	Duration       float64       `json:"duration"`
	QueuedDuration float64       `json:"queued_duration"`
	FailureReason  FailureReason `json:"failure_reason"`
	When           string        `json:"when"`
	Manual         bool          `json:"manual"`
	AllowFailure   bool          `json:"allow_failure"`
	User           *User         `json:"user"`
	Runner         *Runner       `json:"runner"`
	ArtifactsFile  *Artifact     `json:"artifacts_file"`
}

// PipelineAttributes is object_attributes of pipeline hooks
type PipelineAttributes struct {
	ID             int64       `json:"id"`
	IID            int64       `json:"iid"`
	Name           string      `json:"name"`
	Ref            string      `json:"ref"`
	Tag            bool        `json:"tag"`
	SHA            string      `json:"sha"`
	BeforeSHA      string      `json:"before_sha"`
	Source         string      `json:"source"`
	Status         BuildStatus `json:"status"`
	DetailedStatus string      `json:"detailed_status"`
	Stages         []string    `json:"stages"`
	CreatedAt      Time        `json:"created_at"`
	FinishedAt     Time        `json:"finished_at"`
	Duration       float64     `json:"duration"`
	QueuedDuration float64     `json:"queued_duration"`
	URL            string      `json:"url"`
}
