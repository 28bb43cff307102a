package gitlab

// Change is the previous/current pair GitLab sends for a changed field
type Change[T any] struct {
	Previous T `json:"previous"`
	Current  T `json:"current"`
}

// LabelChange is a change of the label set
type LabelChange struct {
	Previous []Label `json:"previous"`
	Current  []Label `json:"current"`
}

// Added returns labels present now but not before
func (c *LabelChange) Added() []Label {
	return labelDiff(c.Current, c.Previous)
}

// Removed returns labels present before but not now
func (c *LabelChange) Removed() []Label {
	return labelDiff(c.Previous, c.Current)
}

func labelDiff(a, b []Label) []Label {
	seen := make(map[int64]bool, len(b))
	for _, l := range b {
		seen[l.ID] = true
	}
	var out []Label
	for _, l := range a {
		if !seen[l.ID] {
			out = append(out, l)
		}
	}
	return out
}

// UserChange is a change of the assignee or reviewer set
type UserChange struct {
	Previous []User `json:"previous"`
	Current  []User `json:"current"`
}

// Added returns users present now but not before
func (c *UserChange) Added() []User {
	return userDiff(c.Current, c.Previous)
}

// Removed returns users present before but not now
func (c *UserChange) Removed() []User {
	return userDiff(c.Previous, c.Current)
}

func userDiff(a, b []User) []User {
	seen := make(map[int64]bool, len(b))
	for _, u := range b {
		seen[u.ID] = true
	}
	var out []User
	for _, u := range a {
		if !seen[u.ID] {
			out = append(out, u)
		}
	}
	return out
}

func (c *UserChange) setWebURLs(base string) {
	for i := range c.Previous {
		c.Previous[i].setWebURL(base)
	}
	for i := range c.Current {
		c.Current[i].setWebURL(base)
	}
}

// Field names of a change set, in the order updates are split.
const (
	FieldCreatedAt        = "created_at"
	FieldUpdatedAt        = "updated_at"
	FieldUpdatedBy        = "updated_by_id"
	FieldAuthorID         = "author_id"
	FieldID               = "id"
	FieldIID              = "iid"
	FieldProjectID        = "project_id"
	FieldMilestoneID      = "milestone_id"
	FieldDescription      = "description"
	FieldTitle            = "title"
	FieldLabels           = "labels"
	FieldAssignees        = "assignees"
	FieldTimeEstimate     = "time_estimate"
	FieldTotalTimeSpent   = "total_time_spent"
	FieldWeight           = "weight"
	FieldDueDate          = "due_date"
	FieldConfidential     = "confidential"
	FieldDiscussionLocked = "discussion_locked"
)

// Changes is the changes object of issue and merge request hooks. Fields
// that did not change are nil.
type Changes struct {
	CreatedAt        *Change[Time]   `json:"created_at,omitempty"`
	UpdatedAt        *Change[Time]   `json:"updated_at,omitempty"`
	UpdatedBy        *Change[*int64] `json:"updated_by_id,omitempty"`
	AuthorID         *Change[int64]  `json:"author_id,omitempty"`
	ID               *Change[int64]  `json:"id,omitempty"`
	IID              *Change[int64]  `json:"iid,omitempty"`
	ProjectID        *Change[int64]  `json:"project_id,omitempty"`
	MilestoneID      *Change[*int64] `json:"milestone_id,omitempty"`
	Description      *Change[string] `json:"description,omitempty"`
	Title            *Change[string] `json:"title,omitempty"`
	Labels           *LabelChange    `json:"labels,omitempty"`
	Assignees        *UserChange     `json:"assignees,omitempty"`
	TimeEstimate     *Change[int64]  `json:"time_estimate,omitempty"`
	TotalTimeSpent   *Change[int64]  `json:"total_time_spent,omitempty"`
	Weight           *Change[*int64] `json:"weight,omitempty"`
	DueDate          *Change[Time]   `json:"due_date,omitempty"`
	Confidential     *Change[bool]   `json:"confidential,omitempty"`
	DiscussionLocked *Change[bool]   `json:"discussion_locked,omitempty"`
}

func (c *Changes) setWebURLs(base string) {
	if c != nil && c.Assignees != nil {
		c.Assignees.setWebURLs(base)
	}
}

// Split returns one change set per changed field, in field order
func (c *Changes) Split() []*Changes {
	if c == nil {
		return nil
	}
	var out []*Changes
	add := func(set bool, fill func(*Changes)) {
		if set {
			single := &Changes{}
			fill(single)
			out = append(out, single)
		}
	}
	add(c.CreatedAt != nil, func(s *Changes) { s.CreatedAt = c.CreatedAt })
	add(c.UpdatedAt != nil, func(s *Changes) { s.UpdatedAt = c.UpdatedAt })
	add(c.UpdatedBy != nil, func(s *Changes) { s.UpdatedBy = c.UpdatedBy })
	add(c.AuthorID != nil, func(s *Changes) { s.AuthorID = c.AuthorID })
	add(c.ID != nil, func(s *Changes) { s.ID = c.ID })
	add(c.IID != nil, func(s *Changes) { s.IID = c.IID })
	add(c.ProjectID != nil, func(s *Changes) { s.ProjectID = c.ProjectID })
	add(c.MilestoneID != nil, func(s *Changes) { s.MilestoneID = c.MilestoneID })
	add(c.Description != nil, func(s *Changes) { s.Description = c.Description })
	add(c.Title != nil, func(s *Changes) { s.Title = c.Title })
	add(c.Labels != nil, func(s *Changes) { s.Labels = c.Labels })
	add(c.Assignees != nil, func(s *Changes) { s.Assignees = c.Assignees })
	add(c.TimeEstimate != nil, func(s *Changes) { s.TimeEstimate = c.TimeEstimate })
	add(c.TotalTimeSpent != nil, func(s *Changes) { s.TotalTimeSpent = c.TotalTimeSpent })
	add(c.Weight != nil, func(s *Changes) { s.Weight = c.Weight })
	add(c.DueDate != nil, func(s *Changes) { s.DueDate = c.DueDate })
	add(c.Confidential != nil, func(s *Changes) { s.Confidential = c.Confidential })
	add(c.DiscussionLocked != nil, func(s *Changes) { s.DiscussionLocked = c.DiscussionLocked })
	return out
}

// Field names the first changed field, or "" for an empty change set
func (c *Changes) Field() string {
	if fields := c.Fields(); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// Fields names every changed field, in field order
func (c *Changes) Fields() []string {
	if c == nil {
		return nil
	}
	var names []string
	check := func(set bool, name string) {
		if set {
			names = append(names, name)
		}
	}
	check(c.CreatedAt != nil, FieldCreatedAt)
	check(c.UpdatedAt != nil, FieldUpdatedAt)
	check(c.UpdatedBy != nil, FieldUpdatedBy)
	check(c.AuthorID != nil, FieldAuthorID)
	check(c.ID != nil, FieldID)
	check(c.IID != nil, FieldIID)
	check(c.ProjectID != nil, FieldProjectID)
	check(c.MilestoneID != nil, FieldMilestoneID)
	check(c.Description != nil, FieldDescription)
	check(c.Title != nil, FieldTitle)
	check(c.Labels != nil, FieldLabels)
	check(c.Assignees != nil, FieldAssignees)
	check(c.TimeEstimate != nil, FieldTimeEstimate)
	check(c.TotalTimeSpent != nil, FieldTotalTimeSpent)
	check(c.Weight != nil, FieldWeight)
	check(c.DueDate != nil, FieldDueDate)
	check(c.Confidential != nil, FieldConfidential)
	check(c.DiscussionLocked != nil, FieldDiscussionLocked)
	return names
}
