package render

import (
	"fmt"
	"strings"

	"github.com/redhat-data-and-ai/hookbot/internal/gitlab"
)

const dateLayout = "Jan 2, 2006"

func defaultTemplates() map[string]Template {
	return map[string]Template{
		"push":          pushTemplate,
		"tag":           tagTemplate,
		"issue_open":    issueStateTemplate,
		"issue_close":   issueStateTemplate,
		"issue_reopen":  issueStateTemplate,
		"issue_update":  fieldUpdateTemplate,
		"merge_request": mergeRequestTemplate,
		"comment":       commentTemplate,
		"wiki":          wikiTemplate,
		"pipeline":      pipelineTemplate,
	}
}

func code(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "'") + "`"
}

func pushTemplate(c *Context, evt gitlab.Event) string {
	push, ok := evt.(*gitlab.PushEvent)
	if !ok {
		return c.Abort()
	}

	var b strings.Builder
	user := c.User(push.User())
	project := c.Project(push.Project)
	noun := string(push.RefType())

	switch {
	case push.IsDeletedRef():
		fmt.Fprintf(&b, "%s deleted %s %s in %s", user, noun, code(push.RefName()), project)
		return b.String()
	case push.IsNewRef():
		fmt.Fprintf(&b, "%s created %s %s in %s", user, noun, Link(push.RefName(), push.RefURL()), project)
		if push.TotalCommitsCount > 0 {
			fmt.Fprintf(&b, " with %s", Link(Pluralize(push.TotalCommitsCount, "commit"), push.DiffURL()))
		}
	case push.TotalCommitsCount == 0:
		fmt.Fprintf(&b, "%s pushed to %s in %s", user, Link(push.RefName(), push.RefURL()), project)
	default:
		fmt.Fprintf(&b, "%s pushed %s to %s in %s", user,
			Link(Pluralize(push.TotalCommitsCount, "commit"), push.DiffURL()),
			Link(push.RefName(), push.RefURL()), project)
	}

	if c.ShowDetails() && len(push.Commits) > 0 {
		b.WriteString("\n\n")
		for _, commit := range push.CommitsNewestFirst() {
			fmt.Fprintf(&b, "- %s %s\n", CodeLink(commit.ShortID(), commit.URL), Escape(CutMessage(commit.Message)))
		}
		if omitted := push.OmittedCommits(); omitted > 0 {
			fmt.Fprintf(&b, "- and %d more\n", omitted)
		}
	}
	return b.String()
}

func tagTemplate(c *Context, evt gitlab.Event) string {
	push, ok := evt.(*gitlab.PushEvent)
	if !ok {
		return c.Abort()
	}

	user := c.User(push.User())
	project := c.Project(push.Project)

	switch {
	case push.IsDeletedRef():
		return fmt.Sprintf("%s deleted tag %s in %s", user, code(push.RefName()), project)
	case push.IsNewRef():
		text := fmt.Sprintf("%s created tag %s in %s", user, Link(push.RefName(), push.RefURL()), project)
		if c.ShowDetails() && strings.TrimSpace(push.Message) != "" {
			text += "\n\n" + quote(Escape(push.Message))
		}
		return text
	default:
		return fmt.Sprintf("%s moved tag %s in %s", user, Link(push.RefName(), push.RefURL()), project)
	}
}

func issueStateTemplate(c *Context, evt gitlab.Event) string {
	issue, ok := evt.(*gitlab.IssueEvent)
	if !ok {
		return c.Abort()
	}
	attrs := issue.ObjectAttributes

	noun := "issue"
	if issue.IsConfidential() {
		noun = "confidential issue"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s %s in %s",
		c.User(issue.User), attrs.Action.PastTense(), noun,
		Link(fmt.Sprintf("#%d %s", attrs.IID, attrs.Title), attrs.URL),
		c.Project(issue.Project))

	if attrs.Action != gitlab.ActionOpen {
		return b.String()
	}
	labels := issue.Labels
	if len(labels) == 0 {
		labels = attrs.Labels
	}
	if len(labels) > 0 {
		b.WriteString("\n" + c.Labels(labels))
	}
	if len(issue.Assignees) > 0 {
		b.WriteString("\nAssigned to " + c.Users(issue.Assignees))
	}
	if c.ShowDetails() && strings.TrimSpace(attrs.Description) != "" {
		b.WriteString("\n\n" + quote(Escape(attrs.Description)))
	}
	return b.String()
}

// fieldUpdateTemplate describes a single changed field of an issue or merge
// request. Bookkeeping fields such as updated_at produce no message.
func fieldUpdateTemplate(c *Context, evt gitlab.Event) string {
	obj, ok := evt.(gitlab.Trackable)
	if !ok {
		return c.Abort()
	}
	changes := obj.ChangeSet()
	if changes == nil {
		return c.Abort()
	}

	user := c.User(obj.Actor())
	ref := obj.ObjectNoun() + " " + Link(obj.Reference(), obj.ObjectURL())
	full := obj.ObjectNoun() + " " + Link(obj.Reference()+" "+obj.ObjectTitle(), obj.ObjectURL())

	var text string
	switch changes.Field() {
	case gitlab.FieldTitle:
		text = fmt.Sprintf("%s renamed %s from ~~%s~~ to **%s**", user, ref,
			Escape(changes.Title.Previous), Escape(changes.Title.Current))

	case gitlab.FieldDescription:
		text = fmt.Sprintf("%s edited the description of %s", user, full)
		if c.ShowDetails() && strings.TrimSpace(changes.Description.Current) != "" {
			return text + " in " + c.Project(obj.ProjectInfo()) + "\n\n" + quote(Escape(changes.Description.Current))
		}

	case gitlab.FieldLabels:
		added, removed := changes.Labels.Added(), changes.Labels.Removed()
		switch {
		case len(added) > 0 && len(removed) > 0:
			text = fmt.Sprintf("%s added %s and removed %s on %s", user, c.Labels(added), c.Labels(removed), full)
		case len(added) > 0:
			text = fmt.Sprintf("%s added %s to %s", user, c.Labels(added), full)
		case len(removed) > 0:
			text = fmt.Sprintf("%s removed %s from %s", user, c.Labels(removed), full)
		default:
			return c.Abort()
		}

	case gitlab.FieldAssignees:
		added, removed := changes.Assignees.Added(), changes.Assignees.Removed()
		switch {
		case len(added) > 0 && len(removed) > 0:
			text = fmt.Sprintf("%s assigned %s and unassigned %s on %s", user, c.Users(added), c.Users(removed), full)
		case len(added) > 0:
			text = fmt.Sprintf("%s assigned %s to %s", user, c.Users(added), full)
		case len(removed) > 0:
			text = fmt.Sprintf("%s unassigned %s from %s", user, c.Users(removed), full)
		default:
			return c.Abort()
		}

	case gitlab.FieldMilestoneID:
		switch {
		case changes.MilestoneID.Current == nil:
			text = fmt.Sprintf("%s removed the milestone from %s", user, full)
		case changes.MilestoneID.Previous == nil:
			text = fmt.Sprintf("%s set the milestone of %s", user, full)
		default:
			text = fmt.Sprintf("%s changed the milestone of %s", user, full)
		}
		if issue, ok := obj.(*gitlab.IssueEvent); ok && changes.MilestoneID.Current != nil &&
			issue.ObjectAttributes.Milestone != nil {
			text += " to **" + Escape(issue.ObjectAttributes.Milestone.Title) + "**"
		}

	case gitlab.FieldTimeEstimate:
		if changes.TimeEstimate.Current == 0 {
			text = fmt.Sprintf("%s removed the time estimate of %s", user, full)
		} else {
			text = fmt.Sprintf("%s set the time estimate of %s to %s", user, full,
				FormatDuration(float64(changes.TimeEstimate.Current)))
		}

	case gitlab.FieldTotalTimeSpent:
		diff := changes.TotalTimeSpent.Current - changes.TotalTimeSpent.Previous
		switch {
		case changes.TotalTimeSpent.Current == 0:
			text = fmt.Sprintf("%s removed the time spent on %s", user, full)
		case diff > 0:
			text = fmt.Sprintf("%s logged %s on %s", user, FormatDuration(float64(diff)), full)
		case diff < 0:
			text = fmt.Sprintf("%s subtracted %s of time spent on %s", user, FormatDuration(float64(-diff)), full)
		default:
			return c.Abort()
		}

	case gitlab.FieldWeight:
		if changes.Weight.Current == nil {
			text = fmt.Sprintf("%s removed the weight of %s", user, full)
		} else {
			text = fmt.Sprintf("%s set the weight of %s to %d", user, full, *changes.Weight.Current)
		}

	case gitlab.FieldDueDate:
		if changes.DueDate.Current.IsZero() {
			text = fmt.Sprintf("%s removed the due date of %s", user, full)
		} else {
			text = fmt.Sprintf("%s set the due date of %s to %s", user, full, changes.DueDate.Current.Format(dateLayout))
		}

	case gitlab.FieldConfidential:
		if changes.Confidential.Current {
			text = fmt.Sprintf("%s made %s confidential", user, full)
		} else {
			text = fmt.Sprintf("%s made %s public", user, full)
		}

	case gitlab.FieldDiscussionLocked:
		if changes.DiscussionLocked.Current {
			text = fmt.Sprintf("%s locked the discussion on %s", user, full)
		} else {
			text = fmt.Sprintf("%s unlocked the discussion on %s", user, full)
		}

	default:
		return c.Abort()
	}

	return text + " in " + c.Project(obj.ProjectInfo())
}

func mergeRequestTemplate(c *Context, evt gitlab.Event) string {
	mr, ok := evt.(*gitlab.MergeRequestEvent)
	if !ok {
		return c.Abort()
	}
	attrs := mr.ObjectAttributes

	user := c.User(mr.User)
	project := c.Project(mr.Project)
	link := Link(fmt.Sprintf("!%d %s", attrs.IID, attrs.Title), attrs.URL)

	var b strings.Builder
	switch attrs.Action {
	case gitlab.ActionOpen:
		noun := "merge request"
		if attrs.IsDraft() {
			noun = "draft merge request"
		}
		fmt.Fprintf(&b, "%s opened %s %s in %s\n%s → %s", user, noun, link, project,
			code(attrs.SourceBranch), code(attrs.TargetBranch))
		labels := mr.Labels
		if len(labels) == 0 {
			labels = attrs.Labels
		}
		if len(labels) > 0 {
			b.WriteString("\n" + c.Labels(labels))
		}
		if c.ShowDetails() && strings.TrimSpace(attrs.Description) != "" {
			b.WriteString("\n\n" + quote(Escape(attrs.Description)))
		}

	case gitlab.ActionMerge:
		fmt.Fprintf(&b, "%s merged merge request %s into %s in %s", user, link, code(attrs.TargetBranch), project)

	case gitlab.ActionClose, gitlab.ActionReopen, gitlab.ActionApproved, gitlab.ActionApproval,
		gitlab.ActionUnapproved, gitlab.ActionUnapproval:
		fmt.Fprintf(&b, "%s %s merge request %s in %s", user, attrs.Action.PastTense(), link, project)

	case gitlab.ActionUpdate:
		// an update without field changes means new commits were pushed
		if attrs.OldRev == "" {
			return c.Abort()
		}
		fmt.Fprintf(&b, "%s pushed to merge request %s in %s", user, link, project)
		if c.ShowDetails() && attrs.LastCommit != nil {
			fmt.Fprintf(&b, "\n\n- %s %s", CodeLink(attrs.LastCommit.ShortID(), attrs.LastCommit.URL),
				Escape(CutMessage(attrs.LastCommit.Message)))
		}

	default:
		return c.Abort()
	}
	return b.String()
}

func commentTemplate(c *Context, evt gitlab.Event) string {
	note, ok := evt.(*gitlab.CommentEvent)
	if !ok {
		return c.Abort()
	}
	attrs := note.ObjectAttributes
	if !attrs.NoteableType.IsKnown() {
		return c.Abort()
	}

	title, ref, url := note.Target()
	target := strings.TrimSpace(ref + " " + title)

	verb := "commented"
	if note.Hook() == gitlab.HookConfidentialNote {
		verb = "commented confidentially"
	}

	text := fmt.Sprintf("%s %s on %s %s in %s",
		c.User(note.User), Link(verb, attrs.URL), attrs.NoteableType.Text(),
		Link(target, url), c.Project(note.Project))
	if c.ShowDetails() && strings.TrimSpace(attrs.Note) != "" {
		text += "\n\n" + quote(Escape(attrs.Note))
	}
	return text
}

func wikiTemplate(c *Context, evt gitlab.Event) string {
	wiki, ok := evt.(*gitlab.WikiPageEvent)
	if !ok {
		return c.Abort()
	}
	attrs := wiki.ObjectAttributes

	user := c.User(wiki.User)
	project := c.Project(wiki.Project)

	switch attrs.Action {
	case gitlab.ActionDelete:
		return fmt.Sprintf("%s deleted wiki page **%s** in %s", user, Escape(attrs.Title), project)
	case gitlab.ActionCreate, gitlab.ActionUpdate:
		text := fmt.Sprintf("%s %s wiki page %s in %s", user, attrs.Action.PastTense(),
			Link(attrs.Title, attrs.URL), project)
		if c.ShowDetails() && strings.TrimSpace(attrs.Message) != "" {
			text += "\n\n" + quote(Escape(attrs.Message))
		}
		return text
	default:
		return c.Abort()
	}
}

func pipelineTemplate(c *Context, evt gitlab.Event) string {
	pipeline, ok := evt.(*gitlab.PipelineEvent)
	if !ok {
		return c.Abort()
	}
	attrs := pipeline.ObjectAttributes

	head := fmt.Sprintf("%s Pipeline %s for %s in %s", attrs.Status.Circle(),
		Link(fmt.Sprintf("#%d", attrs.ID), pipeline.URL()),
		Link(attrs.Ref, pipeline.RefURL()), c.Project(pipeline.Project))

	after := ""
	if attrs.Duration > 0 {
		after = " after " + FormatDuration(attrs.Duration)
	}

	switch attrs.Status {
	case gitlab.BuildStatusPending:
		return head + " is pending"
	case gitlab.BuildStatusRunning:
		return head + " is running"
	case gitlab.BuildStatusSuccess:
		return head + " passed" + after
	case gitlab.BuildStatusCanceled:
		return head + " was canceled" + after
	case gitlab.BuildStatusSkipped:
		return head + " was skipped"
	case gitlab.BuildStatusManual:
		return head + " is waiting for a manual action"
	case gitlab.BuildStatusFailed:
		var b strings.Builder
		b.WriteString(head + " failed" + after)
		if failed := pipeline.FailedBuilds(); len(failed) > 0 {
			b.WriteString("\n\n")
			for _, build := range failed {
				fmt.Fprintf(&b, "- %s (%s): %s\n", Link(build.Name, pipeline.BuildURL(build)),
					Escape(build.Stage), Escape(build.FailureReason.Text()))
			}
		}
		return b.String()
	default:
		return c.Abort()
	}
}
