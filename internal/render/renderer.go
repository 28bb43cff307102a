package render

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/redhat-data-and-ai/hookbot/internal/errors"
	"github.com/redhat-data-and-ai/hookbot/internal/gitlab"
	"github.com/redhat-data-and-ai/hookbot/internal/logging"
)

// Options control how messages look
type Options struct {
	SendAsNotice bool
	TimeFormat   string
	HideDetails  bool
}

// Message is one rendered notification
type Message struct {
	Body       string // Markdown source with label badges stripped
	HTML       string
	MessageKey string // empty when the event is not tracked
	Meta       map[string]any
}

// Template renders one sub-event as Markdown. Templates call c.Abort() when
// the event does not warrant a message.
type Template func(c *Context, evt gitlab.Event) string

// Context is passed to templates. It carries the options and the helpers
// templates format values with.
type Context struct {
	Options
	aborted bool
}

// Abort suppresses the message of the current sub-event
func (c *Context) Abort() string {
	c.aborted = true
	return ""
}

// ShowDetails reports whether bodies, descriptions and commit lists are shown
func (c *Context) ShowDetails() bool {
	return !c.HideDetails
}

// Time formats a timestamp with the configured layout
func (c *Context) Time(t gitlab.Time) string {
	return t.Format(c.TimeFormat)
}

// User links a user's name to their profile
func (c *Context) User(u *gitlab.User) string {
	if u == nil {
		return "someone"
	}
	name := u.Name
	if name == "" {
		name = u.Username
	}
	dest, ok := safeURL(u.WebURL)
	if !ok {
		return "**" + Escape(name) + "**"
	}
	return fmt.Sprintf("[**%s**](%s)", Escape(name), dest)
}

// Users joins several user links into a human list
func (c *Context) Users(users []gitlab.User) string {
	links := make([]string, 0, len(users))
	for i := range users {
		links = append(links, c.User(&users[i]))
	}
	return JoinHumanList(links)
}

// Project links the project by its full path
func (c *Context) Project(p *gitlab.Project) string {
	if p == nil {
		return ""
	}
	return Link(p.FullName(), p.WebURL)
}

// Label renders a colored label badge. Labels with unusable colors are shown
// as inline code.
func (c *Context) Label(l gitlab.Label) string {
	fg, err := LabelForeground(l.Color)
	if err != nil {
		return "`" + strings.ReplaceAll(l.Title, "`", "'") + "`"
	}
	return fmt.Sprintf(`<font data-mx-bg-color="%s" data-mx-color="%s">%s</font>`,
		html.EscapeString(l.Color), fg, BoldScope(l.Title))
}

// Labels renders several label badges separated by spaces
func (c *Context) Labels(labels []gitlab.Label) string {
	badges := make([]string, 0, len(labels))
	for _, l := range labels {
		badges = append(badges, c.Label(l))
	}
	return strings.Join(badges, " ")
}

// Renderer turns decoded events into messages using the registered templates
type Renderer struct {
	opts      Options
	templates map[string]Template
	logger    *logging.Logger
}

// NewRenderer creates a renderer with the built-in templates
func NewRenderer(opts Options) *Renderer {
	return &Renderer{
		opts:      opts,
		templates: defaultTemplates(),
		logger:    logging.GetLogger(),
	}
}

// Register adds or replaces a template
func (r *Renderer) Register(name string, tpl Template) {
	r.templates[name] = tpl
}

// TemplateNames lists the registered templates in sorted order
func (r *Renderer) TemplateNames() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Options returns the options the renderer was created with
func (r *Renderer) Options() Options {
	return r.opts
}

// Render preprocesses the event and renders every sub-event that has a
// template and was not aborted. Events without a template yield no messages.
func (r *Renderer) Render(evt gitlab.Event) ([]Message, error) {
	var messages []Message

	for _, sub := range evt.Preprocess() {
		name := sub.TemplateName()
		tpl, ok := r.templates[name]
		if !ok {
			r.logger.Debug("Unhandled event from GitLab",
				zap.String("event_type", string(sub.Hook())),
				zap.String("template", name))
			continue
		}

		c := &Context{Options: r.opts}
		text := tpl(c, sub)
		if c.aborted || strings.TrimSpace(text) == "" {
			r.logger.Debug("Template produced no message",
				zap.String("event_type", string(sub.Hook())),
				zap.String("template", name))
			continue
		}

		markdown := Normalize(text)
		formatted, err := ToHTML(markdown)
		if err != nil {
			return messages, apperrors.NewErrorWithCause(apperrors.ErrRenderFailed,
				fmt.Sprintf("Failed to render %s template", name), err).
				WithContext("event_type", string(sub.Hook()))
		}

		meta := map[string]any{"event_type": string(sub.Hook())}
		for k, v := range sub.Meta() {
			meta[k] = v
		}

		messages = append(messages, Message{
			Body:       plainText(markdown),
			HTML:       formatted,
			MessageKey: sub.MessageKey(),
			Meta:       meta,
		})
	}

	return messages, nil
}
