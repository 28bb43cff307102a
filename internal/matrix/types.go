package matrix

import (
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

const (
	MsgTypeText   = event.MsgText
	MsgTypeNotice = event.MsgNotice

	FormatHTML = event.FormatHTML

	// MetaKey holds the webhook provenance attached to every message
	MetaKey = "hookbot.gitlab.webhook"
)

// Content is an m.room.message plus the webhook provenance
type Content struct {
	event.MessageEventContent
	Meta map[string]any
}

// NewContent builds message content from Markdown body and rendered HTML
func NewContent(body, html string, notice bool, meta map[string]any) *Content {
	msgType := MsgTypeText
	if notice {
		msgType = MsgTypeNotice
	}
	return &Content{
		MessageEventContent: event.MessageEventContent{
			MsgType:       msgType,
			Body:          body,
			Format:        FormatHTML,
			FormattedBody: html,
		},
		Meta: meta,
	}
}

// eventContent merges the provenance key into the message JSON
func eventContent(msg *event.MessageEventContent, meta map[string]any) *event.Content {
	content := &event.Content{Parsed: msg}
	if meta != nil {
		content.Raw = map[string]any{MetaKey: meta}
	}
	return content
}

// editOf returns a copy of c replacing the original event. c is not modified.
func (c *Content) editOf(original string) *event.MessageEventContent {
	msg := c.MessageEventContent
	msg.NewContent = nil
	msg.RelatesTo = nil
	msg.SetEdit(id.EventID(original))
	return &msg
}

// Membership values of m.room.member events
const (
	MembershipJoin   = string(event.MembershipJoin)
	MembershipLeave  = string(event.MembershipLeave)
	MembershipBan    = string(event.MembershipBan)
	MembershipInvite = string(event.MembershipInvite)
)

// MembershipChange is an m.room.member event about the bot's own user
type MembershipChange struct {
	RoomID     string
	Membership string
	Sender     string
}
