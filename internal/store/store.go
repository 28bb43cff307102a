// Package store persists the identity of sent messages and the webhook token
// bindings that route hooks to rooms.
package store

import (
	"context"
)

// MessageStore remembers which message was sent for a message key in a room,
// so later deliveries for the same key can edit it.
type MessageStore interface {
	// GetMessage returns the stored message id. An empty key is never
	// stored and always reports not found.
	GetMessage(ctx context.Context, key, room string) (string, bool, error)
	// PutMessage stores the id, replacing any previous one for (key, room)
	PutMessage(ctx context.Context, key, room, messageID string) error
}

// Binding routes hooks authenticated with Token to Room
type Binding struct {
	Token   string
	Room    string
	Project string // project the hook was registered on, informational
}

// BindingStore holds per-room webhook tokens
type BindingStore interface {
	GetWebhookRoom(ctx context.Context, token string) (string, bool, error)
	AddWebhookRoom(ctx context.Context, binding Binding) error
}

// Store is the full persistence surface used by the service
type Store interface {
	MessageStore
	BindingStore
	Ping(ctx context.Context) error
	Close()
}

type messageRef struct {
	key  string
	room string
}
