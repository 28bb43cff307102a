package store

import (
	"context"
	"sync"
)

// Memory is a Store that forgets everything on restart. Messages sent before
// a restart are not edited afterwards.
type Memory struct {
	mu       sync.RWMutex
	messages map[messageRef]string
	bindings map[string]string
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		messages: make(map[messageRef]string),
		bindings: make(map[string]string),
	}
}

func (m *Memory) GetMessage(_ context.Context, key, room string) (string, bool, error) {
	if key == "" {
		return "", false, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.messages[messageRef{key, room}]
	return id, ok, nil
}

func (m *Memory) PutMessage(_ context.Context, key, room, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[messageRef{key, room}] = messageID
	return nil
}

func (m *Memory) GetWebhookRoom(_ context.Context, token string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.bindings[token]
	return room, ok, nil
}

func (m *Memory) AddWebhookRoom(_ context.Context, binding Binding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings[binding.Token] = binding.Room
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() {}
