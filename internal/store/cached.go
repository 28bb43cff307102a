package store

import (
	"context"

	"github.com/dgraph-io/ristretto/v2"
)

const bindingPrefix = "binding\x00"

// Cached puts an in-process read-through cache in front of another Store.
// Every entry costs 1, so maxCost is the number of cached records.
type Cached struct {
	inner Store
	cache *ristretto.Cache[string, string]
}

// NewCached wraps inner with a cache holding up to maxCost records
func NewCached(inner Store, maxCost int64) (*Cached, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: maxCost * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cached{inner: inner, cache: c}, nil
}

func messageCacheKey(key, room string) string {
	return key + "\x00" + room
}

func (s *Cached) GetMessage(ctx context.Context, key, room string) (string, bool, error) {
	if key == "" {
		return "", false, nil
	}

	ck := messageCacheKey(key, room)
	if id, ok := s.cache.Get(ck); ok {
		return id, true, nil
	}

	id, ok, err := s.inner.GetMessage(ctx, key, room)
	if err != nil || !ok {
		return id, ok, err
	}
	s.cache.Set(ck, id, 1)
	return id, true, nil
}

// PutMessage writes through. The cache entry is replaced only after the
// inner store accepted the write.
func (s *Cached) PutMessage(ctx context.Context, key, room, messageID string) error {
	ck := messageCacheKey(key, room)
	if err := s.inner.PutMessage(ctx, key, room, messageID); err != nil {
		s.cache.Del(ck)
		return err
	}
	s.cache.Del(ck)
	s.cache.Set(ck, messageID, 1)
	s.cache.Wait()
	return nil
}

func (s *Cached) GetWebhookRoom(ctx context.Context, token string) (string, bool, error) {
	ck := bindingPrefix + token
	if room, ok := s.cache.Get(ck); ok {
		return room, true, nil
	}

	room, ok, err := s.inner.GetWebhookRoom(ctx, token)
	if err != nil || !ok {
		return room, ok, err
	}
	s.cache.Set(ck, room, 1)
	return room, true, nil
}

func (s *Cached) AddWebhookRoom(ctx context.Context, binding Binding) error {
	ck := bindingPrefix + binding.Token
	s.cache.Del(ck)
	if err := s.inner.AddWebhookRoom(ctx, binding); err != nil {
		return err
	}
	s.cache.Set(ck, binding.Room, 1)
	s.cache.Wait()
	return nil
}

func (s *Cached) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

// Close closes the cache and the wrapped store
func (s *Cached) Close() {
	s.cache.Close()
	s.inner.Close()
}
