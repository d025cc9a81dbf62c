package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/bradfitz/gomemcache/memcache"
)

// Memcache talks to plain memcached servers
type Memcache struct {
	client *memcache.Client
}

func NewMemcache(servers ...string) *Memcache {
	return &Memcache{client: memcache.New(servers...)}
}

func (m *Memcache) Destroy(_ context.Context, key string) error {
	err := m.client.Delete(key)
	if err == nil || errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return fmt.Errorf("memcache delete %q: %w", key, err)
}

// Close is a no-op, idle connections are closed by the client.
func (m *Memcache) Close() error {
	return nil
}
