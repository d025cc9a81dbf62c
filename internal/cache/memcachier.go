package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/memcachier/mc/v3"
)

// Memcachier talks to memcached servers over the binary protocol with SASL
// authentication, as used by MemCachier.
type Memcachier struct {
	client *mc.Client
}

func NewMemcachier(servers []string, username, password string) *Memcachier {
	return &Memcachier{
		client: mc.NewMC(strings.Join(servers, ","), username, password),
	}
}

func (m *Memcachier) Destroy(_ context.Context, key string) error {
	err := m.client.Del(key)
	if err == nil || errors.Is(err, mc.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("memcachier delete %q: %w", key, err)
}

func (m *Memcachier) Close() error {
	m.client.Quit()
	return nil
}
