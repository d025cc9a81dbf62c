// Package cache invalidates entries of the notary server cache. Once a
// service has a fresh observation its cached answer must go away, a missing
// entry is fine.
package cache

import (
	"fmt"

	"github.com/CZERTAINLY/notary-scan/internal/model"
)

// Open returns the cache selected by cfg.Type, or nil when none is
// configured.
func Open(cfg model.CacheConfig) (model.CacheCloser, error) {
	switch cfg.Type {
	case model.CacheNone:
		return nil, nil
	case model.CacheMemcache:
		if len(cfg.Servers) == 0 {
			return nil, fmt.Errorf("memcache: no servers")
		}
		return NewMemcache(cfg.Servers...), nil
	case model.CacheMemcachier:
		if len(cfg.Servers) == 0 {
			return nil, fmt.Errorf("memcachier: no servers")
		}
		return NewMemcachier(cfg.Servers, cfg.Username, cfg.Password), nil
	case model.CacheRedis:
		r, err := NewRedis(cfg.URL)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unsupported cache type %q", cfg.Type)
	}
}
