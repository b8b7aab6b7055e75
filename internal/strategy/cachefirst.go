package strategy

import (
	"context"

	"github.com/discochess/swcache/internal/cachestore"
	"github.com/discochess/swcache/internal/fetch"
)

// Compile-time check that CacheFirst implements Strategy.
var _ Strategy = (*CacheFirst)(nil)

// CacheFirst serves fresh cached entries without touching the network.
// Stale or missing entries are refetched; a stale entry is still served
// when the network fails.
type CacheFirst struct {
	base
}

// NewCacheFirst creates a cache-first strategy over cfg.
func NewCacheFirst(env Env, cfg cachestore.Config, fallback Fallback) *CacheFirst {
	return &CacheFirst{base: newBase("cache-first", env, cfg, fallback)}
}

// Handle implements Strategy.
func (s *CacheFirst) Handle(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
	cached, hit := s.lookup(ctx, req)
	if hit && s.fresh(cached) {
		return cached.Response(), nil
	}

	resp, err := s.network(ctx, req)
	if err == nil {
		s.store(ctx, req, resp)
		return resp, nil
	}

	if hit {
		return cached.Response(), nil
	}
	return s.giveUp(ctx, req, err)
}
