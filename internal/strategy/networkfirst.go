package strategy

import (
	"context"

	"github.com/discochess/swcache/internal/cachestore"
	"github.com/discochess/swcache/internal/fetch"
)

// Compile-time check that NetworkFirst implements Strategy.
var _ Strategy = (*NetworkFirst)(nil)

// NetworkFirst always asks the network and falls back to the cache.
type NetworkFirst struct {
	base
}

// NewNetworkFirst creates a network-first strategy over cfg.
func NewNetworkFirst(env Env, cfg cachestore.Config, fallback Fallback) *NetworkFirst {
	return &NetworkFirst{base: newBase("network-first", env, cfg, fallback)}
}

// Handle implements Strategy.
func (s *NetworkFirst) Handle(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
	resp, err := s.network(ctx, req)
	if err == nil {
		s.store(ctx, req, resp)
		return resp, nil
	}

	if cached, ok := s.lookup(ctx, req); ok {
		return cached.Response(), nil
	}
	return s.giveUp(ctx, req, err)
}
