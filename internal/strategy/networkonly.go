package strategy

import (
	"context"

	"github.com/discochess/swcache/internal/cachestore"
	"github.com/discochess/swcache/internal/fetch"
)

// Compile-time check that NetworkOnly implements Strategy.
var _ Strategy = (*NetworkOnly)(nil)

// NetworkOnly fetches from the network and, on failure, tries a read-only
// cache lookup. It never writes to a store. An empty cfg.Name searches every
// store.
type NetworkOnly struct {
	base
}

// NewNetworkOnly creates a network-only strategy.
func NewNetworkOnly(env Env, cfg cachestore.Config) *NetworkOnly {
	return &NetworkOnly{base: newBase("network-only", env, cfg, nil)}
}

// Handle implements Strategy.
func (s *NetworkOnly) Handle(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
	resp, err := s.network(ctx, req)
	if err == nil {
		return resp, nil
	}
	if cached, ok := s.lookup(ctx, req); ok {
		return cached.Response(), nil
	}
	return s.giveUp(ctx, req, err)
}
