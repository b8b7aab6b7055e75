package strategy

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/discochess/swcache/internal/cachestore"
	"github.com/discochess/swcache/internal/fetch"
	"github.com/discochess/swcache/internal/stats"
)

// Compile-time check that StaleWhileRevalidate implements Strategy.
var _ Strategy = (*StaleWhileRevalidate)(nil)

// StaleWhileRevalidate serves any cached entry immediately, regardless of
// age, and refreshes the store in the background. Concurrent refreshes of
// the same key collapse into one network request.
type StaleWhileRevalidate struct {
	base

	group   singleflight.Group
	pending sync.WaitGroup
}

// NewStaleWhileRevalidate creates a stale-while-revalidate strategy over cfg.
func NewStaleWhileRevalidate(env Env, cfg cachestore.Config, fallback Fallback) *StaleWhileRevalidate {
	return &StaleWhileRevalidate{base: newBase("stale-while-revalidate", env, cfg, fallback)}
}

// Handle implements Strategy.
func (s *StaleWhileRevalidate) Handle(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
	if cached, ok := s.lookup(ctx, req); ok {
		s.revalidate(ctx, req)
		return cached.Response(), nil
	}

	resp, err := s.network(ctx, req)
	if err == nil {
		s.store(ctx, req, resp)
		return resp, nil
	}
	return s.giveUp(ctx, req, err)
}

// Wait blocks until all background revalidations have finished.
func (s *StaleWhileRevalidate) Wait() {
	s.pending.Wait()
}

func (s *StaleWhileRevalidate) revalidate(ctx context.Context, req *fetch.Request) {
	// The refresh outlives the request that triggered it.
	bg := context.WithoutCancel(ctx)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		_, err, shared := s.group.Do(req.Key(), func() (any, error) {
			s.env.Stats.IncCounter(stats.MetricRevalidations, 1)
			resp, err := s.network(bg, req)
			if err != nil {
				return nil, err
			}
			s.store(bg, req, resp)
			return nil, nil
		})
		if err != nil && !shared {
			s.logger.Debug("revalidation failed", zap.String("key", req.Key()), zap.Error(err))
		}
	}()
}
