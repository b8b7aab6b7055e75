// Package strategy implements the cache strategies that answer intercepted
// requests: cache-first, network-first, stale-while-revalidate and
// network-only with a cache fallback.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/discochess/swcache/internal/cachestore"
	"github.com/discochess/swcache/internal/fetch"
	"github.com/discochess/swcache/internal/stats"
)

// Strategy answers a request from the network, a cache store, or both.
type Strategy interface {
	// Name identifies the strategy in logs.
	Name() string

	// Handle returns a response or the failure that prevented one.
	Handle(ctx context.Context, req *fetch.Request) (*fetch.Response, error)
}

// Fallback produces a substitute response when neither network nor cache
// can answer, e.g. the offline page for navigations. ok is false when no
// substitute applies to req.
type Fallback func(ctx context.Context, req *fetch.Request) (resp *fetch.Response, ok bool)

// Env holds the collaborators shared by all strategies.
type Env struct {
	Storage cachestore.Storage
	Network fetch.Network
	Clock   fetch.Clock
	Logger  *zap.Logger
	Stats   stats.Collector
}

func (e Env) withDefaults() Env {
	if e.Clock == nil {
		e.Clock = time.Now
	}
	if e.Logger == nil {
		e.Logger = zap.NewNop()
	}
	e.Stats = stats.OrNoop(e.Stats)
	return e
}

// base carries the cache plumbing common to every strategy.
type base struct {
	name     string
	env      Env
	cfg      cachestore.Config
	fallback Fallback
	logger   *zap.Logger
}

func newBase(name string, env Env, cfg cachestore.Config, fallback Fallback) base {
	env = env.withDefaults()
	return base{
		name:     name,
		env:      env,
		cfg:      cfg,
		fallback: fallback,
		logger:   env.Logger.With(zap.String("strategy", name), zap.String("cache", cfg.Name)),
	}
}

// Name returns the strategy name.
func (b *base) Name() string { return b.name }

// Config returns the cache store the strategy reads and writes.
func (b *base) Config() cachestore.Config { return b.cfg }

// lookup reads the configured store, or every store when the config has no
// name. Store failures are logged and reported as a miss.
func (b *base) lookup(ctx context.Context, req *fetch.Request) (*cachestore.Entry, bool) {
	var (
		entry *cachestore.Entry
		err   error
	)
	if b.cfg.Name == "" {
		entry, err = b.env.Storage.Match(ctx, req.Key())
	} else {
		var c cachestore.Cache
		if c, err = b.env.Storage.Open(ctx, b.cfg.Name); err == nil {
			entry, err = c.Match(ctx, req.Key())
		}
	}
	if err != nil {
		if !errors.Is(err, cachestore.ErrNotFound) {
			b.logger.Warn("cache lookup failed", zap.String("key", req.Key()), zap.Error(err))
		}
		return nil, false
	}
	return entry, true
}

// fresh reports whether entry is younger than the store's max age.
func (b *base) fresh(entry *cachestore.Entry) bool {
	if b.cfg.MaxAge <= 0 {
		return true
	}
	return entry.Age(b.env.Clock()) < b.cfg.MaxAge
}

// network fetches req, counting failures.
func (b *base) network(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
	resp, err := b.env.Network.Fetch(ctx, req)
	if err != nil {
		b.env.Stats.IncCounter(stats.MetricNetworkErrors, 1)
		b.logger.Debug("network failed", zap.String("key", req.Key()), zap.Error(err))
		return nil, err
	}
	return resp, nil
}

// store persists a clone of resp when it is cacheable, then trims the store.
// Failures are logged; the caller's response is unaffected.
func (b *base) store(ctx context.Context, req *fetch.Request, resp *fetch.Response) {
	if b.cfg.Name == "" || !resp.Cacheable() {
		return
	}
	c, err := b.env.Storage.Open(ctx, b.cfg.Name)
	if err != nil {
		b.logger.Warn("cache open failed", zap.Error(err))
		return
	}
	if err := c.Put(ctx, cachestore.NewEntry(req, resp, b.env.Clock())); err != nil {
		b.logger.Warn("cache write failed", zap.String("key", req.Key()), zap.Error(err))
		return
	}
	removed, err := cachestore.Trim(ctx, c, b.cfg.MaxEntries)
	if err != nil {
		b.logger.Warn("cache trim failed", zap.Error(err))
	}
	if removed > 0 {
		b.env.Stats.IncCounter(stats.MetricCacheEvictions, int64(removed))
	}
}

// giveUp returns the fallback response if one applies, else cause.
func (b *base) giveUp(ctx context.Context, req *fetch.Request, cause error) (*fetch.Response, error) {
	if b.fallback != nil {
		if resp, ok := b.fallback(ctx, req); ok {
			b.env.Stats.IncCounter(stats.MetricOfflineFallbacks, 1)
			return resp, nil
		}
	}
	return nil, fmt.Errorf("%s %s: %w", b.name, req.Key(), cause)
}
