package cachestore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/discochess/swcache/internal/stats"
)

// Stats contains cache statistics.
type Stats struct {
	Hits   int64
	Misses int64
	Writes int64
}

// HitRate returns the cache hit rate as a percentage.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Compile-time checks.
var (
	_ Storage = (*Instrumented)(nil)
	_ Cache   = (*instrumentedCache)(nil)
)

// Instrumented wraps a Storage and reports hits, misses and writes to a
// stats collector.
type Instrumented struct {
	Storage
	collector stats.Collector

	hits   atomic.Int64
	misses atomic.Int64
	writes atomic.Int64

	mu     sync.Mutex
	caches map[string]*instrumentedCache
	sizes  map[string]int
}

// Instrument wraps s. The collector is optional.
func Instrument(s Storage, collector stats.Collector) *Instrumented {
	return &Instrumented{
		Storage:   s,
		collector: stats.OrNoop(collector),
		caches:    make(map[string]*instrumentedCache),
		sizes:     make(map[string]int),
	}
}

// Open returns an instrumented view of the named cache.
func (s *Instrumented) Open(ctx context.Context, name string) (Cache, error) {
	inner, err := s.Storage.Open(ctx, name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.caches[name]
	if !ok || c.Cache != inner {
		c = &instrumentedCache{Cache: inner, parent: s}
		s.caches[name] = c
	}
	return c, nil
}

// Delete removes the named cache.
func (s *Instrumented) Delete(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	delete(s.caches, name)
	s.mu.Unlock()
	ok, err := s.Storage.Delete(ctx, name)
	s.setSize(name, -1)
	return ok, err
}

// Match searches every cache and records a hit or miss.
func (s *Instrumented) Match(ctx context.Context, key string) (*Entry, error) {
	e, err := s.Storage.Match(ctx, key)
	s.record(err)
	return e, err
}

// Stats returns aggregate statistics across all caches.
func (s *Instrumented) Stats() Stats {
	return Stats{
		Hits:   s.hits.Load(),
		Misses: s.misses.Load(),
		Writes: s.writes.Load(),
	}
}

// setSize records the entry count of the named cache and reports the total
// across all caches. A negative n forgets the cache.
func (s *Instrumented) setSize(name string, n int) {
	s.mu.Lock()
	if n < 0 {
		delete(s.sizes, name)
	} else {
		s.sizes[name] = n
	}
	total := 0
	for _, v := range s.sizes {
		total += v
	}
	s.mu.Unlock()
	s.collector.SetGauge(stats.MetricCacheSize, int64(total))
}

func (s *Instrumented) record(err error) {
	switch {
	case err == nil:
		s.hits.Add(1)
		s.collector.IncCounter(stats.MetricCacheHits, 1)
	case errors.Is(err, ErrNotFound):
		s.misses.Add(1)
		s.collector.IncCounter(stats.MetricCacheMisses, 1)
	default:
		s.collector.IncCounter(stats.MetricCacheErrors, 1)
	}
}

type instrumentedCache struct {
	Cache
	parent *Instrumented
}

func (c *instrumentedCache) Match(ctx context.Context, key string) (*Entry, error) {
	e, err := c.Cache.Match(ctx, key)
	c.parent.record(err)
	return e, err
}

func (c *instrumentedCache) Put(ctx context.Context, e *Entry) error {
	if err := c.Cache.Put(ctx, e); err != nil {
		c.parent.collector.IncCounter(stats.MetricCacheErrors, 1)
		return err
	}
	c.parent.writes.Add(1)
	c.parent.collector.IncCounter(stats.MetricCacheWrites, 1)
	c.reportSize(ctx)
	return nil
}

func (c *instrumentedCache) Delete(ctx context.Context, key string) (bool, error) {
	ok, err := c.Cache.Delete(ctx, key)
	if ok {
		c.reportSize(ctx)
	}
	return ok, err
}

func (c *instrumentedCache) reportSize(ctx context.Context) {
	if n, err := c.Cache.Len(ctx); err == nil {
		c.parent.setSize(c.Name(), n)
	}
}
