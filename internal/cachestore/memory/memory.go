// Package memory implements an in-memory cache storage.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/discochess/swcache/internal/cachestore"
)

// DefaultCapacity is the hard ceiling per cache. Size policy belongs to
// cachestore.Trim; the ceiling only bounds memory if trimming is disabled.
const DefaultCapacity = 1 << 16

// Compile-time checks.
var (
	_ cachestore.Storage = (*Storage)(nil)
	_ cachestore.Cache   = (*Cache)(nil)
)

// Storage is a thread-safe in-memory cachestore.Storage.
type Storage struct {
	capacity int

	mu     sync.RWMutex
	caches map[string]*Cache
	order  []string
	closed bool
}

// New creates an empty storage. A capacity <= 0 selects DefaultCapacity.
func New(capacity int) *Storage {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Storage{
		capacity: capacity,
		caches:   make(map[string]*Cache),
	}
}

// Open returns the named cache, creating it if needed.
func (s *Storage) Open(ctx context.Context, name string) (cachestore.Cache, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, cachestore.ErrClosed
	}
	if c, ok := s.caches[name]; ok {
		return c, nil
	}

	entries, err := lru.New[string, *cachestore.Entry](s.capacity)
	if err != nil {
		return nil, fmt.Errorf("creating cache %s: %w", name, err)
	}
	c := &Cache{name: name, entries: entries}
	s.caches[name] = c
	s.order = append(s.order, name)
	return c, nil
}

// Delete removes the named cache.
func (s *Storage) Delete(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, cachestore.ErrClosed
	}
	c, ok := s.caches[name]
	if !ok {
		return false, nil
	}
	c.entries.Purge()
	delete(s.caches, name)
	s.order = slices.DeleteFunc(s.order, func(n string) bool { return n == name })
	return true, nil
}

// Names returns cache names in creation order.
func (s *Storage) Names(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, cachestore.ErrClosed
	}
	return slices.Clone(s.order), nil
}

// Match searches every cache in creation order.
func (s *Storage) Match(ctx context.Context, key string) (*cachestore.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, cachestore.ErrClosed
	}
	for _, name := range s.order {
		if e, ok := s.caches[name].entries.Peek(key); ok {
			return e.Clone(), nil
		}
	}
	return nil, cachestore.ErrNotFound
}

// Close drops all caches.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.caches = nil
	s.order = nil
	return nil
}

// Cache is one named in-memory cache. The underlying LRU list is only ever
// read with Peek, so its order is insertion order.
type Cache struct {
	name    string
	entries *lru.Cache[string, *cachestore.Entry]
}

// Name returns the cache name.
func (c *Cache) Name() string { return c.name }

// Match returns a copy of the entry stored under key.
func (c *Cache) Match(ctx context.Context, key string) (*cachestore.Entry, error) {
	e, ok := c.entries.Peek(key)
	if !ok {
		return nil, cachestore.ErrNotFound
	}
	return e.Clone(), nil
}

// Put stores a copy of e, making it the newest entry.
func (c *Cache) Put(ctx context.Context, e *cachestore.Entry) error {
	// Remove first so an overwrite moves to the back of the insertion order.
	c.entries.Remove(e.Key)
	c.entries.Add(e.Key, e.Clone())
	return nil
}

// Keys returns keys oldest first.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	return c.entries.Keys(), nil
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) (bool, error) {
	return c.entries.Remove(key), nil
}

// Len returns the number of entries.
func (c *Cache) Len(ctx context.Context) (int, error) {
	return c.entries.Len(), nil
}
