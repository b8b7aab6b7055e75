// Package cachestore defines named, versioned stores of HTTP responses
// and the size-bounded eviction applied to them.
package cachestore

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/discochess/swcache/internal/fetch"
)

// Sentinel errors for well-defined error conditions.
var (
	// ErrNotFound is returned when no entry matches a key.
	ErrNotFound = errors.New("cachestore: entry not found")

	// ErrClosed is returned when the storage has been closed.
	ErrClosed = errors.New("cachestore: storage closed")
)

// Entry is a stored response.
type Entry struct {
	Key        string
	Method     string
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	StoredAt   time.Time
}

// NewEntry captures resp as the cached answer to req.
func NewEntry(req *fetch.Request, resp *fetch.Response, storedAt time.Time) *Entry {
	c := resp.Clone()
	return &Entry{
		Key:        req.Key(),
		Method:     req.Method,
		URL:        req.URL.String(),
		StatusCode: c.StatusCode,
		Header:     c.Header,
		Body:       c.Body,
		StoredAt:   storedAt,
	}
}

// Response rebuilds a response from the entry. Stored entries are always
// same-origin.
func (e *Entry) Response() *fetch.Response {
	resp := &fetch.Response{
		StatusCode: e.StatusCode,
		Header:     e.Header,
		Body:       e.Body,
		Type:       fetch.TypeBasic,
		URL:        e.URL,
	}
	return resp.Clone()
}

// Age is how old the entry is at now. The response Date header wins; the
// local store time is used when the header is missing or unparseable.
func (e *Entry) Age(now time.Time) time.Duration {
	born := e.StoredAt
	if v := e.Header.Get("Date"); v != "" {
		if t, err := http.ParseTime(v); err == nil {
			born = t
		}
	}
	return now.Sub(born)
}

// Size estimates the entry footprint in bytes.
func (e *Entry) Size() int64 {
	size := int64(len(e.Body) + len(e.Key))
	for k, vv := range e.Header {
		for _, v := range vv {
			size += int64(len(k) + len(v))
		}
	}
	return size
}

// Clone returns a deep copy.
func (e *Entry) Clone() *Entry {
	c := *e
	c.Header = e.Header.Clone()
	c.Body = append([]byte(nil), e.Body...)
	return &c
}

// Cache is a single named store.
// Operations are individually atomic; sequences of them are not.
type Cache interface {
	// Name returns the store name.
	Name() string

	// Match returns the entry stored under key, or ErrNotFound.
	Match(ctx context.Context, key string) (*Entry, error)

	// Put stores e under e.Key. Overwriting an entry makes it the newest.
	Put(ctx context.Context, e *Entry) error

	// Keys returns all keys, oldest insertion first.
	Keys(ctx context.Context) ([]string, error)

	// Delete removes key and reports whether it was present.
	Delete(ctx context.Context, key string) (bool, error)

	// Len returns the number of entries.
	Len(ctx context.Context) (int, error)
}

// Storage holds the named caches of one worker.
type Storage interface {
	// Open returns the named cache, creating it if needed.
	Open(ctx context.Context, name string) (Cache, error)

	// Delete removes the named cache and all its entries.
	Delete(ctx context.Context, name string) (bool, error)

	// Names returns cache names in creation order.
	Names(ctx context.Context) ([]string, error)

	// Match searches every cache in creation order.
	Match(ctx context.Context, key string) (*Entry, error)

	// Close releases any resources held by the storage.
	Close() error
}

// Config describes one cache store: its name and the limits applied to it.
type Config struct {
	Name string

	// MaxAge bounds how long an entry is served by cache-first strategies.
	// Zero means entries never expire.
	MaxAge time.Duration

	// MaxEntries caps the store size after each write. Zero disables trimming.
	MaxEntries int
}

// VersionedName embeds version into a store name so a new release can find
// and purge the stores of older ones.
func VersionedName(base, version string) string {
	if version == "" {
		return base
	}
	return base + "-" + version
}

// Versioned reports whether name was produced by VersionedName(base, ...).
func Versioned(name, base string) bool {
	return name == base || strings.HasPrefix(name, base+"-")
}
