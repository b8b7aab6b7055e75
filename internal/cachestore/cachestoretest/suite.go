// Package cachestoretest provides a conformance suite for cachestore.Storage
// implementations.
package cachestoretest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"testing"
	"time"

	"github.com/discochess/swcache/internal/cachestore"
)

// Entry builds a small JSON entry for key.
func Entry(key, body string) *cachestore.Entry {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	return &cachestore.Entry{
		Key:        key,
		Method:     http.MethodGet,
		URL:        key,
		StatusCode: http.StatusOK,
		Header:     h,
		Body:       []byte(body),
		StoredAt:   time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}
}

// Run exercises a Storage produced by newStorage.
func Run(t *testing.T, newStorage func(t *testing.T) cachestore.Storage) {
	t.Run("PutMatch", func(t *testing.T) {
		ctx := context.Background()
		s := newStorage(t)
		c, err := s.Open(ctx, "api-v1")
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}

		want := Entry("GET /api/products", `[{"id":"p1"}]`)
		if err := c.Put(ctx, want); err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		got, err := c.Match(ctx, want.Key)
		if err != nil {
			t.Fatalf("Match() error = %v", err)
		}
		if string(got.Body) != string(want.Body) {
			t.Errorf("Body = %q, want %q", got.Body, want.Body)
		}
		if got.StatusCode != http.StatusOK {
			t.Errorf("StatusCode = %d, want 200", got.StatusCode)
		}
		if got.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", got.Header.Get("Content-Type"))
		}
		if !got.StoredAt.Equal(want.StoredAt) {
			t.Errorf("StoredAt = %v, want %v", got.StoredAt, want.StoredAt)
		}
	})

	t.Run("MatchMissing", func(t *testing.T) {
		ctx := context.Background()
		s := newStorage(t)
		c, _ := s.Open(ctx, "static-v1")
		if _, err := c.Match(ctx, "GET /missing"); !errors.Is(err, cachestore.ErrNotFound) {
			t.Errorf("Match() error = %v, want ErrNotFound", err)
		}
		if _, err := s.Match(ctx, "GET /missing"); !errors.Is(err, cachestore.ErrNotFound) {
			t.Errorf("Storage.Match() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("KeysInsertionOrder", func(t *testing.T) {
		ctx := context.Background()
		s := newStorage(t)
		c, _ := s.Open(ctx, "dynamic-v1")
		for _, k := range []string{"a", "b", "c"} {
			if err := c.Put(ctx, Entry(k, k)); err != nil {
				t.Fatalf("Put(%s) error = %v", k, err)
			}
		}
		// Overwriting a moves it to the newest position.
		if err := c.Put(ctx, Entry("a", "a2")); err != nil {
			t.Fatalf("Put(a) error = %v", err)
		}

		keys, err := c.Keys(ctx)
		if err != nil {
			t.Fatalf("Keys() error = %v", err)
		}
		if want := []string{"b", "c", "a"}; !slices.Equal(keys, want) {
			t.Errorf("Keys() = %v, want %v", keys, want)
		}
		if n, _ := c.Len(ctx); n != 3 {
			t.Errorf("Len() = %d, want 3", n)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		ctx := context.Background()
		s := newStorage(t)
		c, _ := s.Open(ctx, "images-v1")
		_ = c.Put(ctx, Entry("x", "x"))

		ok, err := c.Delete(ctx, "x")
		if err != nil || !ok {
			t.Errorf("Delete(x) = %v, %v; want true, nil", ok, err)
		}
		ok, err = c.Delete(ctx, "x")
		if err != nil || ok {
			t.Errorf("second Delete(x) = %v, %v; want false, nil", ok, err)
		}
	})

	t.Run("StorageNamesAndDelete", func(t *testing.T) {
		ctx := context.Background()
		s := newStorage(t)
		for _, name := range []string{"static-v1", "api-v1", "static-v2"} {
			c, err := s.Open(ctx, name)
			if err != nil {
				t.Fatalf("Open(%s) error = %v", name, err)
			}
			_ = c.Put(ctx, Entry("k-"+name, name))
		}

		names, err := s.Names(ctx)
		if err != nil {
			t.Fatalf("Names() error = %v", err)
		}
		if want := []string{"static-v1", "api-v1", "static-v2"}; !slices.Equal(names, want) {
			t.Errorf("Names() = %v, want %v", names, want)
		}

		ok, err := s.Delete(ctx, "static-v1")
		if err != nil || !ok {
			t.Fatalf("Delete(static-v1) = %v, %v", ok, err)
		}
		if _, err := s.Match(ctx, "k-static-v1"); !errors.Is(err, cachestore.ErrNotFound) {
			t.Errorf("entry of deleted cache still matches: %v", err)
		}
		if ok, _ := s.Delete(ctx, "static-v1"); ok {
			t.Error("Delete() of missing cache = true, want false")
		}

		// Reopening a deleted cache starts empty.
		c, _ := s.Open(ctx, "static-v1")
		if n, _ := c.Len(ctx); n != 0 {
			t.Errorf("reopened cache Len() = %d, want 0", n)
		}
	})

	t.Run("StorageMatchAcrossCaches", func(t *testing.T) {
		ctx := context.Background()
		s := newStorage(t)
		first, _ := s.Open(ctx, "static-v1")
		second, _ := s.Open(ctx, "dynamic-v1")
		_ = second.Put(ctx, Entry("GET /offline", "dynamic"))
		_ = first.Put(ctx, Entry("GET /offline", "static"))

		got, err := s.Match(ctx, "GET /offline")
		if err != nil {
			t.Fatalf("Match() error = %v", err)
		}
		if string(got.Body) != "static" {
			t.Errorf("Match() body = %q, want the entry from the first-created cache", got.Body)
		}
	})

	t.Run("TrimBound", func(t *testing.T) {
		ctx := context.Background()
		s := newStorage(t)
		c, _ := s.Open(ctx, "api-v1")
		const maxEntries = 5
		for i := 0; i < 12; i++ {
			if err := c.Put(ctx, Entry(fmt.Sprintf("k%02d", i), "v")); err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			if _, err := cachestore.Trim(ctx, c, maxEntries); err != nil {
				t.Fatalf("Trim() error = %v", err)
			}
			if n, _ := c.Len(ctx); n > maxEntries {
				t.Fatalf("Len() = %d after insert %d, want <= %d", n, i, maxEntries)
			}
		}

		keys, _ := c.Keys(ctx)
		if want := []string{"k07", "k08", "k09", "k10", "k11"}; !slices.Equal(keys, want) {
			t.Errorf("retained keys = %v, want %v", keys, want)
		}
	})
}
