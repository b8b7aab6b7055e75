package cachestore_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/discochess/swcache/internal/cachestore"
	"github.com/discochess/swcache/internal/cachestore/memory"
	"github.com/discochess/swcache/internal/fetch"
	"github.com/discochess/swcache/internal/stats"
)

// recorder keeps counter totals and the last value of each gauge.
type recorder struct {
	mu       sync.Mutex
	counters map[string]int64
	gauges   map[string]int64
}

func newRecorder() *recorder {
	return &recorder{counters: make(map[string]int64), gauges: make(map[string]int64)}
}

func (r *recorder) IncCounter(name string, delta int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[name] += delta
}

func (r *recorder) SetGauge(name string, value int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauges[name] = value
}

func (r *recorder) ObserveHistogram(string, float64) {}

func put(t *testing.T, c cachestore.Cache, path string) {
	t.Helper()
	req := fetch.MustRequest(http.MethodGet, "https://shop.example"+path)
	resp := fetch.NewResponse(http.StatusOK, "text/plain", []byte(path))
	if err := c.Put(context.Background(), cachestore.NewEntry(req, resp, time.Now())); err != nil {
		t.Fatalf("Put(%s) error = %v", path, err)
	}
}

func TestInstrumented_HitsAndMisses(t *testing.T) {
	rec := newRecorder()
	s := cachestore.Instrument(memory.New(0), rec)
	ctx := context.Background()

	c, err := s.Open(ctx, "static-v1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	put(t, c, "/styles/main.css")

	if _, err := c.Match(ctx, "GET https://shop.example/styles/main.css"); err != nil {
		t.Errorf("Match() error = %v", err)
	}
	if _, err := s.Match(ctx, "GET https://shop.example/missing.css"); !errors.Is(err, cachestore.ErrNotFound) {
		t.Errorf("Match() error = %v, want ErrNotFound", err)
	}

	got := s.Stats()
	if got.Hits != 1 || got.Misses != 1 || got.Writes != 1 {
		t.Errorf("Stats() = %+v, want 1 hit, 1 miss, 1 write", got)
	}
	if got.HitRate() != 50 {
		t.Errorf("HitRate() = %v, want 50", got.HitRate())
	}
	if rec.counters[stats.MetricCacheHits] != 1 || rec.counters[stats.MetricCacheMisses] != 1 {
		t.Errorf("counters = %v", rec.counters)
	}
}

func TestInstrumented_SizeCoversAllStores(t *testing.T) {
	rec := newRecorder()
	s := cachestore.Instrument(memory.New(0), rec)
	ctx := context.Background()

	static, _ := s.Open(ctx, "static-v1")
	images, _ := s.Open(ctx, "images-v1")
	put(t, static, "/styles/main.css")
	put(t, static, "/scripts/app.js")
	put(t, images, "/images/logo.png")

	if got := rec.gauges[stats.MetricCacheSize]; got != 3 {
		t.Errorf("%s = %d, want 3 across stores", stats.MetricCacheSize, got)
	}

	if _, err := cachestore.Trim(ctx, static, 1); err != nil {
		t.Fatalf("Trim() error = %v", err)
	}
	if got := rec.gauges[stats.MetricCacheSize]; got != 2 {
		t.Errorf("%s after Trim = %d, want 2", stats.MetricCacheSize, got)
	}

	if _, err := s.Delete(ctx, "images-v1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got := rec.gauges[stats.MetricCacheSize]; got != 1 {
		t.Errorf("%s after Delete = %d, want 1", stats.MetricCacheSize, got)
	}
}
