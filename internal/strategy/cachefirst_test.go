package strategy

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/discochess/swcache/internal/cachestore"
	"github.com/discochess/swcache/internal/fetch"
)

func TestCacheFirst_Freshness(t *testing.T) {
	net := newFakeNetwork()
	net.set("/app.css", "v1")
	clock := &fakeClock{now: t0}
	env, _ := newEnv(net, clock)

	const maxAge = 60 * time.Second
	s := NewCacheFirst(env, cachestore.Config{Name: "static-v1", MaxAge: maxAge}, nil)
	ctx := context.Background()

	resp, err := s.Handle(ctx, get("/app.css"))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if string(resp.Body) != "v1" {
		t.Fatalf("Body = %q, want v1", resp.Body)
	}
	if net.callCount() != 1 {
		t.Fatalf("network calls = %d, want 1", net.callCount())
	}

	net.set("/app.css", "v2")

	clock.Set(t0.Add(maxAge - time.Second))
	resp, _ = s.Handle(ctx, get("/app.css"))
	if string(resp.Body) != "v1" || net.callCount() != 1 {
		t.Errorf("at T+S-1: body = %q, calls = %d; want cached v1 without network", resp.Body, net.callCount())
	}

	clock.Set(t0.Add(maxAge + time.Second))
	resp, _ = s.Handle(ctx, get("/app.css"))
	if string(resp.Body) != "v2" || net.callCount() != 2 {
		t.Errorf("at T+S+1: body = %q, calls = %d; want fresh v2 from network", resp.Body, net.callCount())
	}
}

func TestCacheFirst_AgeFromDateHeader(t *testing.T) {
	clock := &fakeClock{now: t0}
	env, storage := newEnv(newFakeNetwork(), clock)
	s := NewCacheFirst(env, cachestore.Config{Name: "static-v1", MaxAge: time.Minute}, nil)
	ctx := context.Background()

	// Stored just now, but the origin dated it two minutes ago.
	resp := fetch.NewResponse(http.StatusOK, "text/css", []byte("old"))
	resp.Header.Set("Date", t0.Add(-2*time.Minute).Format(http.TimeFormat))
	c, _ := storage.Open(ctx, "static-v1")
	_ = c.Put(ctx, cachestore.NewEntry(get("/site.css"), resp, t0))

	got, err := s.Handle(ctx, get("/site.css"))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if string(got.Body) == "old" {
		t.Error("entry older than MaxAge by Date header should have been refetched")
	}
}

func TestCacheFirst_StaleOnNetworkFailure(t *testing.T) {
	net := newFakeNetwork()
	net.set("/logo.png", "png")
	clock := &fakeClock{now: t0}
	env, _ := newEnv(net, clock)
	s := NewCacheFirst(env, cachestore.Config{Name: "images-v1", MaxAge: time.Minute}, nil)
	ctx := context.Background()

	if _, err := s.Handle(ctx, get("/logo.png")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	clock.Set(t0.Add(time.Hour))
	net.setOffline(true)
	resp, err := s.Handle(ctx, get("/logo.png"))
	if err != nil {
		t.Fatalf("Handle() error = %v, want stale entry", err)
	}
	if string(resp.Body) != "png" {
		t.Errorf("Body = %q, want stale png", resp.Body)
	}
}

func TestCacheFirst_FallbackOnlyForNavigation(t *testing.T) {
	net := newFakeNetwork()
	net.setOffline(true)
	env, _ := newEnv(net, &fakeClock{now: t0})
	s := NewCacheFirst(env, cachestore.Config{Name: "static-v1"}, offlinePage)
	ctx := context.Background()

	resp, err := s.Handle(ctx, navigate("/about"))
	if err != nil {
		t.Fatalf("navigation Handle() error = %v", err)
	}
	if string(resp.Body) != "offline" {
		t.Errorf("Body = %q, want offline page", resp.Body)
	}

	if _, err := s.Handle(ctx, get("/app.js")); !errors.Is(err, fetch.ErrNetwork) {
		t.Errorf("non-navigation Handle() error = %v, want ErrNetwork", err)
	}
}

func TestCacheFirst_DoesNotStoreUncacheable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		typ    fetch.ResponseType
	}{
		{"not found", http.StatusNotFound, fetch.TypeBasic},
		{"server error", http.StatusInternalServerError, fetch.TypeBasic},
		{"cross-origin", http.StatusOK, fetch.TypeCORS},
		{"opaque", 0, fetch.TypeOpaque},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			net := newFakeNetwork()
			net.status = tt.status
			net.typ = tt.typ
			env, storage := newEnv(net, &fakeClock{now: t0})
			s := NewCacheFirst(env, cachestore.Config{Name: "static-v1"}, nil)

			resp, err := s.Handle(context.Background(), get("/x.js"))
			if err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if resp.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", resp.StatusCode, tt.status)
			}
			if n := cacheLen(t, storage, "static-v1"); n != 0 {
				t.Errorf("cache Len() = %d, want 0", n)
			}
		})
	}
}

func TestCacheFirst_EvictsPastMaxEntries(t *testing.T) {
	net := newFakeNetwork()
	env, storage := newEnv(net, &fakeClock{now: t0})
	s := NewCacheFirst(env, cachestore.Config{Name: "images-v1", MaxEntries: 3}, nil)

	for _, p := range []string{"/1.png", "/2.png", "/3.png", "/4.png", "/5.png"} {
		if _, err := s.Handle(context.Background(), get(p)); err != nil {
			t.Fatalf("Handle(%s) error = %v", p, err)
		}
	}
	if n := cacheLen(t, storage, "images-v1"); n != 3 {
		t.Errorf("cache Len() = %d, want 3", n)
	}
}

func TestCacheFirst_StorageFailureIsMiss(t *testing.T) {
	net := newFakeNetwork()
	net.set("/app.js", "js")
	env := Env{Storage: failingStorage{}, Network: net}
	s := NewCacheFirst(env, cachestore.Config{Name: "static-v1"}, nil)

	resp, err := s.Handle(context.Background(), get("/app.js"))
	if err != nil {
		t.Fatalf("Handle() error = %v, want network response despite broken cache", err)
	}
	if string(resp.Body) != "js" {
		t.Errorf("Body = %q, want js", resp.Body)
	}
}
