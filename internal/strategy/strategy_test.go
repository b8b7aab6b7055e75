package strategy

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
)

// fakeNetwork serves canned responses and records calls.
type fakeNetwork struct {
	mu      sync.Mutex
	bodies  map[string]string
	status  int
	typ     fetch.ResponseType
	offline bool
	calls   int

	// gate, when set, blocks every fetch until closed.
	gate chan struct{}
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{bodies: make(map[string]string), status: http.StatusOK, typ: fetch.TypeBasic}
}

func (n *fakeNetwork) Fetch(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
	if n.gate != nil {
		<-n.gate
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	if n.offline {
		return nil, fetch.ErrNetwork
	}
	resp := fetch.NewResponse(n.status, "text/plain", []byte(n.bodies[req.URL.Path]))
	resp.Type = n.typ
	return resp, nil
}

func (n *fakeNetwork) set(path, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bodies[path] = body
}

func (n *fakeNetwork) setOffline(v bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.offline = v
}

func (n *fakeNetwork) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// failingStorage fails every operation.
type failingStorage struct{}

var errQuota = errors.New("quota exceeded")

func (failingStorage) Open(context.Context, string) (cachestore.Cache, error) { return nil, errQuota }
func (failingStorage) Delete(context.Context, string) (bool, error)          { return false, errQuota }
func (failingStorage) Names(context.Context) ([]string, error)               { return nil, errQuota }
func (failingStorage) Match(context.Context, string) (*cachestore.Entry, error) {
	return nil, errQuota
}
func (failingStorage) Close() error { return nil }

var t0 = time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)

func newEnv(net fetch.Network, clock *fakeClock) (Env, *memory.Storage) {
	storage := memory.New(0)
	return Env{Storage: storage, Network: net, Clock: clock.Now}, storage
}

func get(path string) *fetch.Request {
	return fetch.MustRequest(http.MethodGet, "https://shop.example"+path)
}

func navigate(path string) *fetch.Request {
	r := get(path)
	r.Mode = fetch.ModeNavigate
	return r
}

func offlinePage(ctx context.Context, req *fetch.Request) (*fetch.Response, bool) {
	if !req.IsNavigation() {
		return nil, false
	}
	return fetch.NewResponse(http.StatusOK, "text/html", []byte("offline")), true
}

func cacheLen(t *testing.T, s cachestore.Storage, name string) int {
	t.Helper()
	c, err := s.Open(context.Background(), name)
	if err != nil {
		t.Fatalf("Open(%s) error = %v", name, err)
	}
	n, _ := c.Len(context.Background())
	return n
}

func cachedBody(t *testing.T, s cachestore.Storage, name string, req *fetch.Request) string {
	t.Helper()
	c, _ := s.Open(context.Background(), name)
	e, err := c.Match(context.Background(), req.Key())
	if err != nil {
		return ""
	}
	return string(e.Body)
}
