package swcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/discochess/swcache/internal/fetch"
	"github.com/discochess/swcache/internal/push"
	"github.com/discochess/swcache/internal/syncqueue"
)

func TestSync_CartItemReplayedOnce(t *testing.T) {
	w, origin := newTestWorker(t, testConfig())
	ctx := context.Background()

	origin.setOffline(true)
	if _, err := w.Enqueue(ctx, "cart-sync", []byte(`{"productId":"p1","quantity":2}`)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	// Still offline: the item stays.
	res, err := w.Sync(ctx, "cart-sync")
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if res.Remaining != 1 {
		t.Errorf("offline Sync() = %+v, want item kept", res)
	}

	origin.setOffline(false)
	res, err = w.Sync(ctx, "cart-sync")
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if res.Replayed != 1 || res.Remaining != 0 {
		t.Errorf("Sync() = %+v, want 1 replayed", res)
	}
	if got := origin.posts["/api/cart/sync"]; len(got) != 1 || got[0] != `{"productId":"p1","quantity":2}` {
		t.Errorf("POSTs = %v", got)
	}

	if _, err := w.Sync(ctx, "cart-sync"); err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}
	if n := origin.postCount("/api/cart/sync"); n != 1 {
		t.Errorf("POSTs after second sync = %d, want 1", n)
	}
}

func TestSync_ConcurrentSyncsReplayOnce(t *testing.T) {
	origin := newFakeOrigin()
	slow := fetch.NetworkFunc(func(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
		time.Sleep(20 * time.Millisecond)
		return origin.Fetch(ctx, req)
	})
	w, _ := newTestWorker(t, testConfig(), WithNetwork(slow))
	ctx := context.Background()
	if _, err := w.Enqueue(ctx, "cart-sync", []byte(`{"productId":"p1","quantity":2}`)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := w.Sync(ctx, "cart-sync"); err != nil {
				t.Errorf("Sync() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if n := origin.postCount("/api/cart/sync"); n != 1 {
		t.Errorf("POSTs = %d, want 1 across concurrent syncs", n)
	}
}

func TestSync_UnknownTag(t *testing.T) {
	w, _ := newTestWorker(t, testConfig())
	if _, err := w.Sync(context.Background(), "coupon-sync"); !errors.Is(err, syncqueue.ErrUnknownTag) {
		t.Errorf("Sync() error = %v, want ErrUnknownTag", err)
	}
	if _, err := w.Enqueue(context.Background(), "coupon-sync", []byte(`{}`)); !errors.Is(err, syncqueue.ErrUnknownTag) {
		t.Errorf("Enqueue() error = %v, want ErrUnknownTag", err)
	}
}

func TestSyncAll(t *testing.T) {
	w, origin := newTestWorker(t, testConfig())
	ctx := context.Background()
	_, _ = w.Enqueue(ctx, "order-sync", []byte(`{"orderId":"o1"}`))
	_, _ = w.Enqueue(ctx, "wishlist-sync", []byte(`{"productId":"p2"}`))

	results, err := w.SyncAll(ctx)
	if err != nil {
		t.Fatalf("SyncAll() error = %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("SyncAll() len = %d, want one result per route", len(results))
	}
	if origin.postCount("/api/orders/sync") != 1 || origin.postCount("/api/wishlist/sync") != 1 {
		t.Errorf("posts = %v", origin.posts)
	}
	pending, _ := w.Pending(ctx)
	for tag, n := range pending {
		if n != 0 {
			t.Errorf("Pending()[%s] = %d, want 0", tag, n)
		}
	}
}

func TestPushAndClick(t *testing.T) {
	notifier := push.NewLogNotifier(nil)
	clients := push.NewMemoryClients()
	w, origin := newTestWorker(t, testConfig(), WithNotifier(notifier), WithClients(clients))
	ctx := context.Background()

	if err := w.Push(ctx, []byte(`{"title":"Back in stock","tag":"p7","data":{"type":"back_in_stock","productId":"p7"}}`)); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if err := w.Push(ctx, []byte(`garbage`)); err != nil {
		t.Fatalf("Push(malformed) error = %v, want dropped silently", err)
	}
	if n := len(notifier.Active()); n != 1 {
		t.Fatalf("Active() len = %d, want 1", n)
	}

	target, err := w.NotificationClick(ctx, push.Click{Tag: "p7", Data: push.Data{Type: push.TypeBackInStock, ProductID: "p7"}})
	if err != nil {
		t.Fatalf("NotificationClick() error = %v", err)
	}
	w.Wait()

	if target != "https://shop.example/products/p7" {
		t.Errorf("NotificationClick() = %q", target)
	}
	windows, _ := clients.List(ctx)
	if len(windows) != 1 || windows[0].URL != target {
		t.Errorf("windows = %+v, want one at %s", windows, target)
	}
	if origin.postCount(push.DefaultTrackEndpoint) != 1 {
		t.Errorf("tracking POSTs = %d, want 1", origin.postCount(push.DefaultTrackEndpoint))
	}
}
