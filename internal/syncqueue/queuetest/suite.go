// Package queuetest provides a conformance suite for syncqueue.Queue
// implementations.
package queuetest

import (
	"context"
	"testing"
	"time"

	"github.com/discochess/swcache/internal/syncqueue"
)

// Item builds a pending item with payload for queue.
func Item(t *testing.T, queue, payload string) *syncqueue.Item {
	t.Helper()
	it, err := syncqueue.NewItem(queue, "/api/cart/sync", []byte(payload),
		time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewItem() error = %v", err)
	}
	return it
}

// Run exercises a Queue produced by newQueue.
func Run(t *testing.T, newQueue func(t *testing.T) syncqueue.Queue) {
	t.Run("FIFO", func(t *testing.T) {
		ctx := context.Background()
		q := newQueue(t)

		var want []string
		for _, p := range []string{`{"n":1}`, `{"n":2}`, `{"n":3}`} {
			it := Item(t, "pending-cart-sync", p)
			want = append(want, it.ID)
			if err := q.Enqueue(ctx, it); err != nil {
				t.Fatalf("Enqueue() error = %v", err)
			}
		}

		items, err := q.List(ctx, "pending-cart-sync")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(items) != len(want) {
			t.Fatalf("List() len = %d, want %d", len(items), len(want))
		}
		for i, it := range items {
			if it.ID != want[i] {
				t.Errorf("List()[%d].ID = %s, want %s", i, it.ID, want[i])
			}
		}
	})

	t.Run("RoundTrip", func(t *testing.T) {
		ctx := context.Background()
		q := newQueue(t)
		in := Item(t, "pending-order-sync", `{"orderId":"o-9","total":1999}`)
		if err := q.Enqueue(ctx, in); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}

		items, err := q.List(ctx, "pending-order-sync")
		if err != nil || len(items) != 1 {
			t.Fatalf("List() = %v, %v; want one item", items, err)
		}
		got := items[0]
		if got.ID != in.ID || got.Queue != in.Queue || got.Endpoint != in.Endpoint {
			t.Errorf("List()[0] = %+v, want %+v", got, in)
		}
		if string(got.Payload) != string(in.Payload) {
			t.Errorf("Payload = %s, want %s", got.Payload, in.Payload)
		}
		if !got.EnqueuedAt.Equal(in.EnqueuedAt) {
			t.Errorf("EnqueuedAt = %v, want %v", got.EnqueuedAt, in.EnqueuedAt)
		}
	})

	t.Run("QueuesAreIndependent", func(t *testing.T) {
		ctx := context.Background()
		q := newQueue(t)
		_ = q.Enqueue(ctx, Item(t, "pending-cart-sync", `{}`))
		_ = q.Enqueue(ctx, Item(t, "pending-wishlist-sync", `{}`))
		_ = q.Enqueue(ctx, Item(t, "pending-wishlist-sync", `{}`))

		if n, _ := q.Len(ctx, "pending-cart-sync"); n != 1 {
			t.Errorf("Len(cart) = %d, want 1", n)
		}
		if n, _ := q.Len(ctx, "pending-wishlist-sync"); n != 2 {
			t.Errorf("Len(wishlist) = %d, want 2", n)
		}
		if n, _ := q.Len(ctx, "pending-order-sync"); n != 0 {
			t.Errorf("Len(order) = %d, want 0", n)
		}
	})

	t.Run("Remove", func(t *testing.T) {
		ctx := context.Background()
		q := newQueue(t)
		a := Item(t, "pending-cart-sync", `{"n":1}`)
		b := Item(t, "pending-cart-sync", `{"n":2}`)
		_ = q.Enqueue(ctx, a)
		_ = q.Enqueue(ctx, b)

		ok, err := q.Remove(ctx, "pending-cart-sync", a.ID)
		if err != nil || !ok {
			t.Fatalf("Remove() = %v, %v; want true, nil", ok, err)
		}
		ok, err = q.Remove(ctx, "pending-cart-sync", a.ID)
		if err != nil || ok {
			t.Errorf("second Remove() = %v, %v; want false, nil", ok, err)
		}
		ok, _ = q.Remove(ctx, "pending-order-sync", b.ID)
		if ok {
			t.Error("Remove() from wrong queue = true, want false")
		}

		items, _ := q.List(ctx, "pending-cart-sync")
		if len(items) != 1 || items[0].ID != b.ID {
			t.Errorf("List() after Remove = %v, want only %s", items, b.ID)
		}
	})
}
