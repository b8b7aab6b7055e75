// Package syncqueue persists mutations that failed while offline and replays
// them when a sync event fires.
package syncqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for well-defined error conditions.
var (
	// ErrClosed indicates the queue has been closed.
	ErrClosed = errors.New("syncqueue: queue closed")

	// ErrUnknownTag indicates a sync tag with no configured route.
	ErrUnknownTag = errors.New("syncqueue: unknown sync tag")
)

// Item is one pending mutation.
type Item struct {
	ID         string
	Queue      string
	Endpoint   string
	Payload    json.RawMessage
	EnqueuedAt time.Time
}

// NewItem creates an item with a fresh id. payload must be valid JSON.
func NewItem(queue, endpoint string, payload []byte, now time.Time) (*Item, error) {
	if !json.Valid(payload) {
		return nil, fmt.Errorf("syncqueue: payload for %s is not valid JSON", queue)
	}
	return &Item{
		ID:         uuid.NewString(),
		Queue:      queue,
		Endpoint:   endpoint,
		Payload:    append(json.RawMessage(nil), payload...),
		EnqueuedAt: now.UTC(),
	}, nil
}

// Queue is a durable set of named FIFO queues.
type Queue interface {
	// Enqueue appends item to item.Queue.
	Enqueue(ctx context.Context, item *Item) error

	// List returns the items of queue, oldest first.
	List(ctx context.Context, queue string) ([]*Item, error)

	// Remove deletes the item with id from queue. It reports whether the
	// item existed.
	Remove(ctx context.Context, queue, id string) (bool, error)

	// Len returns the number of items in queue.
	Len(ctx context.Context, queue string) (int, error)

	// Close releases resources held by the queue.
	Close() error
}

// Route binds a sync tag to the queue it drains and the endpoint its items
// are replayed against.
type Route struct {
	Tag      string
	Queue    string
	Endpoint string
}

// DefaultRoutes returns the storefront's sync routes.
func DefaultRoutes() []Route {
	return []Route{
		{Tag: "cart-sync", Queue: "pending-cart-sync", Endpoint: "/api/cart/sync"},
		{Tag: "order-sync", Queue: "pending-order-sync", Endpoint: "/api/orders/sync"},
		{Tag: "wishlist-sync", Queue: "pending-wishlist-sync", Endpoint: "/api/wishlist/sync"},
		{Tag: "analytics-sync", Queue: "pending-analytics-sync", Endpoint: "/api/analytics/sync"},
	}
}

// Routes is a lookup table over a route list.
type Routes []Route

// ByTag returns the route for a sync tag.
func (rs Routes) ByTag(tag string) (Route, error) {
	for _, r := range rs {
		if r.Tag == tag {
			return r, nil
		}
	}
	return Route{}, fmt.Errorf("%w: %q", ErrUnknownTag, tag)
}

// ByEndpoint returns the route whose endpoint is path.
func (rs Routes) ByEndpoint(path string) (Route, bool) {
	for _, r := range rs {
		if r.Endpoint == path {
			return r, true
		}
	}
	return Route{}, false
}

// Tags returns every configured tag in order.
func (rs Routes) Tags() []string {
	tags := make([]string, len(rs))
	for i, r := range rs {
		tags[i] = r.Tag
	}
	return tags
}
