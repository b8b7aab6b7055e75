package swcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/discochess/swcache/internal/push"
	"github.com/discochess/swcache/internal/syncqueue"
)

// Enqueue stores payload in the pending queue of the sync route for tag.
func (w *Worker) Enqueue(ctx context.Context, tag string, payload []byte) (*syncqueue.Item, error) {
	if !w.enter() {
		return nil, ErrClosed
	}
	defer w.leave()
	route, err := w.routes.ByTag(tag)
	if err != nil {
		return nil, err
	}
	return w.enqueue(ctx, route, payload)
}

// Sync drains the pending queue of the sync route for tag. Items that fail
// to replay stay queued for the next sync.
func (w *Worker) Sync(ctx context.Context, tag string) (syncqueue.Result, error) {
	if !w.enter() {
		return syncqueue.Result{}, ErrClosed
	}
	defer w.leave()
	route, err := w.routes.ByTag(tag)
	if err != nil {
		return syncqueue.Result{}, err
	}
	return w.replayer.Drain(ctx, route)
}

// SyncAll drains every configured queue in route order.
func (w *Worker) SyncAll(ctx context.Context) ([]syncqueue.Result, error) {
	results := make([]syncqueue.Result, 0, len(w.routes))
	var errs []error
	for _, tag := range w.routes.Tags() {
		res, err := w.Sync(ctx, tag)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", tag, err))
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// Pending returns the number of queued items per sync tag.
func (w *Worker) Pending(ctx context.Context) (map[string]int, error) {
	pending := make(map[string]int, len(w.routes))
	for _, r := range w.routes {
		n, err := w.queue.Len(ctx, r.Queue)
		if err != nil {
			return nil, fmt.Errorf("counting %s: %w", r.Queue, err)
		}
		pending[r.Tag] = n
	}
	return pending, nil
}

// Push shows the notification carried by a push message. Malformed payloads
// are dropped.
func (w *Worker) Push(ctx context.Context, data []byte) error {
	if !w.enter() {
		return ErrClosed
	}
	defer w.leave()
	return w.push.HandlePush(ctx, data)
}

// NotificationClick routes a notification click and returns the URL the
// window was sent to, empty when the notification was dismissed.
func (w *Worker) NotificationClick(ctx context.Context, click push.Click) (string, error) {
	if !w.enter() {
		return "", ErrClosed
	}
	defer w.leave()
	return w.push.HandleClick(ctx, click)
}
