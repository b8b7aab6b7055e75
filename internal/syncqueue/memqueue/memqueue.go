// Package memqueue implements an in-memory sync queue.
package memqueue

import (
	"context"
	"sync"

	"github.com/discochess/swcache/internal/syncqueue"
)

// Compile-time check that Queue implements syncqueue.Queue.
var _ syncqueue.Queue = (*Queue)(nil)

// Queue keeps pending items in memory. It is safe for concurrent use.
type Queue struct {
	mu     sync.Mutex
	queues map[string][]*syncqueue.Item
	closed bool
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{queues: make(map[string][]*syncqueue.Item)}
}

// Enqueue implements syncqueue.Queue.
func (q *Queue) Enqueue(ctx context.Context, item *syncqueue.Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return syncqueue.ErrClosed
	}
	c := *item
	q.queues[item.Queue] = append(q.queues[item.Queue], &c)
	return nil
}

// List implements syncqueue.Queue.
func (q *Queue) List(ctx context.Context, queue string) ([]*syncqueue.Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, syncqueue.ErrClosed
	}
	items := make([]*syncqueue.Item, len(q.queues[queue]))
	for i, it := range q.queues[queue] {
		c := *it
		items[i] = &c
	}
	return items, nil
}

// Remove implements syncqueue.Queue.
func (q *Queue) Remove(ctx context.Context, queue, id string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false, syncqueue.ErrClosed
	}
	items := q.queues[queue]
	for i, it := range items {
		if it.ID == id {
			q.queues[queue] = append(items[:i:i], items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// Len implements syncqueue.Queue.
func (q *Queue) Len(ctx context.Context, queue string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return 0, syncqueue.ErrClosed
	}
	return len(q.queues[queue]), nil
}

// Close implements syncqueue.Queue.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.queues = nil
	return nil
}
