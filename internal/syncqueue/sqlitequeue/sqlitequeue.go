// Package sqlitequeue implements a durable sync queue on SQLite.
package sqlitequeue

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/discochess/swcache/internal/sqlitedb"
	"github.com/discochess/swcache/internal/syncqueue"
)

// Schema creates the pending items table.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS sync_items (
	   seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	   id          TEXT NOT NULL UNIQUE,
	   queue       TEXT NOT NULL,
	   endpoint    TEXT NOT NULL,
	   payload     TEXT NOT NULL,
	   enqueued_at INTEGER NOT NULL
	 )`,
	`CREATE INDEX IF NOT EXISTS sync_items_queue ON sync_items (queue, seq)`,
}

// Compile-time check that Queue implements syncqueue.Queue.
var _ syncqueue.Queue = (*Queue)(nil)

// Queue stores pending items in a SQLite database.
type Queue struct {
	db    *sql.DB
	owned bool
}

// Open opens the database at path.
func Open(ctx context.Context, path string) (*Queue, error) {
	db, err := sqlitedb.Open(ctx, path, Schema...)
	if err != nil {
		return nil, err
	}
	return &Queue{db: db, owned: true}, nil
}

// New wraps an existing database handle that already has Schema applied.
// The caller keeps ownership of db.
func New(db *sql.DB) *Queue {
	return &Queue{db: db}
}

// Enqueue implements syncqueue.Queue.
func (q *Queue) Enqueue(ctx context.Context, item *syncqueue.Item) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO sync_items (id, queue, endpoint, payload, enqueued_at) VALUES (?, ?, ?, ?, ?)`,
		item.ID, item.Queue, item.Endpoint, string(item.Payload), sqlitedb.ToMillis(item.EnqueuedAt))
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", item.Queue, err)
	}
	return nil
}

// List implements syncqueue.Queue.
func (q *Queue) List(ctx context.Context, queue string) ([]*syncqueue.Item, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, queue, endpoint, payload, enqueued_at FROM sync_items WHERE queue = ? ORDER BY seq`, queue)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", queue, err)
	}
	defer rows.Close()

	var items []*syncqueue.Item
	for rows.Next() {
		var (
			it         syncqueue.Item
			payload    string
			enqueuedAt int64
		)
		if err := rows.Scan(&it.ID, &it.Queue, &it.Endpoint, &payload, &enqueuedAt); err != nil {
			return nil, fmt.Errorf("scan %s: %w", queue, err)
		}
		it.Payload = []byte(payload)
		it.EnqueuedAt = sqlitedb.FromMillis(enqueuedAt)
		items = append(items, &it)
	}
	return items, rows.Err()
}

// Remove implements syncqueue.Queue.
func (q *Queue) Remove(ctx context.Context, queue, id string) (bool, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM sync_items WHERE queue = ? AND id = ?`, queue, id)
	if err != nil {
		return false, fmt.Errorf("remove %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Len implements syncqueue.Queue.
func (q *Queue) Len(ctx context.Context, queue string) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sync_items WHERE queue = ?`, queue).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", queue, err)
	}
	return n, nil
}

// Close closes the database if the queue opened it.
func (q *Queue) Close() error {
	if !q.owned || q.db == nil {
		return nil
	}
	return q.db.Close()
}
