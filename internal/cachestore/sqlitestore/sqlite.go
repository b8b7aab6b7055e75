// Package sqlitestore implements a durable cache storage on SQLite.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/discochess/swcache/internal/cachestore"
	"github.com/discochess/swcache/internal/codec"
	"github.com/discochess/swcache/internal/sqlitedb"
)

// Schema creates the cache tables. Entry order is the autoincrement seq, so
// an overwrite (delete + insert) becomes the newest row.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS caches (
	   name       TEXT PRIMARY KEY,
	   created_at INTEGER NOT NULL
	 )`,
	`CREATE TABLE IF NOT EXISTS cache_entries (
	   seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	   cache     TEXT NOT NULL,
	   key       TEXT NOT NULL,
	   method    TEXT NOT NULL,
	   url       TEXT NOT NULL,
	   status    INTEGER NOT NULL,
	   header    TEXT NOT NULL,
	   body      BLOB,
	   codec     TEXT NOT NULL,
	   stored_at INTEGER NOT NULL,
	   UNIQUE (cache, key)
	 )`,
}

var nowUTC = func() time.Time { return time.Now().UTC() }

// Compile-time checks.
var (
	_ cachestore.Storage = (*Storage)(nil)
	_ cachestore.Cache   = (*Cache)(nil)
)

// Storage persists caches in a SQLite database.
type Storage struct {
	db    *sql.DB
	codec codec.Codec
	owned bool
}

// Open opens the database at path. The codec compresses stored bodies;
// nil selects zstd.
func Open(ctx context.Context, path string, c codec.Codec) (*Storage, error) {
	db, err := sqlitedb.Open(ctx, path, Schema...)
	if err != nil {
		return nil, err
	}
	s := New(db, c)
	s.owned = true
	return s, nil
}

// New wraps an existing database handle. The schema must already be applied
// and the caller keeps ownership of db.
func New(db *sql.DB, c codec.Codec) *Storage {
	if c == nil {
		c = codec.NewZstd()
	}
	return &Storage{db: db, codec: c}
}

// Open returns the named cache, creating it if needed.
func (s *Storage) Open(ctx context.Context, name string) (cachestore.Cache, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO caches (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		name, sqlitedb.ToMillis(nowUTC()))
	if err != nil {
		return nil, fmt.Errorf("opening cache %s: %w", name, err)
	}
	return &Cache{name: name, storage: s}, nil
}

// Delete removes the named cache and its entries.
func (s *Storage) Delete(ctx context.Context, name string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entries WHERE cache = ?`, name); err != nil {
		return false, fmt.Errorf("deleting entries of %s: %w", name, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM caches WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("deleting cache %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return n > 0, nil
}

// Names returns cache names in creation order.
func (s *Storage) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM caches ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("listing caches: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Match searches every cache in creation order.
func (s *Storage) Match(ctx context.Context, key string) (*cachestore.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT e.key, e.method, e.url, e.status, e.header, e.body, e.codec, e.stored_at
		   FROM cache_entries e JOIN caches c ON c.name = e.cache
		  WHERE e.key = ?
		  ORDER BY c.created_at, c.rowid
		  LIMIT 1`, key)
	return s.scanEntry(row)
}

// Close closes the database if the storage opened it.
func (s *Storage) Close() error {
	if !s.owned || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Storage) scanEntry(row *sql.Row) (*cachestore.Entry, error) {
	var (
		e          cachestore.Entry
		headerJSON string
		body       []byte
		codecName  string
		storedAt   int64
	)
	err := row.Scan(&e.Key, &e.Method, &e.URL, &e.StatusCode, &headerJSON, &body, &codecName, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cachestore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading entry: %w", err)
	}

	e.Header = make(http.Header)
	if err := json.Unmarshal([]byte(headerJSON), &e.Header); err != nil {
		return nil, fmt.Errorf("decoding header of %q: %w", e.Key, err)
	}

	// Rows keep the codec they were written with, so changing the configured
	// codec does not strand existing entries.
	c := s.codec
	if codecName != c.Name() {
		if c, err = codec.ByName(codecName); err != nil {
			return nil, err
		}
	}
	if e.Body, err = codec.Decode(c, body); err != nil {
		return nil, fmt.Errorf("decoding body of %q: %w", e.Key, err)
	}
	e.StoredAt = sqlitedb.FromMillis(storedAt)
	return &e, nil
}

// Cache is one named cache backed by rows in cache_entries.
type Cache struct {
	name    string
	storage *Storage
}

// Name returns the cache name.
func (c *Cache) Name() string { return c.name }

// Match returns the entry stored under key.
func (c *Cache) Match(ctx context.Context, key string) (*cachestore.Entry, error) {
	row := c.storage.db.QueryRowContext(ctx,
		`SELECT key, method, url, status, header, body, codec, stored_at
		   FROM cache_entries WHERE cache = ? AND key = ?`, c.name, key)
	return c.storage.scanEntry(row)
}

// Put stores e, replacing any entry under the same key.
func (c *Cache) Put(ctx context.Context, e *cachestore.Entry) error {
	headerJSON, err := json.Marshal(e.Header)
	if err != nil {
		return fmt.Errorf("encoding header: %w", err)
	}
	body, err := codec.Encode(c.storage.codec, e.Body)
	if err != nil {
		return fmt.Errorf("encoding body: %w", err)
	}

	tx, err := c.storage.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE cache = ? AND key = ?`, c.name, e.Key); err != nil {
		return fmt.Errorf("replacing %q: %w", e.Key, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO cache_entries (cache, key, method, url, status, header, body, codec, stored_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.name, e.Key, e.Method, e.URL, e.StatusCode, string(headerJSON), body,
		c.storage.codec.Name(), sqlitedb.ToMillis(e.StoredAt)); err != nil {
		return fmt.Errorf("inserting %q: %w", e.Key, err)
	}
	return tx.Commit()
}

// Keys returns keys oldest first.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	rows, err := c.storage.db.QueryContext(ctx,
		`SELECT key FROM cache_entries WHERE cache = ? ORDER BY seq`, c.name)
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) (bool, error) {
	res, err := c.storage.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE cache = ? AND key = ?`, c.name, key)
	if err != nil {
		return false, fmt.Errorf("deleting %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Len returns the number of entries.
func (c *Cache) Len(ctx context.Context) (int, error) {
	var n int
	err := c.storage.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cache_entries WHERE cache = ?`, c.name).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting entries: %w", err)
	}
	return n, nil
}
