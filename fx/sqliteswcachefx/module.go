// Package sqliteswcachefx provides an fx module for a worker whose caches and
// pending sync queues persist in one SQLite database.
package sqliteswcachefx

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/discochess/swcache"
	"github.com/discochess/swcache/internal/cachestore/sqlitestore"
	"github.com/discochess/swcache/internal/codec"
	"github.com/discochess/swcache/internal/fetch"
	"github.com/discochess/swcache/internal/sqlitedb"
	"github.com/discochess/swcache/internal/stats"
	"github.com/discochess/swcache/internal/syncqueue/sqlitequeue"
)

// DatabaseFile is the database name inside the data directory.
const DatabaseFile = "swcache.db"

// Config holds configuration for the SQLite-backed worker.
type Config struct {
	// DataDir is the directory holding the database. Created if missing.
	DataDir string

	// Codec compresses stored bodies: "zstd" (default), "gzip" or "none".
	Codec string
}

// Module provides a SQLite-backed worker.
// Requires a *zap.Logger, a stats.Collector, a Config, a swcache.Config
// and a fetch.Network to be provided.
var Module = fx.Module("sqliteswcache",
	fx.Provide(
		newDatabase,
		newWorker,
	),
)

// DatabaseParams holds dependencies for opening the database.
type DatabaseParams struct {
	fx.In

	Config    Config
	Lifecycle fx.Lifecycle
}

func newDatabase(p DatabaseParams) (*sql.DB, error) {
	if err := os.MkdirAll(p.Config.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	schema := append(append([]string{}, sqlitestore.Schema...), sqlitequeue.Schema...)
	db, err := sqlitedb.Open(context.Background(), filepath.Join(p.Config.DataDir, DatabaseFile), schema...)
	if err != nil {
		return nil, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return db.Close()
		},
	})
	return db, nil
}

// Params holds dependencies for creating the worker.
type Params struct {
	fx.In

	Config    Config
	Worker    swcache.Config
	Network   fetch.Network
	DB        *sql.DB
	Logger    *zap.Logger
	Collector stats.Collector
	Lifecycle fx.Lifecycle
}

// Result holds the provided worker.
type Result struct {
	fx.Out

	Worker *swcache.Worker
}

func newWorker(p Params) (Result, error) {
	name := p.Config.Codec
	if name == "" {
		name = "zstd"
	}
	c, err := codec.ByName(name)
	if err != nil {
		return Result{}, err
	}

	w, err := swcache.New(
		swcache.WithConfig(p.Worker),
		swcache.WithNetwork(p.Network),
		swcache.WithStorage(sqlitestore.New(p.DB, c)),
		swcache.WithQueue(sqlitequeue.New(p.DB)),
		swcache.WithStats(p.Collector),
		swcache.WithLogger(p.Logger.Named("swcache")),
	)
	if err != nil {
		return Result{}, err
	}

	// Appended after the database hook, so it stops first.
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return w.Close()
		},
	})

	return Result{Worker: w}, nil
}
