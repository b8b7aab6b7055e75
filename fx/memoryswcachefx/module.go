// Package memoryswcachefx provides an fx module for a worker with in-memory
// caches and queues. Useful for testing.
package memoryswcachefx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/discochess/swcache"
	"github.com/discochess/swcache/internal/cachestore/memory"
	"github.com/discochess/swcache/internal/fetch"
	"github.com/discochess/swcache/internal/stats"
	"github.com/discochess/swcache/internal/stats/logger"
	"github.com/discochess/swcache/internal/syncqueue/memqueue"
)

// Module provides an in-memory worker.
// Requires a *zap.Logger, a swcache.Config and a fetch.Network to be provided.
var Module = fx.Module("memoryswcache",
	fx.Provide(
		newStatsCollector,
		newStorage,
		newQueue,
		newWorker,
	),
)

func newStatsCollector(log *zap.Logger) stats.Collector {
	return logger.New(log.Named("swcache.stats"))
}

func newStorage() *memory.Storage {
	return memory.New(0)
}

func newQueue() *memqueue.Queue {
	return memqueue.New()
}

// Params holds dependencies for creating the worker.
type Params struct {
	fx.In

	Config    swcache.Config
	Network   fetch.Network
	Logger    *zap.Logger
	Collector stats.Collector
	Storage   *memory.Storage
	Queue     *memqueue.Queue
	Lifecycle fx.Lifecycle
}

// Result holds the provided worker and its backing stores.
type Result struct {
	fx.Out

	Worker  *swcache.Worker
	Storage *memory.Storage // Exposed for test setup
	Queue   *memqueue.Queue // Exposed for test setup
}

func newWorker(p Params) (Result, error) {
	w, err := swcache.New(
		swcache.WithConfig(p.Config),
		swcache.WithNetwork(p.Network),
		swcache.WithStorage(p.Storage),
		swcache.WithQueue(p.Queue),
		swcache.WithStats(p.Collector),
		swcache.WithLogger(p.Logger.Named("swcache")),
	)
	if err != nil {
		return Result{}, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return w.Close()
		},
	})

	return Result{
		Worker:  w,
		Storage: p.Storage,
		Queue:   p.Queue,
	}, nil
}
