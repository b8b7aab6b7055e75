// Package swcache is an offline-first cache layer for a storefront. A Worker
// answers intercepted requests from versioned cache stores or the network,
// queues mutations made while offline for background sync, and handles push
// notifications.
//
// Example usage:
//
//	origin, _ := url.Parse("https://shop.example")
//	w, err := swcache.New(swcache.WithConfig(swcache.DefaultConfig(origin)))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Close()
//
//	if err := w.Install(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	http.ListenAndServe(":8081", w)
package swcache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/discochess/swcache/internal/cachestore"
	"github.com/discochess/swcache/internal/cachestore/memory"
	"github.com/discochess/swcache/internal/classify"
	"github.com/discochess/swcache/internal/fetch"
	"github.com/discochess/swcache/internal/push"
	"github.com/discochess/swcache/internal/stats"
	"github.com/discochess/swcache/internal/strategy"
	"github.com/discochess/swcache/internal/syncqueue"
	"github.com/discochess/swcache/internal/syncqueue/memqueue"
)

// Sentinel errors for well-defined error conditions.
var (
	// ErrClosed indicates the worker has been closed.
	ErrClosed = errors.New("swcache: worker closed")

	// ErrNoConfig indicates no configuration was provided.
	ErrNoConfig = errors.New("swcache: no config provided")

	// ErrNoOrigin indicates the configuration has no usable origin.
	ErrNoOrigin = errors.New("swcache: origin must be an absolute URL")

	// ErrUnknownMessage indicates a message type the worker does not handle.
	ErrUnknownMessage = errors.New("swcache: unknown message type")

	// ErrPrecache indicates install could not fetch the precache list.
	ErrPrecache = errors.New("swcache: precache failed")
)

// Worker intercepts storefront requests. A Worker is safe for concurrent use
// by multiple goroutines.
type Worker struct {
	cfg        Config
	storage    *cachestore.Instrumented
	queue      syncqueue.Queue
	network    fetch.Network
	clients    push.Clients
	classifier *classify.Classifier
	routes     syncqueue.Routes
	replayer   *syncqueue.Replayer
	push       *push.Handler
	clock      fetch.Clock
	stats      stats.Collector
	logger     *zap.Logger

	strategies map[classify.Category]strategy.Strategy
	swr        *strategy.StaleWhileRevalidate

	mu    sync.Mutex
	state State

	// gate orders enter against Close; inflight counts event calls.
	gate     sync.RWMutex
	closed   bool
	inflight sync.WaitGroup
}

// New creates a Worker with the given options. WithConfig is required.
func New(opts ...Option) (*Worker, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(&o)
	}
	if o.config == nil {
		return nil, ErrNoConfig
	}
	cfg := *o.config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if o.clock == nil {
		o.clock = time.Now
	}
	o.stats = stats.OrNoop(o.stats)
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.storage == nil {
		o.storage = memory.New(0)
	}
	if o.queue == nil {
		o.queue = memqueue.New()
	}
	if o.network == nil {
		o.network = fetch.NewHTTPNetwork(cfg.Origin, fetch.WithHTTPLogger(o.logger.Named("network")))
	}
	if o.notifier == nil {
		o.notifier = push.NewLogNotifier(o.logger.Named("notifications"))
	}
	if o.clients == nil {
		o.clients = push.NewMemoryClients()
	}

	w := &Worker{
		cfg:        cfg,
		storage:    cachestore.Instrument(o.storage, o.stats),
		queue:      o.queue,
		network:    o.network,
		clients:    o.clients,
		classifier: classify.New(cfg.Origin, cfg.APIPrefixes...),
		routes:     syncqueue.Routes(cfg.SyncRoutes),
		clock:      o.clock,
		stats:      o.stats,
		logger:     o.logger,
		state:      StateNew,
	}
	w.replayer = syncqueue.NewReplayer(w.queue, w.network,
		syncqueue.WithReplayStats(w.stats),
		syncqueue.WithReplayLogger(w.logger.Named("sync")),
	)
	w.push = push.NewHandler(o.notifier, w.clients, w.network, cfg.Origin,
		push.WithHandlerClock(w.clock),
		push.WithHandlerStats(w.stats),
		push.WithHandlerLogger(w.logger.Named("push")),
	)
	w.buildStrategies()

	w.logger.Debug("worker initialized",
		zap.String("version", cfg.Version),
		zap.String("origin", cfg.Origin.String()),
		zap.Strings("stores", cfg.StoreNames()),
	)
	return w, nil
}

func (w *Worker) buildStrategies() {
	env := strategy.Env{
		Storage: w.storage,
		Network: w.network,
		Clock:   w.clock,
		Logger:  w.logger.Named("strategy"),
		Stats:   w.stats,
	}
	w.swr = strategy.NewStaleWhileRevalidate(env, w.cfg.DynamicConfig(), w.offlineFallback)
	w.strategies = map[classify.Category]strategy.Strategy{
		classify.Static:     strategy.NewCacheFirst(env, w.cfg.StaticConfig(), w.offlineFallback),
		classify.Image:      strategy.NewCacheFirst(env, w.cfg.ImageConfig(), w.imageFallback),
		classify.API:        strategy.NewNetworkFirst(env, w.cfg.APIConfig(), w.offlineFallback),
		classify.Navigation: w.swr,
		classify.Other:      strategy.NewNetworkOnly(env, cachestore.Config{}),
	}
}

// Config returns the release configuration.
func (w *Worker) Config() Config {
	return w.cfg
}

// Storage returns the cache storage.
func (w *Worker) Storage() cachestore.Storage {
	return w.storage
}

// CacheStats returns hit, miss and write counts since the worker started.
func (w *Worker) CacheStats() cachestore.Stats {
	return w.storage.Stats()
}

// Queue returns the pending sync queue.
func (w *Worker) Queue() syncqueue.Queue {
	return w.queue
}

// Clients returns the controlled windows.
func (w *Worker) Clients() push.Clients {
	return w.clients
}

// Wait blocks until background revalidations and tracking requests finish.
func (w *Worker) Wait() {
	w.swr.Wait()
	w.push.Wait()
}

// enter registers an event call. It reports false once the worker is
// closed; otherwise the caller must call leave when done.
func (w *Worker) enter() bool {
	w.gate.RLock()
	defer w.gate.RUnlock()
	if w.closed {
		return false
	}
	w.inflight.Add(1)
	return true
}

func (w *Worker) leave() {
	w.inflight.Done()
}

// Close waits for background work and releases the storage and queue.
// After Close, the worker should not be used.
func (w *Worker) Close() error {
	w.gate.Lock()
	if w.closed {
		w.gate.Unlock()
		return ErrClosed
	}
	w.closed = true
	w.gate.Unlock()

	// Running events may still start revalidations or tracking requests,
	// so they finish before the background work is awaited.
	w.inflight.Wait()
	w.Wait()

	w.mu.Lock()
	w.state = StateRedundant
	w.mu.Unlock()

	var errs []error
	if err := w.queue.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing queue: %w", err))
	}
	if err := w.storage.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing storage: %w", err))
	}
	return errors.Join(errs...)
}
