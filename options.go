package swcache

import (
	"go.uber.org/zap"

	"github.com/discochess/swcache/internal/cachestore"
	"github.com/discochess/swcache/internal/fetch"
	"github.com/discochess/swcache/internal/push"
	"github.com/discochess/swcache/internal/stats"
	"github.com/discochess/swcache/internal/syncqueue"
)

// Option configures a Worker.
type Option interface {
	apply(*options)
}

// options holds the worker configuration.
type options struct {
	config   *Config
	storage  cachestore.Storage
	queue    syncqueue.Queue
	network  fetch.Network
	notifier push.Notifier
	clients  push.Clients
	clock    fetch.Clock
	stats    stats.Collector
	logger   *zap.Logger
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		stats:  stats.NewNoop(),
		logger: zap.NewNop(),
	}
}

// optionFunc wraps a function to implement Option.
type optionFunc func(*options)

// Compile-time check that optionFunc implements Option.
var _ Option = optionFunc(nil)

func (f optionFunc) apply(o *options) { f(o) }

// WithConfig sets the release configuration. Required.
func WithConfig(c Config) Option {
	return optionFunc(func(o *options) {
		o.config = &c
	})
}

// WithStorage sets the cache storage.
// If not set, an in-memory storage is used.
func WithStorage(s cachestore.Storage) Option {
	return optionFunc(func(o *options) {
		o.storage = s
	})
}

// WithQueue sets the pending sync queue.
// If not set, an in-memory queue is used.
func WithQueue(q syncqueue.Queue) Option {
	return optionFunc(func(o *options) {
		o.queue = q
	})
}

// WithNetwork sets the network used for fetches and replays.
// If not set, an HTTP network against the configured origin is used.
func WithNetwork(n fetch.Network) Option {
	return optionFunc(func(o *options) {
		o.network = n
	})
}

// WithNotifier sets where notifications are shown.
// If not set, notifications are written to the logger.
func WithNotifier(n push.Notifier) Option {
	return optionFunc(func(o *options) {
		o.notifier = n
	})
}

// WithClients sets the controlled windows.
// If not set, an in-memory client set is used.
func WithClients(c push.Clients) Option {
	return optionFunc(func(o *options) {
		o.clients = c
	})
}

// WithClock sets the time source for cache ages.
func WithClock(c fetch.Clock) Option {
	return optionFunc(func(o *options) {
		o.clock = c
	})
}

// WithStats sets the stats collector.
// If not set, a no-op collector is used.
func WithStats(c stats.Collector) Option {
	return optionFunc(func(o *options) {
		o.stats = c
	})
}

// WithLogger sets the logger.
// If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = l
	})
}
