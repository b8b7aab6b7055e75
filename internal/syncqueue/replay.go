package syncqueue

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"go.uber.org/zap"

	"github.com/discochess/swcache/internal/fetch"
	"github.com/discochess/swcache/internal/stats"
)

// Result summarizes one drain of a queue.
type Result struct {
	Tag       string
	Attempted int
	Replayed  int
	Failed    int
	Remaining int
}

// Replayer drains queues by POSTing each item to its endpoint.
type Replayer struct {
	queue   Queue
	network fetch.Network
	stats   stats.Collector
	logger  *zap.Logger

	mu      sync.Mutex
	drains  map[string]*sync.Mutex
	pending map[string]int
}

// ReplayerOption configures a Replayer.
type ReplayerOption func(*Replayer)

// WithReplayStats sets the metrics collector.
func WithReplayStats(c stats.Collector) ReplayerOption {
	return func(r *Replayer) { r.stats = stats.OrNoop(c) }
}

// WithReplayLogger sets the logger.
func WithReplayLogger(l *zap.Logger) ReplayerOption {
	return func(r *Replayer) { r.logger = l }
}

// NewReplayer creates a replayer over queue.
func NewReplayer(queue Queue, network fetch.Network, opts ...ReplayerOption) *Replayer {
	r := &Replayer{
		queue:   queue,
		network: network,
		stats:   stats.NewNoop(),
		logger:  zap.NewNop(),
		drains:  make(map[string]*sync.Mutex),
		pending: make(map[string]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Drain replays every item of route's queue in FIFO order. An item is
// removed as soon as its POST returns 2xx; failed items stay queued for the
// next sync. Only queue storage failures are returned as errors.
//
// Drains of the same queue run one at a time, so an item is never POSTed
// by two drains at once; a drain that waited sees only what is left.
func (r *Replayer) Drain(ctx context.Context, route Route) (Result, error) {
	lock := r.drainLock(route.Queue)
	lock.Lock()
	defer lock.Unlock()

	res := Result{Tag: route.Tag}

	items, err := r.queue.List(ctx, route.Queue)
	if err != nil {
		return res, fmt.Errorf("listing %s: %w", route.Queue, err)
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			res.Remaining = len(items) - res.Replayed
			return res, err
		}
		res.Attempted++

		if !r.replay(ctx, item) {
			res.Failed++
			r.stats.IncCounter(stats.MetricSyncFailed, 1)
			continue
		}

		if _, err := r.queue.Remove(ctx, route.Queue, item.ID); err != nil {
			res.Remaining = len(items) - res.Replayed
			return res, fmt.Errorf("removing %s from %s: %w", item.ID, route.Queue, err)
		}
		res.Replayed++
		r.stats.IncCounter(stats.MetricSyncReplayed, 1)
	}

	res.Remaining = len(items) - res.Replayed
	r.setPending(route.Queue, res.Remaining)

	r.logger.Info("sync drained",
		zap.String("tag", route.Tag),
		zap.Int("replayed", res.Replayed),
		zap.Int("failed", res.Failed),
		zap.Int("remaining", res.Remaining),
	)
	return res, nil
}

func (r *Replayer) drainLock(queue string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.drains[queue]
	if !ok {
		l = new(sync.Mutex)
		r.drains[queue] = l
	}
	return l
}

// setPending records the remaining count of queue and reports the total
// across all drained queues.
func (r *Replayer) setPending(queue string, n int) {
	r.mu.Lock()
	r.pending[queue] = n
	total := 0
	for _, v := range r.pending {
		total += v
	}
	r.mu.Unlock()
	r.stats.SetGauge(stats.MetricSyncPending, int64(total))
}

func (r *Replayer) replay(ctx context.Context, item *Item) bool {
	endpoint := item.Endpoint
	u, err := url.Parse(endpoint)
	if err != nil {
		r.logger.Warn("unparsable replay endpoint",
			zap.String("id", item.ID), zap.String("endpoint", endpoint), zap.Error(err))
		return false
	}

	req := &fetch.Request{
		Method: http.MethodPost,
		URL:    u,
		Header: http.Header{"Content-Type": {"application/json"}},
		Body:   item.Payload,
		Mode:   fetch.ModeCORS,
	}
	resp, err := r.network.Fetch(ctx, req)
	if err != nil {
		r.logger.Debug("replay failed", zap.String("id", item.ID), zap.Error(err))
		return false
	}
	if !resp.OK() {
		r.logger.Debug("replay rejected",
			zap.String("id", item.ID), zap.Int("status", resp.StatusCode))
		return false
	}
	return true
}
