package swcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/discochess/swcache/internal/classify"
	"github.com/discochess/swcache/internal/fetch"
	"github.com/discochess/swcache/internal/stats"
	"github.com/discochess/swcache/internal/syncqueue"
)

// maxRequestBody bounds proxied request bodies.
const maxRequestBody = 1 << 20

const offlineHTML = `<!doctype html><html><head><meta charset="utf-8"><title>Offline</title></head>` +
	`<body><h1>You are offline</h1><p>Check your connection and try again.</p></body></html>`

// Fetch answers req. GET requests are classified and handed to the strategy
// for their category; other methods go straight to the network, and a
// failed mutation on a sync endpoint is queued for background sync.
func (w *Worker) Fetch(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
	if !w.enter() {
		return nil, ErrClosed
	}
	defer w.leave()
	start := time.Now()
	defer func() {
		w.stats.ObserveHistogram(stats.MetricFetchLatency, time.Since(start).Seconds())
	}()
	w.stats.IncCounter(stats.MetricFetches, 1)

	if req.Method != http.MethodGet {
		return w.mutate(ctx, req)
	}

	category := w.classifier.Classify(req)
	s := w.strategies[category]
	resp, err := s.Handle(ctx, req)
	if err != nil {
		w.logger.Debug("fetch failed",
			zap.String("key", req.Key()),
			zap.String("category", string(category)),
			zap.String("strategy", s.Name()),
			zap.Error(err),
		)
		return nil, err
	}
	return resp, nil
}

// Classify reports which category, and so which strategy, answers req.
func (w *Worker) Classify(req *fetch.Request) classify.Category {
	return w.classifier.Classify(req)
}

// ServeHTTP proxies r through the worker. A request neither the network nor
// a cache can answer gets a 504.
func (w *Worker) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		http.Error(rw, "reading request body", http.StatusBadRequest)
		return
	}
	if len(body) > maxRequestBody {
		http.Error(rw, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	req := fetch.FromHTTP(r, w.cfg.Origin, body)
	resp, err := w.Fetch(r.Context(), req)
	if err != nil {
		rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
		rw.WriteHeader(http.StatusGatewayTimeout)
		_, _ = io.WriteString(rw, "offline: the storefront is unreachable and no cached copy exists\n")
		return
	}
	if err := resp.Serve(rw); err != nil {
		w.logger.Debug("writing response", zap.String("key", req.Key()), zap.Error(err))
	}
}

// queuedReply is the body of a 202 answer to a queued mutation.
type queuedReply struct {
	Queued bool   `json:"queued"`
	ID     string `json:"id"`
	Tag    string `json:"tag"`
}

func (w *Worker) mutate(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
	resp, err := w.network.Fetch(ctx, req)
	if err == nil {
		return resp, nil
	}
	w.stats.IncCounter(stats.MetricNetworkErrors, 1)

	route, ok := w.routes.ByEndpoint(req.URL.Path)
	if !ok || !errors.Is(err, fetch.ErrNetwork) {
		return nil, err
	}
	item, qerr := w.enqueue(ctx, route, req.Body)
	if qerr != nil {
		w.logger.Warn("queueing offline mutation failed", zap.String("key", req.Key()), zap.Error(qerr))
		return nil, err
	}

	body, _ := json.Marshal(queuedReply{Queued: true, ID: item.ID, Tag: route.Tag})
	return fetch.NewResponse(http.StatusAccepted, "application/json", body), nil
}

// offlineFallback answers failed navigations with the page itself when any
// store holds it (a precached page never visited before), then with the
// offline page, from cache when it was precached and a built-in page
// otherwise.
func (w *Worker) offlineFallback(ctx context.Context, req *fetch.Request) (*fetch.Response, bool) {
	if !req.IsNavigation() {
		return nil, false
	}
	if e, err := w.storage.Match(ctx, req.Key()); err == nil {
		return e.Response(), true
	}
	if w.cfg.OfflinePage != "" {
		if resp, ok := w.cached(ctx, w.cfg.OfflinePage); ok {
			return resp, true
		}
	}
	return fetch.NewResponse(http.StatusServiceUnavailable, "text/html; charset=utf-8", []byte(offlineHTML)), true
}

// imageFallback answers failed image requests with the placeholder image
// when it is cached.
func (w *Worker) imageFallback(ctx context.Context, req *fetch.Request) (*fetch.Response, bool) {
	if w.cfg.ImagePlaceholder == "" {
		return nil, false
	}
	return w.cached(ctx, w.cfg.ImagePlaceholder)
}

func (w *Worker) cached(ctx context.Context, path string) (*fetch.Response, bool) {
	req, err := w.request(http.MethodGet, path)
	if err != nil {
		return nil, false
	}
	e, err := w.storage.Match(ctx, req.Key())
	if err != nil {
		return nil, false
	}
	return e.Response(), true
}

// request builds a request for path on the origin.
func (w *Worker) request(method, path string) (*fetch.Request, error) {
	u, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", path, err)
	}
	return fetch.NewRequest(method, w.cfg.Origin.ResolveReference(u).String())
}

func (w *Worker) enqueue(ctx context.Context, route syncqueue.Route, payload []byte) (*syncqueue.Item, error) {
	item, err := syncqueue.NewItem(route.Queue, route.Endpoint, payload, w.clock())
	if err != nil {
		return nil, err
	}
	if err := w.queue.Enqueue(ctx, item); err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", route.Queue, err)
	}
	w.stats.IncCounter(stats.MetricSyncEnqueued, 1)
	w.logger.Info("queued for background sync",
		zap.String("tag", route.Tag), zap.String("id", item.ID))
	return item, nil
}
