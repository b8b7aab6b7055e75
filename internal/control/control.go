// Package control exposes the worker's host events over HTTP so a proxy
// deployment can be driven like a browser-hosted worker: page messages,
// sync triggers, push deliveries and notification clicks.
package control

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/discochess/swcache"
	"github.com/discochess/swcache/internal/push"
	"github.com/discochess/swcache/internal/syncqueue"
)

// Prefix is the path prefix of control routes. Everything else is proxied.
const Prefix = "/__sw"

const maxControlBody = 64 << 10

// Options configures the router.
type Options struct {
	// Gatherer, when set, is served at /metrics.
	Gatherer prometheus.Gatherer

	Logger *zap.Logger
}

type handler struct {
	worker *swcache.Worker
	logger *zap.Logger
}

// NewRouter routes control requests to w and proxies every other request
// through it.
func NewRouter(w *swcache.Worker, opts Options) *mux.Router {
	h := &handler{worker: w, logger: opts.Logger}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}

	r := mux.NewRouter()
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	c := r.PathPrefix(Prefix).Subrouter()
	c.HandleFunc("/status", h.status).Methods(http.MethodGet)
	c.HandleFunc("/message", h.message).Methods(http.MethodPost)
	c.HandleFunc("/sync", h.syncAll).Methods(http.MethodPost)
	c.HandleFunc("/sync/{tag}", h.sync).Methods(http.MethodPost)
	c.HandleFunc("/push", h.push).Methods(http.MethodPost)
	c.HandleFunc("/notificationclick", h.click).Methods(http.MethodPost)

	r.PathPrefix("/").Handler(w)
	return r
}

type statusReply struct {
	Version string         `json:"version"`
	State   string         `json:"state"`
	Stores  []string       `json:"stores"`
	Pending map[string]int `json:"pending"`
	HitRate float64        `json:"hitRate"`
}

func (h *handler) status(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	names, err := h.worker.Storage().Names(ctx)
	if err != nil {
		h.fail(rw, err)
		return
	}
	pending, err := h.worker.Pending(ctx)
	if err != nil {
		h.fail(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, statusReply{
		Version: h.worker.Config().Version,
		State:   h.worker.State().String(),
		Stores:  names,
		Pending: pending,
		HitRate: h.worker.CacheStats().HitRate(),
	})
}

func (h *handler) message(rw http.ResponseWriter, r *http.Request) {
	var msg swcache.Message
	if !decode(rw, r, &msg) {
		return
	}
	reply, err := h.worker.Message(r.Context(), msg)
	if err != nil {
		h.fail(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, reply)
}

func (h *handler) sync(rw http.ResponseWriter, r *http.Request) {
	res, err := h.worker.Sync(r.Context(), mux.Vars(r)["tag"])
	if err != nil {
		h.fail(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, res)
}

func (h *handler) syncAll(rw http.ResponseWriter, r *http.Request) {
	results, err := h.worker.SyncAll(r.Context())
	if err != nil {
		h.fail(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, results)
}

func (h *handler) push(rw http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxControlBody))
	if err != nil {
		http.Error(rw, "reading body", http.StatusBadRequest)
		return
	}
	if err := h.worker.Push(r.Context(), data); err != nil {
		h.fail(rw, err)
		return
	}
	rw.WriteHeader(http.StatusNoContent)
}

func (h *handler) click(rw http.ResponseWriter, r *http.Request) {
	var click push.Click
	if !decode(rw, r, &click) {
		return
	}
	target, err := h.worker.NotificationClick(r.Context(), click)
	if err != nil {
		h.fail(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]string{"url": target})
}

func (h *handler) fail(rw http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, swcache.ErrUnknownMessage), errors.Is(err, syncqueue.ErrUnknownTag):
		status = http.StatusBadRequest
	case errors.Is(err, swcache.ErrClosed):
		status = http.StatusServiceUnavailable
	default:
		h.logger.Error("control request failed", zap.Error(err))
	}
	writeJSON(rw, status, map[string]string{"error": err.Error()})
}

func decode(rw http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxControlBody)).Decode(v); err != nil {
		writeJSON(rw, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return false
	}
	return true
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
