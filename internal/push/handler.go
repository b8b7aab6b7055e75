package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/discochess/swcache/internal/fetch"
	"github.com/discochess/swcache/internal/stats"
)

// DefaultTrackEndpoint receives notification interaction events.
const DefaultTrackEndpoint = "/api/notifications/track"

// Click is a notificationclick event.
type Click struct {
	// Tag identifies the clicked notification.
	Tag string `json:"tag"`

	// Action is the button pressed, empty for the notification body.
	Action string `json:"action,omitempty"`

	Data Data `json:"data"`
}

// Handler reacts to push and notificationclick events.
type Handler struct {
	notifier      Notifier
	clients       Clients
	network       fetch.Network
	origin        *url.URL
	trackEndpoint string
	clock         fetch.Clock
	stats         stats.Collector
	logger        *zap.Logger

	pending sync.WaitGroup
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithTrackEndpoint sets the tracking endpoint. Empty disables tracking.
func WithTrackEndpoint(path string) HandlerOption {
	return func(h *Handler) { h.trackEndpoint = path }
}

// WithHandlerClock sets the clock used to timestamp tracking events.
func WithHandlerClock(c fetch.Clock) HandlerOption {
	return func(h *Handler) { h.clock = c }
}

// WithHandlerStats sets the metrics collector.
func WithHandlerStats(c stats.Collector) HandlerOption {
	return func(h *Handler) { h.stats = stats.OrNoop(c) }
}

// WithHandlerLogger sets the logger.
func WithHandlerLogger(l *zap.Logger) HandlerOption {
	return func(h *Handler) { h.logger = l }
}

// NewHandler creates a handler for windows at origin. network carries the
// tracking requests.
func NewHandler(notifier Notifier, clients Clients, network fetch.Network, origin *url.URL, opts ...HandlerOption) *Handler {
	h := &Handler{
		notifier:      notifier,
		clients:       clients,
		network:       network,
		origin:        origin,
		trackEndpoint: DefaultTrackEndpoint,
		clock:         time.Now,
		stats:         stats.NewNoop(),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandlePush shows the notification carried by data. Malformed payloads are
// logged and dropped; only a notifier failure is returned.
func (h *Handler) HandlePush(ctx context.Context, data []byte) error {
	n, err := Parse(data)
	if err != nil {
		h.stats.IncCounter(stats.MetricPushDropped, 1)
		h.logger.Warn("dropping push message", zap.Error(err))
		return nil
	}
	if err := h.notifier.Show(ctx, n); err != nil {
		return err
	}
	h.stats.IncCounter(stats.MetricPushShown, 1)
	return nil
}

// HandleClick closes the clicked notification and, unless it was dismissed,
// brings a window to the resolved page: an existing window on the origin is
// navigated and focused, otherwise a new one is opened. The interaction is
// tracked in the background.
func (h *Handler) HandleClick(ctx context.Context, click Click) (string, error) {
	h.stats.IncCounter(stats.MetricPushClicks, 1)
	if err := h.notifier.Close(ctx, click.Tag); err != nil {
		h.logger.Warn("closing notification failed", zap.String("tag", click.Tag), zap.Error(err))
	}

	target := ""
	if click.Action != ActionDismiss {
		target = ResolveURL(click.Data)
	}
	h.track(ctx, click, target)

	if target == "" {
		return "", nil
	}
	abs := h.resolve(target)
	if err := h.openWindow(ctx, abs); err != nil {
		return "", err
	}
	return abs, nil
}

// Wait blocks until pending tracking requests have finished.
func (h *Handler) Wait() {
	h.pending.Wait()
}

func (h *Handler) openWindow(ctx context.Context, target string) error {
	windows, err := h.clients.List(ctx)
	if err != nil {
		return err
	}
	for _, w := range windows {
		u, err := url.Parse(w.URL)
		if err != nil || !fetch.SameOrigin(u, h.origin) {
			continue
		}
		if err := h.clients.Navigate(ctx, w.ID, target); err != nil {
			return err
		}
		return h.clients.Focus(ctx, w.ID)
	}
	_, err = h.clients.Open(ctx, target)
	return err
}

func (h *Handler) resolve(target string) string {
	u, err := url.Parse(target)
	if err != nil || h.origin == nil {
		return target
	}
	return h.origin.ResolveReference(u).String()
}

type trackEvent struct {
	Action    string `json:"action"`
	Type      string `json:"type,omitempty"`
	Tag       string `json:"tag,omitempty"`
	URL       string `json:"url,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// track posts the interaction without blocking the click. Failures are
// logged and otherwise ignored.
func (h *Handler) track(ctx context.Context, click Click, target string) {
	if h.trackEndpoint == "" || h.network == nil {
		return
	}
	action := click.Action
	if action == "" {
		action = "click"
	}
	body, err := json.Marshal(trackEvent{
		Action:    action,
		Type:      click.Data.Type,
		Tag:       click.Tag,
		URL:       target,
		Timestamp: h.clock().UnixMilli(),
	})
	if err != nil {
		return
	}
	u, err := url.Parse(h.trackEndpoint)
	if err != nil {
		h.logger.Warn("invalid tracking endpoint", zap.String("endpoint", h.trackEndpoint), zap.Error(err))
		return
	}
	req := &fetch.Request{
		Method: http.MethodPost,
		URL:    u,
		Header: http.Header{"Content-Type": {"application/json"}},
		Body:   body,
		Mode:   fetch.ModeCORS,
	}

	bg := context.WithoutCancel(ctx)
	h.pending.Add(1)
	go func() {
		defer h.pending.Done()
		resp, err := h.network.Fetch(bg, req)
		if err != nil {
			h.logger.Debug("notification tracking failed", zap.Error(err))
			return
		}
		if !resp.OK() {
			h.logger.Debug("notification tracking rejected", zap.Int("status", resp.StatusCode))
		}
	}()
}
