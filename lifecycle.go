package swcache

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"go.uber.org/zap"

	"github.com/discochess/swcache/internal/cachestore"
)

// State is the worker's lifecycle position.
type State int

const (
	StateNew State = iota
	StateInstalling
	StateInstalled
	StateActivating
	StateActivated
	StateRedundant
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActivated:
		return "activated"
	case StateRedundant:
		return "redundant"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
	w.logger.Debug("state changed", zap.Stringer("state", s))
}

// Install fetches the precache list into the static store. It is
// all-or-nothing: if any asset fails nothing is stored and the worker
// becomes redundant. With SkipWaiting the worker then activates at once;
// otherwise it stays installed until a SKIP_WAITING message.
func (w *Worker) Install(ctx context.Context) error {
	if !w.enter() {
		return ErrClosed
	}
	defer w.leave()
	w.setState(StateInstalling)

	entries := make([]*cachestore.Entry, 0, len(w.cfg.Precache))
	now := w.clock()
	for _, p := range w.cfg.Precache {
		req, err := w.request(http.MethodGet, p)
		if err != nil {
			w.setState(StateRedundant)
			return fmt.Errorf("%w: %s: %v", ErrPrecache, p, err)
		}
		resp, err := w.network.Fetch(ctx, req)
		if err != nil {
			w.setState(StateRedundant)
			return fmt.Errorf("%w: %s: %w", ErrPrecache, p, err)
		}
		if !resp.Cacheable() {
			w.setState(StateRedundant)
			return fmt.Errorf("%w: %s: status %d", ErrPrecache, p, resp.StatusCode)
		}
		entries = append(entries, cachestore.NewEntry(req, resp, now))
	}

	static, err := w.storage.Open(ctx, w.cfg.StaticConfig().Name)
	if err != nil {
		w.setState(StateRedundant)
		return fmt.Errorf("opening static store: %w", err)
	}
	for _, e := range entries {
		if err := static.Put(ctx, e); err != nil {
			// Roll back so a failed install leaves no partial precache.
			for _, done := range entries {
				_, _ = static.Delete(ctx, done.Key)
			}
			w.setState(StateRedundant)
			return fmt.Errorf("precaching %s: %w", e.URL, err)
		}
	}

	w.logger.Info("installed", zap.String("version", w.cfg.Version), zap.Int("precached", len(entries)))
	w.setState(StateInstalled)

	if w.cfg.SkipWaiting {
		return w.Activate(ctx)
	}
	return nil
}

// Activate deletes the stores of other releases and claims every window.
func (w *Worker) Activate(ctx context.Context) error {
	if !w.enter() {
		return ErrClosed
	}
	defer w.leave()
	w.setState(StateActivating)

	names, err := w.storage.Names(ctx)
	if err != nil {
		return fmt.Errorf("listing stores: %w", err)
	}
	current := w.cfg.StoreNames()
	for _, name := range names {
		if slices.Contains(current, name) {
			continue
		}
		if _, err := w.storage.Delete(ctx, name); err != nil {
			return fmt.Errorf("deleting store %s: %w", name, err)
		}
		w.logger.Info("deleted old store", zap.String("store", name))
	}

	if err := w.clients.Claim(ctx); err != nil {
		return fmt.Errorf("claiming clients: %w", err)
	}
	w.setState(StateActivated)
	return nil
}

// Message types accepted from pages.
const (
	MessageSkipWaiting = "SKIP_WAITING"
	MessageGetVersion  = "GET_VERSION"
	MessageClearCache  = "CLEAR_CACHE"
)

// Message is a postMessage from a page.
type Message struct {
	Type string `json:"type"`
}

// Reply answers a Message.
type Reply struct {
	Version string `json:"version,omitempty"`
	Cleared *int   `json:"cleared,omitempty"`
	State   string `json:"state,omitempty"`
}

// Message handles a page message.
func (w *Worker) Message(ctx context.Context, msg Message) (Reply, error) {
	if !w.enter() {
		return Reply{}, ErrClosed
	}
	defer w.leave()
	switch msg.Type {
	case MessageSkipWaiting:
		if w.State() == StateInstalled {
			if err := w.Activate(ctx); err != nil {
				return Reply{}, err
			}
		}
		return Reply{State: w.State().String()}, nil

	case MessageGetVersion:
		return Reply{Version: w.cfg.Version}, nil

	case MessageClearCache:
		n, err := w.ClearCaches(ctx)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Cleared: &n}, nil

	default:
		return Reply{}, fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}
}

// ClearCaches deletes every cache store and reports how many were removed.
func (w *Worker) ClearCaches(ctx context.Context) (int, error) {
	names, err := w.storage.Names(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing stores: %w", err)
	}
	n := 0
	for _, name := range names {
		ok, err := w.storage.Delete(ctx, name)
		if err != nil {
			return n, fmt.Errorf("deleting store %s: %w", name, err)
		}
		if ok {
			n++
		}
	}
	w.logger.Info("caches cleared", zap.Int("stores", n))
	return n, nil
}
