package push

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Notifier displays and dismisses notifications.
type Notifier interface {
	// Show displays n, replacing any notification with the same tag.
	Show(ctx context.Context, n *Notification) error

	// Close dismisses the notification with tag.
	Close(ctx context.Context, tag string) error
}

// Compile-time check that LogNotifier implements Notifier.
var _ Notifier = (*LogNotifier)(nil)

// LogNotifier writes notifications to a logger and remembers which are
// still open. It stands in for the OS notification center in server mode.
type LogNotifier struct {
	logger *zap.Logger

	mu     sync.Mutex
	active []*Notification
}

// NewLogNotifier creates a notifier that logs to logger.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Show implements Notifier.
func (l *LogNotifier) Show(ctx context.Context, n *Notification) error {
	l.mu.Lock()
	if n.Tag != "" {
		l.removeLocked(n.Tag)
	}
	l.active = append(l.active, n)
	l.mu.Unlock()

	l.logger.Info("notification shown",
		zap.String("title", n.Title),
		zap.String("body", n.Body),
		zap.String("tag", n.Tag),
		zap.String("type", n.Data.Type),
	)
	return nil
}

// Close implements Notifier.
func (l *LogNotifier) Close(ctx context.Context, tag string) error {
	l.mu.Lock()
	l.removeLocked(tag)
	l.mu.Unlock()

	l.logger.Debug("notification closed", zap.String("tag", tag))
	return nil
}

// Active returns the notifications still open, oldest first.
func (l *LogNotifier) Active() []*Notification {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Notification(nil), l.active...)
}

// removeLocked drops notifications with tag. An empty tag drops only the
// oldest untagged notification.
func (l *LogNotifier) removeLocked(tag string) {
	kept := l.active[:0]
	removed := false
	for _, n := range l.active {
		if n.Tag == tag && !(tag == "" && removed) {
			removed = true
			continue
		}
		kept = append(kept, n)
	}
	l.active = kept
}
