// Package watch triggers a rebuild when the sync tool delivers files from
// the other machine.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ryanlack616/howell-brain/pkg/logger"
)

// DefaultDebounce is how long the directories must stay quiet before the
// callback runs. Sync tools tend to deliver files in bursts.
const DefaultDebounce = 2 * time.Second

// Watcher calls a function after changes in a set of directories settle.
type Watcher struct {
	fn       func(ctx context.Context) error
	debounce time.Duration
	ignore   func(path string) bool
	logger   *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithIgnore skips events for paths the predicate accepts, such as files
// this process writes itself.
func WithIgnore(ignore func(path string) bool) Option {
	return func(w *Watcher) {
		w.ignore = ignore
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

// New builds a Watcher that calls fn.
func New(fn func(ctx context.Context) error, opts ...Option) *Watcher {
	w := &Watcher{
		fn:       fn,
		debounce: DefaultDebounce,
		ignore:   func(string) bool { return false },
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("component", "watch")
	return w
}

// Run watches dirs until ctx is done. Callback errors are logged and
// watching continues.
func (w *Watcher) Run(ctx context.Context, dirs ...string) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	for _, dir := range dirs {
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	w.logger.Debug("watching for synced files", "dirs", dirs)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.logger.Info("synced files changed, rebuilding")
			if err := w.fn(ctx); err != nil {
				w.logger.Warn("rebuild after sync failed", "error", err)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	base := filepath.Base(event.Name)
	// atomic-write temp files and editor droppings
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	return !w.ignore(filepath.Clean(event.Name))
}
