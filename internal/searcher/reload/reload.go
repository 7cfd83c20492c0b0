// Package reload swaps in a new search index when the builder replaces the
// index file, either noticed on disk or announced over Kafka.
package reload

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/internal/index"
	"github.com/Adithya-Monish-Kumar-K/Lecture-Search-Platform/pkg/kafka"
)

// DefaultDebounce coalesces the events of one atomic file replacement.
const DefaultDebounce = 250 * time.Millisecond

// Loader loads the index file it is bound to.
type Loader interface {
	Path() string
	Load() error
}

// Reloader serializes reloads and runs hooks after each successful one.
type Reloader struct {
	loader   Loader
	hooks    []func()
	debounce time.Duration
	mu       sync.Mutex
	logger   *slog.Logger
}

// Option customizes a Reloader.
type Option func(*Reloader)

// OnReload registers fn to run after every successful reload.
func OnReload(fn func()) Option {
	return func(r *Reloader) { r.hooks = append(r.hooks, fn) }
}

// WithDebounce sets the quiet period Watch waits for before reloading.
func WithDebounce(d time.Duration) Option {
	return func(r *Reloader) { r.debounce = d }
}

// New creates a Reloader for loader.
func New(loader Loader, opts ...Option) *Reloader {
	r := &Reloader{
		loader:   loader,
		debounce: DefaultDebounce,
		logger:   slog.Default().With("component", "index-reloader"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reload loads the index now. On failure the served index is unchanged and
// the hooks do not run.
func (r *Reloader) Reload(reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.loader.Load(); err != nil {
		r.logger.Error("index reload failed", "reason", reason, "error", err)
		return err
	}
	for _, fn := range r.hooks {
		fn()
	}
	r.logger.Info("index reloaded", "reason", reason)
	return nil
}

// Watch reloads whenever the index file is created, written or renamed
// into place, once events have been quiet for the debounce period. It
// watches the parent directory so atomic replacements are seen. It blocks
// until ctx is cancelled.
func (r *Reloader) Watch(ctx context.Context) error {
	target := filepath.Clean(r.loader.Path())
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(target), err)
	}
	r.logger.Info("watching index file", "path", target)

	timer := time.NewTimer(r.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(r.debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("watcher error", "error", err)
		case <-timer.C:
			_ = r.Reload("file changed")
		}
	}
}

// HandleComplete reloads on index.complete events. Undecodable messages are
// logged and skipped; a failed reload is not retried.
func (r *Reloader) HandleComplete() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[index.CompleteEvent](value)
		if err != nil {
			r.logger.Error("failed to decode index completion", "key", string(key), "error", err)
			return nil
		}
		r.logger.Info("index completion received",
			"build_id", event.BuildID,
			"pages", event.Pages,
			"failed", len(event.Failed),
		)
		_ = r.Reload("build " + event.BuildID)
		return nil
	}
}
