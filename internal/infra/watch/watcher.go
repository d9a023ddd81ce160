// Package watch reloads the clip list when the config file changes.
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/pano360/internal/domain/playlist"
)

const (
	// DefaultDebounce coalesces bursts of writes from editors.
	DefaultDebounce = 300 * time.Millisecond
	// DefaultRetryInterval is the pause before reapplying a rejected playlist.
	DefaultRetryInterval = time.Second
)

// Target receives reloaded playlists. SetPlaylist fails while a run is
// active; Wait blocks until that run ends.
type Target interface {
	SetPlaylist(pl *playlist.Playlist) error
	Wait(ctx context.Context) error
}

// Loader reads a playlist from the watched file.
type Loader func(path string) (*playlist.Playlist, error)

// Watcher applies playlist changes from a file to a Target.
type Watcher struct {
	path     string
	target   Target
	load     Loader
	debounce time.Duration
	retry    time.Duration
	onReload func(error)

	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	ctx         context.Context
	timer       *time.Timer
	cancelRetry context.CancelFunc
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the debounce delay.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithRetryInterval sets the pause between a run ending and the next attempt
// to apply a rejected playlist.
func WithRetryInterval(d time.Duration) Option {
	return func(w *Watcher) { w.retry = d }
}

// WithReloadHook is called after every reload attempt with its result.
func WithReloadHook(f func(error)) Option {
	return func(w *Watcher) { w.onReload = f }
}

// New creates a watcher on path. The parent directory is watched so that
// files replaced by rename are still seen.
func New(path string, target Target, load Loader, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, "watch: failed to resolve path")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "watch: failed to create watcher")
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, errors.Wrapf(err, "watch: failed to watch %s", filepath.Dir(abs))
	}

	w := &Watcher{
		path:     abs,
		target:   target,
		load:     load,
		debounce: DefaultDebounce,
		retry:    DefaultRetryInterval,
		watcher:  fw,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run processes file events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	zlog.Info().Msgf("watch: watching: path=%s debounce=%v", w.path, w.debounce)

	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			zlog.Warn().Err(err).Msg("watch: watcher error")
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

// reload loads the file and hands the playlist to the target. A target
// that is playing rejects the playlist; it is kept and applied once the run
// ends unless a newer reload replaces it.
func (w *Watcher) reload() {
	w.mu.Lock()
	if w.cancelRetry != nil {
		w.cancelRetry()
		w.cancelRetry = nil
	}
	ctx := w.ctx
	w.mu.Unlock()

	rejected, err := w.apply()
	if err != nil {
		zlog.Warn().Err(err).Msgf("watch: reload skipped: path=%s", w.path)
	}
	if w.onReload != nil {
		w.onReload(err)
	}
	if rejected != nil && ctx != nil {
		w.retryLater(ctx, rejected)
	}
}

// apply returns the playlist when the target rejected it.
func (w *Watcher) apply() (*playlist.Playlist, error) {
	pl, err := w.load(w.path)
	if err != nil {
		return nil, errors.Wrap(err, "watch: failed to load playlist")
	}
	if err := w.target.SetPlaylist(pl); err != nil {
		return pl, errors.Wrap(err, "watch: playlist rejected")
	}
	zlog.Info().Msgf("watch: playlist reloaded: name=%s clips=%d", pl.Name, pl.Len())
	return nil, nil
}

func (w *Watcher) retryLater(ctx context.Context, pl *playlist.Playlist) {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancelRetry = cancel
	w.mu.Unlock()

	go func() {
		defer cancel()
		for {
			_ = w.target.Wait(ctx)
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.retry):
			}
			if err := w.target.SetPlaylist(pl); err != nil {
				zlog.Debug().Err(err).Msgf("watch: deferred reload rejected: name=%s", pl.Name)
				continue
			}
			zlog.Info().Msgf("watch: deferred playlist applied: name=%s clips=%d", pl.Name, pl.Len())
			if w.onReload != nil {
				w.onReload(nil)
			}
			return
		}
	}()
}
