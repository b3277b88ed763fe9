package config

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher calls a reload function when a settings file changes. The
// containing directory is watched, so saves that replace the file are seen
// too. A burst of events within the debounce window yields one reload, run
// on the watcher goroutine.
type Watcher struct {
	file     string
	quiet    time.Duration
	reload   func()
	logger   *slog.Logger
	fsw      *fsnotify.Watcher
	shutdown chan struct{}
	exited   chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long the file must stay quiet before a reload
// (default 100ms).
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.quiet = d
		}
	}
}

// WithWatcherLogger sets the logger for the watcher.
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// NewWatcher starts watching path and calls reload after each change.
func NewWatcher(path string, reload func(), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		file:     filepath.Clean(path),
		quiet:    100 * time.Millisecond,
		reload:   reload,
		logger:   slog.Default(),
		shutdown: make(chan struct{}),
		exited:   make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(w.file)); err != nil {
		fsw.Close()
		return nil, err
	}
	w.fsw = fsw

	go w.loop()
	return w, nil
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.file {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

func (w *Watcher) loop() {
	defer close(w.exited)

	timer := time.NewTimer(w.quiet)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-w.shutdown:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.relevant(ev) {
				timer.Reset(w.quiet)
			}
		case <-timer.C:
			w.logger.Debug("settings file changed", "path", w.file)
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("settings watcher error", "path", w.file, "error", err)
		}
	}
}

// Close stops the watcher and waits for a running reload to return.
func (w *Watcher) Close() error {
	select {
	case <-w.shutdown:
		return nil
	default:
	}
	close(w.shutdown)
	err := w.fsw.Close()
	<-w.exited
	return err
}
