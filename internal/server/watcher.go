package server

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const debounceDelay = 200 * time.Millisecond

// Watcher calls onChange after the config file settles. It watches the parent
// directory so editors that replace the file by rename are noticed too.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onChange func(path string)
	logger   zerolog.Logger
	stopCh   chan struct{}
	timer    *time.Timer
	mu       sync.Mutex
	once     sync.Once
}

// NewWatcher creates a watcher for path.
func NewWatcher(path string, onChange func(path string), logger zerolog.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = w.Close()
		return nil, err
	}

	return &Watcher{
		watcher:  w,
		path:     filepath.Clean(abs),
		onChange: onChange,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start begins watching.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	go w.run()
	return nil
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.handleEvent()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("config watcher error")
		}
	}
}

// handleEvent restarts the debounce timer.
func (w *Watcher) handleEvent() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceDelay, func() {
		select {
		case <-w.stopCh:
			return
		default:
		}
		w.logger.Debug().Str("path", w.path).Msg("config file changed")
		w.onChange(w.path)
	})
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.stopCh)

		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()

		_ = w.watcher.Close()
	})
}
