package whitelist

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// reloadDebounce coalesces bursts of file events (editors and rule syncs
// touch files several times per save) into one table rebuild.
const reloadDebounce = 250 * time.Millisecond

// Watcher drives Evaluator.Reload from file-system change notifications on
// the rule files and the known-good directory. It is one possible reload
// trigger, not the only one; the evaluator itself has no knowledge of it.
type Watcher struct {
	fsw    *fsnotify.Watcher
	ev     *Evaluator
	logger *zap.SugaredLogger

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewWatcher creates a Watcher over the given paths (files or directories).
// For files, the parent directory is watched so atomic replace-by-rename is
// observed.
func NewWatcher(ev *Evaluator, paths []string, logger *zap.SugaredLogger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	watched := make(map[string]struct{})
	for _, p := range paths {
		if p == "" {
			continue
		}
		dir := filepath.Dir(p)
		if _, ok := watched[dir]; ok {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			logger.Warnw("Failed to watch directory for whitelist changes", "dir", dir, "error", err)
			continue
		}
		watched[dir] = struct{}{}
	}

	return &Watcher{
		fsw:    fsw,
		ev:     ev,
		logger: logger,
		stopCh: make(chan struct{}),
	}, nil
}

// Start begins watching in the background until Stop is called.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.run()
}

// Stop stops the watcher and waits for the background goroutine to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	w.wg.Wait()
	if err := w.fsw.Close(); err != nil {
		w.logger.Warnw("Failed to close file watcher", "error", err)
	}
}

func (w *Watcher) run() {
	defer w.wg.Done()

	var debounce *time.Timer
	var debounceCh <-chan time.Time

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.logger.Debugw("Whitelist backing store changed", "path", event.Name, "op", event.Op.String())
			if debounce == nil {
				debounce = time.NewTimer(reloadDebounce)
				debounceCh = debounce.C
			} else {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(reloadDebounce)
			}

		case <-debounceCh:
			debounce = nil
			debounceCh = nil
			w.ev.Reload()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("File watcher error", "error", err)

		case <-w.stopCh:
			if debounce != nil {
				debounce.Stop()
			}
			return
		}
	}
}
