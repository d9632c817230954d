package shader

import (
	"path/filepath"
	"time"

	"github.com/Carmen-Shannon/oxy-frame/engine/logger"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses the burst of events an editor produces on save.
const DefaultDebounce = 150 * time.Millisecond

// Watcher reports edits to .wgsl files in a directory. Each burst of events yields
// one value on Changes carrying the names (without extension) touched in that burst.
type Watcher struct {
	fs       *fsnotify.Watcher
	changes  chan []string
	done     chan struct{}
	debounce time.Duration
}

// NewWatcher starts watching dir.
//
// Parameters:
//   - dir: directory to watch, non-recursively
//   - debounce: quiet period before a burst is reported, or 0 for DefaultDebounce
//
// Returns:
//   - *Watcher: the running watcher
//   - error: if the directory cannot be watched
func NewWatcher(dir string, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{
		fs:       fw,
		changes:  make(chan []string, 1),
		done:     make(chan struct{}),
		debounce: debounce,
	}
	go w.run()
	return w, nil
}

// Changes delivers the shader names edited in each burst. A pending value that has not
// been received is merged with the next burst.
func (w *Watcher) Changes() <-chan []string {
	return w.changes
}

func (w *Watcher) run() {
	defer close(w.done)
	pending := map[string]bool{}
	timer := time.NewTimer(time.Hour)
	timer.Stop()

	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Ext(ev.Name) != Ext || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) {
				continue
			}
			pending[filepath.Base(ev.Name[:len(ev.Name)-len(Ext)])] = true
			timer.Reset(w.debounce)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logger.Logger().Warn("shader watcher", "err", err)
		case <-timer.C:
			w.flush(pending)
			pending = map[string]bool{}
		}
	}
}

// flush publishes pending, merging with an unreceived previous value.
func (w *Watcher) flush(pending map[string]bool) {
	select {
	case prev := <-w.changes:
		for _, n := range prev {
			pending[n] = true
		}
	default:
	}
	names := make([]string, 0, len(pending))
	for n := range pending {
		names = append(names, n)
	}
	w.changes <- names
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	err := w.fs.Close()
	<-w.done
	return err
}
