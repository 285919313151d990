package scan

import (
	"context"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher signals when a classpath element changes, so callers can run a
// fresh scan pass. Directory elements are watched recursively; for jar
// elements the containing directory is watched instead, which also catches
// replace-by-rename updates.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
}

// NewWatcher sets up watches for the given classpath elements. A debounce
// of zero defaults to 500ms.
func NewWatcher(elements []string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{fsw: fsw, debounce: debounce}
	for _, element := range elements {
		info, err := os.Stat(element)
		if err != nil {
			fsw.Close()
			return nil, err
		}
		if info.IsDir() {
			err = w.addRecursive(element)
		} else {
			err = fsw.Add(filepath.Dir(element))
		}
		if err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fsw.Add(p)
		}
		return nil
	})
}

// Start returns a channel that emits one signal per settled burst of file
// system events. The channel closes when the context is cancelled or the
// watcher shuts down.
func (w *Watcher) Start(ctx context.Context) <-chan struct{} {
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				if ev.Op&fsnotify.Create != 0 {
					if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
						if err := w.addRecursive(ev.Name); err != nil {
							log.Printf("watch %s: %v", ev.Name, err)
						}
					}
				}
				if timer == nil {
					timer = time.NewTimer(w.debounce)
					fire = timer.C
				} else {
					timer.Reset(w.debounce)
				}
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				log.Printf("watch error: %v", err)
			case <-fire:
				timer = nil
				fire = nil
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out
}

// Close shuts down the watcher and releases its resources.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
