// Package watcher reports PDF files dropped into a directory.
package watcher

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const defaultSettle = 500 * time.Millisecond

// Watcher emits the path of each PDF created or rewritten in a directory.
// Bursts of write events for one file are collapsed into a single path
// once the file has been quiet for the settle delay.
type Watcher struct {
	fsw    *fsnotify.Watcher
	settle time.Duration
}

// New creates a watcher. A non-positive settle selects the default.
func New(settle time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if settle <= 0 {
		settle = defaultSettle
	}
	return &Watcher{fsw: fsw, settle: settle}, nil
}

// Watch starts monitoring dir. The channel closes when ctx is done or the
// watcher is stopped.
func (w *Watcher) Watch(ctx context.Context, dir string) (<-chan string, error) {
	if err := w.fsw.Add(dir); err != nil {
		return nil, err
	}

	paths := make(chan string, 16)

	go func() {
		defer close(paths)

		pending := make(map[string]time.Time)
		ticker := time.NewTicker(w.settle / 2)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				if !isPDF(event.Name) {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
					pending[event.Name] = time.Now()
				}
				if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					delete(pending, event.Name)
				}
			case now := <-ticker.C:
				for path, last := range pending {
					if now.Sub(last) < w.settle {
						continue
					}
					delete(pending, path)
					select {
					case paths <- path:
					case <-ctx.Done():
						return
					}
				}
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Str("dir", dir).Msg("watch error")
			}
		}
	}()

	return paths, nil
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	return w.fsw.Close()
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
