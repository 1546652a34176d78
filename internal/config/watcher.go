package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const watchDebounce = 500 * time.Millisecond

// CatalogWatcher reloads the model catalog when its file changes. Editors
// often emit bursts of write events, so reloads are debounced.
type CatalogWatcher struct {
	catalog *Catalog
	watcher *fsnotify.Watcher
	path    string
	cancel  context.CancelFunc
	done    chan struct{}
}

// WatchCatalog starts watching the catalog's file. Watching the parent
// directory survives the rename-and-replace pattern editors use.
func WatchCatalog(catalog *Catalog) (*CatalogWatcher, error) {
	if catalog.path == "" {
		return nil, fmt.Errorf("catalog has no backing file")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(catalog.path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", catalog.path, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cw := &CatalogWatcher{
		catalog: catalog,
		watcher: watcher,
		path:    catalog.path,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go cw.run(ctx)
	return cw, nil
}

func (cw *CatalogWatcher) run(ctx context.Context) {
	defer close(cw.done)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(cw.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				timerC = timer.C
			} else {
				timer.Reset(watchDebounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			if err := cw.catalog.Reload(); err != nil {
				log.Warn().Err(err).Msg("model catalog reload failed")
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("catalog watcher error")
		}
	}
}

// Close stops the watcher and waits for the reload loop to exit.
func (cw *CatalogWatcher) Close() error {
	cw.cancel()
	err := cw.watcher.Close()
	<-cw.done
	return err
}
