package worldmanager

import (
	"context"
	"path/filepath"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

// DefaultWatchDelay is how long the model list file must be quiet before it is reloaded.
const DefaultWatchDelay = 500 * time.Millisecond

// WatchModelList reloads the scene whenever the file at path changes. The parent directory is
// watched so that files replaced by rename are seen. Watching stops on Close.
func (m *Manager) WatchModelList(ctx context.Context, path string, delay time.Duration) error {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	if m.cancelWatch != nil {
		return errors.New("already watching the model list")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		goutils.UncheckedError(watcher.Close())
		return errors.Wrapf(err, "watching %q", path)
	}

	cancelCtx, cancel := context.WithCancel(ctx)
	m.cancelWatch = cancel
	debounced := debounce.New(delay)

	m.activeBackgroundWorkers.Add(1)
	goutils.PanicCapturingGo(func() {
		defer m.activeBackgroundWorkers.Done()
		defer goutils.UncheckedErrorFunc(watcher.Close)
		for {
			select {
			case <-cancelCtx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				debounced(func() {
					if cancelCtx.Err() != nil {
						return
					}
					m.logger.Infow("model list changed, reloading", "path", path)
					if err := m.Reload(cancelCtx); err != nil {
						m.logger.Errorw("failed to reload model list", "error", err)
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.logger.Warnw("model list watcher error", "error", err)
			}
		}
	})
	return nil
}
