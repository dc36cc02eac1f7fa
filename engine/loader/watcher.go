package loader

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/Carmen-Shannon/oxy-core/common"
	"github.com/Carmen-Shannon/oxy-core/engine/registry"
	"github.com/fsnotify/fsnotify"
)

// watcher evicts registry entries whose files change on disk.
type watcher struct {
	fs   *fsnotify.Watcher
	reg  *registry.Registry
	root string
	done sync.WaitGroup
}

func newWatcher(reg *registry.Registry, root string) (*watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create asset watcher: %w", err)
	}
	w := &watcher{fs: fw, reg: reg, root: root}
	w.done.Add(1)
	go w.run()
	return w, nil
}

func (w *watcher) add(dir string) error {
	if err := w.fs.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	common.Logger().Info("loader: watching for changes", "dir", dir)
	return nil
}

func (w *watcher) close() {
	w.fs.Close()
	w.done.Wait()
}

func (w *watcher) run() {
	defer w.done.Done()
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.reload(event.Name)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			common.Logger().Warn("loader: asset watcher error", "error", err)
		}
	}
}

func (w *watcher) reload(name string) {
	rel, err := filepath.Rel(w.root, name)
	if err != nil {
		return
	}
	path := filepath.ToSlash(rel)
	id, ok := w.reg.Lookup(path)
	if !ok {
		return
	}
	if err := w.reg.Evict(id); err != nil {
		common.Logger().Debug("loader: evict on change failed", "path", path, "error", err)
		return
	}
	common.Logger().Info("loader: hot reload", "path", path)
}
