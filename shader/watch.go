package shader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch evicts cached results whenever a file under the data root is
// written, created, removed or renamed. The watcher runs until ctx is
// done or the cache is closed.
func (c *Cache) Watch(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return ErrNotInitialized
	}
	if c.stop != nil {
		return ErrAlreadyWatching
	}
	if c.customFS || !isDir(c.root) {
		return fmt.Errorf("shader: watch %q: not a directory", c.root)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("shader: create watcher: %w", err)
	}
	err = filepath.WalkDir(c.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(p)
		}
		return nil
	})
	if err != nil {
		w.Close()
		return fmt.Errorf("shader: watch %q: %w", c.root, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.stop = func() {
		cancel()
		<-done
	}
	go func() {
		defer close(done)
		defer w.Close()
		c.watchLoop(ctx, w)
	}()

	c.logger.Debug("shader watcher started", "root", c.root)
	return nil
}

func (c *Cache) watchLoop(ctx context.Context, w *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			c.handleEvent(w, ev)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			c.logger.Warn("shader watcher error", "err", err)
		}
	}
}

func (c *Cache) handleEvent(w *fsnotify.Watcher, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
		!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return
	}
	if ev.Has(fsnotify.Create) && isDir(ev.Name) {
		if err := w.Add(ev.Name); err != nil {
			c.logger.Warn("shader watcher cannot follow directory", "path", ev.Name, "err", err)
		}
		return
	}
	rel, err := filepath.Rel(c.root, ev.Name)
	if err != nil {
		return
	}
	name := filepath.ToSlash(rel)
	n := c.Invalidate(name)
	c.logger.Debug("shader source changed", "path", name, "op", ev.Op.String(), "evicted", n)
	if c.onChange != nil {
		c.onChange(name)
	}
}

func isDir(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}
