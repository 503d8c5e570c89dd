package lcu

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// LockfileWatcher reports lockfiles appearing or disappearing in the
// candidate install directories
type LockfileWatcher struct {
	watcher *fsnotify.Watcher
	names   map[string]bool
	log     *zap.SugaredLogger
}

// NewLockfileWatcher watches the parent directory of every candidate that
// exists. Candidates whose directory is missing are ignored.
func NewLockfileWatcher(candidates []string, log *zap.Logger) (*LockfileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	lw := &LockfileWatcher{watcher: w, names: make(map[string]bool), log: log.Named("lockfile").Sugar()}
	dirs := make(map[string]bool)
	for _, path := range candidates {
		if path == "" {
			continue
		}
		clean := filepath.Clean(path)
		dir := filepath.Dir(clean)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		lw.names[clean] = true
		if dirs[dir] {
			continue
		}
		if err := w.Add(dir); err != nil {
			lw.log.Warnf("[Lockfile] cannot watch %s: %v", dir, err)
			continue
		}
		dirs[dir] = true
	}

	if len(dirs) == 0 {
		w.Close()
		return nil, fmt.Errorf("no install directories to watch")
	}
	return lw, nil
}

// Run calls onChange for every create, write, remove or rename of a
// lockfile until ctx is done
func (lw *LockfileWatcher) Run(ctx context.Context, onChange func(path string, present bool)) {
	defer lw.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-lw.watcher.Events:
			if !ok {
				return
			}
			if !lw.names[filepath.Clean(ev.Name)] {
				continue
			}
			switch {
			case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
				onChange(ev.Name, true)
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				onChange(ev.Name, false)
			}
		case err, ok := <-lw.watcher.Errors:
			if !ok {
				return
			}
			lw.log.Warnf("[Lockfile] watch error: %v", err)
		}
	}
}
