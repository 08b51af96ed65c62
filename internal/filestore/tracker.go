// internal/filestore/tracker.go
package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Tracker watches a working directory and records edits made outside
// UpdateFile as snapshots, so directly edited files still gain
// history.
type Tracker struct {
	workdir *Workdir
	watcher *fsnotify.Watcher
	logger  *zap.Logger
}

// NewTracker starts watching every directory under the working root.
func NewTracker(workdir *Workdir, logger *zap.Logger) (*Tracker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	t := &Tracker{
		workdir: workdir,
		watcher: watcher,
		logger:  logger,
	}

	go t.watchLoop()

	if err := t.watchTree(workdir.root); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching working tree: %w", err)
	}
	return t, nil
}

// watchTree adds dir and every directory below it to the watcher.
func (t *Tracker) watchTree(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != t.workdir.root && t.ignored(path) {
			return filepath.SkipDir
		}
		if err := t.watcher.Add(path); err != nil {
			return fmt.Errorf("adding directory to watcher: %w", err)
		}
		return nil
	})
}

func (t *Tracker) watchLoop() {
	for {
		select {
		case event, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			t.handleEvent(event)
		case err, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			t.logger.Error("watcher error", zap.Error(err))
		}
	}
}

func (t *Tracker) handleEvent(event fsnotify.Event) {
	if t.ignored(event.Name) {
		return
	}
	rel, err := filepath.Rel(t.workdir.root, event.Name)
	if err != nil || rel == "." {
		return
	}

	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		// New directories need watching before their files produce
		// events.
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := t.watchTree(event.Name); err != nil {
				t.logger.Error("adding new directory to watcher", zap.Error(err))
			}
			return
		}
		t.record(rel)
	case event.Op&fsnotify.Write == fsnotify.Write:
		t.record(rel)
	}
}

func (t *Tracker) record(rel string) {
	if err := t.workdir.SnapshotExternal(filepath.ToSlash(rel)); err != nil {
		t.logger.Error("recording external edit",
			zap.String("path", rel),
			zap.Error(err))
	}
}

// ignored reports whether any element of the path is dot-prefixed.
// This keeps the store's own metadata writes from being recorded.
func (t *Tracker) ignored(path string) bool {
	rel, err := filepath.Rel(t.workdir.root, path)
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

func (t *Tracker) Close() error {
	return t.watcher.Close()
}
