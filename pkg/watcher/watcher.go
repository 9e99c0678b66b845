package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ritzau/procgraph/pkg/logging"
)

// ChangeType represents the type of file change detected
type ChangeType int

const (
	ChangeTypeProcedure ChangeType = iota
	ChangeTypeConfig
)

func (t ChangeType) String() string {
	switch t {
	case ChangeTypeProcedure:
		return "procedure"
	case ChangeTypeConfig:
		return "config"
	}
	return fmt.Sprintf("ChangeType(%d)", int(t))
}

// ChangeEvent represents a batch of file system changes
type ChangeEvent struct {
	Type      ChangeType
	Paths     []string
	Timestamp time.Time
}

// FileWatcher watches a procedure file, and optionally a config file, for
// writes. fsnotify watches directories so that editors replacing the file
// through a rename are still seen.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	files   map[string]ChangeType // absolute path -> type
	events  chan ChangeEvent
}

// NewFileWatcher creates a watcher for the given procedure file. configFile
// may be empty.
func NewFileWatcher(procedureFile, configFile string) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	fw := &FileWatcher{
		watcher: watcher,
		files:   make(map[string]ChangeType),
		events:  make(chan ChangeEvent, 100),
	}
	if err := fw.track(procedureFile, ChangeTypeProcedure); err != nil {
		watcher.Close()
		return nil, err
	}
	if configFile != "" {
		if err := fw.track(configFile, ChangeTypeConfig); err != nil {
			watcher.Close()
			return nil, err
		}
	}
	return fw, nil
}

func (fw *FileWatcher) track(path string, t ChangeType) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	fw.files[abs] = t
	return nil
}

// Start adds the watched directories and begins forwarding events
func (fw *FileWatcher) Start(ctx context.Context) error {
	dirs := make(map[string]bool)
	for path := range fw.files {
		dirs[filepath.Dir(path)] = true
	}

	sorted := make([]string, 0, len(dirs))
	for dir := range dirs {
		sorted = append(sorted, dir)
	}
	sort.Strings(sorted)

	for _, dir := range sorted {
		if err := fw.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		logging.Debug("watching directory", "path", dir)
	}

	logging.Info("started watching", "files", len(fw.files))
	go fw.processEvents(ctx)
	return nil
}

// Classify returns the change type of a path, if it is watched
func (fw *FileWatcher) Classify(path string) (ChangeType, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, false
	}
	t, ok := fw.files[abs]
	return t, ok
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	defer close(fw.events)
	defer fw.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			t, watched := fw.Classify(event.Name)
			if !watched {
				continue
			}
			logging.Trace("file event", "path", event.Name, "op", event.Op.String())

			select {
			case fw.events <- ChangeEvent{Type: t, Paths: []string{event.Name}, Timestamp: time.Now()}:
			case <-ctx.Done():
				return
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

// Events returns the channel of change events. It closes when the context
// passed to Start is done.
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}
