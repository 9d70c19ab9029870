package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// ChangeEvent identifies a compose state file that changed on disk.
type ChangeEvent struct {
	StoryID   string
	Chapter   int
	Timestamp time.Time
}

// ChangeWatcher watches the stories tree for compose state files changed on
// disk, for example by a sync client or a hand edit. Consumers receive
// ChangeEvents and decide whether to reload; the watcher itself cannot tell
// foreign writes from the process's own saves.
type ChangeWatcher struct {
	root    string
	watcher *fsnotify.Watcher
	events  chan ChangeEvent
	stop    chan struct{}
	logger  *zap.Logger
}

// NewChangeWatcher creates a watcher over the store's stories directory.
func NewChangeWatcher(s *FileStore, logger *zap.Logger) (*ChangeWatcher, error) {
	if s == nil {
		return nil, errors.New("file store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	return &ChangeWatcher{
		root:    s.storiesDir(),
		watcher: watcher,
		events:  make(chan ChangeEvent, 16),
		stop:    make(chan struct{}),
		logger:  logger,
	}, nil
}

// Start registers watches on the stories tree and begins processing events in
// a background goroutine. Call Stop to clean up resources.
func (w *ChangeWatcher) Start(ctx context.Context) error {
	if _, err := os.Stat(w.root); err != nil {
		return fmt.Errorf("stat stories directory: %w", err)
	}

	// fsnotify watches are not recursive, so the existing tree is
	// registered up front. Directories created later are picked up from
	// their Create events.
	w.watchTree(w.root, false)

	go w.processEvents(ctx)
	return nil
}

// watchTree watches dir and every directory below it. When emitFiles is set,
// chapter state files found during the scan produce events: a directory
// created moments ago may already contain writes that predate its watch.
func (w *ChangeWatcher) watchTree(dir string, emitFiles bool) {
	if err := w.watcher.Add(dir); err != nil {
		w.logger.Warn("failed to watch directory",
			zap.String("dir", dir),
			zap.Error(err),
		)
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			w.watchTree(path, emitFiles)
			continue
		}
		if emitFiles {
			w.emitIfChapterFile(path)
		}
	}
}

// Stop stops the watcher and cleans up resources.
func (w *ChangeWatcher) Stop() {
	select {
	case <-w.stop:
		// Already stopped
		return
	default:
		close(w.stop)
		_ = w.watcher.Close()
	}
}

// Events returns the channel for receiving change events.
func (w *ChangeWatcher) Events() <-chan ChangeEvent {
	return w.events
}

func (w *ChangeWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("filesystem watcher error", zap.Error(err))
		}
	}
}

func (w *ChangeWatcher) handleEvent(event fsnotify.Event) {
	// A new directory gets its own watch plus a scan: files written between
	// the directory's creation and the watch registration produced no events
	// and would otherwise be missed.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.watchTree(event.Name, true)
			return
		}
	}

	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	w.emitIfChapterFile(event.Name)
}

// emitIfChapterFile sends a ChangeEvent when path is a compose chapter state
// file. Temporary files from atomic writes are noise and skipped.
func (w *ChangeWatcher) emitIfChapterFile(path string) {
	if strings.HasSuffix(path, ".tmp") {
		return
	}
	if filepath.Base(filepath.Dir(path)) != "compose" {
		return
	}
	chapter, ok := parseChapterFile(filepath.Base(path))
	if !ok {
		return
	}
	storyID := filepath.Base(filepath.Dir(filepath.Dir(path)))

	// Send event (non-blocking)
	select {
	case w.events <- ChangeEvent{StoryID: storyID, Chapter: chapter, Timestamp: time.Now()}:
	default:
		w.logger.Warn("change event dropped: channel full",
			zap.String("story_id", storyID),
			zap.Int("chapter", chapter),
		)
	}
}

// parseChapterFile extracts the chapter number from a compose state file name
// of the form chapter_<n>.json.
func parseChapterFile(name string) (int, bool) {
	if !strings.HasPrefix(name, "chapter_") || !strings.HasSuffix(name, ".json") {
		return 0, false
	}
	rest := strings.TrimSuffix(strings.TrimPrefix(name, "chapter_"), ".json")
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
