// Package store persists stories, finalized chapters, and compose workflow
// state as JSON files, one file per record.
//
// Directory structure:
//
//	<dataDir>/
//	└── stories/
//	    └── {storyID}/
//	        ├── story.json                 ← story record
//	        ├── compose/
//	        │   └── chapter_{n}.json       ← live compose state per chapter
//	        └── chapters/
//	            └── chapter_{n}.json       ← finalized chapters
//
// Writes are atomic: a temporary file in the target directory is renamed
// over the destination, so readers and the change watcher never observe a
// half-written record.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/fablesmithlabs/draftd/internal/compose"
	"github.com/fablesmithlabs/draftd/internal/story"
)

// Errors for file store operations.
var (
	ErrCorruptFile   = errors.New("state file corrupted")
	ErrInvalidID     = errors.New("invalid identifier: must be alphanumeric with hyphens/underscores")
	ErrPathTraversal = errors.New("path traversal detected")
)

// idPattern validates story identifiers used as directory names.
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// FileStore is the JSON-file persistence layer. It implements
// compose.StateStore and the story service's storage interface.
type FileStore struct {
	mu      sync.Mutex
	dataDir string
	logger  *zap.Logger
}

// NewFileStore creates a file store rooted at dataDir, defaulting to
// ~/.local/share/draftd when empty. The stories directory is created eagerly
// so the change watcher has something to watch.
func NewFileStore(dataDir string, logger *zap.Logger) (*FileStore, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share", "draftd")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &FileStore{dataDir: dataDir, logger: logger}
	if err := os.MkdirAll(s.storiesDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return s, nil
}

// DataDir returns the root data directory.
func (s *FileStore) DataDir() string { return s.dataDir }

// ValidateID checks that an identifier is safe to use as a directory name.
func ValidateID(id string) error {
	if id == "" {
		return ErrInvalidID
	}
	if len(id) > 255 {
		return fmt.Errorf("%w: too long (max 255)", ErrInvalidID)
	}
	if !idPattern.MatchString(id) {
		return ErrInvalidID
	}
	if id == "." || id == ".." {
		return ErrPathTraversal
	}
	for _, c := range id {
		if c == '/' || c == '\\' || c == '\x00' {
			return ErrPathTraversal
		}
	}
	if filepath.Clean(id) != id {
		return ErrPathTraversal
	}
	return nil
}

func (s *FileStore) storiesDir() string {
	return filepath.Join(s.dataDir, "stories")
}

func (s *FileStore) storyDir(storyID string) string {
	return filepath.Join(s.storiesDir(), storyID)
}

func (s *FileStore) storyPath(storyID string) string {
	return filepath.Join(s.storyDir(storyID), "story.json")
}

func (s *FileStore) composePath(storyID string, chapter int) string {
	return filepath.Join(s.storyDir(storyID), "compose", chapterFileName(chapter))
}

func (s *FileStore) chapterPath(storyID string, chapter int) string {
	return filepath.Join(s.storyDir(storyID), "chapters", chapterFileName(chapter))
}

func chapterFileName(chapter int) string {
	return fmt.Sprintf("chapter_%d.json", chapter)
}

// SaveState persists the compose snapshot for a story chapter.
func (s *FileStore) SaveState(_ context.Context, storyID string, chapter int, state *compose.ChapterComposeState) error {
	if err := ValidateID(storyID); err != nil {
		return err
	}
	if state == nil {
		return errors.New("cannot save nil compose state")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(s.composePath(storyID, chapter), state)
}

// LoadState reads the compose snapshot for a story chapter, returning
// compose.ErrStateNotFound when the chapter has none.
func (s *FileStore) LoadState(_ context.Context, storyID string, chapter int) (*compose.ChapterComposeState, error) {
	if err := ValidateID(storyID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var state compose.ChapterComposeState
	if err := s.readJSON(s.composePath(storyID, chapter), &state); err != nil {
		if os.IsNotExist(err) {
			return nil, compose.ErrStateNotFound
		}
		return nil, err
	}
	return &state, nil
}

// DeleteState removes the compose snapshot. Deleting an absent state is not
// an error.
func (s *FileStore) DeleteState(_ context.Context, storyID string, chapter int) error {
	if err := ValidateID(storyID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.composePath(storyID, chapter)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete compose state: %w", err)
	}
	return nil
}

// SaveStory persists the story record.
func (s *FileStore) SaveStory(_ context.Context, st *story.Story) error {
	if st == nil {
		return errors.New("cannot save nil story")
	}
	if err := ValidateID(st.ID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(s.storyPath(st.ID), st)
}

// LoadStory reads one story record, returning story.ErrStoryNotFound when it
// does not exist.
func (s *FileStore) LoadStory(_ context.Context, storyID string) (*story.Story, error) {
	if err := ValidateID(storyID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var st story.Story
	if err := s.readJSON(s.storyPath(storyID), &st); err != nil {
		if os.IsNotExist(err) {
			return nil, story.ErrStoryNotFound
		}
		return nil, err
	}
	return &st, nil
}

// ListStories reads every story record, ordered by creation time then ID.
// Story directories without a readable record are skipped with a warning.
func (s *FileStore) ListStories(_ context.Context) ([]*story.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.storiesDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read stories directory: %w", err)
	}

	var stories []*story.Story
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		var st story.Story
		if err := s.readJSON(s.storyPath(entry.Name()), &st); err != nil {
			s.logger.Warn("skipping unreadable story record",
				zap.String("story_id", entry.Name()),
				zap.Error(err),
			)
			continue
		}
		stories = append(stories, &st)
	}

	sort.Slice(stories, func(i, j int) bool {
		if !stories[i].CreatedAt.Equal(stories[j].CreatedAt) {
			return stories[i].CreatedAt.Before(stories[j].CreatedAt)
		}
		return stories[i].ID < stories[j].ID
	})
	return stories, nil
}

// SaveChapter persists a finalized chapter.
func (s *FileStore) SaveChapter(_ context.Context, ch *story.Chapter) error {
	if ch == nil {
		return errors.New("cannot save nil chapter")
	}
	if err := ValidateID(ch.StoryID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(s.chapterPath(ch.StoryID, ch.Number), ch)
}

// LoadChapter reads one finalized chapter, returning story.ErrChapterNotFound
// when it does not exist.
func (s *FileStore) LoadChapter(_ context.Context, storyID string, chapter int) (*story.Chapter, error) {
	if err := ValidateID(storyID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var ch story.Chapter
	if err := s.readJSON(s.chapterPath(storyID, chapter), &ch); err != nil {
		if os.IsNotExist(err) {
			return nil, story.ErrChapterNotFound
		}
		return nil, err
	}
	return &ch, nil
}

// ListChapters reads every finalized chapter of a story, ordered by chapter
// number.
func (s *FileStore) ListChapters(_ context.Context, storyID string) ([]*story.Chapter, error) {
	if err := ValidateID(storyID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.storyDir(storyID), "chapters")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read chapters directory: %w", err)
	}

	var chapters []*story.Chapter
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		var ch story.Chapter
		if err := s.readJSON(filepath.Join(dir, entry.Name()), &ch); err != nil {
			s.logger.Warn("skipping unreadable chapter record",
				zap.String("story_id", storyID),
				zap.String("file", entry.Name()),
				zap.Error(err),
			)
			continue
		}
		chapters = append(chapters, &ch)
	}

	sort.Slice(chapters, func(i, j int) bool { return chapters[i].Number < chapters[j].Number })
	return chapters, nil
}

// readJSON decodes one record. Missing files surface as os.IsNotExist errors
// for the caller to translate; malformed content wraps ErrCorruptFile.
func (s *FileStore) readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptFile, filepath.Base(path), err)
	}
	return nil
}

// writeJSON marshals v and writes it atomically: temp file then rename.
func (s *FileStore) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create record directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename record: %w", err)
	}
	return nil
}
