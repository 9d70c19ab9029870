package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fablesmithlabs/draftd/internal/compose"
	"github.com/fablesmithlabs/draftd/internal/story"
)

func startWatcher(t *testing.T, s *FileStore) *ChangeWatcher {
	t.Helper()
	w, err := NewChangeWatcher(s, nil)
	require.NoError(t, err)
	t.Cleanup(w.Stop)
	require.NoError(t, w.Start(context.Background()))

	// Give the watcher time to register its watches
	time.Sleep(50 * time.Millisecond)
	return w
}

// waitForEvent drains the watcher until an event for the story chapter
// arrives. Atomic writes can produce more than one raw notification per save.
func waitForEvent(t *testing.T, w *ChangeWatcher, storyID string, chapter int) ChangeEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-w.Events():
			if event.StoryID == storyID && event.Chapter == chapter {
				return event
			}
		case <-deadline:
			t.Fatalf("timeout waiting for change event %s/%d", storyID, chapter)
		}
	}
}

func TestChangeWatcher_EmitsOnStateWrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// The story tree exists before the watcher starts.
	state := compose.NewState("story-1", 1, time.Now())
	require.NoError(t, s.SaveState(ctx, "story-1", 1, state))

	w := startWatcher(t, s)

	state.Metadata.Version++
	require.NoError(t, s.SaveState(ctx, "story-1", 1, state))

	event := waitForEvent(t, w, "story-1", 1)
	assert.Equal(t, "story-1", event.StoryID)
	assert.Equal(t, 1, event.Chapter)
	assert.False(t, event.Timestamp.IsZero())
}

func TestChangeWatcher_PicksUpNewStories(t *testing.T) {
	s := newTestStore(t)
	w := startWatcher(t, s)

	// The whole story directory appears only after the watcher started.
	require.NoError(t, s.SaveState(context.Background(), "story-2", 3, compose.NewState("story-2", 3, time.Now())))

	event := waitForEvent(t, w, "story-2", 3)
	assert.Equal(t, 3, event.Chapter)
}

func TestChangeWatcher_IgnoresNonComposeWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w := startWatcher(t, s)

	require.NoError(t, s.SaveChapter(ctx, &story.Chapter{
		StoryID:     "story-1",
		Number:      1,
		Content:     "finalized body",
		FinalizedAt: time.Now(),
	}))

	select {
	case event := <-w.Events():
		t.Fatalf("should not receive event for finalized chapter write, got: %+v", event)
	case <-time.After(200 * time.Millisecond):
		// Expected - no event
	}
}

func TestChangeWatcher_StopEndsDelivery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveState(ctx, "story-1", 1, compose.NewState("story-1", 1, time.Now())))

	w, err := NewChangeWatcher(s, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	// Stopping twice is harmless.
	w.Stop()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.SaveState(ctx, "story-1", 1, compose.NewState("story-1", 1, time.Now())))

	select {
	case event := <-w.Events():
		t.Fatalf("should not receive event after stop, got: %+v", event)
	case <-time.After(200 * time.Millisecond):
		// Expected - no event after stop
	}
}

func TestParseChapterFile(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		want   int
		wantOK bool
	}{
		{"first chapter", "chapter_1.json", 1, true},
		{"two digits", "chapter_12.json", 12, true},
		{"zero", "chapter_0.json", 0, false},
		{"negative", "chapter_-1.json", 0, false},
		{"not a number", "chapter_x.json", 0, false},
		{"story record", "story.json", 0, false},
		{"temp file", "chapter_1.json.tmp", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseChapterFile(tt.file)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
