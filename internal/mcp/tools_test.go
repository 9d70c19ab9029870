package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fablesmithlabs/draftd/internal/compose"
	"github.com/fablesmithlabs/draftd/internal/story"
)

func TestValidateTarget(t *testing.T) {
	assert.NoError(t, validateTarget("story-1", 1))
	assert.Error(t, validateTarget("", 1))
	assert.Error(t, validateTarget("   ", 1))
	assert.Error(t, validateTarget("story-1", 0))
	assert.Error(t, validateTarget("story-1", -3))
}

func TestComposeTools(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	created, err := srv.storyCreate(ctx, storyCreateInput{
		Title:   "The Hollow Lighthouse",
		Premise: "A keeper hears voices in the lamp.",
	})
	require.NoError(t, err)
	target := composeTransitionInput{StoryID: created.ID, Chapter: 1}

	t.Run("status before any workflow", func(t *testing.T) {
		_, err := srv.composeStatus(ctx, composeStatusInput{StoryID: created.ID, Chapter: 1})
		require.Error(t, err)
		assert.ErrorIs(t, err, compose.ErrStateNotFound)
	})

	t.Run("advance blocked on empty outline", func(t *testing.T) {
		out, err := srv.composeAdvance(ctx, target)
		require.NoError(t, err)
		assert.True(t, out.Blocked)
		assert.False(t, out.Transitioned)
		assert.Equal(t, "plot_outline", out.Phase)
		assert.False(t, out.CanAdvance)
	})

	t.Run("set outline unblocks the gate", func(t *testing.T) {
		out, err := srv.composeSetOutline(ctx, composeSetOutlineInput{
			StoryID:      created.ID,
			Chapter:      1,
			Structure:    []string{"hook", "turn", "cliffhanger"},
			DraftSummary: "The keeper finds the first note.",
		})
		require.NoError(t, err)
		assert.Equal(t, "plot_outline", out.Phase)
		assert.True(t, out.CanAdvance)
	})

	t.Run("advance to chapter_detail", func(t *testing.T) {
		out, err := srv.composeAdvance(ctx, target)
		require.NoError(t, err)
		assert.True(t, out.Transitioned)
		assert.Equal(t, "chapter_detail", out.Phase)
	})

	t.Run("short draft keeps the gate closed", func(t *testing.T) {
		out, err := srv.composeSetDraft(ctx, composeSetDraftInput{
			StoryID: created.ID,
			Chapter: 1,
			Content: "far too short",
		})
		require.NoError(t, err)
		assert.Equal(t, 3, out.WordCount)
		assert.False(t, out.CanAdvance)
	})

	t.Run("long draft advances to final_edit", func(t *testing.T) {
		content := strings.TrimSpace(strings.Repeat("the lamp turned and the keeper listened hard ", 70))
		out, err := srv.composeSetDraft(ctx, composeSetDraftInput{
			StoryID: created.ID,
			Chapter: 1,
			Content: content,
		})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, out.WordCount, compose.MinDraftWords)
		assert.True(t, out.CanAdvance)

		adv, err := srv.composeAdvance(ctx, target)
		require.NoError(t, err)
		assert.True(t, adv.Transitioned)
		assert.Equal(t, "final_edit", adv.Phase)
	})

	t.Run("progress merge", func(t *testing.T) {
		completed, total := 2, 5
		out, err := srv.composeUpdateProgress(ctx, composeUpdateProgressInput{
			StoryID:        created.ID,
			Chapter:        1,
			Phase:          "final_edit",
			CompletedItems: &completed,
			TotalItems:     &total,
		})
		require.NoError(t, err)
		assert.Equal(t, 2, out.CompletedItems)
		assert.Equal(t, 5, out.TotalItems)

		// Partial update keeps the other counter.
		completed = 3
		out, err = srv.composeUpdateProgress(ctx, composeUpdateProgressInput{
			StoryID:        created.ID,
			Chapter:        1,
			Phase:          "final_edit",
			CompletedItems: &completed,
		})
		require.NoError(t, err)
		assert.Equal(t, 3, out.CompletedItems)
		assert.Equal(t, 5, out.TotalItems)
	})

	t.Run("status reflects the live workflow", func(t *testing.T) {
		out, err := srv.composeStatus(ctx, composeStatusInput{StoryID: created.ID, Chapter: 1})
		require.NoError(t, err)
		assert.Equal(t, "final_edit", out.Phase)
		assert.Equal(t, 3, out.CurrentStep)
		assert.Equal(t, compose.TotalSteps, out.TotalSteps)
		assert.Equal(t, []string{"plot_outline", "chapter_detail", "final_edit"}, out.PhaseHistory)
		assert.GreaterOrEqual(t, out.DraftWords, compose.MinDraftWords)
	})

	t.Run("revert to chapter_detail", func(t *testing.T) {
		out, err := srv.composeRevert(ctx, target)
		require.NoError(t, err)
		assert.True(t, out.Transitioned)
		assert.Equal(t, "chapter_detail", out.Phase)
	})

	t.Run("unknown progress phase", func(t *testing.T) {
		_, err := srv.composeUpdateProgress(ctx, composeUpdateProgressInput{
			StoryID: created.ID,
			Chapter: 1,
			Phase:   "editing",
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, compose.ErrUnknownPhase)
	})
}

func TestComposeToolsUnknownStory(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	_, err := srv.composeAdvance(ctx, composeTransitionInput{StoryID: "no-such-story", Chapter: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, story.ErrStoryNotFound)

	_, err = srv.composeSetOutline(ctx, composeSetOutlineInput{
		StoryID:   "no-such-story",
		Chapter:   1,
		Structure: []string{"hook"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, story.ErrStoryNotFound)
}

func TestStoryTools(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	t.Run("list starts empty", func(t *testing.T) {
		out, err := srv.storyList(ctx)
		require.NoError(t, err)
		assert.Zero(t, out.Count)
		assert.Empty(t, out.Stories)
	})

	t.Run("create requires a title", func(t *testing.T) {
		_, err := srv.storyCreate(ctx, storyCreateInput{Premise: "no title"})
		require.Error(t, err)
	})

	t.Run("create and list", func(t *testing.T) {
		created, err := srv.storyCreate(ctx, storyCreateInput{
			Title:   "The Hollow Lighthouse",
			Premise: "A keeper hears voices in the lamp.",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.NotEmpty(t, created.CreatedAt)

		out, err := srv.storyList(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, out.Count)
		assert.Equal(t, created.ID, out.Stories[0]["id"])
		assert.Equal(t, "The Hollow Lighthouse", out.Stories[0]["title"])
	})
}

func TestChapterFinalizeTool(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	created, err := srv.storyCreate(ctx, storyCreateInput{Title: "The Hollow Lighthouse"})
	require.NoError(t, err)
	target := composeTransitionInput{StoryID: created.ID, Chapter: 1}

	t.Run("rejected before final_edit", func(t *testing.T) {
		_, err := srv.chapterFinalize(ctx, chapterFinalizeInput{StoryID: created.ID, Chapter: 1})
		require.Error(t, err)
		assert.ErrorIs(t, err, story.ErrNotFinalPhase)
	})

	// Drive the workflow to final_edit.
	_, err = srv.composeSetOutline(ctx, composeSetOutlineInput{
		StoryID:      created.ID,
		Chapter:      1,
		Structure:    []string{"hook", "turn"},
		DraftSummary: "The keeper finds the first note.",
	})
	require.NoError(t, err)
	adv, err := srv.composeAdvance(ctx, target)
	require.NoError(t, err)
	require.True(t, adv.Transitioned)

	content := strings.TrimSpace(strings.Repeat("the lamp turned and the keeper listened hard ", 70))
	_, err = srv.composeSetDraft(ctx, composeSetDraftInput{StoryID: created.ID, Chapter: 1, Content: content})
	require.NoError(t, err)
	adv, err = srv.composeAdvance(ctx, target)
	require.NoError(t, err)
	require.True(t, adv.Transitioned)

	t.Run("finalizes the chapter", func(t *testing.T) {
		out, err := srv.chapterFinalize(ctx, chapterFinalizeInput{
			StoryID: created.ID,
			Chapter: 1,
			Title:   "The First Light",
		})
		require.NoError(t, err)
		assert.Equal(t, 1, out.Number)
		assert.Equal(t, "The First Light", out.Title)
		assert.GreaterOrEqual(t, out.WordCount, compose.MinDraftWords)
		assert.Equal(t, "The keeper finds the first note.", out.Summary)
	})

	t.Run("workflow is destroyed after finalize", func(t *testing.T) {
		_, err := srv.composeStatus(ctx, composeStatusInput{StoryID: created.ID, Chapter: 1})
		require.Error(t, err)
		assert.ErrorIs(t, err, compose.ErrStateNotFound)
	})

	t.Run("chapter count updated", func(t *testing.T) {
		out, err := srv.storyList(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, out.Count)
		assert.Equal(t, 1, out.Stories[0]["chapter_count"])
	})
}
