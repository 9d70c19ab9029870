package http

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fablesmithlabs/draftd/internal/compose"
	"github.com/fablesmithlabs/draftd/internal/story"
)

// decodeSnapshot unmarshals a compose snapshot response body.
func decodeSnapshot(t *testing.T, body []byte) compose.Snapshot {
	t.Helper()
	var snap compose.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	return snap
}

// openCompose opens the compose workflow for chapter 1 and returns its base
// route.
func openCompose(t *testing.T, env *testEnv, storyID string) string {
	t.Helper()
	base := "/api/v1/stories/" + storyID + "/chapters/1/compose"
	rec := env.do(t, http.MethodPost, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	return base
}

func TestOpenCompose(t *testing.T) {
	t.Run("opens a fresh workflow", func(t *testing.T) {
		env := setupTestServer(t, nil)
		id := env.createStory(t)

		rec := env.do(t, http.MethodPost, "/api/v1/stories/"+id+"/chapters/1/compose", nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		snap := decodeSnapshot(t, rec.Body.Bytes())
		assert.Equal(t, compose.PhasePlotOutline, snap.Phase)
		assert.False(t, snap.Validation.CanAdvance)
		assert.False(t, snap.Validation.CanRevert)
		require.NotNil(t, snap.State)
		assert.Equal(t, 1, snap.State.OverallProgress.CurrentStep)
	})

	t.Run("unknown story is 404", func(t *testing.T) {
		env := setupTestServer(t, nil)

		rec := env.do(t, http.MethodPost, "/api/v1/stories/nope/chapters/1/compose", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("chapter number must be positive", func(t *testing.T) {
		env := setupTestServer(t, nil)
		id := env.createStory(t)

		rec := env.do(t, http.MethodPost, "/api/v1/stories/"+id+"/chapters/zero/compose", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = env.do(t, http.MethodPost, "/api/v1/stories/"+id+"/chapters/0/compose", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetCompose(t *testing.T) {
	t.Run("returns the live snapshot", func(t *testing.T) {
		env := setupTestServer(t, nil)
		id := env.createStory(t)
		base := openCompose(t, env, id)

		rec := env.do(t, http.MethodGet, base, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		snap := decodeSnapshot(t, rec.Body.Bytes())
		assert.Equal(t, compose.PhasePlotOutline, snap.Phase)
	})

	t.Run("no workflow is 404", func(t *testing.T) {
		env := setupTestServer(t, nil)
		id := env.createStory(t)

		rec := env.do(t, http.MethodGet, "/api/v1/stories/"+id+"/chapters/1/compose", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAdvanceRevert(t *testing.T) {
	env := setupTestServer(t, nil)
	id := env.createStory(t)
	base := openCompose(t, env, id)

	// Without an outline the gate rejects the advance.
	rec := env.do(t, http.MethodPost, base+"/advance", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	var rejected RejectionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rejected))
	assert.Equal(t, compose.PhasePlotOutline, rejected.Phase)
	assert.False(t, rejected.Validation.CanAdvance)

	// Outline unlocks the first advance.
	rec = env.do(t, http.MethodPut, base+"/outline", OutlineRequest{
		Structure:    []string{"hook", "turn", "cliffhanger"},
		DraftSummary: "The keeper finds the first note.",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeSnapshot(t, rec.Body.Bytes()).Validation.CanAdvance)

	rec = env.do(t, http.MethodPost, base+"/advance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var transitioned TransitionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &transitioned))
	assert.True(t, transitioned.Transitioned)
	assert.Equal(t, compose.PhaseChapterDetail, transitioned.Phase)

	// A draft below the word minimum keeps the gate closed.
	rec = env.do(t, http.MethodPut, base+"/draft", DraftRequest{Content: "too short"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, base+"/advance", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// A long enough draft advances to final edit.
	rec = env.do(t, http.MethodPut, base+"/draft", DraftRequest{Content: longDraft()})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, base+"/advance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &transitioned))
	assert.Equal(t, compose.PhaseFinalEdit, transitioned.Phase)

	// The terminal phase never advances.
	rec = env.do(t, http.MethodPost, base+"/advance", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Revert walks back one phase.
	rec = env.do(t, http.MethodPost, base+"/revert", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &transitioned))
	assert.Equal(t, compose.PhaseChapterDetail, transitioned.Phase)

	rec = env.do(t, http.MethodPost, base+"/revert", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// At the first phase there is nothing to revert to.
	rec = env.do(t, http.MethodPost, base+"/revert", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rejected))
	assert.Equal(t, compose.PhasePlotOutline, rejected.Phase)
}

func TestTransitionsRequireOpenWorkflow(t *testing.T) {
	env := setupTestServer(t, nil)
	id := env.createStory(t)
	base := "/api/v1/stories/" + id + "/chapters/1/compose"

	for _, route := range []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodPost, base + "/advance", nil},
		{http.MethodPost, base + "/revert", nil},
		{http.MethodPatch, base + "/progress", ProgressRequest{Phase: "plot_outline"}},
		{http.MethodPut, base + "/outline", OutlineRequest{}},
		{http.MethodPut, base + "/draft", DraftRequest{}},
		{http.MethodPost, base + "/reviews/r1/select", nil},
		{http.MethodPost, base + "/reviews/r1/apply", nil},
	} {
		rec := env.do(t, route.method, route.path, route.body)
		assert.Equalf(t, http.StatusConflict, rec.Code, "%s %s", route.method, route.path)
	}
}

func TestUpdateProgress(t *testing.T) {
	env := setupTestServer(t, nil)
	id := env.createStory(t)
	base := openCompose(t, env, id)

	completed, total := 2, 5
	rec := env.do(t, http.MethodPatch, base+"/progress", ProgressRequest{
		Phase:          "plot_outline",
		CompletedItems: &completed,
		TotalItems:     &total,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	snap := decodeSnapshot(t, rec.Body.Bytes())
	assert.Equal(t, 2, snap.State.Phases.PlotOutline.Progress.CompletedItems)
	assert.Equal(t, 5, snap.State.Phases.PlotOutline.Progress.TotalItems)

	// Partial update keeps the other counter.
	completed = 3
	rec = env.do(t, http.MethodPatch, base+"/progress", ProgressRequest{
		Phase:          "plot_outline",
		CompletedItems: &completed,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	snap = decodeSnapshot(t, rec.Body.Bytes())
	assert.Equal(t, 3, snap.State.Phases.PlotOutline.Progress.CompletedItems)
	assert.Equal(t, 5, snap.State.Phases.PlotOutline.Progress.TotalItems)

	t.Run("unknown phase is 400", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, base+"/progress", ProgressRequest{Phase: "editing"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestReviewSelection(t *testing.T) {
	env := setupTestServer(t, editorModel())
	id := env.createStory(t)
	base := openCompose(t, env, id)
	advanceToFinalEdit(t, env, base)

	// Generate reviews through the editor assistant.
	rec := env.do(t, http.MethodPost, "/api/v1/stories/"+id+"/chapters/1/assistants/editor", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var reviews ReviewsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reviews))
	require.Len(t, reviews.Reviews, 2)
	reviewID := reviews.Reviews[0].ID

	// Apply before select is rejected.
	rec = env.do(t, http.MethodPost, base+"/reviews/"+reviewID+"/apply", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, base+"/reviews/"+reviewID+"/select", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decodeSnapshot(t, rec.Body.Bytes())
	assert.Contains(t, snap.State.Phases.FinalEdit.ReviewSelection.Selected, reviewID)

	rec = env.do(t, http.MethodPost, base+"/reviews/"+reviewID+"/apply", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap = decodeSnapshot(t, rec.Body.Bytes())
	assert.Contains(t, snap.State.Phases.FinalEdit.ReviewSelection.Applied, reviewID)

	t.Run("unknown review is 404", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, base+"/reviews/bogus/select", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestFinalizeChapter(t *testing.T) {
	t.Run("finalizes a workflow in final edit", func(t *testing.T) {
		env := setupTestServer(t, nil)
		id := env.createStory(t)
		base := openCompose(t, env, id)
		advanceToFinalEdit(t, env, base)

		rec := env.do(t, http.MethodPost, "/api/v1/stories/"+id+"/chapters/1/finalize", FinalizeRequest{Title: "The First Light"})
		require.Equal(t, http.StatusOK, rec.Code)

		var ch story.Chapter
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ch))
		assert.Equal(t, "The First Light", ch.Title)
		assert.GreaterOrEqual(t, ch.WordCount, compose.MinDraftWords)

		// The compose workflow is destroyed with the finalization.
		rec = env.do(t, http.MethodGet, base, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		// The chapter is now listed and fetchable.
		rec = env.do(t, http.MethodGet, "/api/v1/stories/"+id+"/chapters", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var chapters []*story.Chapter
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chapters))
		assert.Len(t, chapters, 1)

		rec = env.do(t, http.MethodGet, "/api/v1/stories/"+id+"/chapters/1", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects a workflow before final edit", func(t *testing.T) {
		env := setupTestServer(t, nil)
		id := env.createStory(t)
		openCompose(t, env, id)

		rec := env.do(t, http.MethodPost, "/api/v1/stories/"+id+"/chapters/1/finalize", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unknown story is 404", func(t *testing.T) {
		env := setupTestServer(t, nil)

		rec := env.do(t, http.MethodPost, "/api/v1/stories/nope/chapters/1/finalize", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

// advanceToFinalEdit walks an open workflow through outline and draft to the
// final-edit phase.
func advanceToFinalEdit(t *testing.T, env *testEnv, base string) {
	t.Helper()

	rec := env.do(t, http.MethodPut, base+"/outline", OutlineRequest{
		Structure:    []string{"hook", "turn"},
		DraftSummary: "summary",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, base+"/advance", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPut, base+"/draft", DraftRequest{Content: longDraft()})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodPost, base+"/advance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

// editorModel returns a stub that answers editor prompts with two reviews.
func editorModel() stubModel {
	return stubModel{complete: func(system, prompt string) (string, error) {
		return `[
			{"category":"pacing","severity":"minor","excerpt":"the lamp turned","suggestion":"tighten the opening"},
			{"category":"continuity","severity":"major","excerpt":"the keeper","suggestion":"name the keeper earlier"}
		]`, nil
	}}
}
