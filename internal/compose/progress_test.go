package compose

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

func TestMergeProgress(t *testing.T) {
	created := time.Now()
	s := NewState("story-1", 1, created)
	later := created.Add(time.Minute)

	err := MergeProgress(s, PhasePlotOutline, ProgressUpdate{
		CompletedItems: intp(2),
		TotalItems:     intp(5),
	}, later)
	require.NoError(t, err)

	assert.Equal(t, 2, s.Phases.PlotOutline.Progress.CompletedItems)
	assert.Equal(t, 5, s.Phases.PlotOutline.Progress.TotalItems)
	assert.Equal(t, later, s.Phases.PlotOutline.Progress.LastActivity)
	assert.True(t, s.Metadata.LastModified.After(created), "lastModified must strictly increase")

	// The merge never touches phase position or status.
	assert.Equal(t, PhasePlotOutline, s.CurrentPhase)
	assert.Equal(t, StatusActive, s.Phases.PlotOutline.Status)
	requireInvariants(t, s)
}

func TestMergeProgress_PartialFields(t *testing.T) {
	s := NewState("story-1", 1, time.Now())
	require.NoError(t, MergeProgress(s, PhaseChapterDetail, ProgressUpdate{
		CompletedItems: intp(1),
		TotalItems:     intp(4),
	}, time.Now()))

	// Nil fields leave existing values untouched.
	require.NoError(t, MergeProgress(s, PhaseChapterDetail, ProgressUpdate{
		CompletedItems: intp(3),
	}, time.Now()))

	assert.Equal(t, 3, s.Phases.ChapterDetail.Progress.CompletedItems)
	assert.Equal(t, 4, s.Phases.ChapterDetail.Progress.TotalItems)
}

func TestMergeProgress_UnknownPhase(t *testing.T) {
	s := NewState("story-1", 1, time.Now())
	err := MergeProgress(s, Phase("bogus"), ProgressUpdate{CompletedItems: intp(1)}, time.Now())
	require.ErrorIs(t, err, ErrUnknownPhase)
}

func TestMergeProgress_NonCurrentPhase(t *testing.T) {
	s := NewState("story-1", 1, time.Now())

	// Progress may be recorded against any phase, not only the active one.
	require.NoError(t, MergeProgress(s, PhaseFinalEdit, ProgressUpdate{TotalItems: intp(7)}, time.Now()))
	assert.Equal(t, 7, s.Phases.FinalEdit.Progress.TotalItems)
	assert.Equal(t, PhasePlotOutline, s.CurrentPhase)
}
