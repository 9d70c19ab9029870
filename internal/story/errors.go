package story

import "errors"

// Errors for story and chapter operations.
var (
	ErrStoryNotFound   = errors.New("story not found")
	ErrChapterNotFound = errors.New("chapter not found")

	// ErrNotFinalPhase rejects finalization of a chapter whose compose
	// workflow has not reached the final-edit phase.
	ErrNotFinalPhase = errors.New("compose workflow has not reached the final edit phase")
)
