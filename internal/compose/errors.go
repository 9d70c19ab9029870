package compose

import "errors"

var (
	// ErrNotInitialized is returned when a mutating method runs before
	// Initialize or Load has installed a snapshot. This is a programming
	// error in the caller, never a normal outcome.
	ErrNotInitialized = errors.New("controller not initialized")

	// ErrSaveFailed wraps persistence failures during a transition or update.
	// The in-memory snapshot has been rolled back when this is returned from
	// a transition.
	ErrSaveFailed = errors.New("state save failed")

	// ErrStateNotFound is returned by a StateStore when no persisted state
	// exists for the requested story chapter.
	ErrStateNotFound = errors.New("compose state not found")

	// ErrUnknownPhase indicates a phase identifier outside the fixed set.
	ErrUnknownPhase = errors.New("unknown phase")

	// ErrUnknownReview indicates a review identifier not present in the
	// final-edit review selection.
	ErrUnknownReview = errors.New("unknown review")
)
