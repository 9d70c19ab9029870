// Package compose implements the chapter-compose phase controller: the
// finite-state workflow that drives a chapter through its three ordered
// creative phases.
//
//	plot_outline -> chapter_detail -> final_edit
//
// # Architecture
//
// The package is split along the seams of the workflow:
//
//   - Phase registry (phase.go): the fixed ordering, display names, and
//     descriptions. Pure lookups, no state.
//   - Validation gate (gate.go): pure per-phase predicates deciding whether a
//     forward or backward transition is currently legal.
//   - Progress tracker (progress.go): merges partial progress updates into a
//     phase record and stamps modification time.
//   - Controller (controller.go): owns the authoritative ChapterComposeState
//     for one story chapter, orchestrates guarded transitions, persists
//     through a StateStore, and republishes every accepted change.
//   - Channel (channel.go): a minimal publish/subscribe container carrying the
//     latest snapshot to subscribers.
//   - Manager (manager.go): keyed registry of live controllers with
//     open/resume/discard lifecycle.
//
// # Transition discipline
//
// Transitions never mutate the authoritative snapshot in place. A transition
// builds the next state on a deep clone, saves the clone, and only then swaps
// it in and publishes it. A failed save discards the clone, so subscribers
// never observe an un-persisted state and rollback is free.
//
// Guard rejections are normal outcomes, reported as a false return with a nil
// error. Persistence failures return an error wrapping ErrSaveFailed. Calling
// a mutating method before Initialize or Load fails with ErrNotInitialized.
//
// # Concurrency
//
// Each controller serializes its mutating methods behind a single mutex, so
// overlapping transition attempts cannot both act on the same pre-transition
// snapshot. Read accessors return deep clones; callers can never alias the
// authoritative value.
package compose
