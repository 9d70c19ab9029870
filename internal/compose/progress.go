package compose

import (
	"fmt"
	"time"
)

// MergeProgress shallow-merges the non-nil fields of update into the given
// phase's progress record and stamps the activity and modification times. It
// never changes the current phase or any phase status.
func MergeProgress(s *ChapterComposeState, phase Phase, update ProgressUpdate, now time.Time) error {
	rec := s.Phases.Record(phase)
	if rec == nil {
		return fmt.Errorf("%w: %q", ErrUnknownPhase, phase)
	}
	if update.CompletedItems != nil {
		rec.Progress.CompletedItems = *update.CompletedItems
	}
	if update.TotalItems != nil {
		rec.Progress.TotalItems = *update.TotalItems
	}
	rec.Progress.LastActivity = now
	s.Metadata.LastModified = now
	return nil
}
