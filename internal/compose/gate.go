package compose

// MinDraftWords is the minimum chapter draft length, in whitespace-delimited
// words, required to advance out of chapter_detail. The boundary is
// inclusive: a draft of exactly MinDraftWords words may advance.
const MinDraftWords = 500

// ValidationResult is the gate outcome for a snapshot, published alongside it
// on every change.
type ValidationResult struct {
	CanAdvance bool `json:"canAdvance"`
	CanRevert  bool `json:"canRevert"`
}

// Evaluate runs both gate predicates against the snapshot.
func Evaluate(s *ChapterComposeState) ValidationResult {
	return ValidationResult{
		CanAdvance: CanAdvance(s),
		CanRevert:  CanRevert(s),
	}
}

// CanAdvance reports whether the workflow may move to the next phase. It is a
// pure function of the snapshot: no I/O, no clock.
//
// final_edit is terminal, so it never advances. plot_outline requires a
// non-empty outline structure and a non-empty draft summary. chapter_detail
// requires the draft to meet MinDraftWords while the phase is active.
func CanAdvance(s *ChapterComposeState) bool {
	if s == nil {
		return false
	}
	switch s.CurrentPhase {
	case PhasePlotOutline:
		rec := s.Phases.PlotOutline
		return rec.Outline != nil && len(rec.Outline.Structure) > 0 && rec.DraftSummary != ""
	case PhaseChapterDetail:
		rec := s.Phases.ChapterDetail
		return rec.ChapterDraft != nil &&
			rec.ChapterDraft.WordCount >= MinDraftWords &&
			rec.Status == StatusActive
	case PhaseFinalEdit:
		return false
	}
	return false
}

// CanRevert reports whether the workflow may return to the previously visited
// phase: true once the history has moved past the first visited phase.
func CanRevert(s *ChapterComposeState) bool {
	if s == nil {
		return false
	}
	return len(s.Navigation.PhaseHistory) > 1
}
