package compose

import (
	"fmt"
	"strings"
	"time"

	"github.com/fablesmithlabs/draftd/internal/conversation"
)

// PhaseStatus is the lifecycle status of a single phase record.
type PhaseStatus string

const (
	// StatusActive marks the phase currently being worked. Exactly one phase
	// is active at any time, and it is always the snapshot's CurrentPhase.
	StatusActive PhaseStatus = "active"

	// StatusPaused marks a phase that is not being worked: every phase ahead
	// of the current one, and any earlier phase re-opened then left again.
	StatusPaused PhaseStatus = "paused"

	// StatusCompleted marks a phase that was finished and advanced past.
	StatusCompleted PhaseStatus = "completed"
)

// Progress holds the per-phase completion counters.
type Progress struct {
	CompletedItems int       `json:"completedItems"`
	TotalItems     int       `json:"totalItems"`
	LastActivity   time.Time `json:"lastActivity"`
}

// ProgressUpdate is a partial progress change; nil fields are left untouched.
type ProgressUpdate struct {
	CompletedItems *int `json:"completedItems,omitempty"`
	TotalItems     *int `json:"totalItems,omitempty"`
}

// Outline is the plot-outline payload.
type Outline struct {
	Structure []string `json:"structure"`
}

// ChapterDraft is the chapter-detail payload.
type ChapterDraft struct {
	Content   string `json:"content"`
	WordCount int    `json:"wordCount"`
}

// CountWords returns the whitespace-delimited token count used for the draft
// word minimum.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// Review is one editorial suggestion produced for the final-edit phase.
type Review struct {
	ID         string `json:"id"`
	Category   string `json:"category"`
	Severity   string `json:"severity"`
	Excerpt    string `json:"excerpt,omitempty"`
	Suggestion string `json:"suggestion"`
}

// ReviewSelection is the final-edit payload: the reviews on offer and which
// of them the user has selected and applied.
type ReviewSelection struct {
	Available []Review `json:"available"`
	Selected  []string `json:"selected"`
	Applied   []string `json:"applied"`
}

// PhaseRecord is the per-phase slot of the compose state. The payload
// pointers are populated according to the phase the record belongs to:
// Outline and DraftSummary for plot_outline, ChapterDraft for chapter_detail,
// ReviewSelection for final_edit.
type PhaseRecord struct {
	Status       PhaseStatus        `json:"status"`
	Conversation *conversation.Tree `json:"conversation"`
	Progress     Progress           `json:"progress"`

	Outline         *Outline         `json:"outline,omitempty"`
	DraftSummary    string           `json:"draftSummary,omitempty"`
	ChapterDraft    *ChapterDraft    `json:"chapterDraft,omitempty"`
	ReviewSelection *ReviewSelection `json:"reviewSelection,omitempty"`
}

// Phases is the fixed-key phase collection. The key set is closed, so a
// struct with one field per phase replaces a general map and makes the
// single-active-phase invariant enforceable structurally.
type Phases struct {
	PlotOutline   PhaseRecord `json:"plotOutline"`
	ChapterDetail PhaseRecord `json:"chapterDetail"`
	FinalEdit     PhaseRecord `json:"finalEdit"`
}

// Record returns the record for the given phase, or nil for an unknown phase.
func (ps *Phases) Record(p Phase) *PhaseRecord {
	switch p {
	case PhasePlotOutline:
		return &ps.PlotOutline
	case PhaseChapterDetail:
		return &ps.ChapterDetail
	case PhaseFinalEdit:
		return &ps.FinalEdit
	}
	return nil
}

// Navigation carries the workflow's movement state plus the conversation
// branch navigation, which is owned by the conversation package and passed
// through here untouched.
type Navigation struct {
	PhaseHistory     []Phase                 `json:"phaseHistory"`
	CanGoBack        bool                    `json:"canGoBack"`
	CanGoForward     bool                    `json:"canGoForward"`
	BranchNavigation conversation.Navigation `json:"branchNavigation"`
}

// OverallProgress summarizes position within the fixed ordering.
type OverallProgress struct {
	CurrentStep           int            `json:"currentStep"`
	TotalSteps            int            `json:"totalSteps"`
	PhaseCompletionStatus map[Phase]bool `json:"phaseCompletionStatus"`
}

// Metadata records identity and modification bookkeeping. Version increases
// on every accepted mutation and is used to tell external file edits apart
// from the controller's own writes.
type Metadata struct {
	StoryID       string    `json:"storyId"`
	ChapterNumber int       `json:"chapterNumber"`
	Created       time.Time `json:"created"`
	LastModified  time.Time `json:"lastModified"`
	Version       int64     `json:"version"`
}

// ChapterComposeState is the complete workflow snapshot for one story
// chapter. It is owned exclusively by a Controller while loaded; consumers
// only ever see deep clones.
type ChapterComposeState struct {
	CurrentPhase    Phase           `json:"currentPhase"`
	Phases          Phases          `json:"phases"`
	Navigation      Navigation      `json:"navigation"`
	OverallProgress OverallProgress `json:"overallProgress"`
	Metadata        Metadata        `json:"metadata"`
}

// NewState builds the fresh snapshot produced by Initialize: plot_outline
// active, the other phases paused, history seeded with the first phase, all
// completion flags false.
func NewState(storyID string, chapterNumber int, now time.Time) *ChapterComposeState {
	outlineConv := conversation.NewTree()
	s := &ChapterComposeState{
		CurrentPhase: PhasePlotOutline,
		Phases: Phases{
			PlotOutline: PhaseRecord{
				Status:       StatusActive,
				Conversation: outlineConv,
				Progress:     Progress{LastActivity: now},
				Outline:      &Outline{Structure: []string{}},
			},
			ChapterDetail: PhaseRecord{
				Status:       StatusPaused,
				Conversation: conversation.NewTree(),
				Progress:     Progress{LastActivity: now},
				ChapterDraft: &ChapterDraft{},
			},
			FinalEdit: PhaseRecord{
				Status:       StatusPaused,
				Conversation: conversation.NewTree(),
				Progress:     Progress{LastActivity: now},
				ReviewSelection: &ReviewSelection{
					Available: []Review{},
					Selected:  []string{},
					Applied:   []string{},
				},
			},
		},
		Navigation: Navigation{
			PhaseHistory:     []Phase{PhasePlotOutline},
			BranchNavigation: conversation.NewNavigation(outlineConv),
		},
		OverallProgress: OverallProgress{
			CurrentStep: 1,
			TotalSteps:  TotalSteps,
			PhaseCompletionStatus: map[Phase]bool{
				PhasePlotOutline:   false,
				PhaseChapterDetail: false,
				PhaseFinalEdit:     false,
			},
		},
		Metadata: Metadata{
			StoryID:       storyID,
			ChapterNumber: chapterNumber,
			Created:       now,
			LastModified:  now,
			Version:       0,
		},
	}
	s.Navigation.CanGoBack = CanRevert(s)
	s.Navigation.CanGoForward = CanAdvance(s)
	return s
}

// Clone returns a deep copy sharing no memory with the receiver.
func (s *ChapterComposeState) Clone() *ChapterComposeState {
	if s == nil {
		return nil
	}
	out := *s

	out.Phases.PlotOutline = s.Phases.PlotOutline.clone()
	out.Phases.ChapterDetail = s.Phases.ChapterDetail.clone()
	out.Phases.FinalEdit = s.Phases.FinalEdit.clone()

	out.Navigation.PhaseHistory = clonePhases(s.Navigation.PhaseHistory)
	out.Navigation.BranchNavigation = s.Navigation.BranchNavigation.Clone()

	out.OverallProgress.PhaseCompletionStatus = make(map[Phase]bool, len(s.OverallProgress.PhaseCompletionStatus))
	for p, done := range s.OverallProgress.PhaseCompletionStatus {
		out.OverallProgress.PhaseCompletionStatus[p] = done
	}
	return &out
}

func (r PhaseRecord) clone() PhaseRecord {
	out := r
	out.Conversation = r.Conversation.Clone()
	if r.Outline != nil {
		out.Outline = &Outline{Structure: cloneStrings(r.Outline.Structure)}
	}
	if r.ChapterDraft != nil {
		draft := *r.ChapterDraft
		out.ChapterDraft = &draft
	}
	if r.ReviewSelection != nil {
		out.ReviewSelection = &ReviewSelection{
			Available: cloneReviews(r.ReviewSelection.Available),
			Selected:  cloneStrings(r.ReviewSelection.Selected),
			Applied:   cloneStrings(r.ReviewSelection.Applied),
		}
	}
	return out
}

// The clone helpers preserve nil-ness so a cloned snapshot stays deep-equal
// to its source.

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneReviews(in []Review) []Review {
	if in == nil {
		return nil
	}
	out := make([]Review, len(in))
	copy(out, in)
	return out
}

func clonePhases(in []Phase) []Phase {
	if in == nil {
		return nil
	}
	out := make([]Phase, len(in))
	copy(out, in)
	return out
}

// stamp refreshes the derived navigation booleans and modification
// bookkeeping after a mutation.
func (s *ChapterComposeState) stamp(now time.Time) {
	s.Navigation.CanGoBack = CanRevert(s)
	s.Navigation.CanGoForward = CanAdvance(s)
	s.Metadata.LastModified = now
	s.Metadata.Version++
}

// Validate checks the structural invariants that must hold after every
// mutation. It is primarily a test aid; production code maintains the
// invariants by construction.
func (s *ChapterComposeState) Validate() error {
	if s == nil {
		return fmt.Errorf("nil state")
	}
	if !s.CurrentPhase.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownPhase, s.CurrentPhase)
	}

	// Exactly one active phase, and it is the current one.
	for _, p := range Ordering() {
		rec := s.Phases.Record(p)
		switch {
		case p == s.CurrentPhase && rec.Status != StatusActive:
			return fmt.Errorf("current phase %s has status %s, want %s", p, rec.Status, StatusActive)
		case p != s.CurrentPhase && rec.Status == StatusActive:
			return fmt.Errorf("phase %s is active but current phase is %s", p, s.CurrentPhase)
		}
	}

	// Earlier phases completed or paused, later phases paused.
	cur := s.CurrentPhase.Ordinal()
	for _, p := range Ordering() {
		rec := s.Phases.Record(p)
		switch {
		case p.Ordinal() < cur:
			if rec.Status != StatusCompleted && rec.Status != StatusPaused {
				return fmt.Errorf("phase %s before current has status %s", p, rec.Status)
			}
		case p.Ordinal() > cur:
			if rec.Status != StatusPaused {
				return fmt.Errorf("phase %s after current has status %s, want %s", p, rec.Status, StatusPaused)
			}
		}
	}

	if got, want := s.OverallProgress.CurrentStep, cur+1; got != want {
		return fmt.Errorf("currentStep %d does not match phase ordinal, want %d", got, want)
	}
	if s.OverallProgress.TotalSteps != TotalSteps {
		return fmt.Errorf("totalSteps %d, want %d", s.OverallProgress.TotalSteps, TotalSteps)
	}

	hist := s.Navigation.PhaseHistory
	if len(hist) == 0 {
		return fmt.Errorf("phase history is empty")
	}
	if last := hist[len(hist)-1]; last != s.CurrentPhase {
		return fmt.Errorf("phase history ends with %s, want current phase %s", last, s.CurrentPhase)
	}
	for i := 1; i < len(hist); i++ {
		if hist[i] == hist[i-1] {
			return fmt.Errorf("phase history has consecutive duplicate %s at %d", hist[i], i)
		}
	}
	return nil
}
