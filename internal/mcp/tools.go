package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fablesmithlabs/draftd/internal/compose"
)

// textResult wraps a formatted message as the tool call's text content.
func textResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}

// validateTarget checks the story+chapter pair every compose tool receives.
func validateTarget(storyID string, chapter int) error {
	if strings.TrimSpace(storyID) == "" {
		return errors.New("story_id is required")
	}
	if chapter < 1 {
		return fmt.Errorf("chapter must be a positive integer, got %d", chapter)
	}
	return nil
}

// openController resolves the live controller for a story chapter, resuming
// or initializing the workflow on first use. The story must already exist;
// opening a workflow never creates one implicitly.
func (s *Server) openController(ctx context.Context, storyID string, chapter int) (*compose.Controller, error) {
	if err := validateTarget(storyID, chapter); err != nil {
		return nil, err
	}
	if _, err := s.stories.Get(ctx, storyID); err != nil {
		return nil, err
	}
	return s.manager.Open(ctx, storyID, chapter)
}

// ===== COMPOSE TOOLS =====

type composeStatusInput struct {
	StoryID string `json:"story_id" jsonschema:"required,Story identifier"`
	Chapter int    `json:"chapter" jsonschema:"required,Chapter number (1-based)"`
}

type composeStatusOutput struct {
	Phase        string   `json:"phase" jsonschema:"Current workflow phase"`
	CanAdvance   bool     `json:"can_advance" jsonschema:"Whether the validation gate allows advancing"`
	CanRevert    bool     `json:"can_revert" jsonschema:"Whether the validation gate allows reverting"`
	CurrentStep  int      `json:"current_step" jsonschema:"1-based position in the phase ordering"`
	TotalSteps   int      `json:"total_steps" jsonschema:"Number of workflow phases"`
	PhaseHistory []string `json:"phase_history" jsonschema:"Phases visited in order"`
	DraftWords   int      `json:"draft_words" jsonschema:"Word count of the chapter draft"`
	Reviews      int      `json:"reviews" jsonschema:"Number of editorial reviews on offer"`
}

type composeTransitionInput struct {
	StoryID string `json:"story_id" jsonschema:"required,Story identifier"`
	Chapter int    `json:"chapter" jsonschema:"required,Chapter number (1-based)"`
}

type composeTransitionOutput struct {
	Transitioned bool   `json:"transitioned" jsonschema:"True when the phase changed"`
	Blocked      bool   `json:"blocked" jsonschema:"True when the validation gate rejected the transition"`
	Phase        string `json:"phase" jsonschema:"Phase after the attempt"`
	CanAdvance   bool   `json:"can_advance" jsonschema:"Whether the gate now allows advancing"`
	CanRevert    bool   `json:"can_revert" jsonschema:"Whether the gate now allows reverting"`
}

type composeSetOutlineInput struct {
	StoryID      string   `json:"story_id" jsonschema:"required,Story identifier"`
	Chapter      int      `json:"chapter" jsonschema:"required,Chapter number (1-based)"`
	Structure    []string `json:"structure" jsonschema:"required,Ordered outline beats"`
	DraftSummary string   `json:"draft_summary,omitempty" jsonschema:"One-paragraph summary of the planned chapter"`
}

type composeSetDraftInput struct {
	StoryID string `json:"story_id" jsonschema:"required,Story identifier"`
	Chapter int    `json:"chapter" jsonschema:"required,Chapter number (1-based)"`
	Content string `json:"content" jsonschema:"required,Full chapter draft text"`
}

type composeSetDraftOutput struct {
	Phase      string `json:"phase" jsonschema:"Current workflow phase"`
	WordCount  int    `json:"word_count" jsonschema:"Word count of the saved draft"`
	CanAdvance bool   `json:"can_advance" jsonschema:"Whether the gate now allows advancing"`
	CanRevert  bool   `json:"can_revert" jsonschema:"Whether the gate now allows reverting"`
}

type composeSnapshotOutput struct {
	Phase      string `json:"phase" jsonschema:"Current workflow phase"`
	CanAdvance bool   `json:"can_advance" jsonschema:"Whether the gate now allows advancing"`
	CanRevert  bool   `json:"can_revert" jsonschema:"Whether the gate now allows reverting"`
}

type composeUpdateProgressInput struct {
	StoryID        string `json:"story_id" jsonschema:"required,Story identifier"`
	Chapter        int    `json:"chapter" jsonschema:"required,Chapter number (1-based)"`
	Phase          string `json:"phase" jsonschema:"required,Phase to update (plot_outline chapter_detail or final_edit)"`
	CompletedItems *int   `json:"completed_items,omitempty" jsonschema:"New completed item count (omit to keep)"`
	TotalItems     *int   `json:"total_items,omitempty" jsonschema:"New total item count (omit to keep)"`
}

type composeUpdateProgressOutput struct {
	Phase          string `json:"phase" jsonschema:"Phase that was updated"`
	CompletedItems int    `json:"completed_items" jsonschema:"Completed item count after the merge"`
	TotalItems     int    `json:"total_items" jsonschema:"Total item count after the merge"`
	CanAdvance     bool   `json:"can_advance" jsonschema:"Whether the gate now allows advancing"`
	CanRevert      bool   `json:"can_revert" jsonschema:"Whether the gate now allows reverting"`
}

func (s *Server) registerComposeTools() {
	// compose_status
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "compose_status",
		Description: "Summarize the compose workflow for a story chapter: phase, gate verdicts, progress",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args composeStatusInput) (*mcp.CallToolResult, composeStatusOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "compose_status")
		out, err := s.composeStatus(ctx, args)
		s.metrics.DecrementActive(ctx, "compose_status")
		s.metrics.RecordInvocation(ctx, "compose_status", time.Since(start), err)
		if err != nil {
			return nil, composeStatusOutput{}, err
		}
		return textResult("chapter %d is in %s (step %d of %d)", args.Chapter, out.Phase, out.CurrentStep, out.TotalSteps), out, nil
	})

	// compose_advance
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "compose_advance",
		Description: "Attempt to advance the workflow to the next phase; blocked when gate requirements are not met",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args composeTransitionInput) (*mcp.CallToolResult, composeTransitionOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "compose_advance")
		out, err := s.composeAdvance(ctx, args)
		s.metrics.DecrementActive(ctx, "compose_advance")
		s.metrics.RecordInvocation(ctx, "compose_advance", time.Since(start), err)
		if err != nil {
			return nil, composeTransitionOutput{}, err
		}
		if out.Blocked {
			return textResult("advance blocked: %s requirements not met", out.Phase), out, nil
		}
		return textResult("advanced to %s", out.Phase), out, nil
	})

	// compose_revert
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "compose_revert",
		Description: "Attempt to revert the workflow to the previous phase; blocked at the first phase",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args composeTransitionInput) (*mcp.CallToolResult, composeTransitionOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "compose_revert")
		out, err := s.composeRevert(ctx, args)
		s.metrics.DecrementActive(ctx, "compose_revert")
		s.metrics.RecordInvocation(ctx, "compose_revert", time.Since(start), err)
		if err != nil {
			return nil, composeTransitionOutput{}, err
		}
		if out.Blocked {
			return textResult("revert blocked: already at %s", out.Phase), out, nil
		}
		return textResult("reverted to %s", out.Phase), out, nil
	})

	// compose_set_outline
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "compose_set_outline",
		Description: "Replace the plot outline structure and draft summary",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args composeSetOutlineInput) (*mcp.CallToolResult, composeSnapshotOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "compose_set_outline")
		out, err := s.composeSetOutline(ctx, args)
		s.metrics.DecrementActive(ctx, "compose_set_outline")
		s.metrics.RecordInvocation(ctx, "compose_set_outline", time.Since(start), err)
		if err != nil {
			return nil, composeSnapshotOutput{}, err
		}
		return textResult("outline updated: %d beats", len(args.Structure)), out, nil
	})

	// compose_set_draft
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "compose_set_draft",
		Description: "Replace the chapter draft content",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args composeSetDraftInput) (*mcp.CallToolResult, composeSetDraftOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "compose_set_draft")
		out, err := s.composeSetDraft(ctx, args)
		s.metrics.DecrementActive(ctx, "compose_set_draft")
		s.metrics.RecordInvocation(ctx, "compose_set_draft", time.Since(start), err)
		if err != nil {
			return nil, composeSetDraftOutput{}, err
		}
		return textResult("draft updated: %d words", out.WordCount), out, nil
	})

	// compose_update_progress
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "compose_update_progress",
		Description: "Merge completed/total item counts into a phase's progress",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args composeUpdateProgressInput) (*mcp.CallToolResult, composeUpdateProgressOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "compose_update_progress")
		out, err := s.composeUpdateProgress(ctx, args)
		s.metrics.DecrementActive(ctx, "compose_update_progress")
		s.metrics.RecordInvocation(ctx, "compose_update_progress", time.Since(start), err)
		if err != nil {
			return nil, composeUpdateProgressOutput{}, err
		}
		return textResult("%s progress: %d of %d", out.Phase, out.CompletedItems, out.TotalItems), out, nil
	})
}

func (s *Server) composeStatus(ctx context.Context, args composeStatusInput) (composeStatusOutput, error) {
	if err := validateTarget(args.StoryID, args.Chapter); err != nil {
		return composeStatusOutput{}, err
	}

	state, err := s.manager.Peek(ctx, args.StoryID, args.Chapter)
	if err != nil {
		return composeStatusOutput{}, fmt.Errorf("compose status failed: %w", err)
	}

	v := compose.Evaluate(state)
	out := composeStatusOutput{
		Phase:       string(state.CurrentPhase),
		CanAdvance:  v.CanAdvance,
		CanRevert:   v.CanRevert,
		CurrentStep: state.OverallProgress.CurrentStep,
		TotalSteps:  state.OverallProgress.TotalSteps,
	}
	for _, p := range state.Navigation.PhaseHistory {
		out.PhaseHistory = append(out.PhaseHistory, string(p))
	}
	if draft := state.Phases.ChapterDetail.ChapterDraft; draft != nil {
		out.DraftWords = draft.WordCount
	}
	if sel := state.Phases.FinalEdit.ReviewSelection; sel != nil {
		out.Reviews = len(sel.Available)
	}
	return out, nil
}

func (s *Server) composeAdvance(ctx context.Context, args composeTransitionInput) (composeTransitionOutput, error) {
	ctrl, err := s.openController(ctx, args.StoryID, args.Chapter)
	if err != nil {
		return composeTransitionOutput{}, err
	}

	ok, err := ctrl.AdvanceToNext(ctx)
	if err != nil {
		return composeTransitionOutput{}, fmt.Errorf("advance failed: %w", err)
	}
	return transitionOutput(ctrl, ok), nil
}

func (s *Server) composeRevert(ctx context.Context, args composeTransitionInput) (composeTransitionOutput, error) {
	ctrl, err := s.openController(ctx, args.StoryID, args.Chapter)
	if err != nil {
		return composeTransitionOutput{}, err
	}

	ok, err := ctrl.RevertToPrevious(ctx)
	if err != nil {
		return composeTransitionOutput{}, fmt.Errorf("revert failed: %w", err)
	}
	return transitionOutput(ctrl, ok), nil
}

func (s *Server) composeSetOutline(ctx context.Context, args composeSetOutlineInput) (composeSnapshotOutput, error) {
	ctrl, err := s.openController(ctx, args.StoryID, args.Chapter)
	if err != nil {
		return composeSnapshotOutput{}, err
	}
	if err := ctrl.SetOutline(ctx, args.Structure, args.DraftSummary); err != nil {
		return composeSnapshotOutput{}, fmt.Errorf("set outline failed: %w", err)
	}
	return snapshotOutput(ctrl), nil
}

func (s *Server) composeSetDraft(ctx context.Context, args composeSetDraftInput) (composeSetDraftOutput, error) {
	ctrl, err := s.openController(ctx, args.StoryID, args.Chapter)
	if err != nil {
		return composeSetDraftOutput{}, err
	}
	if err := ctrl.SetDraft(ctx, args.Content); err != nil {
		return composeSetDraftOutput{}, fmt.Errorf("set draft failed: %w", err)
	}

	out := composeSetDraftOutput{WordCount: compose.CountWords(args.Content)}
	if snap, ok := ctrl.Latest(); ok {
		out.Phase = string(snap.Phase)
		out.CanAdvance = snap.Validation.CanAdvance
		out.CanRevert = snap.Validation.CanRevert
	}
	return out, nil
}

func (s *Server) composeUpdateProgress(ctx context.Context, args composeUpdateProgressInput) (composeUpdateProgressOutput, error) {
	phase, err := compose.ParsePhase(args.Phase)
	if err != nil {
		return composeUpdateProgressOutput{}, err
	}
	ctrl, err := s.openController(ctx, args.StoryID, args.Chapter)
	if err != nil {
		return composeUpdateProgressOutput{}, err
	}

	update := compose.ProgressUpdate{
		CompletedItems: args.CompletedItems,
		TotalItems:     args.TotalItems,
	}
	if err := ctrl.UpdatePhaseProgress(ctx, phase, update); err != nil {
		return composeUpdateProgressOutput{}, fmt.Errorf("update progress failed: %w", err)
	}

	out := composeUpdateProgressOutput{Phase: string(phase)}
	state := ctrl.CurrentState()
	if state != nil {
		if rec := state.Phases.Record(phase); rec != nil {
			out.CompletedItems = rec.Progress.CompletedItems
			out.TotalItems = rec.Progress.TotalItems
		}
		v := compose.Evaluate(state)
		out.CanAdvance = v.CanAdvance
		out.CanRevert = v.CanRevert
	}
	return out, nil
}

// transitionOutput reports the post-attempt snapshot; a rejected transition
// is a structured outcome, not an error.
func transitionOutput(ctrl *compose.Controller, transitioned bool) composeTransitionOutput {
	out := composeTransitionOutput{
		Transitioned: transitioned,
		Blocked:      !transitioned,
	}
	if snap, ok := ctrl.Latest(); ok {
		out.Phase = string(snap.Phase)
		out.CanAdvance = snap.Validation.CanAdvance
		out.CanRevert = snap.Validation.CanRevert
	}
	return out
}

func snapshotOutput(ctrl *compose.Controller) composeSnapshotOutput {
	var out composeSnapshotOutput
	if snap, ok := ctrl.Latest(); ok {
		out.Phase = string(snap.Phase)
		out.CanAdvance = snap.Validation.CanAdvance
		out.CanRevert = snap.Validation.CanRevert
	}
	return out
}
