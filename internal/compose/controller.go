package compose

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fablesmithlabs/draftd/internal/conversation"
)

const instrumentationName = "github.com/fablesmithlabs/draftd/internal/compose"

// StateStore is the persistence adapter consumed by the controller. Save and
// load are treated as atomic and durable; the controller never retries.
type StateStore interface {
	// SaveState durably persists the snapshot for the given story chapter.
	SaveState(ctx context.Context, storyID string, chapter int, state *ChapterComposeState) error

	// LoadState returns the persisted snapshot, or ErrStateNotFound when the
	// chapter has no compose state.
	LoadState(ctx context.Context, storyID string, chapter int) (*ChapterComposeState, error)

	// DeleteState removes the persisted snapshot. Deleting an absent state is
	// not an error.
	DeleteState(ctx context.Context, storyID string, chapter int) error
}

// Controller owns the authoritative ChapterComposeState for one story chapter
// and mediates every mutation of it. All mutating methods serialize behind a
// single mutex held across the persistence call, so overlapping transitions
// cannot both act on the same pre-transition snapshot.
type Controller struct {
	storyID string
	chapter int
	store   StateStore
	channel *Channel
	logger  *zap.Logger
	tracer  trace.Tracer
	meter   metric.Meter

	transitionsTotal metric.Int64Counter
	updatesTotal     metric.Int64Counter

	mu    sync.Mutex
	state *ChapterComposeState

	nowFn func() time.Time
}

// NewController creates a controller for one story chapter. The controller
// starts uninitialized; call Initialize or Load before any other mutation.
func NewController(storyID string, chapter int, store StateStore, logger *zap.Logger) (*Controller, error) {
	if storyID == "" {
		return nil, errors.New("story ID is required")
	}
	if chapter < 1 {
		return nil, fmt.Errorf("chapter number must be positive, got %d", chapter)
	}
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Controller{
		storyID: storyID,
		chapter: chapter,
		store:   store,
		channel: NewChannel(),
		logger:  logger,
		tracer:  otel.Tracer(instrumentationName),
		meter:   otel.Meter(instrumentationName),
		nowFn:   time.Now,
	}
	c.initMetrics()
	return c, nil
}

func (c *Controller) initMetrics() {
	var err error

	c.transitionsTotal, err = c.meter.Int64Counter(
		"draftd.compose.transitions_total",
		metric.WithDescription("Phase transition attempts labeled by direction (advance, revert) and outcome (ok, rejected, save_failed)"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		c.logger.Warn("failed to create transitions counter", zap.Error(err))
	}

	c.updatesTotal, err = c.meter.Int64Counter(
		"draftd.compose.updates_total",
		metric.WithDescription("Snapshot updates outside transitions (progress merges, payload edits) labeled by kind and outcome"),
		metric.WithUnit("{update}"),
	)
	if err != nil {
		c.logger.Warn("failed to create updates counter", zap.Error(err))
	}
}

// StoryID returns the story this controller composes for.
func (c *Controller) StoryID() string { return c.storyID }

// ChapterNumber returns the chapter this controller composes.
func (c *Controller) ChapterNumber() int { return c.chapter }

// Subscribe registers fn on the distribution channel. The latest snapshot, if
// any, is delivered immediately. The returned function cancels the
// subscription.
func (c *Controller) Subscribe(fn func(Snapshot)) func() {
	return c.channel.Subscribe(fn)
}

// Latest returns the most recently published snapshot, if any.
func (c *Controller) Latest() (Snapshot, bool) {
	return c.channel.Latest()
}

// Initialize builds a fresh workflow snapshot, persists it, installs it as
// the authoritative state, and publishes it. Any previously installed
// snapshot is replaced. The returned state is a clone.
func (c *Controller) Initialize(ctx context.Context) (*ChapterComposeState, error) {
	ctx, span := c.tracer.Start(ctx, "compose.initialize")
	defer span.End()
	span.SetAttributes(
		attribute.String("story_id", c.storyID),
		attribute.Int("chapter", c.chapter),
	)

	c.mu.Lock()
	defer c.mu.Unlock()

	state := NewState(c.storyID, c.chapter, c.nowFn())
	if err := c.store.SaveState(ctx, c.storyID, c.chapter, state); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	c.state = state
	c.publishLocked()

	c.logger.Info("compose workflow initialized",
		zap.String("story_id", c.storyID),
		zap.Int("chapter", c.chapter),
	)
	return state.Clone(), nil
}

// Load replaces the authoritative snapshot with the given one and republishes
// it. No validation is performed; this is the resume path for previously
// persisted workflows.
func (c *Controller) Load(snapshot *ChapterComposeState) error {
	if snapshot == nil {
		return errors.New("cannot load nil snapshot")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = snapshot.Clone()
	c.publishLocked()

	c.logger.Debug("compose snapshot loaded",
		zap.String("story_id", c.storyID),
		zap.Int("chapter", c.chapter),
		zap.String("phase", string(c.state.CurrentPhase)),
		zap.Int64("state_version", c.state.Metadata.Version),
	)
	return nil
}

// AdvanceToNext attempts the forward transition.
//
// Outcomes: (true, nil) on success; (false, nil) when the validation gate
// rejects the move; (false, err) when persistence fails, with err wrapping
// ErrSaveFailed and the in-memory snapshot rolled back, or when the
// controller is uninitialized.
func (c *Controller) AdvanceToNext(ctx context.Context) (bool, error) {
	ctx, span := c.tracer.Start(ctx, "compose.advance")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == nil {
		return false, ErrNotInitialized
	}
	span.SetAttributes(
		attribute.String("story_id", c.storyID),
		attribute.Int("chapter", c.chapter),
		attribute.String("from_phase", string(c.state.CurrentPhase)),
	)

	next, ok := applyAdvance(c.state, c.nowFn())
	if !ok {
		c.recordTransition(ctx, "advance", "rejected")
		c.logger.Debug("advance rejected by validation gate",
			zap.String("story_id", c.storyID),
			zap.Int("chapter", c.chapter),
			zap.String("phase", string(c.state.CurrentPhase)),
		)
		return false, nil
	}

	if err := c.store.SaveState(ctx, c.storyID, c.chapter, next); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.recordTransition(ctx, "advance", "save_failed")
		c.logger.Error("advance rolled back: persistence failed",
			zap.String("story_id", c.storyID),
			zap.Int("chapter", c.chapter),
			zap.Error(err),
		)
		return false, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	c.state = next
	c.publishLocked()
	c.recordTransition(ctx, "advance", "ok")

	span.SetAttributes(attribute.String("to_phase", string(next.CurrentPhase)))
	c.logger.Info("phase advanced",
		zap.String("story_id", c.storyID),
		zap.Int("chapter", c.chapter),
		zap.String("phase", string(next.CurrentPhase)),
		zap.Int("step", next.OverallProgress.CurrentStep),
	)
	return true, nil
}

// RevertToPrevious attempts the backward transition. Outcome semantics match
// AdvanceToNext.
func (c *Controller) RevertToPrevious(ctx context.Context) (bool, error) {
	ctx, span := c.tracer.Start(ctx, "compose.revert")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == nil {
		return false, ErrNotInitialized
	}
	span.SetAttributes(
		attribute.String("story_id", c.storyID),
		attribute.Int("chapter", c.chapter),
		attribute.String("from_phase", string(c.state.CurrentPhase)),
	)

	prev, ok := applyRevert(c.state, c.nowFn())
	if !ok {
		c.recordTransition(ctx, "revert", "rejected")
		c.logger.Debug("revert rejected: no earlier phase in history",
			zap.String("story_id", c.storyID),
			zap.Int("chapter", c.chapter),
		)
		return false, nil
	}

	if err := c.store.SaveState(ctx, c.storyID, c.chapter, prev); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.recordTransition(ctx, "revert", "save_failed")
		c.logger.Error("revert rolled back: persistence failed",
			zap.String("story_id", c.storyID),
			zap.Int("chapter", c.chapter),
			zap.Error(err),
		)
		return false, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	c.state = prev
	c.publishLocked()
	c.recordTransition(ctx, "revert", "ok")

	span.SetAttributes(attribute.String("to_phase", string(prev.CurrentPhase)))
	c.logger.Info("phase reverted",
		zap.String("story_id", c.storyID),
		zap.Int("chapter", c.chapter),
		zap.String("phase", string(prev.CurrentPhase)),
	)
	return true, nil
}

// UpdatePhaseProgress merges a partial progress update into the given phase,
// persists, and republishes. A persistence failure is returned but the merged
// progress is kept in memory and not published; the next successful save
// persists it.
func (c *Controller) UpdatePhaseProgress(ctx context.Context, phase Phase, update ProgressUpdate) error {
	ctx, span := c.tracer.Start(ctx, "compose.update_progress")
	defer span.End()
	span.SetAttributes(
		attribute.String("story_id", c.storyID),
		attribute.Int("chapter", c.chapter),
		attribute.String("phase", string(phase)),
	)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == nil {
		return ErrNotInitialized
	}

	next := c.state.Clone()
	if err := MergeProgress(next, phase, update, c.nowFn()); err != nil {
		span.RecordError(err)
		return err
	}
	next.Metadata.Version++

	if err := c.store.SaveState(ctx, c.storyID, c.chapter, next); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.recordUpdate(ctx, "progress", "save_failed")
		c.state = next
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	c.state = next
	c.publishLocked()
	c.recordUpdate(ctx, "progress", "ok")
	return nil
}

// SetOutline replaces the plot-outline structure and draft summary.
func (c *Controller) SetOutline(ctx context.Context, structure []string, draftSummary string) error {
	return c.updatePayload(ctx, "outline", func(s *ChapterComposeState) error {
		s.Phases.PlotOutline.Outline = &Outline{Structure: cloneStrings(structure)}
		s.Phases.PlotOutline.DraftSummary = draftSummary
		return nil
	})
}

// SetDraft replaces the chapter draft content and recomputes its word count.
func (c *Controller) SetDraft(ctx context.Context, content string) error {
	return c.updatePayload(ctx, "draft", func(s *ChapterComposeState) error {
		s.Phases.ChapterDetail.ChapterDraft = &ChapterDraft{
			Content:   content,
			WordCount: CountWords(content),
		}
		return nil
	})
}

// SetReviews installs the available editorial reviews for the final-edit
// phase. Previous selections and applications are cleared: a new review round
// invalidates them.
func (c *Controller) SetReviews(ctx context.Context, reviews []Review) error {
	return c.updatePayload(ctx, "reviews", func(s *ChapterComposeState) error {
		s.Phases.FinalEdit.ReviewSelection = &ReviewSelection{
			Available: cloneReviews(reviews),
			Selected:  []string{},
			Applied:   []string{},
		}
		return nil
	})
}

// SelectReview marks an available review as selected. Selecting an already
// selected review is a no-op.
func (c *Controller) SelectReview(ctx context.Context, reviewID string) error {
	return c.updatePayload(ctx, "review_select", func(s *ChapterComposeState) error {
		sel := s.Phases.FinalEdit.ReviewSelection
		if sel == nil || !hasReview(sel.Available, reviewID) {
			return fmt.Errorf("%w: %q", ErrUnknownReview, reviewID)
		}
		if !hasString(sel.Selected, reviewID) {
			sel.Selected = append(sel.Selected, reviewID)
		}
		return nil
	})
}

// ApplyReview marks a selected review as applied to the draft. The review
// must have been selected first. Applying twice is a no-op.
func (c *Controller) ApplyReview(ctx context.Context, reviewID string) error {
	return c.updatePayload(ctx, "review_apply", func(s *ChapterComposeState) error {
		sel := s.Phases.FinalEdit.ReviewSelection
		if sel == nil || !hasString(sel.Selected, reviewID) {
			return fmt.Errorf("%w: %q not selected", ErrUnknownReview, reviewID)
		}
		if !hasString(sel.Applied, reviewID) {
			sel.Applied = append(sel.Applied, reviewID)
		}
		return nil
	})
}

// ReplaceConversation installs an updated conversation tree and branch
// navigation for a phase. The controller stores clones and never interprets
// their internals.
func (c *Controller) ReplaceConversation(ctx context.Context, phase Phase, tree *conversation.Tree, nav conversation.Navigation) error {
	if tree == nil {
		return errors.New("cannot replace with nil conversation tree")
	}
	return c.updatePayload(ctx, "conversation", func(s *ChapterComposeState) error {
		rec := s.Phases.Record(phase)
		if rec == nil {
			return fmt.Errorf("%w: %q", ErrUnknownPhase, phase)
		}
		rec.Conversation = tree.Clone()
		s.Navigation.BranchNavigation = nav.Clone()
		return nil
	})
}

// updatePayload runs mutate against a clone, persists it, swaps it in, and
// republishes. Persistence failure discards the clone.
func (c *Controller) updatePayload(ctx context.Context, kind string, mutate func(*ChapterComposeState) error) error {
	ctx, span := c.tracer.Start(ctx, "compose.set_"+kind)
	defer span.End()
	span.SetAttributes(
		attribute.String("story_id", c.storyID),
		attribute.Int("chapter", c.chapter),
	)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == nil {
		return ErrNotInitialized
	}

	next := c.state.Clone()
	if err := mutate(next); err != nil {
		span.RecordError(err)
		c.recordUpdate(ctx, kind, "invalid")
		return err
	}
	next.stamp(c.nowFn())

	if err := c.store.SaveState(ctx, c.storyID, c.chapter, next); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.recordUpdate(ctx, kind, "save_failed")
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	c.state = next
	c.publishLocked()
	c.recordUpdate(ctx, kind, "ok")
	return nil
}

// CurrentPhase returns the active phase. ok is false before Initialize/Load.
func (c *Controller) CurrentPhase() (Phase, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return "", false
	}
	return c.state.CurrentPhase, true
}

// CurrentState returns a deep clone of the authoritative snapshot, or nil
// before Initialize/Load.
func (c *Controller) CurrentState() *ChapterComposeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// publishLocked pushes the current snapshot to the distribution channel. The
// caller must hold c.mu.
func (c *Controller) publishLocked() {
	c.channel.Publish(Snapshot{
		Phase:      c.state.CurrentPhase,
		Validation: Evaluate(c.state),
		State:      c.state.Clone(),
	})
}

func (c *Controller) recordTransition(ctx context.Context, direction, outcome string) {
	if c.transitionsTotal == nil {
		return
	}
	c.transitionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("direction", direction),
		attribute.String("outcome", outcome),
	))
}

func (c *Controller) recordUpdate(ctx context.Context, kind, outcome string) {
	if c.updatesTotal == nil {
		return
	}
	c.updatesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}

// applyAdvance returns the post-advance snapshot built on a deep clone, or
// ok=false when the validation gate rejects the move. Pure: no I/O.
func applyAdvance(s *ChapterComposeState, now time.Time) (*ChapterComposeState, bool) {
	if !CanAdvance(s) {
		return nil, false
	}
	next, ok := s.CurrentPhase.Next()
	if !ok {
		return nil, false
	}

	out := s.Clone()
	prev := out.CurrentPhase
	out.Phases.Record(prev).Status = StatusCompleted
	out.Phases.Record(next).Status = StatusActive
	out.Navigation.PhaseHistory = append(out.Navigation.PhaseHistory, next)
	out.CurrentPhase = next
	out.OverallProgress.PhaseCompletionStatus[prev] = true
	out.OverallProgress.CurrentStep++
	out.stamp(now)
	return out, true
}

// applyRevert returns the post-revert snapshot built on a deep clone, or
// ok=false when there is no earlier phase in the history. Pure: no I/O.
//
// The phase re-entered as current gets its completion flag reset: completed
// means advanced past, and the workflow is now back inside it.
func applyRevert(s *ChapterComposeState, now time.Time) (*ChapterComposeState, bool) {
	if !CanRevert(s) {
		return nil, false
	}

	out := s.Clone()
	left := out.CurrentPhase
	hist := out.Navigation.PhaseHistory
	out.Navigation.PhaseHistory = hist[:len(hist)-1]
	cur := out.Navigation.PhaseHistory[len(out.Navigation.PhaseHistory)-1]

	out.Phases.Record(left).Status = StatusPaused
	out.Phases.Record(cur).Status = StatusActive
	out.CurrentPhase = cur
	out.OverallProgress.CurrentStep--
	out.OverallProgress.PhaseCompletionStatus[cur] = false
	out.stamp(now)
	return out, true
}

func hasReview(reviews []Review, id string) bool {
	for _, r := range reviews {
		if r.ID == id {
			return true
		}
	}
	return false
}

func hasString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
