// Package story manages story records and finalized chapters. A chapter is
// finalized from a compose workflow that reached the final-edit phase; the
// workflow is destroyed once its chapter is written.
package story

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fablesmithlabs/draftd/internal/compose"
)

const instrumentationName = "github.com/fablesmithlabs/draftd/internal/story"

// Store is the persistence layer for stories and finalized chapters.
type Store interface {
	SaveStory(ctx context.Context, st *Story) error
	LoadStory(ctx context.Context, storyID string) (*Story, error)
	ListStories(ctx context.Context) ([]*Story, error)

	SaveChapter(ctx context.Context, ch *Chapter) error
	LoadChapter(ctx context.Context, storyID string, chapter int) (*Chapter, error)
	ListChapters(ctx context.Context, storyID string) ([]*Chapter, error)
}

// Service owns story lifecycle operations.
type Service struct {
	store   Store
	compose *compose.Manager
	logger  *zap.Logger
	tracer  trace.Tracer
	meter   metric.Meter

	createdTotal   metric.Int64Counter
	finalizedTotal metric.Int64Counter

	nowFn func() time.Time
}

// NewService creates a story service.
func NewService(store Store, composeMgr *compose.Manager, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if composeMgr == nil {
		return nil, errors.New("compose manager is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		store:   store,
		compose: composeMgr,
		logger:  logger,
		tracer:  otel.Tracer(instrumentationName),
		meter:   otel.Meter(instrumentationName),
		nowFn:   time.Now,
	}
	s.initMetrics()
	return s, nil
}

func (s *Service) initMetrics() {
	var err error

	s.createdTotal, err = s.meter.Int64Counter(
		"draftd.story.created_total",
		metric.WithDescription("Stories created"),
		metric.WithUnit("{story}"),
	)
	if err != nil {
		s.logger.Warn("failed to create stories counter", zap.Error(err))
	}

	s.finalizedTotal, err = s.meter.Int64Counter(
		"draftd.story.chapters_finalized_total",
		metric.WithDescription("Chapters finalized from completed compose workflows"),
		metric.WithUnit("{chapter}"),
	)
	if err != nil {
		s.logger.Warn("failed to create finalized counter", zap.Error(err))
	}
}

// Create creates and persists a new story.
func (s *Service) Create(ctx context.Context, title, premise string) (*Story, error) {
	ctx, span := s.tracer.Start(ctx, "story.create")
	defer span.End()

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("story title is required")
	}

	st := NewStory(title, premise, s.nowFn())
	span.SetAttributes(attribute.String("story_id", st.ID))

	if err := s.store.SaveStory(ctx, st); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to save story: %w", err)
	}

	if s.createdTotal != nil {
		s.createdTotal.Add(ctx, 1)
	}
	s.logger.Info("story created",
		zap.String("story_id", st.ID),
		zap.String("title", st.Title),
	)
	return st, nil
}

// Get returns one story record.
func (s *Service) Get(ctx context.Context, storyID string) (*Story, error) {
	return s.store.LoadStory(ctx, storyID)
}

// List returns all stories ordered by creation time.
func (s *Service) List(ctx context.Context) ([]*Story, error) {
	return s.store.ListStories(ctx)
}

// GetChapter returns one finalized chapter.
func (s *Service) GetChapter(ctx context.Context, storyID string, chapter int) (*Chapter, error) {
	return s.store.LoadChapter(ctx, storyID, chapter)
}

// ListChapters returns the finalized chapters of a story in order.
func (s *Service) ListChapters(ctx context.Context, storyID string) ([]*Chapter, error) {
	return s.store.ListChapters(ctx, storyID)
}

// FinalizeChapter turns a finished compose workflow into an immutable chapter.
//
// The workflow must be in the final-edit phase; anything earlier returns
// ErrNotFinalPhase. On success the chapter is persisted, the story record is
// updated, and the compose workflow is destroyed. Finalizing the same chapter
// number again overwrites the previous record.
func (s *Service) FinalizeChapter(ctx context.Context, storyID string, chapter int, title string) (*Chapter, error) {
	ctx, span := s.tracer.Start(ctx, "story.finalize_chapter")
	defer span.End()
	span.SetAttributes(
		attribute.String("story_id", storyID),
		attribute.Int("chapter", chapter),
	)

	st, err := s.store.LoadStory(ctx, storyID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	ctrl, err := s.compose.Open(ctx, storyID, chapter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to open compose workflow: %w", err)
	}

	state := ctrl.CurrentState()
	if state == nil || state.CurrentPhase != compose.PhaseFinalEdit {
		span.SetAttributes(attribute.String("phase", string(phaseOf(state))))
		return nil, ErrNotFinalPhase
	}
	draft := state.Phases.ChapterDetail.ChapterDraft
	if draft == nil || draft.Content == "" {
		return nil, fmt.Errorf("compose state for chapter %d has no draft content", chapter)
	}

	now := s.nowFn()
	ch := &Chapter{
		StoryID:     storyID,
		Number:      chapter,
		Title:       strings.TrimSpace(title),
		Content:     draft.Content,
		WordCount:   draft.WordCount,
		Summary:     state.Phases.PlotOutline.DraftSummary,
		FinalizedAt: now,
	}
	if sel := state.Phases.FinalEdit.ReviewSelection; sel != nil && len(sel.Applied) > 0 {
		ch.AppliedReviews = append([]string(nil), sel.Applied...)
	}

	if err := s.store.SaveChapter(ctx, ch); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to save chapter: %w", err)
	}

	chapters, err := s.store.ListChapters(ctx, storyID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to recount chapters: %w", err)
	}
	st.ChapterCount = len(chapters)
	st.UpdatedAt = now
	if err := s.store.SaveStory(ctx, st); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to update story: %w", err)
	}

	// The workflow is done; its live controller and persisted state go away.
	if err := s.compose.Discard(ctx, storyID, chapter); err != nil {
		s.logger.Warn("failed to discard finalized compose workflow",
			zap.String("story_id", storyID),
			zap.Int("chapter", chapter),
			zap.Error(err),
		)
	}

	if s.finalizedTotal != nil {
		s.finalizedTotal.Add(ctx, 1)
	}
	s.logger.Info("chapter finalized",
		zap.String("story_id", storyID),
		zap.Int("chapter", chapter),
		zap.Int("word_count", ch.WordCount),
	)
	return ch, nil
}

func phaseOf(state *compose.ChapterComposeState) compose.Phase {
	if state == nil {
		return ""
	}
	return state.CurrentPhase
}
