package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fablesmithlabs/draftd/internal/compose"
	"github.com/fablesmithlabs/draftd/internal/conversation"
)

const instrumentationName = "github.com/fablesmithlabs/draftd/internal/assistant"

// ToneReport is the tone assessment of a draft passage.
type ToneReport struct {
	Tone       string  `json:"tone"`
	Confidence float64 `json:"confidence"`
	Notes      string  `json:"notes,omitempty"`
}

// Service runs assistant operations against compose workflows.
type Service struct {
	client   Client
	personas *Personas
	logger   *zap.Logger
	tracer   trace.Tracer
	meter    metric.Meter

	completionsTotal metric.Int64Counter
}

// NewService creates an assistant service.
func NewService(client Client, personas *Personas, logger *zap.Logger) (*Service, error) {
	if client == nil {
		return nil, errors.New("chat client is required")
	}
	if personas == nil {
		personas = defaultPersonas()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		client:   client,
		personas: personas,
		logger:   logger,
		tracer:   otel.Tracer(instrumentationName),
		meter:    otel.Meter(instrumentationName),
	}
	s.initMetrics()
	return s, nil
}

func (s *Service) initMetrics() {
	var err error
	s.completionsTotal, err = s.meter.Int64Counter(
		"draftd.assistant.completions_total",
		metric.WithDescription("Assistant completions labeled by kind and outcome"),
		metric.WithUnit("{completion}"),
	)
	if err != nil {
		s.logger.Warn("failed to create completions counter", zap.Error(err))
	}
}

func (s *Service) recordCompletion(ctx context.Context, kind, outcome string) {
	if s.completionsTotal == nil {
		return
	}
	s.completionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}

// CharacterReply appends the user's message to a conversation branch, asks
// the model to answer in the named character's voice, appends the reply, and
// installs the updated conversation on the controller.
//
// An empty branchID targets the conversation's current branch.
func (s *Service) CharacterReply(ctx context.Context, ctrl *compose.Controller, phase compose.Phase, branchID, character, message string) (*conversation.Message, error) {
	ctx, span := s.tracer.Start(ctx, "assistant.character_reply")
	defer span.End()
	span.SetAttributes(
		attribute.String("phase", string(phase)),
		attribute.String("character", character),
	)

	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	if character == "" {
		return nil, errors.New("character name is required")
	}

	state := ctrl.CurrentState()
	if state == nil {
		return nil, compose.ErrNotInitialized
	}
	rec := state.Phases.Record(phase)
	if rec == nil {
		return nil, fmt.Errorf("%w: %q", compose.ErrUnknownPhase, phase)
	}

	// CurrentState returns a deep clone, so the tree can be mutated freely
	// and handed back through ReplaceConversation.
	tree := rec.Conversation
	nav := state.Navigation.BranchNavigation
	if _, ok := tree.Branch(nav.CurrentBranchID); !ok {
		nav = conversation.NewNavigation(tree)
	}
	if branchID == "" {
		branchID = nav.CurrentBranchID
	}

	userMsg := conversation.NewMessage(conversation.RoleUser, "", message)
	if err := tree.Append(branchID, userMsg); err != nil {
		return nil, err
	}

	persona := s.personas.Character(character)
	prompt := buildReplyPrompt(tree, branchID, phase, character)

	text, err := s.client.Complete(ctx, persona.SystemPrompt, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.recordCompletion(ctx, "character_reply", "model_error")
		return nil, fmt.Errorf("character reply failed: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		s.recordCompletion(ctx, "character_reply", "bad_output")
		return nil, fmt.Errorf("%w: empty reply", ErrBadModelOutput)
	}

	reply := conversation.NewMessage(conversation.RoleCharacter, character, text)
	if err := tree.Append(branchID, reply); err != nil {
		return nil, err
	}

	if nav.CurrentBranchID != branchID {
		nav, err = nav.Navigate(tree, branchID)
		if err != nil {
			return nil, err
		}
	}
	if err := ctrl.ReplaceConversation(ctx, phase, tree, nav); err != nil {
		return nil, err
	}

	s.recordCompletion(ctx, "character_reply", "ok")
	s.logger.Debug("character reply appended",
		zap.String("story_id", ctrl.StoryID()),
		zap.Int("chapter", ctrl.ChapterNumber()),
		zap.String("phase", string(phase)),
		zap.String("character", character),
	)
	return &reply, nil
}

// RateTone assesses the emotional tone of a draft passage.
func (s *Service) RateTone(ctx context.Context, content string) (*ToneReport, error) {
	ctx, span := s.tracer.Start(ctx, "assistant.rate_tone")
	defer span.End()

	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyMessage
	}

	prompt := "Assess the tone of the following draft passage.\n\n" + content
	text, err := s.client.Complete(ctx, s.personas.ToneRater.SystemPrompt, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.recordCompletion(ctx, "rate_tone", "model_error")
		return nil, fmt.Errorf("tone assessment failed: %w", err)
	}

	var report ToneReport
	if err := json.Unmarshal([]byte(extractJSON(text)), &report); err != nil {
		s.logger.Debug("unparseable tone response", zap.String("output", text))
		s.recordCompletion(ctx, "rate_tone", "bad_output")
		return nil, fmt.Errorf("%w: %v", ErrBadModelOutput, err)
	}
	if report.Tone == "" {
		s.recordCompletion(ctx, "rate_tone", "bad_output")
		return nil, fmt.Errorf("%w: missing tone", ErrBadModelOutput)
	}
	if report.Confidence < 0 {
		report.Confidence = 0
	}
	if report.Confidence > 1 {
		report.Confidence = 1
	}

	s.recordCompletion(ctx, "rate_tone", "ok")
	return &report, nil
}

// ReviewDraft asks the editor persona for reviews of the chapter draft and
// installs them on the controller's final-edit phase.
func (s *Service) ReviewDraft(ctx context.Context, ctrl *compose.Controller) ([]compose.Review, error) {
	ctx, span := s.tracer.Start(ctx, "assistant.review_draft")
	defer span.End()

	state := ctrl.CurrentState()
	if state == nil {
		return nil, compose.ErrNotInitialized
	}
	draft := state.Phases.ChapterDetail.ChapterDraft
	if draft == nil || strings.TrimSpace(draft.Content) == "" {
		return nil, errors.New("chapter has no draft content to review")
	}
	span.SetAttributes(
		attribute.String("story_id", ctrl.StoryID()),
		attribute.Int("chapter", ctrl.ChapterNumber()),
		attribute.Int("word_count", draft.WordCount),
	)

	prompt := "Review the following chapter draft.\n\n" + draft.Content
	text, err := s.client.Complete(ctx, s.personas.Editor.SystemPrompt, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.recordCompletion(ctx, "review_draft", "model_error")
		return nil, fmt.Errorf("draft review failed: %w", err)
	}

	var items []struct {
		Category   string `json:"category"`
		Severity   string `json:"severity"`
		Excerpt    string `json:"excerpt"`
		Suggestion string `json:"suggestion"`
	}
	if err := json.Unmarshal([]byte(extractJSON(text)), &items); err != nil {
		s.logger.Debug("unparseable review response", zap.String("output", text))
		s.recordCompletion(ctx, "review_draft", "bad_output")
		return nil, fmt.Errorf("%w: %v", ErrBadModelOutput, err)
	}

	reviews := make([]compose.Review, 0, len(items))
	for _, item := range items {
		if item.Suggestion == "" {
			continue
		}
		reviews = append(reviews, compose.Review{
			ID:         uuid.NewString(),
			Category:   item.Category,
			Severity:   item.Severity,
			Excerpt:    item.Excerpt,
			Suggestion: item.Suggestion,
		})
	}

	if err := ctrl.SetReviews(ctx, reviews); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.recordCompletion(ctx, "review_draft", "ok")
	s.logger.Info("draft reviews installed",
		zap.String("story_id", ctrl.StoryID()),
		zap.Int("chapter", ctrl.ChapterNumber()),
		zap.Int("reviews", len(reviews)),
	)
	return reviews, nil
}

// buildReplyPrompt renders the branch transcript for the model.
func buildReplyPrompt(tree *conversation.Tree, branchID string, phase compose.Phase, character string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The story is in its %s stage.\n\nConversation so far:\n", phase.DisplayName())

	if branch, ok := tree.Branch(branchID); ok {
		for _, msg := range branch.Messages {
			author := msg.Author
			if author == "" {
				author = "User"
			}
			fmt.Fprintf(&b, "%s: %s\n", author, msg.Content)
		}
	}
	fmt.Fprintf(&b, "\nReply in character as %s.", character)
	return b.String()
}

// extractJSON returns the first JSON object or array in s, tolerating
// markdown code fences and prose around it. Returns s unchanged when no
// bracket is found so json.Unmarshal reports the original content.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)

	start := strings.IndexAny(s, "[{")
	if start == -1 {
		return s
	}
	s = s[start:]

	open := s[0]
	closing := byte('}')
	if open == '[' {
		closing = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == closing:
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return s
}
