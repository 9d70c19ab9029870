package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ===== STORY TOOLS =====

type storyCreateInput struct {
	Title   string `json:"title" jsonschema:"required,Story title"`
	Premise string `json:"premise,omitempty" jsonschema:"One-line premise for the story"`
}

type storyCreateOutput struct {
	ID        string `json:"id" jsonschema:"Story identifier"`
	Title     string `json:"title" jsonschema:"Story title"`
	CreatedAt string `json:"created_at" jsonschema:"Creation time (RFC 3339)"`
}

type storyListInput struct{}

type storyListOutput struct {
	Stories []map[string]interface{} `json:"stories" jsonschema:"Stories on disk"`
	Count   int                      `json:"count" jsonschema:"Number of stories"`
}

type chapterFinalizeInput struct {
	StoryID string `json:"story_id" jsonschema:"required,Story identifier"`
	Chapter int    `json:"chapter" jsonschema:"required,Chapter number (1-based)"`
	Title   string `json:"title,omitempty" jsonschema:"Title for the finalized chapter"`
}

type chapterFinalizeOutput struct {
	Number    int    `json:"number" jsonschema:"Chapter number"`
	Title     string `json:"title" jsonschema:"Chapter title"`
	WordCount int    `json:"word_count" jsonschema:"Word count of the finalized content"`
	Summary   string `json:"summary" jsonschema:"Draft summary carried over from the outline"`
}

func (s *Server) registerStoryTools() {
	// story_create
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "story_create",
		Description: "Create a new story to compose chapters for",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args storyCreateInput) (*mcp.CallToolResult, storyCreateOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "story_create")
		out, err := s.storyCreate(ctx, args)
		s.metrics.DecrementActive(ctx, "story_create")
		s.metrics.RecordInvocation(ctx, "story_create", time.Since(start), err)
		if err != nil {
			return nil, storyCreateOutput{}, err
		}
		return textResult("story created: %s", out.ID), out, nil
	})

	// story_list
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "story_list",
		Description: "List all stories",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args storyListInput) (*mcp.CallToolResult, storyListOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "story_list")
		out, err := s.storyList(ctx)
		s.metrics.DecrementActive(ctx, "story_list")
		s.metrics.RecordInvocation(ctx, "story_list", time.Since(start), err)
		if err != nil {
			return nil, storyListOutput{}, err
		}
		return textResult("found %d stories", out.Count), out, nil
	})

	// chapter_finalize
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "chapter_finalize",
		Description: "Turn a compose workflow in its final-edit phase into an immutable chapter",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args chapterFinalizeInput) (*mcp.CallToolResult, chapterFinalizeOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "chapter_finalize")
		out, err := s.chapterFinalize(ctx, args)
		s.metrics.DecrementActive(ctx, "chapter_finalize")
		s.metrics.RecordInvocation(ctx, "chapter_finalize", time.Since(start), err)
		if err != nil {
			return nil, chapterFinalizeOutput{}, err
		}
		return textResult("chapter %d finalized: %d words", out.Number, out.WordCount), out, nil
	})
}

func (s *Server) storyCreate(ctx context.Context, args storyCreateInput) (storyCreateOutput, error) {
	st, err := s.stories.Create(ctx, args.Title, args.Premise)
	if err != nil {
		return storyCreateOutput{}, fmt.Errorf("story create failed: %w", err)
	}
	return storyCreateOutput{
		ID:        st.ID,
		Title:     st.Title,
		CreatedAt: st.CreatedAt.Format(time.RFC3339),
	}, nil
}

func (s *Server) storyList(ctx context.Context) (storyListOutput, error) {
	stories, err := s.stories.List(ctx)
	if err != nil {
		return storyListOutput{}, fmt.Errorf("story list failed: %w", err)
	}

	results := make([]map[string]interface{}, 0, len(stories))
	for _, st := range stories {
		results = append(results, map[string]interface{}{
			"id":            st.ID,
			"title":         st.Title,
			"premise":       st.Premise,
			"chapter_count": st.ChapterCount,
			"created_at":    st.CreatedAt,
		})
	}
	return storyListOutput{Stories: results, Count: len(results)}, nil
}

func (s *Server) chapterFinalize(ctx context.Context, args chapterFinalizeInput) (chapterFinalizeOutput, error) {
	if err := validateTarget(args.StoryID, args.Chapter); err != nil {
		return chapterFinalizeOutput{}, err
	}

	ch, err := s.stories.FinalizeChapter(ctx, args.StoryID, args.Chapter, args.Title)
	if err != nil {
		return chapterFinalizeOutput{}, err
	}
	return chapterFinalizeOutput{
		Number:    ch.Number,
		Title:     ch.Title,
		WordCount: ch.WordCount,
		Summary:   ch.Summary,
	}, nil
}
