package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/fablesmithlabs/draftd/internal/story"
)

// handleCreateStory creates a new story record.
func (s *Server) handleCreateStory(c echo.Context) error {
	var req CreateStoryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Title) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title field is required")
	}

	st, err := s.stories.Create(c.Request().Context(), req.Title, req.Premise)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, st)
}

// handleListStories returns all stories.
func (s *Server) handleListStories(c echo.Context) error {
	stories, err := s.stories.List(c.Request().Context())
	if err != nil {
		return mapError(err)
	}
	if stories == nil {
		stories = []*story.Story{}
	}
	return c.JSON(http.StatusOK, stories)
}

// handleGetStory returns one story record.
func (s *Server) handleGetStory(c echo.Context) error {
	st, err := s.stories.Get(c.Request().Context(), c.Param("story"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, st)
}

// handleListChapters returns the finalized chapters of a story.
func (s *Server) handleListChapters(c echo.Context) error {
	storyID := c.Param("story")
	ctx := c.Request().Context()

	if _, err := s.stories.Get(ctx, storyID); err != nil {
		return mapError(err)
	}
	chapters, err := s.stories.ListChapters(ctx, storyID)
	if err != nil {
		return mapError(err)
	}
	if chapters == nil {
		chapters = []*story.Chapter{}
	}
	return c.JSON(http.StatusOK, chapters)
}

// handleGetChapter returns one finalized chapter.
func (s *Server) handleGetChapter(c echo.Context) error {
	n, err := chapterParam(c)
	if err != nil {
		return err
	}

	ch, err := s.stories.GetChapter(c.Request().Context(), c.Param("story"), n)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, ch)
}

// handleFinalizeChapter turns a finished compose workflow into an immutable
// chapter.
func (s *Server) handleFinalizeChapter(c echo.Context) error {
	n, err := chapterParam(c)
	if err != nil {
		return err
	}

	var req FinalizeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ch, err := s.stories.FinalizeChapter(c.Request().Context(), c.Param("story"), n, req.Title)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, ch)
}
