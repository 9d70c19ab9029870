package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/fablesmithlabs/draftd/internal/compose"
)

// handleCharacterReply asks a character to answer the user's message within a
// phase conversation.
func (s *Server) handleCharacterReply(c echo.Context) error {
	if s.assistants == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "assistant backend is not configured")
	}
	ctrl, err := s.liveController(c)
	if err != nil {
		return err
	}

	var req CharacterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message field is required")
	}
	if strings.TrimSpace(req.Character) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "character field is required")
	}

	phase, ok := ctrl.CurrentPhase()
	if !ok {
		return mapError(compose.ErrNotInitialized)
	}
	if req.Phase != "" {
		if phase, err = compose.ParsePhase(req.Phase); err != nil {
			return mapError(err)
		}
	}

	reply, err := s.assistants.CharacterReply(c.Request().Context(), ctrl, phase, req.BranchID, req.Character, req.Message)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, reply)
}

// handleRateTone assesses the emotional tone of a passage, defaulting to the
// current chapter draft.
func (s *Server) handleRateTone(c echo.Context) error {
	if s.assistants == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "assistant backend is not configured")
	}
	ctrl, err := s.liveController(c)
	if err != nil {
		return err
	}

	var req ToneRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	content := req.Content
	if strings.TrimSpace(content) == "" {
		state := ctrl.CurrentState()
		if state == nil {
			return mapError(compose.ErrNotInitialized)
		}
		if draft := state.Phases.ChapterDetail.ChapterDraft; draft != nil {
			content = draft.Content
		}
	}
	if strings.TrimSpace(content) == "" {
		return echo.NewHTTPError(http.StatusConflict, "chapter has no draft content to assess")
	}

	report, err := s.assistants.RateTone(c.Request().Context(), content)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, report)
}

// handleReviewDraft generates editorial reviews for the chapter draft and
// installs them on the final-edit phase.
func (s *Server) handleReviewDraft(c echo.Context) error {
	if s.assistants == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "assistant backend is not configured")
	}
	ctrl, err := s.liveController(c)
	if err != nil {
		return err
	}

	state := ctrl.CurrentState()
	if state == nil {
		return mapError(compose.ErrNotInitialized)
	}
	if draft := state.Phases.ChapterDetail.ChapterDraft; draft == nil || strings.TrimSpace(draft.Content) == "" {
		return echo.NewHTTPError(http.StatusConflict, "chapter has no draft content to review")
	}

	reviews, err := s.assistants.ReviewDraft(c.Request().Context(), ctrl)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, ReviewsResponse{Reviews: reviews})
}
