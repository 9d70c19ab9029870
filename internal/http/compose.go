package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/fablesmithlabs/draftd/internal/compose"
)

// chapterParam parses the :n route parameter.
func chapterParam(c echo.Context) (int, error) {
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil || n < 1 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "chapter number must be a positive integer")
	}
	return n, nil
}

// liveController resolves the open compose controller for the request's story
// chapter. Acting on a workflow that has not been opened is a lifecycle
// conflict, not a missing resource.
func (s *Server) liveController(c echo.Context) (*compose.Controller, error) {
	n, err := chapterParam(c)
	if err != nil {
		return nil, err
	}
	ctrl, ok := s.manager.Get(c.Param("story"), n)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusConflict, "compose workflow is not open")
	}
	return ctrl, nil
}

// snapshotJSON answers with the controller's latest published snapshot.
func snapshotJSON(c echo.Context, ctrl *compose.Controller) error {
	snap, ok := ctrl.Latest()
	if !ok {
		return echo.NewHTTPError(http.StatusConflict, "compose workflow is not initialized")
	}
	return c.JSON(http.StatusOK, snap)
}

// handleOpenCompose opens or resumes the compose workflow for a chapter.
func (s *Server) handleOpenCompose(c echo.Context) error {
	storyID := c.Param("story")
	n, err := chapterParam(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	if _, err := s.stories.Get(ctx, storyID); err != nil {
		return mapError(err)
	}

	ctrl, err := s.manager.Open(ctx, storyID, n)
	if err != nil {
		return mapError(err)
	}
	return snapshotJSON(c, ctrl)
}

// handleGetCompose returns the current snapshot without opening a workflow.
func (s *Server) handleGetCompose(c echo.Context) error {
	n, err := chapterParam(c)
	if err != nil {
		return err
	}

	state, err := s.manager.Peek(c.Request().Context(), c.Param("story"), n)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, compose.Snapshot{
		Phase:      state.CurrentPhase,
		Validation: compose.Evaluate(state),
		State:      state,
	})
}

// handleAdvance attempts the forward phase transition.
func (s *Server) handleAdvance(c echo.Context) error {
	ctrl, err := s.liveController(c)
	if err != nil {
		return err
	}

	ok, err := ctrl.AdvanceToNext(c.Request().Context())
	if err != nil {
		return mapError(err)
	}

	snap, _ := ctrl.Latest()
	if !ok {
		return c.JSON(http.StatusConflict, RejectionResponse{
			Error:      "validation gate rejected the advance",
			Phase:      snap.Phase,
			Validation: snap.Validation,
		})
	}
	return c.JSON(http.StatusOK, TransitionResponse{
		Transitioned: true,
		Phase:        snap.Phase,
		Validation:   snap.Validation,
	})
}

// handleRevert attempts the backward phase transition.
func (s *Server) handleRevert(c echo.Context) error {
	ctrl, err := s.liveController(c)
	if err != nil {
		return err
	}

	ok, err := ctrl.RevertToPrevious(c.Request().Context())
	if err != nil {
		return mapError(err)
	}

	snap, _ := ctrl.Latest()
	if !ok {
		return c.JSON(http.StatusConflict, RejectionResponse{
			Error:      "no earlier phase to revert to",
			Phase:      snap.Phase,
			Validation: snap.Validation,
		})
	}
	return c.JSON(http.StatusOK, TransitionResponse{
		Transitioned: true,
		Phase:        snap.Phase,
		Validation:   snap.Validation,
	})
}

// handleUpdateProgress merges a partial progress update into one phase.
func (s *Server) handleUpdateProgress(c echo.Context) error {
	ctrl, err := s.liveController(c)
	if err != nil {
		return err
	}

	var req ProgressRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	phase, err := compose.ParsePhase(req.Phase)
	if err != nil {
		return mapError(err)
	}

	update := compose.ProgressUpdate{
		CompletedItems: req.CompletedItems,
		TotalItems:     req.TotalItems,
	}
	if err := ctrl.UpdatePhaseProgress(c.Request().Context(), phase, update); err != nil {
		return mapError(err)
	}
	return snapshotJSON(c, ctrl)
}

// handleSetOutline replaces the plot-outline payload.
func (s *Server) handleSetOutline(c echo.Context) error {
	ctrl, err := s.liveController(c)
	if err != nil {
		return err
	}

	var req OutlineRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := ctrl.SetOutline(c.Request().Context(), req.Structure, req.DraftSummary); err != nil {
		return mapError(err)
	}
	return snapshotJSON(c, ctrl)
}

// handleSetDraft replaces the chapter draft content.
func (s *Server) handleSetDraft(c echo.Context) error {
	ctrl, err := s.liveController(c)
	if err != nil {
		return err
	}

	var req DraftRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := ctrl.SetDraft(c.Request().Context(), req.Content); err != nil {
		return mapError(err)
	}
	return snapshotJSON(c, ctrl)
}

// handleSelectReview marks an available editorial review as selected.
func (s *Server) handleSelectReview(c echo.Context) error {
	ctrl, err := s.liveController(c)
	if err != nil {
		return err
	}

	if err := ctrl.SelectReview(c.Request().Context(), c.Param("id")); err != nil {
		return mapError(err)
	}
	return snapshotJSON(c, ctrl)
}

// handleApplyReview marks a selected editorial review as applied.
func (s *Server) handleApplyReview(c echo.Context) error {
	ctrl, err := s.liveController(c)
	if err != nil {
		return err
	}

	if err := ctrl.ApplyReview(c.Request().Context(), c.Param("id")); err != nil {
		return mapError(err)
	}
	return snapshotJSON(c, ctrl)
}
