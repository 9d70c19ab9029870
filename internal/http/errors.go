package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fablesmithlabs/draftd/internal/assistant"
	"github.com/fablesmithlabs/draftd/internal/compose"
	"github.com/fablesmithlabs/draftd/internal/store"
	"github.com/fablesmithlabs/draftd/internal/story"
)

// mapError converts domain errors into HTTP status codes. Persistence
// failures surface as 502 because the daemon could not get the state to
// durable storage; lifecycle conflicts (uninitialized workflow, finalizing
// too early) surface as 409; unknown resources as 404.
func mapError(err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	switch {
	case errors.Is(err, compose.ErrSaveFailed):
		return echo.NewHTTPError(http.StatusBadGateway, "failed to persist compose state")
	case errors.Is(err, compose.ErrNotInitialized):
		return echo.NewHTTPError(http.StatusConflict, "compose workflow is not initialized")
	case errors.Is(err, story.ErrNotFinalPhase):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, story.ErrStoryNotFound),
		errors.Is(err, story.ErrChapterNotFound),
		errors.Is(err, compose.ErrStateNotFound),
		errors.Is(err, compose.ErrUnknownReview):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, compose.ErrUnknownPhase),
		errors.Is(err, store.ErrInvalidID),
		errors.Is(err, store.ErrPathTraversal),
		errors.Is(err, assistant.ErrEmptyMessage):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, assistant.ErrBadModelOutput):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return err
}
