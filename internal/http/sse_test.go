package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// streamEvents connects to an SSE route, optionally mutates the workflow
// while the stream is up, and returns everything written before the deadline.
func streamEvents(t *testing.T, env *testEnv, path string, wait time.Duration, mutate func()) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, path, nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		env.server.echo.ServeHTTP(rec, req)
	}()

	if mutate != nil {
		time.Sleep(wait / 4)
		mutate()
	}

	select {
	case <-done:
	case <-time.After(wait + 2*time.Second):
		t.Fatal("SSE handler did not stop after its context expired")
	}
	return rec.Body.String()
}

func TestComposeEvents(t *testing.T) {
	t.Run("replays the latest snapshot on connect", func(t *testing.T) {
		env := setupTestServer(t, nil)
		id := env.createStory(t)
		base := openCompose(t, env, id)

		rec := env.do(t, http.MethodPut, base+"/outline", OutlineRequest{
			Structure:    []string{"hook", "turn", "cliffhanger"},
			DraftSummary: "The keeper finds the first note.",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		body := streamEvents(t, env, base+"/events", 200*time.Millisecond, nil)

		assert.Contains(t, body, "event: phase")
		assert.Contains(t, body, "event: validation")
		assert.Contains(t, body, "event: state")
		assert.Contains(t, body, "plot_outline")
		assert.Contains(t, body, "cliffhanger")
	})

	t.Run("streams updates published while connected", func(t *testing.T) {
		env := setupTestServer(t, nil)
		id := env.createStory(t)
		base := openCompose(t, env, id)

		body := streamEvents(t, env, base+"/events", 400*time.Millisecond, func() {
			ctrl, ok := env.manager.Get(id, 1)
			require.True(t, ok)
			require.NoError(t, ctrl.SetOutline(context.Background(), []string{"hook"}, "The first note changes everything."))
		})

		assert.Contains(t, body, "The first note changes everything.")
	})

	t.Run("sets stream headers", func(t *testing.T) {
		env := setupTestServer(t, nil)
		id := env.createStory(t)
		base := openCompose(t, env, id)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		req := httptest.NewRequest(http.MethodGet, base+"/events", nil).WithContext(ctx)
		rec := httptest.NewRecorder()
		env.server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
		assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
		assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	})

	t.Run("requires an open workflow", func(t *testing.T) {
		env := setupTestServer(t, nil)
		id := env.createStory(t)

		rec := env.do(t, http.MethodGet, "/api/v1/stories/"+id+"/chapters/1/compose/events", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}
