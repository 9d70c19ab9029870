package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fablesmithlabs/draftd/internal/compose"
)

// sseHeartbeatInterval keeps proxies from timing out idle streams.
const sseHeartbeatInterval = 30 * time.Second

// sseBufferSize bounds the per-client snapshot queue. The stream only needs
// to converge on the latest state, so overflow drops the oldest entry.
const sseBufferSize = 16

// handleComposeEvents streams compose snapshot changes via Server-Sent
// Events.
//
// Each published snapshot yields a `validation` and a `state` event, plus a
// `phase` event when the phase changed. The latest snapshot is replayed on
// connect. The connection stays open until the client disconnects.
//
// Example:
//
//	GET /api/v1/stories/{story}/chapters/2/compose/events
//
//	event: phase
//	data: "plot_outline"
//
//	event: validation
//	data: {"canAdvance":false,"canRevert":false}
//
//	event: state
//	data: {"currentPhase":"plot_outline",...}
func (s *Server) handleComposeEvents(c echo.Context) error {
	ctrl, err := s.liveController(c)
	if err != nil {
		return err
	}

	// Set SSE headers
	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // Disable nginx buffering
	c.Response().WriteHeader(http.StatusOK)

	// Bridge the synchronous distribution channel into a buffered queue; the
	// subscriber callback must not block the publisher.
	updates := make(chan compose.Snapshot, sseBufferSize)
	cancel := ctrl.Subscribe(func(snap compose.Snapshot) {
		for {
			select {
			case updates <- snap:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer cancel()

	// Heartbeat ticker to prevent proxy timeouts
	ticker := time.NewTicker(sseHeartbeatInterval)
	defer ticker.Stop()

	var lastPhase compose.Phase
	first := true

	for {
		select {
		case snap := <-updates:
			if first || snap.Phase != lastPhase {
				if err := writeSSEEvent(c.Response(), "phase", snap.Phase); err != nil {
					return nil
				}
			}
			if err := writeSSEEvent(c.Response(), "validation", snap.Validation); err != nil {
				return nil
			}
			if err := writeSSEEvent(c.Response(), "state", snap.State); err != nil {
				return nil
			}
			c.Response().Flush()
			lastPhase = snap.Phase
			first = false

		case <-ticker.C:
			// Send heartbeat to keep connection alive
			if _, err := fmt.Fprintf(c.Response(), ": heartbeat\n\n"); err != nil {
				return nil
			}
			c.Response().Flush()

		case <-c.Request().Context().Done():
			// Client disconnected
			return nil
		}
	}
}

// writeSSEEvent writes one named event with a JSON payload.
func writeSSEEvent(w io.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
