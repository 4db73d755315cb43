package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/core"

	"karaoke-live/internal/status"
	"karaoke-live/services"
)

type RealtimeHandler struct {
	registry   *services.Registry
	dispatcher *services.Dispatcher
}

func NewRealtimeHandler(registry *services.Registry, dispatcher *services.Dispatcher) *RealtimeHandler {
	return &RealtimeHandler{registry: registry, dispatcher: dispatcher}
}

// InstanceEvents streams the instance's row changes over SSE until the
// client disconnects. Each event is a full row snapshot; clients merge
// last-write-wins by row id and timestamp.
func (h *RealtimeHandler) InstanceEvents(e *core.RequestEvent) error {
	inst, err := h.registry.ResolveByID(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		return apiError(e, err)
	}

	sub := h.dispatcher.SubscribeInstance(inst.ID)
	defer sub.Close()

	return h.stream(e, sub)
}

// CoordinatorEvents streams every change of the coordinator's
// instances, keyed by owner id.
func (h *RealtimeHandler) CoordinatorEvents(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apiError(e, status.ErrUnauthorized)
	}

	sub := h.dispatcher.SubscribeOwner(e.Auth.Id)
	defer sub.Close()

	return h.stream(e, sub)
}

func (h *RealtimeHandler) stream(e *core.RequestEvent, sub *services.Subscriber) error {
	w := e.Response
	flusher, ok := w.(http.Flusher)
	if !ok {
		return e.InternalServerError("Streaming unsupported", nil)
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-store")
	header.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	done := e.Request.Context().Done()
	for {
		select {
		case <-done:
			return nil
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return nil
			}
			flusher.Flush()
		case c, ok := <-sub.C():
			if !ok {
				return nil
			}
			data, err := json.Marshal(c)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: change\ndata: %s\n\n", data); err != nil {
				return nil
			}
			flusher.Flush()
		}
	}
}
