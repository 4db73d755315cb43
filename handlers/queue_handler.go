package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"karaoke-live/internal/status"
	"karaoke-live/services"
)

type QueueHandler struct {
	registry *services.Registry
	queue    *services.QueueService
}

func NewQueueHandler(registry *services.Registry, queue *services.QueueService) *QueueHandler {
	return &QueueHandler{registry: registry, queue: queue}
}

// Enqueue adds a singer to the instance's waitlist.
func (h *QueueHandler) Enqueue(e *core.RequestEvent) error {
	ctx := e.Request.Context()

	inst, err := h.registry.ResolveByID(ctx, e.Request.PathValue("id"))
	if err != nil {
		return apiError(e, err)
	}

	var req struct {
		Singer   string `json:"singer"`
		Song     string `json:"song"`
		VideoRef string `json:"video_ref"`
	}
	if err := e.BindBody(&req); err != nil {
		return e.BadRequestError("Invalid request", err)
	}

	entry, err := h.queue.Enqueue(ctx, inst.ID, req.Singer, req.Song, req.VideoRef)
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusCreated, entry)
}

// List returns the waiting entries in queue order.
func (h *QueueHandler) List(e *core.RequestEvent) error {
	ctx := e.Request.Context()

	inst, err := h.registry.ResolveByID(ctx, e.Request.PathValue("id"))
	if err != nil {
		return apiError(e, err)
	}

	entries, err := h.queue.List(ctx, inst.ID)
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusOK, entries)
}

// Next returns who sings next under the fairness order.
func (h *QueueHandler) Next(e *core.RequestEvent) error {
	ctx := e.Request.Context()

	inst, err := h.registry.ResolveByID(ctx, e.Request.PathValue("id"))
	if err != nil {
		return apiError(e, err)
	}

	entry, err := h.queue.PeekNext(ctx, inst.ID)
	if errors.Is(err, status.ErrNotFound) {
		return e.JSON(http.StatusOK, map[string]any{"next": nil})
	}
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusOK, map[string]any{"next": entry})
}

// NowSinging returns the occupied performing slot, if any.
func (h *QueueHandler) NowSinging(e *core.RequestEvent) error {
	ctx := e.Request.Context()

	inst, err := h.registry.ResolveByID(ctx, e.Request.PathValue("id"))
	if err != nil {
		return apiError(e, err)
	}

	entry, err := h.queue.NowSinging(ctx, inst.ID)
	if errors.Is(err, status.ErrNotFound) {
		return e.JSON(http.StatusOK, map[string]any{"singing": nil})
	}
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusOK, map[string]any{"singing": entry})
}

// Promote moves a waiting entry into the performing slot. Coordinator
// operation.
func (h *QueueHandler) Promote(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apiError(e, status.ErrUnauthorized)
	}

	entry, err := h.queue.Promote(e.Request.Context(), e.Request.PathValue("entryId"))
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusOK, entry)
}

// Complete finishes the performing entry and syncs the singer's other
// queued slots. Coordinator operation.
func (h *QueueHandler) Complete(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apiError(e, status.ErrUnauthorized)
	}

	entry, err := h.queue.Complete(e.Request.Context(), e.Request.PathValue("entryId"))
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusOK, entry)
}

// Remove cancels a non-terminal entry. Coordinator operation.
func (h *QueueHandler) Remove(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apiError(e, status.ErrUnauthorized)
	}

	if err := h.queue.Remove(e.Request.Context(), e.Request.PathValue("entryId")); err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusOK, map[string]string{"message": "entry removed"})
}
