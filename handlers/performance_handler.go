package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"karaoke-live/internal/status"
	"karaoke-live/services"
)

type PerformanceHandler struct {
	registry     *services.Registry
	performances *services.PerformanceService
	queue        *services.QueueService
}

func NewPerformanceHandler(registry *services.Registry, performances *services.PerformanceService, queue *services.QueueService) *PerformanceHandler {
	return &PerformanceHandler{registry: registry, performances: performances, queue: queue}
}

// Start opens a performance. With entry_id set, singer and song are
// taken from the waitlist entry; the entry must already hold the
// performing slot. Coordinator operation.
func (h *PerformanceHandler) Start(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apiError(e, status.ErrUnauthorized)
	}
	ctx := e.Request.Context()

	inst, err := h.registry.ResolveByID(ctx, e.Request.PathValue("id"))
	if err != nil {
		return apiError(e, err)
	}

	var req struct {
		EntryID  string `json:"entry_id"`
		Singer   string `json:"singer"`
		Song     string `json:"song"`
		VideoRef string `json:"video_ref"`
	}
	if err := e.BindBody(&req); err != nil {
		return e.BadRequestError("Invalid request", err)
	}

	if req.EntryID != "" {
		entry, err := h.queue.Get(ctx, req.EntryID)
		if err != nil {
			return apiError(e, err)
		}
		if entry.InstanceID != inst.ID {
			return apiError(e, status.ErrNotFound)
		}
		req.Singer = entry.Singer
		if req.Song == "" {
			req.Song = entry.Song
		}
		if req.VideoRef == "" {
			req.VideoRef = entry.VideoRef
		}
	}

	perf, err := h.performances.Start(ctx, inst.ID, req.EntryID, req.Singer, req.Song, req.VideoRef)
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusCreated, perf)
}

// Active returns the instance's active performance, or null.
func (h *PerformanceHandler) Active(e *core.RequestEvent) error {
	ctx := e.Request.Context()

	inst, err := h.registry.ResolveByID(ctx, e.Request.PathValue("id"))
	if err != nil {
		return apiError(e, err)
	}

	perf, err := h.performances.Active(ctx, inst.ID)
	if errors.Is(err, status.ErrNotFound) {
		return e.JSON(http.StatusOK, map[string]any{"active": nil})
	}
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusOK, map[string]any{"active": perf})
}

// CastVote records the calling device's score for the performance.
func (h *PerformanceHandler) CastVote(e *core.RequestEvent) error {
	ctx := e.Request.Context()

	perf, err := h.performances.Get(ctx, e.Request.PathValue("performanceId"))
	if err != nil {
		return apiError(e, err)
	}
	// Tenant gate: a vote against a paused or expired instance reads
	// as if the performance does not exist.
	if _, err := h.registry.ResolveByID(ctx, perf.InstanceID); err != nil {
		return apiError(e, err)
	}

	var req struct {
		Score int `json:"score"`
	}
	if err := e.BindBody(&req); err != nil {
		return e.BadRequestError("Invalid request", err)
	}

	updated, err := h.performances.CastVote(ctx, perf.ID, deviceID(e), req.Score)
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusOK, updated)
}

// Votes lists the raw votes of a performance. Coordinator operation;
// the aggregate on the performance row is what participants see.
func (h *PerformanceHandler) Votes(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apiError(e, status.ErrUnauthorized)
	}

	votes, err := h.performances.Votes(e.Request.Context(), e.Request.PathValue("performanceId"))
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusOK, map[string]any{"votes": votes})
}

// End closes voting on the performance. Coordinator operation.
func (h *PerformanceHandler) End(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apiError(e, status.ErrUnauthorized)
	}

	perf, err := h.performances.End(e.Request.Context(), e.Request.PathValue("performanceId"))
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusOK, perf)
}

// ChangeVideo swaps the backing video mid-performance. Coordinator
// operation.
func (h *PerformanceHandler) ChangeVideo(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apiError(e, status.ErrUnauthorized)
	}

	var req struct {
		VideoRef string `json:"video_ref"`
	}
	if err := e.BindBody(&req); err != nil {
		return e.BadRequestError("Invalid request", err)
	}

	perf, err := h.performances.ChangeVideo(e.Request.Context(), e.Request.PathValue("performanceId"), req.VideoRef)
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusOK, perf)
}
