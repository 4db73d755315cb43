package handlers

import (
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/core"

	"karaoke-live/internal/status"
	"karaoke-live/services"
)

type InstanceHandler struct {
	registry *services.Registry
	codeLen  int
}

func NewInstanceHandler(registry *services.Registry, codeLen int) *InstanceHandler {
	return &InstanceHandler{registry: registry, codeLen: codeLen}
}

// Resolve maps a selector, either a join code or an owning
// coordinator id, to an instance. Paused, closed and expired
// instances read as 404 so their existence is not leaked.
func (h *InstanceHandler) Resolve(e *core.RequestEvent) error {
	ctx := e.Request.Context()
	query := e.Request.URL.Query()

	if owner := query.Get("owner"); owner != "" {
		inst, err := h.registry.ResolveByOwner(ctx, owner)
		if err != nil {
			return apiError(e, err)
		}
		return e.JSON(http.StatusOK, inst)
	}

	inst, err := h.registry.ResolveByCode(ctx, query.Get("code"))
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusOK, inst)
}

// Mine returns the authenticated coordinator's instance regardless of
// status, so a paused event can still be managed.
func (h *InstanceHandler) Mine(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apiError(e, status.ErrUnauthorized)
	}

	inst, err := h.registry.Owned(e.Request.Context(), e.Auth.Id)
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusOK, inst)
}

func (h *InstanceHandler) Create(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apiError(e, status.ErrUnauthorized)
	}

	var req struct {
		Name      string `json:"name"`
		ExpiresAt string `json:"expires_at"`
	}
	if err := e.BindBody(&req); err != nil {
		return apiError(e, status.ErrInvalid)
	}

	var expiresAt time.Time
	if req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			return apiError(e, status.ErrInvalid)
		}
		expiresAt = t
	}

	inst, err := h.registry.Create(e.Request.Context(), req.Name, e.Auth.Id, expiresAt, h.codeLen)
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusCreated, inst)
}

// SetStatus drives the lifecycle; only the owner or a superuser may
// flip it.
func (h *InstanceHandler) SetStatus(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apiError(e, status.ErrUnauthorized)
	}

	id := e.Request.PathValue("id")
	inst, err := h.registry.Get(e.Request.Context(), id)
	if err != nil {
		return apiError(e, err)
	}
	if inst.Owner != e.Auth.Id && !e.Auth.IsSuperuser() {
		return apiError(e, status.ErrUnauthorized)
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := e.BindBody(&req); err != nil {
		return apiError(e, status.ErrInvalid)
	}

	updated, err := h.registry.SetStatus(e.Request.Context(), id, req.Status)
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusOK, updated)
}
