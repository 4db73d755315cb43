package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"karaoke-live/internal/status"
	"karaoke-live/services"
)

type ParticipantHandler struct {
	registry *services.Registry
	identity *services.IdentityService
	gate     *services.RedisGate
}

func NewParticipantHandler(registry *services.Registry, identity *services.IdentityService, gate *services.RedisGate) *ParticipantHandler {
	return &ParticipantHandler{registry: registry, identity: identity, gate: gate}
}

// Register creates the device's write-once identity in the instance.
func (h *ParticipantHandler) Register(e *core.RequestEvent) error {
	ctx := e.Request.Context()

	inst, err := h.registry.ResolveByID(ctx, e.Request.PathValue("id"))
	if err != nil {
		return apiError(e, err)
	}

	var req struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
		Email string `json:"email"`
	}
	if err := e.BindBody(&req); err != nil {
		return e.BadRequestError("Invalid request", err)
	}

	p, err := h.identity.Register(ctx, inst.ID, deviceID(e), req.Name, req.Phone, req.Email)
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusCreated, p)
}

// SetRegistration opens or closes registration for the instance.
// Coordinator operation, owner or superuser only.
func (h *ParticipantHandler) SetRegistration(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apiError(e, status.ErrUnauthorized)
	}
	ctx := e.Request.Context()

	id := e.Request.PathValue("id")
	inst, err := h.registry.Get(ctx, id)
	if err != nil {
		return apiError(e, err)
	}
	if inst.Owner != e.Auth.Id && !e.Auth.IsSuperuser() {
		return apiError(e, status.ErrUnauthorized)
	}

	var req struct {
		Open bool `json:"open"`
	}
	if err := e.BindBody(&req); err != nil {
		return e.BadRequestError("Invalid request", err)
	}

	if err := h.gate.SetRegistrationOpen(ctx, id, req.Open); err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusOK, map[string]any{"open": req.Open})
}

// Me returns the participant bound to the calling device, if any.
func (h *ParticipantHandler) Me(e *core.RequestEvent) error {
	ctx := e.Request.Context()

	inst, err := h.registry.ResolveByID(ctx, e.Request.PathValue("id"))
	if err != nil {
		return apiError(e, err)
	}

	p, err := h.identity.Lookup(ctx, inst.ID, deviceID(e))
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusOK, p)
}
