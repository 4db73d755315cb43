package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"karaoke-live/services"
)

type RankingHandler struct {
	registry *services.Registry
	ranking  *services.RankingService
}

func NewRankingHandler(registry *services.Registry, ranking *services.RankingService) *RankingHandler {
	return &RankingHandler{registry: registry, ranking: ranking}
}

// Get returns the instance's ranked performances. scope=ended limits
// the board to closed performances; the default includes the one still
// in progress.
func (h *RankingHandler) Get(e *core.RequestEvent) error {
	ctx := e.Request.Context()

	inst, err := h.registry.ResolveByID(ctx, e.Request.PathValue("id"))
	if err != nil {
		return apiError(e, err)
	}

	endedOnly := e.Request.URL.Query().Get("scope") == "ended"

	ranked, err := h.ranking.Ranking(ctx, inst.ID, endedOnly)
	if err != nil {
		return apiError(e, err)
	}
	return e.JSON(http.StatusOK, ranked)
}
