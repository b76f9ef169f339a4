package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/affinity/pkg/logger"
)

// AffinityHandler handles the affinity and planet endpoints.
type AffinityHandler struct {
	deps AffinityService
	log  logger.Logger
}

// NewAffinityHandler creates a new affinity handler.
func NewAffinityHandler(deps AffinityService, log logger.Logger) *AffinityHandler {
	return &AffinityHandler{deps: deps, log: log}
}

// HandleRecompute handles POST /api/affinity/{sessionId}/recompute.
func (h *AffinityHandler) HandleRecompute(w http.ResponseWriter, r *http.Request) {
	const op = "api.recompute_affinity"
	res, err := h.deps.ComputeAffinity(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		writeServiceError(r.Context(), w, h.log, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleLatest handles GET /api/affinity/{sessionId}.
func (h *AffinityHandler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	const op = "api.latest_affinity"
	res, err := h.deps.LatestSnapshot(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		writeServiceError(r.Context(), w, h.log, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleSuggestedPlanet handles GET /api/affinity/{sessionId}/suggested-planet.
func (h *AffinityHandler) HandleSuggestedPlanet(w http.ResponseWriter, r *http.Request) {
	const op = "api.suggested_planet"
	res, err := h.deps.SuggestedPlanet(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		writeServiceError(r.Context(), w, h.log, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleInsights handles GET /api/affinity/{sessionId}/insights.
func (h *AffinityHandler) HandleInsights(w http.ResponseWriter, r *http.Request) {
	const op = "api.insights"
	res, err := h.deps.Insights(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		writeServiceError(r.Context(), w, h.log, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandlePlanets handles GET /api/planets.
func (h *AffinityHandler) HandlePlanets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Planets())
}
