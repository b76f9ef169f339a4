package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/affinity/pkg/logger"
)

// SessionsHandler handles the session endpoints.
type SessionsHandler struct {
	deps SessionService
	log  logger.Logger
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionService, log logger.Logger) *SessionsHandler {
	return &SessionsHandler{deps: deps, log: log}
}

// HandleCreate handles POST /api/sessions.
func (h *SessionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_session"
	view, err := h.deps.CreateSession(r.Context(), r.UserAgent(), r.RemoteAddr)
	if err != nil {
		writeServiceError(r.Context(), w, h.log, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// HandleGet handles GET /api/sessions/{sessionId}.
func (h *SessionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_session"
	view, err := h.deps.GetSession(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		writeServiceError(r.Context(), w, h.log, op, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleTouch handles PATCH /api/sessions/{sessionId}/activity.
func (h *SessionsHandler) HandleTouch(w http.ResponseWriter, r *http.Request) {
	const op = "api.touch_session"
	view, err := h.deps.TouchSession(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		writeServiceError(r.Context(), w, h.log, op, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleCompletedGames handles GET /api/sessions/{sessionId}/games.
func (h *SessionsHandler) HandleCompletedGames(w http.ResponseWriter, r *http.Request) {
	const op = "api.completed_games"
	games, err := h.deps.CompletedGames(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		writeServiceError(r.Context(), w, h.log, op, err)
		return
	}
	writeJSON(w, http.StatusOK, games)
}

// HandleStats handles GET /api/sessions/{sessionId}/stats.
func (h *SessionsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.session_stats"
	stats, err := h.deps.SessionStats(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		writeServiceError(r.Context(), w, h.log, op, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleHistory handles GET /api/sessions/{sessionId}/history.
func (h *SessionsHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.session_history"
	events, err := h.deps.History(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		writeServiceError(r.Context(), w, h.log, op, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
