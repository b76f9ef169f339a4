package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/affinity/internal/domain/types"
	"github.com/okian/affinity/pkg/logger"
)

// GamesHandler handles the catalog and game event endpoints.
type GamesHandler struct {
	deps GameService
	log  logger.Logger
}

// NewGamesHandler creates a new games handler.
func NewGamesHandler(deps GameService, log logger.Logger) *GamesHandler {
	return &GamesHandler{deps: deps, log: log}
}

// HandleList handles GET /api/games.
func (h *GamesHandler) HandleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Games())
}

// HandleGet handles GET /api/games/{gameId}.
func (h *GamesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_game"
	g, err := h.deps.Game(chi.URLParam(r, "gameId"))
	if err != nil {
		writeServiceError(r.Context(), w, h.log, op, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// HandleStart handles POST /api/games/{gameId}/start.
func (h *GamesHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	const op = "api.start_game"
	var req sessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := validate.Struct(req); err != nil {
		writeServiceError(r.Context(), w, h.log, op, err)
		return
	}

	a, err := h.deps.StartGame(r.Context(), chi.URLParam(r, "gameId"), req.SessionID)
	if err != nil {
		writeServiceError(r.Context(), w, h.log, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// HandleComplete handles POST /api/games/{gameId}/complete. A replayed
// event_id is answered with 200 and duplicate set.
func (h *GamesHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	const op = "api.complete_game"
	var req completeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := validate.Struct(req); err != nil {
		writeServiceError(r.Context(), w, h.log, op, err)
		return
	}

	a, err := h.deps.CompleteGame(r.Context(), types.Completion{
		SessionID:        req.SessionID,
		GameID:           chi.URLParam(r, "gameId"),
		Score:            *req.Score,
		TimeSpentSeconds: *req.TimeSpent,
		HintsUsed:        req.HintsUsed,
		Choices:          req.UserChoices,
		ClientEventID:    req.EventID,
	})
	if err != nil {
		writeServiceError(r.Context(), w, h.log, op, err)
		return
	}
	if a.Duplicate {
		writeJSON(w, http.StatusOK, a)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// HandleEvent handles POST /api/games/events.
func (h *GamesHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.record_event"
	var req eventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := validate.Struct(req); err != nil {
		writeServiceError(r.Context(), w, h.log, op, err)
		return
	}

	a, err := h.deps.RecordEvent(r.Context(), types.RawEvent{
		SessionID: req.SessionID,
		GameID:    req.GameID,
		Type:      req.EventType,
		Data:      req.EventData,
	})
	if err != nil {
		writeServiceError(r.Context(), w, h.log, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}
