// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	json "github.com/goccy/go-json"

	"github.com/okian/affinity/internal/domain/types"
	"github.com/okian/affinity/pkg/logger"
)

// SessionService covers the session endpoints.
type SessionService interface {
	CreateSession(ctx context.Context, userAgent, remoteIP string) (types.SessionView, error)
	GetSession(ctx context.Context, sessionID string) (types.SessionView, error)
	TouchSession(ctx context.Context, sessionID string) (types.SessionView, error)
	CompletedGames(ctx context.Context, sessionID string) ([]types.CompletedGame, error)
	SessionStats(ctx context.Context, sessionID string) (types.SessionStats, error)
	History(ctx context.Context, sessionID string) ([]types.EventView, error)
}

// GameService covers the catalog and event endpoints.
type GameService interface {
	Games() []types.GameView
	Game(gameID string) (types.GameView, error)
	StartGame(ctx context.Context, gameID, sessionID string) (types.EventAck, error)
	CompleteGame(ctx context.Context, in types.Completion) (types.EventAck, error)
	RecordEvent(ctx context.Context, in types.RawEvent) (types.EventAck, error)
}

// AffinityService covers the affinity and planet endpoints.
type AffinityService interface {
	ComputeAffinity(ctx context.Context, sessionID string) (types.AffinityResult, error)
	LatestSnapshot(ctx context.Context, sessionID string) (types.AffinityResult, error)
	SuggestedPlanet(ctx context.Context, sessionID string) (types.SuggestedPlanet, error)
	Insights(ctx context.Context, sessionID string) (types.Insights, error)
	Planets() []types.PlanetView
}

// Dependencies required by HTTP handlers.
type Dependencies interface {
	SessionService
	GameService
	AffinityService
	StatsProvider
	Pinger
}

const (
	defaultRateLimitRequests = 100
	defaultRateLimitWindow   = 15 * time.Minute
	defaultRequestTimeout    = 30 * time.Second
	maxBodyBytes             = 1 << 20
)

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	sessionsHandler *SessionsHandler
	gamesHandler    *GamesHandler
	affinityHandler *AffinityHandler

	corsOrigins       []string
	rateLimitRequests int
	rateLimitWindow   time.Duration
	requestTimeout    time.Duration
	logger            logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		corsOrigins:       []string{"http://localhost:3000"},
		rateLimitRequests: defaultRateLimitRequests,
		rateLimitWindow:   defaultRateLimitWindow,
		requestTimeout:    defaultRequestTimeout,
		logger:            logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.healthHandler = NewHealthHandler(deps)
	s.statsHandler = NewStatsHandler(deps)
	s.sessionsHandler = NewSessionsHandler(deps, s.logger)
	s.gamesHandler = NewGamesHandler(deps, s.logger)
	s.affinityHandler = NewAffinityHandler(deps, s.logger)
	return s
}

// Router builds the chi router with every route attached. Callers may
// mount more routes on the result.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(requestContext)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(MetricsMiddleware)

	r.Get("/metrics", s.healthHandler.HandleMetrics)

	r.Route("/api", func(r chi.Router) {
		r.Use(httprate.Limit(s.rateLimitRequests, s.rateLimitWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(handleRateLimited),
		))
		r.Use(chimiddleware.Timeout(s.requestTimeout))

		r.Get("/health", s.healthHandler.HandleHealth)
		r.Get("/stats", s.statsHandler.HandleStats)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.sessionsHandler.HandleCreate)
			r.Route("/{sessionId}", func(r chi.Router) {
				r.Get("/", s.sessionsHandler.HandleGet)
				r.Patch("/activity", s.sessionsHandler.HandleTouch)
				r.Get("/games", s.sessionsHandler.HandleCompletedGames)
				r.Get("/stats", s.sessionsHandler.HandleStats)
				r.Get("/history", s.sessionsHandler.HandleHistory)
			})
		})

		r.Route("/games", func(r chi.Router) {
			r.Get("/", s.gamesHandler.HandleList)
			r.Post("/events", s.gamesHandler.HandleEvent)
			r.Get("/{gameId}", s.gamesHandler.HandleGet)
			r.Post("/{gameId}/start", s.gamesHandler.HandleStart)
			r.Post("/{gameId}/complete", s.gamesHandler.HandleComplete)
		})

		r.Route("/affinity/{sessionId}", func(r chi.Router) {
			r.Get("/", s.affinityHandler.HandleLatest)
			r.Post("/recompute", s.affinityHandler.HandleRecompute)
			r.Get("/suggested-planet", s.affinityHandler.HandleSuggestedPlanet)
			r.Get("/insights", s.affinityHandler.HandleInsights)
		})

		r.Get("/planets", s.affinityHandler.HandlePlanets)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	})
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func handleRateLimited(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusTooManyRequests, "rate_limited", ErrRateLimited)
}
