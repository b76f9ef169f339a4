package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/okian/affinity/internal/domain/dedupe"
	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/internal/domain/types"
	"github.com/okian/affinity/pkg/logger"
	"github.com/okian/affinity/pkg/metrics"
)

// CreateSession starts a new anonymous session.
func (s *Service) CreateSession(ctx context.Context, userAgent, remoteIP string) (types.SessionView, error) {
	now := s.clock()
	sess := &model.Session{
		ID:           model.NewSessionID(),
		CreatedAt:    now,
		LastActivity: now,
		UserAgent:    userAgent,
		IPAddress:    remoteIP,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return types.SessionView{}, fmt.Errorf("create session: %w", err)
	}

	metrics.RecordSessionCreated()
	s.logger.Debug(ctx, "session created", logger.String("session_id", sess.ID))
	return types.NewSessionView(sess), nil
}

// GetSession returns a session with its raw activity counters.
func (s *Service) GetSession(ctx context.Context, sessionID string) (types.SessionView, error) {
	id, err := model.ParseSessionID(sessionID)
	if err != nil {
		return types.SessionView{}, err
	}
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return types.SessionView{}, err
	}
	return types.NewSessionView(sess), nil
}

// TouchSession refreshes the last activity of a session.
func (s *Service) TouchSession(ctx context.Context, sessionID string) (types.SessionView, error) {
	id, err := model.ParseSessionID(sessionID)
	if err != nil {
		return types.SessionView{}, err
	}
	if err := s.store.TouchSession(ctx, id, s.clock()); err != nil {
		return types.SessionView{}, err
	}
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return types.SessionView{}, err
	}
	return types.NewSessionView(sess), nil
}

// CompletedGames lists the final completion of every played game, newest first.
func (s *Service) CompletedGames(ctx context.Context, sessionID string) ([]types.CompletedGame, error) {
	id, final, err := s.finalCompletions(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	out := make([]types.CompletedGame, 0, len(final))
	for i := range final {
		e := &final[i]
		g, err := s.catalog.Game(e.GameID)
		if err != nil {
			s.logger.Warn(ctx, "completion for a game outside the catalog",
				logger.String("session_id", id), logger.Error(err))
			continue
		}
		out = append(out, types.CompletedGame{
			GameID:           e.GameID,
			Name:             g.Name,
			Domain:           g.Domain,
			Score:            e.Score,
			TimeSpentSeconds: e.TimeSpentSeconds,
			HintsUsed:        e.HintsUsed,
			CompletedAt:      e.CreatedAt,
		})
	}
	slices.SortStableFunc(out, func(a, b types.CompletedGame) int {
		return b.CompletedAt.Compare(a.CompletedAt)
	})
	return out, nil
}

// SessionStats combines the raw counters with per-domain statistics over
// the final completions.
func (s *Service) SessionStats(ctx context.Context, sessionID string) (types.SessionStats, error) {
	id, err := model.ParseSessionID(sessionID)
	if err != nil {
		return types.SessionStats{}, err
	}
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return types.SessionStats{}, err
	}
	_, final, err := s.finalCompletions(ctx, id)
	if err != nil {
		return types.SessionStats{}, err
	}

	var games, scores, times [model.DomainCount]int
	for i := range final {
		d, err := s.catalog.DomainOf(final[i].GameID)
		if err != nil {
			continue
		}
		games[d.Index()]++
		scores[d.Index()] += final[i].Score
		times[d.Index()] += final[i].TimeSpentSeconds
	}

	stats := types.SessionStats{
		SessionID:      id,
		CompletedGames: sess.CompletedGames,
		TotalScore:     sess.TotalScore,
		UniqueGames:    len(final),
		Domains:        make([]types.DomainStats, 0, model.DomainCount),
	}
	for _, d := range model.Domains {
		n := games[d.Index()]
		if n == 0 {
			continue
		}
		stats.Domains = append(stats.Domains, types.DomainStats{
			Domain:           d,
			GamesPlayed:      n,
			AverageScore:     float64(scores[d.Index()]) / float64(n),
			AverageTimeSpent: float64(times[d.Index()]) / float64(n),
		})
	}
	return stats, nil
}

// History returns every raw event of a session, newest first.
func (s *Service) History(ctx context.Context, sessionID string) ([]types.EventView, error) {
	id, err := model.ParseSessionID(sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.requireSession(ctx, id); err != nil {
		return nil, err
	}
	events, err := s.store.History(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	out := make([]types.EventView, 0, len(events))
	for i := range events {
		out = append(out, types.NewEventView(&events[i]))
	}
	return out, nil
}

func (s *Service) finalCompletions(ctx context.Context, sessionID string) (string, []model.GameEvent, error) {
	id, err := model.ParseSessionID(sessionID)
	if err != nil {
		return "", nil, err
	}
	if err := s.requireSession(ctx, id); err != nil {
		return "", nil, err
	}
	events, err := s.store.QueryCompletedEvents(ctx, id)
	if err != nil {
		return "", nil, fmt.Errorf("query completions: %w", err)
	}
	return id, dedupe.LatestPerGame(events), nil
}
