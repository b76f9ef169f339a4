package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/affinity/internal/domain/dedupe"
	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/internal/domain/planet"
	"github.com/okian/affinity/internal/domain/scoring"
	"github.com/okian/affinity/internal/domain/types"
	"github.com/okian/affinity/pkg/logger"
	"github.com/okian/affinity/pkg/metrics"
)

// ComputeAffinity recomputes the affinity of a session from its event log,
// replaces the stored snapshot and returns the composed result.
func (s *Service) ComputeAffinity(ctx context.Context, sessionID string) (types.AffinityResult, error) {
	start := time.Now()

	id, err := model.ParseSessionID(sessionID)
	if err != nil {
		return types.AffinityResult{}, err
	}

	result, err := s.aggregate(ctx, id)
	if err != nil {
		metrics.RecordAffinityError(errorReason(err))
		return types.AffinityResult{}, err
	}

	rec, err := planet.Recommend(result.Dominant)
	if err != nil {
		s.logger.Error(ctx, "no planet for dominant domain",
			logger.String("session_id", id), logger.Error(err))
		metrics.RecordUnknownDomain()
		metrics.RecordAffinityError("unknown_domain")
		return types.AffinityResult{}, err
	}

	snap := model.Snapshot{
		SessionID:          id,
		Scores:             result.Scores,
		Dominant:           result.Dominant,
		Confidence:         result.Confidence,
		ConfidenceFraction: result.ConfidenceFraction,
		TotalGames:         result.TotalGames,
		CalculatedAt:       s.clock(),
	}
	if err := s.store.UpsertSnapshot(ctx, &snap); err != nil {
		metrics.RecordAffinityError(errorReason(err))
		return types.AffinityResult{}, fmt.Errorf("compute affinity: %w", err)
	}
	metrics.RecordSnapshotUpsert()

	if snap.HasDominant() {
		metrics.RecordDominantDomain(snap.Dominant.String())
	}
	metrics.RecordAffinityComputation(float64(time.Since(start).Microseconds()) / 1000)

	s.logger.Debug(ctx, "affinity computed",
		logger.String("session_id", id),
		logger.Int("total_games", result.TotalGames),
		logger.Any("scores", result.Scores),
	)

	out := resultFromSnapshot(&snap, rec)
	out.Breakdown = types.NewBreakdown(&result)
	return out, nil
}

// Recompute satisfies the worker pool contract.
func (s *Service) Recompute(ctx context.Context, sessionID string) error {
	_, err := s.ComputeAffinity(ctx, sessionID)
	return err
}

// LatestSnapshot returns the stored snapshot without recomputing.
// model.ErrNotFound means the session exists but was never computed.
func (s *Service) LatestSnapshot(ctx context.Context, sessionID string) (types.AffinityResult, error) {
	id, err := model.ParseSessionID(sessionID)
	if err != nil {
		return types.AffinityResult{}, err
	}
	snap, err := s.snapshot(ctx, id)
	if err != nil {
		return types.AffinityResult{}, err
	}
	rec, err := planet.Recommend(snap.Dominant)
	if err != nil {
		s.logger.Error(ctx, "stored snapshot has an unknown dominant domain",
			logger.String("session_id", id), logger.Error(err))
		metrics.RecordUnknownDomain()
		return types.AffinityResult{}, err
	}
	return resultFromSnapshot(snap, rec), nil
}

// SuggestedPlanet returns the planet unlocked by the latest snapshot.
func (s *Service) SuggestedPlanet(ctx context.Context, sessionID string) (types.SuggestedPlanet, error) {
	id, err := model.ParseSessionID(sessionID)
	if err != nil {
		return types.SuggestedPlanet{}, err
	}
	snap, err := s.snapshot(ctx, id)
	if err != nil {
		return types.SuggestedPlanet{}, err
	}
	rec, err := planet.Recommend(snap.Dominant)
	if err != nil {
		s.logger.Error(ctx, "stored snapshot has an unknown dominant domain",
			logger.String("session_id", id), logger.Error(err))
		metrics.RecordUnknownDomain()
		return types.SuggestedPlanet{}, err
	}

	return types.SuggestedPlanet{
		SessionID:        id,
		DominantDomain:   types.DomainPtr(snap.Dominant),
		ConfidenceLabel:  types.ConfidencePtr(snap.Confidence),
		Planet:           types.NewPlanetView(rec),
		DomainScores:     snap.Scores,
		UnlockPercentage: scoring.RoundHalfUp(snap.ConfidenceFraction * 100),
		Reasoning:        reasoning(snap),
	}, nil
}

// Insights derives improvement tips from a fresh aggregation. Nothing is stored.
func (s *Service) Insights(ctx context.Context, sessionID string) (types.Insights, error) {
	id, err := model.ParseSessionID(sessionID)
	if err != nil {
		return types.Insights{}, err
	}
	result, err := s.aggregate(ctx, id)
	if err != nil {
		return types.Insights{}, err
	}

	tips := scoring.Insights(result)
	out := types.Insights{SessionID: id, Domains: make([]types.DomainInsight, 0, len(tips))}
	for _, t := range tips {
		out.Domains = append(out.Domains, types.DomainInsight{
			Domain:          t.Domain,
			NormalizedScore: t.NormalizedScore,
			Tips:            t.Tips,
		})
	}
	return out, nil
}

// aggregate runs the read side of the pipeline: existence check, event
// query, last-per-game selection and scoring.
func (s *Service) aggregate(ctx context.Context, id string) (scoring.Result, error) {
	if err := s.requireSession(ctx, id); err != nil {
		return scoring.Result{}, err
	}

	events, err := s.store.QueryCompletedEvents(ctx, id)
	if err != nil {
		return scoring.Result{}, fmt.Errorf("query completions: %w", err)
	}

	plays, err := s.plays(dedupe.LatestPerGame(events))
	if err != nil {
		s.logger.Error(ctx, "completion maps to an unknown domain",
			logger.String("session_id", id), logger.Error(err))
		metrics.RecordUnknownDomain()
		return scoring.Result{}, err
	}

	result, err := scoring.Aggregate(plays)
	if err != nil {
		s.logger.Error(ctx, "aggregation rejected a domain",
			logger.String("session_id", id), logger.Error(err))
		metrics.RecordUnknownDomain()
		return scoring.Result{}, err
	}
	return result, nil
}

func (s *Service) plays(events []model.GameEvent) ([]scoring.Play, error) {
	out := make([]scoring.Play, 0, len(events))
	for i := range events {
		e := &events[i]
		d, err := s.catalog.DomainOf(e.GameID)
		if err != nil {
			return nil, fmt.Errorf("%w: game %s", model.ErrUnknownDomain, e.GameID)
		}
		out = append(out, scoring.Play{
			Domain:           d,
			Score:            e.Score,
			TimeSpentSeconds: e.TimeSpentSeconds,
			HintsUsed:        e.HintsUsed,
		})
	}
	return out, nil
}

func (s *Service) snapshot(ctx context.Context, id string) (*model.Snapshot, error) {
	snap, err := s.store.GetSnapshot(ctx, id)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}
	// A missing snapshot is only NotFound when the session itself exists.
	if serr := s.requireSession(ctx, id); serr != nil {
		return nil, serr
	}
	return nil, err
}

func (s *Service) requireSession(ctx context.Context, id string) error {
	ok, err := s.store.SessionExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("session %s: %w", id, model.ErrSessionNotFound)
	}
	return nil
}

func resultFromSnapshot(snap *model.Snapshot, rec *planet.Recommendation) types.AffinityResult {
	return types.AffinityResult{
		SessionID:          snap.SessionID,
		DomainScores:       snap.Scores,
		DominantDomain:     types.DomainPtr(snap.Dominant),
		ConfidenceLabel:    types.ConfidencePtr(snap.Confidence),
		ConfidenceFraction: snap.ConfidenceFraction,
		SuggestedPlanet:    types.NewPlanetView(rec),
		TotalGamesPlayed:   snap.TotalGames,
		CalculatedAt:       snap.CalculatedAt,
	}
}

func reasoning(snap *model.Snapshot) string {
	if !snap.HasDominant() {
		return "no completed games yet"
	}
	return fmt.Sprintf("dominant area %s scored %d with %s confidence over %d games",
		snap.Dominant, snap.Scores.Get(snap.Dominant), snap.Confidence, snap.TotalGames)
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, model.ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, model.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, model.ErrUnknownDomain):
		return "unknown_domain"
	default:
		return "other"
	}
}
