package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	eventqueue "github.com/okian/affinity/internal/adapters/mq/queue"
	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/internal/domain/planet"
	"github.com/okian/affinity/internal/domain/types"
	"github.com/okian/affinity/pkg/logger"
	"github.com/okian/affinity/pkg/metrics"
)

// Upper bounds accepted for a completion.
const (
	MaxScore            = 1000
	MaxTimeSpentSeconds = 86400
	MaxHintsUsed        = 100
)

// Games returns the catalog in catalog order.
func (s *Service) Games() []types.GameView {
	games := s.catalog.Games()
	out := make([]types.GameView, 0, len(games))
	for _, g := range games {
		out = append(out, types.NewGameView(g))
	}
	return out
}

// Game returns one catalog entry.
func (s *Service) Game(gameID string) (types.GameView, error) {
	id, err := model.ParseGameID(gameID)
	if err != nil {
		return types.GameView{}, err
	}
	g, err := s.catalog.Game(id)
	if err != nil {
		return types.GameView{}, err
	}
	return types.NewGameView(g), nil
}

// Planets returns the four planets in canonical domain order.
func (s *Service) Planets() []types.PlanetView {
	all := planet.All()
	out := make([]types.PlanetView, 0, len(all))
	for i := range all {
		out = append(out, *types.NewPlanetView(&all[i]))
	}
	return out
}

// StartGame appends a game_started event.
func (s *Service) StartGame(ctx context.Context, gameID, sessionID string) (types.EventAck, error) {
	return s.RecordEvent(ctx, types.RawEvent{
		SessionID: sessionID,
		GameID:    gameID,
		Type:      model.EventGameStarted.String(),
	})
}

// RecordEvent appends a non-completion event. Completions carry a score and
// must go through CompleteGame.
func (s *Service) RecordEvent(ctx context.Context, in types.RawEvent) (types.EventAck, error) {
	sid, gid, err := parseIDs(in.SessionID, in.GameID)
	if err != nil {
		return types.EventAck{}, err
	}
	typ, err := model.ParseEventType(in.Type)
	if err != nil {
		return types.EventAck{}, err
	}
	if typ == model.EventGameCompleted {
		return types.EventAck{}, fmt.Errorf("%w: completions must be submitted with a score", model.ErrInvalidEvent)
	}

	e := &model.GameEvent{
		ID:        uuid.NewString(),
		SessionID: sid,
		GameID:    gid,
		Type:      typ,
		Data:      in.Data,
		CreatedAt: s.clock(),
	}
	if err := s.insert(ctx, e); err != nil {
		return types.EventAck{}, err
	}
	return ack(e, false), nil
}

// CompleteGame appends a completion, bumps the session counters and queues a
// snapshot refresh. A replayed ClientEventID is acknowledged with Duplicate
// set and changes nothing.
func (s *Service) CompleteGame(ctx context.Context, in types.Completion) (types.EventAck, error) {
	sid, gid, err := parseIDs(in.SessionID, in.GameID)
	if err != nil {
		return types.EventAck{}, err
	}
	if err := checkBounds(in); err != nil {
		return types.EventAck{}, err
	}

	e := &model.GameEvent{
		ID:               uuid.NewString(),
		SessionID:        sid,
		GameID:           gid,
		Type:             model.EventGameCompleted,
		Score:            in.Score,
		TimeSpentSeconds: in.TimeSpentSeconds,
		HintsUsed:        in.HintsUsed,
		ClientEventID:    in.ClientEventID,
		Data:             in.Choices,
		CreatedAt:        s.clock(),
	}

	// The deduper only short-cuts ids the store already holds. Concurrent
	// retries both reach the store and its unique index picks the winner.
	var dedupeKey string
	if in.ClientEventID != "" {
		dedupeKey = sid + "/" + in.ClientEventID
		if s.deduper.Seen(ctx, dedupeKey) {
			return s.duplicate(ctx, e), nil
		}
	}

	if err := s.insert(ctx, e); err != nil {
		if errors.Is(err, model.ErrDuplicateEvent) {
			s.deduper.SeenAndRecord(ctx, dedupeKey)
			return s.duplicate(ctx, e), nil
		}
		return types.EventAck{}, err
	}
	if dedupeKey != "" {
		s.deduper.SeenAndRecord(ctx, dedupeKey)
	}
	metrics.RecordCompletion()

	if s.asyncRecompute {
		s.enqueue(ctx, sid)
	}
	return ack(e, false), nil
}

func (s *Service) insert(ctx context.Context, e *model.GameEvent) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if err := s.store.InsertEvent(ctx, e); err != nil {
		return err
	}
	metrics.RecordGameEvent(e.Type.String())
	s.logger.Debug(ctx, "event recorded",
		logger.String("session_id", e.SessionID),
		logger.String("game_id", e.GameID.String()),
		logger.String("type", e.Type.String()),
	)
	return nil
}

func (s *Service) duplicate(ctx context.Context, e *model.GameEvent) types.EventAck {
	metrics.RecordCompletionDuplicate()
	s.logger.Debug(ctx, "duplicate completion ignored",
		logger.String("session_id", e.SessionID),
		logger.String("client_event_id", e.ClientEventID))
	return ack(e, true)
}

// enqueue never fails the caller; a lost refresh is healed by the next
// completion or an explicit recompute.
func (s *Service) enqueue(ctx context.Context, sessionID string) {
	err := s.queue.Enqueue(ctx, eventqueue.RecomputeRequest{
		SessionID:   sessionID,
		RequestedAt: s.clock(),
	})
	if err == nil {
		return
	}
	metrics.RecordErrorByComponent("queue", enqueueErrorType(err))
	s.logger.Warn(ctx, "snapshot refresh not queued",
		logger.String("session_id", sessionID), logger.Error(err))
}

func enqueueErrorType(err error) string {
	switch {
	case errors.Is(err, eventqueue.ErrFull):
		return "full"
	case errors.Is(err, eventqueue.ErrClosed):
		return "closed"
	default:
		return "context"
	}
}

func parseIDs(sessionID, gameID string) (string, model.GameID, error) {
	sid, err := model.ParseSessionID(sessionID)
	if err != nil {
		return "", 0, err
	}
	gid, err := model.ParseGameID(gameID)
	if err != nil {
		return "", 0, err
	}
	return sid, gid, nil
}

func checkBounds(in types.Completion) error {
	switch {
	case in.Score < 0 || in.Score > MaxScore:
		return fmt.Errorf("%w: score must be within [0, %d]", model.ErrInvalidEvent, MaxScore)
	case in.TimeSpentSeconds < 0 || in.TimeSpentSeconds > MaxTimeSpentSeconds:
		return fmt.Errorf("%w: time spent must be within [0, %d]", model.ErrInvalidEvent, MaxTimeSpentSeconds)
	case in.HintsUsed < 0 || in.HintsUsed > MaxHintsUsed:
		return fmt.Errorf("%w: hints used must be within [0, %d]", model.ErrInvalidEvent, MaxHintsUsed)
	}
	return nil
}

func ack(e *model.GameEvent, duplicate bool) types.EventAck {
	a := types.EventAck{
		EventID:       e.ID,
		ClientEventID: e.ClientEventID,
		SessionID:     e.SessionID,
		GameID:        e.GameID,
		Type:          e.Type,
		CreatedAt:     e.CreatedAt,
		Duplicate:     duplicate,
	}
	if duplicate {
		a.EventID = ""
	}
	return a
}
