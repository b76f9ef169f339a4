package playtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/pkg/logger"
)

const percentMultiplier = 100

type counters struct {
	sessions   atomic.Int64
	sent       atomic.Int64
	duplicates atomic.Int64
	failed     atomic.Int64
	recomputed atomic.Int64
	verified   atomic.Int64
	mismatches atomic.Int64
}

// Run executes a complete playtest. A failed request is counted and the
// session abandoned; verification mismatches make Run return ErrMismatch
// after every session finished.
func Run(ctx context.Context, cfg *Config, log logger.Logger) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting playtest",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("sessions", cfg.Sessions),
		logger.Int("concurrency", cfg.Concurrency),
		logger.Duration("timeout", cfg.Timeout),
		logger.Any("seed", cfg.Seed),
		logger.Bool("verify", cfg.Verify))

	client := NewClient(cfg.BaseURL, cfg.Timeout)
	if err := client.Health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	games, err := client.Games(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	ids := make([]string, 0, len(games))
	domains := make(map[string]model.Domain, len(games))
	for _, g := range games {
		ids = append(ids, g.ID)
		domains[g.ID] = g.Domain
	}

	// Plans are drawn up front so a seed always yields the same plays.
	planner := NewPlanner(cfg.Seed, ids)
	plans := make([]SessionPlan, cfg.Sessions)
	for i := range plans {
		plans[i] = planner.Plan(i)
	}

	var (
		c     counters
		errMu sync.Mutex
		diffs []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)
	for i := range plans {
		plan := plans[i]
		g.Go(func() error {
			sessionDiffs, err := playSession(gctx, client, plan, domains, cfg.Verify, &c)
			if err != nil {
				c.failed.Add(1)
				log.Warn(gctx, "session abandoned", logger.Int("session", plan.Index), logger.Error(err))
				return nil
			}
			if len(sessionDiffs) > 0 {
				errMu.Lock()
				diffs = append(diffs, fmt.Sprintf("session %d: %s", plan.Index, strings.Join(sessionDiffs, "; ")))
				errMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	stats.SessionsCreated = int(c.sessions.Load())
	stats.CompletionsSent = int(c.sent.Load())
	stats.CompletionsDuplicate = int(c.duplicates.Load())
	stats.RequestsFailed = int(c.failed.Load())
	stats.Recomputed = int(c.recomputed.Load())
	stats.Verified = int(c.verified.Load())
	stats.Mismatches = int(c.mismatches.Load())
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	logStats(ctx, log, stats)

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if len(diffs) > 0 {
		for _, d := range diffs {
			log.Error(ctx, "verification failed", logger.String("detail", d))
		}
		return stats, fmt.Errorf("%w: %d of %d sessions", ErrMismatch, len(diffs), stats.Verified+len(diffs))
	}
	return stats, nil
}

// playSession sends one plan and returns the verification differences.
func playSession(ctx context.Context, client *Client, plan SessionPlan, domains map[string]model.Domain, verify bool, c *counters) ([]string, error) {
	sid, err := client.CreateSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	c.sessions.Add(1)

	for _, comp := range plan.Completions {
		ack, err := client.Complete(ctx, sid, comp)
		if err != nil {
			return nil, fmt.Errorf("complete %s: %w", comp.GameID, err)
		}
		c.sent.Add(1)
		if ack.Duplicate {
			c.duplicates.Add(1)
		}
		if ack.Duplicate != comp.Replay {
			c.mismatches.Add(1)
			return []string{fmt.Sprintf("event %s: duplicate=%t, want %t", comp.EventID, ack.Duplicate, comp.Replay)}, nil
		}
	}

	got, err := client.Recompute(ctx, sid)
	if err != nil {
		return nil, fmt.Errorf("recompute: %w", err)
	}
	c.recomputed.Add(1)
	if !verify {
		return nil, nil
	}

	want, err := Expected(plan, domains)
	if err != nil {
		return nil, err
	}
	if diffs := Compare(&got, &want); len(diffs) > 0 {
		c.mismatches.Add(1)
		return diffs, nil
	}
	c.verified.Add(1)
	return nil, nil
}

func logStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var verifiedRate, sessionsPerSecond float64
	if stats.Recomputed > 0 {
		verifiedRate = float64(stats.Verified) / float64(stats.Recomputed) * percentMultiplier
	}
	if stats.Duration > 0 {
		sessionsPerSecond = float64(stats.SessionsCreated) / stats.Duration.Seconds()
	}

	log.Info(ctx, "final statistics",
		logger.Int("sessionsCreated", stats.SessionsCreated),
		logger.Int("completionsSent", stats.CompletionsSent),
		logger.Int("completionsDuplicate", stats.CompletionsDuplicate),
		logger.Int("requestsFailed", stats.RequestsFailed),
		logger.Int("recomputed", stats.Recomputed),
		logger.Int("verified", stats.Verified),
		logger.Int("mismatches", stats.Mismatches),
		logger.Duration("duration", stats.Duration),
		logger.Float64("verifiedRate", verifiedRate),
		logger.Float64("sessionsPerSecond", sessionsPerSecond))
}

// IsMismatch reports whether err came from verification.
func IsMismatch(err error) bool {
	return errors.Is(err, ErrMismatch)
}
