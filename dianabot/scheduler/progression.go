package scheduler

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dianabotdeep/dianabot/dianabot/database/repositories"
	"github.com/dianabotdeep/dianabot/dianabot/services"
)

const (
	defaultSweepInterval = 15 * time.Minute
	activityWindow       = 24 * time.Hour
	maxConcurrentSweeps  = 8
)

// ProgressionScheduler periodically walks recently active users and lets the
// dispatcher advance their main storyline. The sweep is how users receive
// scenes they qualified for outside of any single event, such as a trust gate
// they crossed hours ago.
type ProgressionScheduler struct {
	users      repositories.UserRepository
	dispatcher *services.Dispatcher
	interval   time.Duration
	sem        *semaphore.Weighted
	log        *slog.Logger
}

func NewProgressionScheduler(
	users repositories.UserRepository,
	dispatcher *services.Dispatcher,
	interval time.Duration,
	log *slog.Logger,
) *ProgressionScheduler {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &ProgressionScheduler{
		users:      users,
		dispatcher: dispatcher,
		interval:   interval,
		sem:        semaphore.NewWeighted(maxConcurrentSweeps),
		log:        log.With(slog.String("service", "scheduler")),
	}
}

// Start runs sweeps until ctx is canceled.
func (s *ProgressionScheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("Progression scheduler started", slog.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Progression scheduler stopped")
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.log.Error("Progression sweep failed", slog.Any("error", err))
			}
		}
	}
}

// Sweep checks progression for every user active in the last day. Users are
// processed concurrently but bounded; one user's failure does not stop the
// rest.
func (s *ProgressionScheduler) Sweep(ctx context.Context) error {
	start := time.Now()

	userIDs, err := s.users.GetRecentlyActive(ctx, start.Add(-activityWindow))
	if err != nil {
		return err
	}
	if len(userIDs) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, userID := range userIDs {
		userID := userID
		if err := s.sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer s.sem.Release(1)
			if err := s.dispatcher.CheckProgression(gctx, userID); err != nil {
				s.log.Warn("Progression check failed",
					slog.String("user_id", userID),
					slog.Any("error", err))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	s.log.Debug("Progression sweep finished",
		slog.Int("users", len(userIDs)),
		slog.Duration("took", time.Since(start)))
	return nil
}
