package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dianabotdeep/dianabot/dianabot/database/models"
	"github.com/dianabotdeep/dianabot/dianabot/database/repositories"
)

const (
	dailyBaseReward   = 50
	dailyStreakBonus  = 10
	dailyClaimWindow  = 24 * time.Hour
	streakGraceWindow = 48 * time.Hour
)

// DailyResult reports a successful daily claim.
type DailyResult struct {
	Reward    int64
	Streak    int
	NextClaim time.Time
	Points    *PointsResult
}

// DailyService handles the once-per-24h login claim and the streak counter
// behind it. Streak-kind missions track the counter's absolute value, since
// a broken streak moves progress backwards.
type DailyService struct {
	users   repositories.UserRepository
	points  *PointsService
	tracker *MissionTracker
	log     *slog.Logger

	now func() time.Time
}

func NewDailyService(
	users repositories.UserRepository,
	points *PointsService,
	tracker *MissionTracker,
	log *slog.Logger,
) *DailyService {
	return &DailyService{
		users:   users,
		points:  points,
		tracker: tracker,
		log:     log.With(slog.String("service", "daily")),
		now:     time.Now,
	}
}

// Claim processes a daily claim. The streak mutation happens under the user
// row lock so two simultaneous claims cannot both count; the reward and the
// streak-mission update follow after commit.
func (s *DailyService) Claim(ctx context.Context, discordID string) (*DailyResult, error) {
	result := new(DailyResult)

	_, err := s.users.Mutate(ctx, discordID, func(u *models.User) error {
		now := s.now()
		if !u.LastDaily.IsZero() {
			elapsed := now.Sub(u.LastDaily)
			if elapsed < dailyClaimWindow {
				result.NextClaim = u.LastDaily.Add(dailyClaimWindow)
				return ErrAlreadyCompleted
			}
			if elapsed < streakGraceWindow {
				u.Streak++
			} else {
				u.Streak = 1
			}
		} else {
			u.Streak = 1
		}

		u.LastDaily = now
		result.Streak = u.Streak
		result.NextClaim = now.Add(dailyClaimWindow)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyCompleted) {
			return result, ErrAlreadyCompleted
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	result.Reward = int64(dailyBaseReward + dailyStreakBonus*(result.Streak-1))

	points, err := s.points.Award(ctx, discordID, result.Reward)
	if err != nil {
		s.log.Error("Failed to award daily reward",
			slog.String("user_id", discordID),
			slog.Any("error", err))
	} else {
		result.Points = points
	}

	if _, err := s.tracker.RecordProgressForKind(ctx, discordID, models.MissionKindLoginStreak, Absolute(result.Streak)); err != nil {
		s.log.Error("Failed to update streak missions",
			slog.String("user_id", discordID),
			slog.Any("error", err))
	}

	return result, nil
}
