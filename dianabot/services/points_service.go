package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/dianabotdeep/dianabot/dianabot/database/models"
	"github.com/dianabotdeep/dianabot/dianabot/database/repositories"
)

const maxLevel = 100

// PointsResult reports a points award with enough detail for the caller to
// detect threshold crossings.
type PointsResult struct {
	OldTotal int64
	NewTotal int64
	OldLevel int
	NewLevel int
}

func (r *PointsResult) LeveledUp() bool {
	return r.NewLevel > r.OldLevel
}

type PointsService struct {
	users repositories.UserRepository
	log   *slog.Logger
}

func NewPointsService(users repositories.UserRepository, log *slog.Logger) *PointsService {
	return &PointsService{
		users: users,
		log:   log.With(slog.String("service", "points")),
	}
}

// Award adds amount to the user's balance under a row lock and recomputes the
// level from the new total. The level is always derived from points, never
// adjusted independently.
func (s *PointsService) Award(ctx context.Context, discordID string, amount int64) (*PointsResult, error) {
	if amount < 0 {
		return nil, fmt.Errorf("cannot award negative points: %d", amount)
	}

	result := new(PointsResult)
	_, err := s.users.Mutate(ctx, discordID, func(u *models.User) error {
		result.OldTotal = u.Points
		result.OldLevel = u.Level

		u.Points += amount
		u.Level = LevelForPoints(u.Points)

		result.NewTotal = u.Points
		result.NewLevel = u.Level
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if result.LeveledUp() {
		s.log.Info("User leveled up",
			slog.String("user_id", discordID),
			slog.Int("old_level", result.OldLevel),
			slog.Int("new_level", result.NewLevel))
	}

	return result, nil
}

// Balance returns the user's current points and level, zero for unknown users.
func (s *PointsService) Balance(ctx context.Context, discordID string) (int64, int, error) {
	user, err := s.users.GetByDiscordID(ctx, discordID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return 0, 1, nil
		}
		return 0, 0, err
	}
	return user.Points, user.Level, nil
}

// LevelForPoints maps a lifetime points total to a level. The curve grows
// superlinearly so later levels take noticeably longer.
func LevelForPoints(points int64) int {
	level := 1
	for level < maxLevel && points >= PointsForLevel(level+1) {
		level++
	}
	return level
}

// PointsForLevel returns the lifetime total needed to reach level.
func PointsForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	return int64(math.Pow(float64(level-1), 1.5) * 100)
}
