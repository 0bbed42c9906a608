package models

import (
	"time"

	"github.com/uptrace/bun"
)

type MissionDefinition struct {
	bun.BaseModel `bun:"table:mission_definitions,alias:md"`

	ID              int64     `bun:"id,pk,autoincrement"`
	MissionID       string    `bun:"mission_id,notnull,unique"`
	Name            string    `bun:"name,notnull"`
	Description     string    `bun:"description,notnull"`
	Kind            string    `bun:"kind,notnull"` // one_time, daily, weekly, reaction, login_streak, custom
	TargetValue     int       `bun:"target_value,notnull,default:1"`
	RewardPoints    int64     `bun:"reward_points,notnull,default:0"`
	DurationDays    int       `bun:"duration_days,notnull,default:0"` // 0 = unbounded
	UnlocksItemCode string    `bun:"unlocks_item_code"`
	IsActive        bool      `bun:"is_active,notnull,default:true"`
	CreatedAt       time.Time `bun:"created_at,notnull"`
	UpdatedAt       time.Time `bun:"updated_at,notnull"`
}

// Mission kind constants
const (
	MissionKindOneTime     = "one_time"
	MissionKindDaily       = "daily"
	MissionKindWeekly      = "weekly"
	MissionKindReaction    = "reaction"
	MissionKindLoginStreak = "login_streak"
	MissionKindCustom      = "custom"
)

// Expired reports whether the definition's availability window has passed.
func (m *MissionDefinition) Expired(now time.Time) bool {
	if m.DurationDays <= 0 {
		return false
	}
	return now.After(m.CreatedAt.AddDate(0, 0, m.DurationDays))
}

// RearmPeriod returns the rolling window after which a completed mission of
// this kind becomes completable again. Zero means it never re-arms.
func (m *MissionDefinition) RearmPeriod() time.Duration {
	switch m.Kind {
	case MissionKindDaily:
		return 24 * time.Hour
	case MissionKindWeekly:
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}

type MissionProgress struct {
	bun.BaseModel `bun:"table:mission_progress,alias:mp"`

	ID            int64      `bun:"id,pk,autoincrement"`
	UserID        string     `bun:"user_id,notnull"`
	MissionID     string     `bun:"mission_id,notnull"`
	ProgressValue int        `bun:"progress_value,notnull,default:0"`
	Completed     bool       `bun:"completed,notnull,default:false"`
	CompletedAt   *time.Time `bun:"completed_at"`
	CreatedAt     time.Time  `bun:"created_at,notnull"`
	UpdatedAt     time.Time  `bun:"updated_at,notnull"`

	// Relations
	Definition *MissionDefinition `bun:"rel:has-one,join:mission_id=mission_id"`
}

// CompletedForPeriod reports whether the entry still counts as completed for
// the current rolling window. Completions of kinds without a re-arm period
// are permanent.
func (p *MissionProgress) CompletedForPeriod(def *MissionDefinition, now time.Time) bool {
	if !p.Completed {
		return false
	}
	period := def.RearmPeriod()
	if period == 0 {
		return true
	}
	if p.CompletedAt == nil {
		return true
	}
	return now.Sub(*p.CompletedAt) < period
}
