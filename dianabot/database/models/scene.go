package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Scene struct {
	bun.BaseModel `bun:"table:scenes,alias:s"`

	ID            int64     `bun:"id,pk,autoincrement"`
	SceneID       string    `bun:"scene_id,notnull,unique"`
	Character     string    `bun:"character,notnull"`
	Dialogue      string    `bun:"dialogue,notnull"`
	Chapter       string    `bun:"chapter"`
	Storyline     string    `bun:"storyline,notnull,default:'main'"` // main or side
	OrderPosition int       `bun:"order_position,notnull,default:0"`
	MediaKey      string    `bun:"media_key"`
	MinTrust      float64   `bun:"min_trust,notnull,default:0"`
	MinStage      string    `bun:"min_stage"`
	Prerequisites []string  `bun:"prerequisites,array"` // scene IDs that must be seen first
	CreatedAt     time.Time `bun:"created_at,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

const (
	StorylineMain = "main"
	StorylineSide = "side"
)

// SceneCondition maps an event pattern to a scene. TriggerValue semantics
// depend on TriggerType: a numeric threshold for points/level triggers, a
// mission ID, an emoji, "pollID" or "pollID:optionID", or a relationship
// stage name.
type SceneCondition struct {
	bun.BaseModel `bun:"table:scene_conditions,alias:sc"`

	ID           int64     `bun:"id,pk,autoincrement"`
	SceneID      string    `bun:"scene_id,notnull"`
	TriggerType  string    `bun:"trigger_type,notnull"`
	TriggerValue string    `bun:"trigger_value,notnull"`
	IsActive     bool      `bun:"is_active,notnull,default:true"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
}

// Trigger type constants
const (
	TriggerPointsGained          = "points_gained"
	TriggerLevelUp               = "level_up"
	TriggerMissionCompleted      = "mission_completed"
	TriggerReaction              = "reaction"
	TriggerPollAnswered          = "poll_answered"
	TriggerRelationshipMilestone = "relationship_milestone"
)

// SceneSeen existence means the scene has been presented to the user. The
// row is created at most once; absence means the scene is still eligible.
type SceneSeen struct {
	bun.BaseModel `bun:"table:scene_seen,alias:ss"`

	UserID  string    `bun:"user_id,pk"`
	SceneID string    `bun:"scene_id,pk"`
	SeenAt  time.Time `bun:"seen_at,notnull"`
}
