package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Relationship stages, ordered from distant to close.
const (
	StageStranger     = "stranger"
	StageCurious      = "curious"
	StageAcquaintance = "acquaintance"
	StageTrusted      = "trusted"
	StageConfidant    = "confidant"
	StageIntimate     = "intimate"
)

// stageThresholds is ordered highest first; the first threshold at or below
// the trust value wins.
var stageThresholds = []struct {
	min   float64
	stage string
}{
	{0.80, StageIntimate},
	{0.60, StageConfidant},
	{0.40, StageTrusted},
	{0.20, StageAcquaintance},
	{0.10, StageCurious},
	{0.00, StageStranger},
}

// StageForTrust maps a trust value to its relationship stage. The stage is
// always derived from this table and never stored independently, so the two
// cannot drift apart.
func StageForTrust(trust float64) string {
	for _, t := range stageThresholds {
		if trust >= t.min {
			return t.stage
		}
	}
	return StageStranger
}

// StageRank returns the ordinal position of a stage, for gating comparisons.
// Unknown stages rank lowest.
func StageRank(stage string) int {
	switch stage {
	case StageStranger:
		return 0
	case StageCurious:
		return 1
	case StageAcquaintance:
		return 2
	case StageTrusted:
		return 3
	case StageConfidant:
		return 4
	case StageIntimate:
		return 5
	default:
		return -1
	}
}

type TrustState struct {
	bun.BaseModel `bun:"table:trust_states,alias:ts"`

	UserID            string    `bun:"user_id,pk"`
	TrustValue        float64   `bun:"trust_value,notnull,default:0"`
	RelationshipStage string    `bun:"relationship_stage,notnull,default:'stranger'"`
	TotalInteractions int       `bun:"total_interactions,notnull,default:0"`
	CreatedAt         time.Time `bun:"created_at,notnull"`
	UpdatedAt         time.Time `bun:"updated_at,notnull"`
}
