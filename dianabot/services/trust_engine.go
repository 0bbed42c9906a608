package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dianabotdeep/dianabot/dianabot/database/models"
	"github.com/dianabotdeep/dianabot/dianabot/database/repositories"
)

// TrustDeltas holds the trust contribution of each event kind. Values are
// small on purpose: trust accumulates over many interactions.
type TrustDeltas struct {
	PointsGained     float64 `toml:"points_gained"`
	LevelUp          float64 `toml:"level_up"`
	MissionCompleted float64 `toml:"mission_completed"`
	Reaction         float64 `toml:"reaction"`
	PollAnswered     float64 `toml:"poll_answered"`
}

func DefaultTrustDeltas() TrustDeltas {
	return TrustDeltas{
		PointsGained:     0.002,
		LevelUp:          0.010,
		MissionCompleted: 0.005,
		Reaction:         0.001,
		PollAnswered:     0.003,
	}
}

func (d TrustDeltas) ForKind(kind EventKind) float64 {
	switch kind {
	case EventPointsGained:
		return d.PointsGained
	case EventLevelUp:
		return d.LevelUp
	case EventMissionComplete:
		return d.MissionCompleted
	case EventReaction:
		return d.Reaction
	case EventPollAnswered:
		return d.PollAnswered
	default:
		return 0
	}
}

// TrustResult reports a trust mutation and whether it moved the relationship
// across a stage boundary.
type TrustResult struct {
	OldTrust     float64
	NewTrust     float64
	OldStage     string
	NewStage     string
	StageChanged bool
}

// TrustEngine owns the trust value and the relationship stage derived from
// it. All mutations clamp into [0, 1] and re-derive the stage, so the stored
// stage never disagrees with the value.
type TrustEngine struct {
	trust repositories.TrustRepository
	log   *slog.Logger
}

func NewTrustEngine(trust repositories.TrustRepository, log *slog.Logger) *TrustEngine {
	return &TrustEngine{
		trust: trust,
		log:   log.With(slog.String("service", "trust")),
	}
}

// ApplyDelta shifts the user's trust by delta (positive or negative) under a
// row lock. The stage is recomputed from the clamped value inside the same
// transaction.
func (e *TrustEngine) ApplyDelta(ctx context.Context, userID string, delta float64) (*TrustResult, error) {
	result := new(TrustResult)

	_, err := e.trust.Mutate(ctx, userID, func(s *models.TrustState) error {
		result.OldTrust = s.TrustValue
		result.OldStage = models.StageForTrust(s.TrustValue)

		s.TrustValue = clampTrust(s.TrustValue + delta)
		s.RelationshipStage = models.StageForTrust(s.TrustValue)
		s.TotalInteractions++

		result.NewTrust = s.TrustValue
		result.NewStage = s.RelationshipStage
		result.StageChanged = result.NewStage != result.OldStage
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if result.StageChanged {
		e.log.Info("Relationship stage changed",
			slog.String("user_id", userID),
			slog.String("old_stage", result.OldStage),
			slog.String("new_stage", result.NewStage),
			slog.Float64("trust", result.NewTrust))
	}

	return result, nil
}

// State returns the current trust state, defaulting to Stranger/0.0 for users
// without a row.
func (e *TrustEngine) State(ctx context.Context, userID string) (*models.TrustState, error) {
	return e.trust.Get(ctx, userID)
}

func clampTrust(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
