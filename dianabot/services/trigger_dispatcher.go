package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dianabotdeep/dianabot/dianabot/database/models"
	"github.com/dianabotdeep/dianabot/dianabot/database/repositories"
)

// Dispatcher routes gamification events: it applies the event's trust
// contribution, then finds at most one unseen scene whose trigger condition
// the event satisfies and presents it. Presentation is best effort; a failed
// delivery is logged and never rolls back the seen mark or any other state.
type Dispatcher struct {
	scenes    repositories.SceneRepository
	trust     *TrustEngine
	presenter ScenePresenter
	deltas    TrustDeltas
	log       *slog.Logger
}

func NewDispatcher(
	scenes repositories.SceneRepository,
	trust *TrustEngine,
	presenter ScenePresenter,
	deltas TrustDeltas,
	log *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		scenes:    scenes,
		trust:     trust,
		presenter: presenter,
		deltas:    deltas,
		log:       log.With(slog.String("service", "dispatcher")),
	}
}

// Process handles one event end to end. Unknown kinds are an error so new
// kinds cannot be added without a dispatch case.
func (d *Dispatcher) Process(ctx context.Context, event GameEvent) error {
	trustResult, err := d.trust.ApplyDelta(ctx, event.UserID, d.deltas.ForKind(event.Kind))
	if err != nil {
		return err
	}

	var candidates []string
	switch event.Kind {
	case EventPointsGained:
		candidates, err = d.crossedThresholds(ctx, models.TriggerPointsGained,
			event.TotalPointsAfter-event.PointsEarned, event.TotalPointsAfter)
	case EventLevelUp:
		candidates, err = d.crossedThresholds(ctx, models.TriggerLevelUp,
			int64(event.OldLevel), int64(event.NewLevel))
	case EventMissionComplete:
		candidates, err = d.matchValue(ctx, models.TriggerMissionCompleted, event.MissionID)
	case EventReaction:
		candidates, err = d.matchValue(ctx, models.TriggerReaction, event.Emoji)
	case EventPollAnswered:
		candidates, err = d.matchValue(ctx, models.TriggerPollAnswered,
			event.PollID+":"+event.OptionID, event.PollID)
	default:
		return fmt.Errorf("unknown event kind: %q", event.Kind)
	}
	if err != nil {
		return err
	}

	// A stage change queues its milestone scene behind any kind-specific
	// candidate, still capped at one presentation per event.
	if trustResult.StageChanged {
		milestone, merr := d.matchValue(ctx, models.TriggerRelationshipMilestone, trustResult.NewStage)
		if merr != nil {
			return merr
		}
		candidates = append(candidates, milestone...)
	}

	if len(candidates) > 0 {
		presented, err := d.presentFirstEligible(ctx, event.UserID, candidates)
		if err != nil {
			return err
		}
		if presented {
			return nil
		}
	}

	// No trigger fired, so the event's dispatch slot goes to the main
	// storyline. This keeps linear scenes flowing with activity instead of
	// waiting for the next scheduled sweep.
	return d.CheckProgression(ctx, event.UserID)
}

// crossedThresholds returns scenes whose numeric threshold T satisfies
// before < T <= after. A threshold equal to before was crossed by an earlier
// event and must not fire again.
func (d *Dispatcher) crossedThresholds(ctx context.Context, triggerType string, before, after int64) ([]string, error) {
	if after <= before {
		return nil, nil
	}

	conds, err := d.scenes.GetConditionsByType(ctx, triggerType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var sceneIDs []string
	for _, cond := range conds {
		threshold, perr := strconv.ParseInt(cond.TriggerValue, 10, 64)
		if perr != nil {
			d.log.Warn("Non-numeric trigger threshold",
				slog.String("trigger_type", triggerType),
				slog.String("trigger_value", cond.TriggerValue),
				slog.Int64("condition_id", cond.ID))
			continue
		}
		if before < threshold && threshold <= after {
			sceneIDs = append(sceneIDs, cond.SceneID)
		}
	}
	return sceneIDs, nil
}

// matchValue returns the scene bound to the first trigger value that has a
// condition. Later values are fallbacks: a poll answer tries the specific
// option binding before the whole-poll binding.
func (d *Dispatcher) matchValue(ctx context.Context, triggerType string, values ...string) ([]string, error) {
	for _, value := range values {
		cond, err := d.scenes.GetCondition(ctx, triggerType, value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if cond != nil {
			return []string{cond.SceneID}, nil
		}
	}
	return nil, nil
}

// presentFirstEligible walks candidates in order and presents the first scene
// that is unseen and whose gates pass. At most one scene goes out; the return
// reports whether one did.
func (d *Dispatcher) presentFirstEligible(ctx context.Context, userID string, sceneIDs []string) (bool, error) {
	state, err := d.trust.State(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	seen, err := d.scenes.SeenSet(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	for _, sceneID := range sceneIDs {
		if seen[sceneID] {
			continue
		}

		scene, err := d.scenes.GetScene(ctx, sceneID)
		if err != nil {
			if repositories.IsNotFound(err) {
				d.log.Warn("Trigger references missing scene", slog.String("scene_id", sceneID))
				continue
			}
			return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		if !sceneEligible(scene, state, seen) {
			continue
		}

		d.presentScene(ctx, userID, scene)
		return true, nil
	}
	return false, nil
}

// presentScene marks the scene seen first and delivers only on the winning
// mark. The mark is the at-most-once guarantee; delivery after it is best
// effort, so a crashed delivery can skip a scene but never duplicate one.
func (d *Dispatcher) presentScene(ctx context.Context, userID string, scene *models.Scene) {
	marked, err := d.scenes.MarkSeen(ctx, userID, scene.SceneID)
	if err != nil {
		d.log.Error("Failed to mark scene seen",
			slog.String("user_id", userID),
			slog.String("scene_id", scene.SceneID),
			slog.Any("error", err))
		return
	}
	if !marked {
		// Lost the race to a concurrent event; the winner presents.
		return
	}

	if err := d.presenter.Present(ctx, userID, scene); err != nil {
		d.log.Error("Scene delivery failed",
			slog.String("user_id", userID),
			slog.String("scene_id", scene.SceneID),
			slog.Any("error", err))
		return
	}

	d.log.Info("Scene presented",
		slog.String("user_id", userID),
		slog.String("scene_id", scene.SceneID),
		slog.String("storyline", scene.Storyline))
}

// CheckProgression advances the user's main storyline: the first unseen scene
// in order whose prerequisites are all seen and whose trust gates pass gets
// presented. It runs at the end of every dispatch that fired no trigger, and
// again on the periodic sweep. At most one scene per call keeps pacing steady
// even for users who qualify for several at once.
func (d *Dispatcher) CheckProgression(ctx context.Context, userID string) error {
	state, err := d.trust.State(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	seen, err := d.scenes.SeenSet(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	scenes, err := d.scenes.GetByStoryline(ctx, models.StorylineMain)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	for _, scene := range scenes {
		if seen[scene.SceneID] {
			continue
		}
		if !sceneEligible(scene, state, seen) {
			continue
		}
		d.presentScene(ctx, userID, scene)
		return nil
	}
	return nil
}

// sceneEligible applies the scene's gates: minimum trust, minimum stage, and
// prerequisite scenes all seen.
func sceneEligible(scene *models.Scene, state *models.TrustState, seen map[string]bool) bool {
	if state.TrustValue < scene.MinTrust {
		return false
	}
	if scene.MinStage != "" {
		if models.StageRank(models.StageForTrust(state.TrustValue)) < models.StageRank(scene.MinStage) {
			return false
		}
	}
	for _, prereq := range scene.Prerequisites {
		if !seen[prereq] {
			return false
		}
	}
	return true
}
