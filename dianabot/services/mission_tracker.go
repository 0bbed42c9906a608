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

// ProgressUpdate describes one progress mutation. Most missions count up by a
// delta; streak-style missions report an absolute value instead, because the
// streak itself is tracked elsewhere and may reset.
type ProgressUpdate struct {
	delta    int
	absolute *int
}

// Increment returns an update that adds n to the current progress.
func Increment(n int) ProgressUpdate {
	return ProgressUpdate{delta: n}
}

// Absolute returns an update that replaces the current progress with v.
func Absolute(v int) ProgressUpdate {
	return ProgressUpdate{absolute: &v}
}

func (u ProgressUpdate) apply(current int) int {
	if u.absolute != nil {
		return *u.absolute
	}
	return current + u.delta
}

// ProgressResult reports the outcome of a progress record.
type ProgressResult struct {
	Definition    *models.MissionDefinition
	Progress      *models.MissionProgress
	JustCompleted bool
	Points        *PointsResult
	UnlockedItem  string
}

// MissionStatus is the read-side view of one mission for one user.
type MissionStatus struct {
	Definition *models.MissionDefinition
	Progress   *models.MissionProgress
	Completed  bool
}

// EventSink receives the events the tracker emits after a completion commits.
// Set after construction to break the tracker/dispatcher cycle.
type EventSink func(ctx context.Context, event GameEvent)

// MissionTracker advances mission progress and fires completion side effects.
// The completion transition itself happens inside a row-locked transaction,
// so it fires exactly once per mission period no matter how many goroutines
// report progress concurrently. Rewards and notifications run after commit.
type MissionTracker struct {
	missions repositories.MissionRepository
	lore     repositories.LoreRepository
	points   *PointsService
	notifier Notifier
	log      *slog.Logger

	sink EventSink
	now  func() time.Time
}

func NewMissionTracker(
	missions repositories.MissionRepository,
	lore repositories.LoreRepository,
	points *PointsService,
	notifier Notifier,
	log *slog.Logger,
) *MissionTracker {
	return &MissionTracker{
		missions: missions,
		lore:     lore,
		points:   points,
		notifier: notifier,
		log:      log.With(slog.String("service", "missions")),
		now:      time.Now,
	}
}

// SetEventSink wires the tracker's post-completion events into the dispatcher.
func (t *MissionTracker) SetEventSink(sink EventSink) {
	t.sink = sink
}

// Evaluate returns the user's standing on a mission without mutating it.
func (t *MissionTracker) Evaluate(ctx context.Context, userID, missionID string) (*MissionStatus, error) {
	def, err := t.missions.GetDefinition(ctx, missionID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, fmt.Errorf("%w: mission %s", ErrNotFound, missionID)
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	progress, err := t.missions.GetProgress(ctx, userID, missionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	status := &MissionStatus{Definition: def, Progress: progress}
	if progress != nil {
		status.Completed = progress.CompletedForPeriod(def, t.now())
	}
	return status, nil
}

// Overview returns every active mission with the user's progress, for the
// missions listing.
func (t *MissionTracker) Overview(ctx context.Context, userID string) ([]*MissionStatus, error) {
	defs, err := t.missions.GetAllDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	progress, err := t.missions.GetAllProgress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	byMission := make(map[string]*models.MissionProgress, len(progress))
	for _, p := range progress {
		byMission[p.MissionID] = p
	}

	now := t.now()
	statuses := make([]*MissionStatus, 0, len(defs))
	for _, def := range defs {
		if def.Expired(now) {
			continue
		}
		status := &MissionStatus{Definition: def, Progress: byMission[def.MissionID]}
		if status.Progress != nil {
			status.Completed = status.Progress.CompletedForPeriod(def, now)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// RecordProgress applies update to one mission. A mission already completed
// for the current period returns ErrAlreadyCompleted with no state change; a
// mission whose re-arm window has elapsed resets first, then accepts the
// update as a fresh period.
func (t *MissionTracker) RecordProgress(ctx context.Context, userID, missionID string, update ProgressUpdate) (*ProgressResult, error) {
	def, err := t.missions.GetDefinition(ctx, missionID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, fmt.Errorf("%w: mission %s", ErrNotFound, missionID)
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := t.now()
	if !def.IsActive || def.Expired(now) {
		return nil, fmt.Errorf("%w: mission %s is not available", ErrNotFound, missionID)
	}

	result := &ProgressResult{Definition: def}

	progress, err := t.missions.MutateProgress(ctx, userID, missionID, func(p *models.MissionProgress) error {
		if p.Completed {
			if p.CompletedForPeriod(def, now) {
				return ErrAlreadyCompleted
			}
			// Re-arm: the window elapsed, start a fresh period.
			p.Completed = false
			p.CompletedAt = nil
			p.ProgressValue = 0
		}

		p.ProgressValue = update.apply(p.ProgressValue)
		if p.ProgressValue < 0 {
			p.ProgressValue = 0
		}

		if p.ProgressValue >= def.TargetValue {
			completedAt := now
			p.Completed = true
			p.CompletedAt = &completedAt
			result.JustCompleted = true
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyCompleted) {
			return nil, ErrAlreadyCompleted
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	result.Progress = progress

	if result.JustCompleted {
		t.handleCompletion(ctx, userID, def, result)
	}
	return result, nil
}

// RecordProgressForKind applies update to every active mission of the given
// kind. Missions already completed for their period are skipped silently.
func (t *MissionTracker) RecordProgressForKind(ctx context.Context, userID, kind string, update ProgressUpdate) ([]*ProgressResult, error) {
	defs, err := t.missions.GetDefinitionsByKind(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var results []*ProgressResult
	for _, def := range defs {
		result, err := t.RecordProgress(ctx, userID, def.MissionID, update)
		if err != nil {
			if errors.Is(err, ErrAlreadyCompleted) || errors.Is(err, ErrNotFound) {
				continue
			}
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// handleCompletion runs the post-commit side effects of a completion: reward
// points, item unlock, event emission, notification. All of these are outside
// the completion transaction; a failure here is logged but the completion
// stands.
func (t *MissionTracker) handleCompletion(ctx context.Context, userID string, def *models.MissionDefinition, result *ProgressResult) {
	t.log.Info("Mission completed",
		slog.String("user_id", userID),
		slog.String("mission_id", def.MissionID))

	if def.RewardPoints > 0 {
		points, err := t.points.Award(ctx, userID, def.RewardPoints)
		if err != nil {
			t.log.Error("Failed to award mission points",
				slog.String("user_id", userID),
				slog.String("mission_id", def.MissionID),
				slog.Any("error", err))
		} else {
			result.Points = points
			if t.sink != nil {
				t.sink(ctx, NewPointsEvent(userID, def.RewardPoints, points.NewTotal))
				if points.LeveledUp() {
					t.sink(ctx, NewLevelUpEvent(userID, points.OldLevel, points.NewLevel))
				}
			}
		}
	}

	if def.UnlocksItemCode != "" {
		granted, err := t.lore.Grant(ctx, userID, def.UnlocksItemCode, models.UnlockSourceMission)
		if err != nil {
			t.log.Error("Failed to grant mission unlock",
				slog.String("user_id", userID),
				slog.String("code_name", def.UnlocksItemCode),
				slog.Any("error", err))
		} else if granted {
			result.UnlockedItem = def.UnlocksItemCode
		}
	}

	if t.sink != nil {
		t.sink(ctx, NewMissionCompletedEvent(userID, def.MissionID))
	}

	if t.notifier != nil {
		t.notifier.NotifyMissionComplete(ctx, userID, def, result.UnlockedItem)
	}
}
