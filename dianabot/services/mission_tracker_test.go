package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dianabotdeep/dianabot/dianabot/database/models"
)

func newTestTracker(t *testing.T) (*MissionTracker, *fakeMissionRepo, *fakeLoreRepo, *fakeUserRepo, *fakeNotifier) {
	t.Helper()
	missions := newFakeMissionRepo()
	lore := newFakeLoreRepo()
	users := newFakeUserRepo()
	notifier := &fakeNotifier{}
	points := NewPointsService(users, testLogger())
	tracker := NewMissionTracker(missions, lore, points, notifier, testLogger())
	return tracker, missions, lore, users, notifier
}

func addMission(t *testing.T, missions *fakeMissionRepo, def *models.MissionDefinition) {
	t.Helper()
	def.IsActive = true
	def.CreatedAt = time.Now()
	require.NoError(t, missions.CreateDefinition(context.Background(), def))
}

func TestRecordProgress_CompletesAtTarget(t *testing.T) {
	tracker, missions, _, _, notifier := newTestTracker(t)
	addMission(t, missions, &models.MissionDefinition{
		MissionID:    "chatty",
		Name:         "Chatty",
		Kind:         models.MissionKindOneTime,
		TargetValue:  3,
		RewardPoints: 100,
	})

	ctx := context.Background()

	result, err := tracker.RecordProgress(ctx, "user1", "chatty", Increment(2))
	require.NoError(t, err)
	assert.False(t, result.JustCompleted)
	assert.Equal(t, 2, result.Progress.ProgressValue)

	result, err = tracker.RecordProgress(ctx, "user1", "chatty", Increment(1))
	require.NoError(t, err)
	assert.True(t, result.JustCompleted)
	require.NotNil(t, result.Points)
	assert.Equal(t, int64(100), result.Points.NewTotal)
	assert.Equal(t, []string{"chatty"}, notifier.completions)
}

func TestRecordProgress_AlreadyCompleted(t *testing.T) {
	tracker, missions, _, _, _ := newTestTracker(t)
	addMission(t, missions, &models.MissionDefinition{
		MissionID:   "once",
		Kind:        models.MissionKindOneTime,
		TargetValue: 1,
	})

	ctx := context.Background()

	result, err := tracker.RecordProgress(ctx, "user1", "once", Increment(1))
	require.NoError(t, err)
	assert.True(t, result.JustCompleted)

	_, err = tracker.RecordProgress(ctx, "user1", "once", Increment(1))
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
}

func TestRecordProgress_UnknownMission(t *testing.T) {
	tracker, _, _, _, _ := newTestTracker(t)

	_, err := tracker.RecordProgress(context.Background(), "user1", "nope", Increment(1))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordProgress_DailyRearm(t *testing.T) {
	tracker, missions, _, _, _ := newTestTracker(t)
	addMission(t, missions, &models.MissionDefinition{
		MissionID:   "checkin",
		Kind:        models.MissionKindDaily,
		TargetValue: 1,
	})

	ctx := context.Background()
	now := time.Now()
	tracker.now = func() time.Time { return now }

	result, err := tracker.RecordProgress(ctx, "user1", "checkin", Increment(1))
	require.NoError(t, err)
	assert.True(t, result.JustCompleted)

	// Still inside the rolling 24h window.
	tracker.now = func() time.Time { return now.Add(23 * time.Hour) }
	_, err = tracker.RecordProgress(ctx, "user1", "checkin", Increment(1))
	assert.ErrorIs(t, err, ErrAlreadyCompleted)

	// Window elapsed: a fresh period starts and the mission completes again.
	tracker.now = func() time.Time { return now.Add(25 * time.Hour) }
	result, err = tracker.RecordProgress(ctx, "user1", "checkin", Increment(1))
	require.NoError(t, err)
	assert.True(t, result.JustCompleted)
	assert.Equal(t, 1, result.Progress.ProgressValue)
}

func TestRecordProgress_AbsoluteValue(t *testing.T) {
	tracker, missions, _, _, _ := newTestTracker(t)
	addMission(t, missions, &models.MissionDefinition{
		MissionID:   "streak7",
		Kind:        models.MissionKindLoginStreak,
		TargetValue: 7,
	})

	ctx := context.Background()

	result, err := tracker.RecordProgress(ctx, "user1", "streak7", Absolute(5))
	require.NoError(t, err)
	assert.Equal(t, 5, result.Progress.ProgressValue)
	assert.False(t, result.JustCompleted)

	// A broken streak moves progress backwards instead of accumulating.
	result, err = tracker.RecordProgress(ctx, "user1", "streak7", Absolute(1))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Progress.ProgressValue)

	result, err = tracker.RecordProgress(ctx, "user1", "streak7", Absolute(7))
	require.NoError(t, err)
	assert.True(t, result.JustCompleted)
}

func TestRecordProgress_UnlocksItem(t *testing.T) {
	tracker, missions, lore, _, _ := newTestTracker(t)
	lore.addPiece("diary_1")
	addMission(t, missions, &models.MissionDefinition{
		MissionID:       "collector",
		Kind:            models.MissionKindOneTime,
		TargetValue:     1,
		UnlocksItemCode: "diary_1",
	})

	result, err := tracker.RecordProgress(context.Background(), "user1", "collector", Increment(1))
	require.NoError(t, err)
	assert.Equal(t, "diary_1", result.UnlockedItem)

	owns, err := lore.Owns(context.Background(), "user1", "diary_1")
	require.NoError(t, err)
	assert.True(t, owns)
}

func TestRecordProgress_CompletionFiresExactlyOnce(t *testing.T) {
	tracker, missions, _, _, notifier := newTestTracker(t)
	addMission(t, missions, &models.MissionDefinition{
		MissionID:    "race",
		Kind:         models.MissionKindOneTime,
		TargetValue:  1,
		RewardPoints: 10,
	})

	const workers = 32
	var completions int64
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := tracker.RecordProgress(context.Background(), "user1", "race", Increment(1))
			if err != nil {
				return
			}
			if result.JustCompleted {
				atomic.AddInt64(&completions, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), completions)
	assert.Len(t, notifier.completions, 1)
}

func TestRecordProgressForKind_SkipsCompleted(t *testing.T) {
	tracker, missions, _, _, _ := newTestTracker(t)
	addMission(t, missions, &models.MissionDefinition{
		MissionID:   "react1",
		Kind:        models.MissionKindReaction,
		TargetValue: 1,
	})
	addMission(t, missions, &models.MissionDefinition{
		MissionID:   "react5",
		Kind:        models.MissionKindReaction,
		TargetValue: 5,
	})

	ctx := context.Background()

	results, err := tracker.RecordProgressForKind(ctx, "user1", models.MissionKindReaction, Increment(1))
	require.NoError(t, err)
	assert.Len(t, results, 2)

	// react1 is done; only react5 still accepts progress.
	results, err = tracker.RecordProgressForKind(ctx, "user1", models.MissionKindReaction, Increment(1))
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, "react5", results[0].Definition.MissionID)
}

func TestEvaluate(t *testing.T) {
	tracker, missions, _, _, _ := newTestTracker(t)
	addMission(t, missions, &models.MissionDefinition{
		MissionID:   "quiet",
		Kind:        models.MissionKindOneTime,
		TargetValue: 2,
	})

	ctx := context.Background()

	status, err := tracker.Evaluate(ctx, "user1", "quiet")
	require.NoError(t, err)
	assert.Nil(t, status.Progress)
	assert.False(t, status.Completed)

	_, err = tracker.RecordProgress(ctx, "user1", "quiet", Increment(2))
	require.NoError(t, err)

	status, err = tracker.Evaluate(ctx, "user1", "quiet")
	require.NoError(t, err)
	assert.True(t, status.Completed)
}
