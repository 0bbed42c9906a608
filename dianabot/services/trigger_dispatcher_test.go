package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dianabotdeep/dianabot/dianabot/database/models"
)

func newTestDispatcher(t *testing.T, deltas TrustDeltas) (*Dispatcher, *fakeSceneRepo, *fakeTrustRepo, *fakePresenter) {
	t.Helper()
	scenes := newFakeSceneRepo()
	trust := newFakeTrustRepo()
	presenter := &fakePresenter{}
	engine := NewTrustEngine(trust, testLogger())
	dispatcher := NewDispatcher(scenes, engine, presenter, deltas, testLogger())
	return dispatcher, scenes, trust, presenter
}

func addScene(t *testing.T, scenes *fakeSceneRepo, scene *models.Scene) {
	t.Helper()
	if scene.Storyline == "" {
		scene.Storyline = models.StorylineSide
	}
	require.NoError(t, scenes.CreateScene(context.Background(), scene))
}

func addCondition(t *testing.T, scenes *fakeSceneRepo, sceneID, triggerType, triggerValue string) {
	t.Helper()
	require.NoError(t, scenes.CreateCondition(context.Background(), &models.SceneCondition{
		SceneID:      sceneID,
		TriggerType:  triggerType,
		TriggerValue: triggerValue,
		IsActive:     true,
	}))
}

func TestProcess_PointsThresholdCrossing(t *testing.T) {
	dispatcher, scenes, _, presenter := newTestDispatcher(t, TrustDeltas{})
	addScene(t, scenes, &models.Scene{SceneID: "s100", Character: "Diana", Dialogue: "..."})
	addCondition(t, scenes, "s100", models.TriggerPointsGained, "100")

	ctx := context.Background()

	// 0 -> 50 does not cross 100.
	require.NoError(t, dispatcher.Process(ctx, NewPointsEvent("user1", 50, 50)))
	assert.Empty(t, presenter.presentedScenes())

	// 50 -> 120 crosses.
	require.NoError(t, dispatcher.Process(ctx, NewPointsEvent("user1", 70, 120)))
	assert.Equal(t, []string{"s100"}, presenter.presentedScenes())
}

func TestProcess_ThresholdAtBoundary(t *testing.T) {
	dispatcher, scenes, _, presenter := newTestDispatcher(t, TrustDeltas{})
	addScene(t, scenes, &models.Scene{SceneID: "s100", Character: "Diana", Dialogue: "..."})
	addCondition(t, scenes, "s100", models.TriggerPointsGained, "100")

	ctx := context.Background()

	// Landing exactly on the threshold counts: before < T <= after.
	require.NoError(t, dispatcher.Process(ctx, NewPointsEvent("user1", 100, 100)))
	assert.Equal(t, []string{"s100"}, presenter.presentedScenes())

	// Starting at the threshold does not fire again.
	dispatcher2, scenes2, _, presenter2 := newTestDispatcher(t, TrustDeltas{})
	addScene(t, scenes2, &models.Scene{SceneID: "s100", Character: "Diana", Dialogue: "..."})
	addCondition(t, scenes2, "s100", models.TriggerPointsGained, "100")
	require.NoError(t, dispatcher2.Process(ctx, NewPointsEvent("user1", 50, 150)))
	assert.Empty(t, presenter2.presentedScenes())
}

func TestProcess_DuplicateEventDoesNotRepresent(t *testing.T) {
	dispatcher, scenes, _, presenter := newTestDispatcher(t, TrustDeltas{})
	addScene(t, scenes, &models.Scene{SceneID: "s1", Character: "Diana", Dialogue: "..."})
	addCondition(t, scenes, "s1", models.TriggerMissionCompleted, "m1")

	ctx := context.Background()
	event := NewMissionCompletedEvent("user1", "m1")

	require.NoError(t, dispatcher.Process(ctx, event))
	require.NoError(t, dispatcher.Process(ctx, event))
	assert.Equal(t, []string{"s1"}, presenter.presentedScenes())
}

func TestProcess_OneScenePerEvent(t *testing.T) {
	dispatcher, scenes, _, presenter := newTestDispatcher(t, TrustDeltas{})
	addScene(t, scenes, &models.Scene{SceneID: "s50", Character: "Diana", Dialogue: "..."})
	addScene(t, scenes, &models.Scene{SceneID: "s100", Character: "Diana", Dialogue: "..."})
	addCondition(t, scenes, "s50", models.TriggerPointsGained, "50")
	addCondition(t, scenes, "s100", models.TriggerPointsGained, "100")

	// One event crosses both thresholds; only one scene goes out.
	require.NoError(t, dispatcher.Process(context.Background(), NewPointsEvent("user1", 120, 120)))
	assert.Len(t, presenter.presentedScenes(), 1)
}

func TestProcess_ReactionAndPollTriggers(t *testing.T) {
	dispatcher, scenes, _, presenter := newTestDispatcher(t, TrustDeltas{})
	addScene(t, scenes, &models.Scene{SceneID: "rose", Character: "Diana", Dialogue: "..."})
	addScene(t, scenes, &models.Scene{SceneID: "poll_opt", Character: "Diana", Dialogue: "..."})
	addScene(t, scenes, &models.Scene{SceneID: "poll_any", Character: "Diana", Dialogue: "..."})
	addCondition(t, scenes, "rose", models.TriggerReaction, "🌹")
	addCondition(t, scenes, "poll_opt", models.TriggerPollAnswered, "poll1:opt2")
	addCondition(t, scenes, "poll_any", models.TriggerPollAnswered, "poll2")

	ctx := context.Background()

	require.NoError(t, dispatcher.Process(ctx, NewReactionEvent("user1", "🌹")))
	require.NoError(t, dispatcher.Process(ctx, NewReactionEvent("user1", "👍")))

	// Specific option binding wins over whole-poll binding.
	require.NoError(t, dispatcher.Process(ctx, NewPollAnsweredEvent("user1", "poll1", "opt2")))
	require.NoError(t, dispatcher.Process(ctx, NewPollAnsweredEvent("user1", "poll2", "optX")))

	assert.Equal(t, []string{"rose", "poll_opt", "poll_any"}, presenter.presentedScenes())
}

func TestProcess_UnknownKind(t *testing.T) {
	dispatcher, _, _, _ := newTestDispatcher(t, TrustDeltas{})

	err := dispatcher.Process(context.Background(), GameEvent{UserID: "user1", Kind: "mystery"})
	assert.Error(t, err)
}

func TestProcess_TrustGateBlocksScene(t *testing.T) {
	dispatcher, scenes, trust, presenter := newTestDispatcher(t, TrustDeltas{})
	addScene(t, scenes, &models.Scene{SceneID: "deep", Character: "Diana", Dialogue: "...", MinTrust: 0.5})
	addCondition(t, scenes, "deep", models.TriggerMissionCompleted, "m1")

	ctx := context.Background()

	require.NoError(t, dispatcher.Process(ctx, NewMissionCompletedEvent("user1", "m1")))
	assert.Empty(t, presenter.presentedScenes())

	// Raise trust past the gate; the same trigger now delivers.
	_, err := trust.Mutate(ctx, "user1", func(s *models.TrustState) error {
		s.TrustValue = 0.6
		s.RelationshipStage = models.StageForTrust(0.6)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, dispatcher.Process(ctx, NewMissionCompletedEvent("user1", "m1")))
	assert.Equal(t, []string{"deep"}, presenter.presentedScenes())
}

func TestProcess_StageMilestoneScene(t *testing.T) {
	deltas := TrustDeltas{Reaction: 0.1}
	dispatcher, scenes, _, presenter := newTestDispatcher(t, deltas)
	addScene(t, scenes, &models.Scene{SceneID: "warmup", Character: "Diana", Dialogue: "..."})
	addCondition(t, scenes, "warmup", models.TriggerRelationshipMilestone, models.StageCurious)

	// The reaction pushes trust 0 -> 0.1, crossing into Curious.
	require.NoError(t, dispatcher.Process(context.Background(), NewReactionEvent("user1", "👍")))
	assert.Equal(t, []string{"warmup"}, presenter.presentedScenes())
}

func TestProcess_DeliveryFailureDoesNotRollBack(t *testing.T) {
	dispatcher, scenes, _, presenter := newTestDispatcher(t, TrustDeltas{})
	presenter.failErr = errors.New("dms closed")
	addScene(t, scenes, &models.Scene{SceneID: "s1", Character: "Diana", Dialogue: "..."})
	addCondition(t, scenes, "s1", models.TriggerMissionCompleted, "m1")

	ctx := context.Background()

	// Delivery fails but Process succeeds and the scene stays consumed.
	require.NoError(t, dispatcher.Process(ctx, NewMissionCompletedEvent("user1", "m1")))

	seen, err := scenes.HasSeen(ctx, "user1", "s1")
	require.NoError(t, err)
	assert.True(t, seen)

	presenter.failErr = nil
	require.NoError(t, dispatcher.Process(ctx, NewMissionCompletedEvent("user1", "m1")))
	assert.Empty(t, presenter.presentedScenes())
}

func TestProcess_ConcurrentEventsPresentOnce(t *testing.T) {
	dispatcher, scenes, _, presenter := newTestDispatcher(t, TrustDeltas{})
	addScene(t, scenes, &models.Scene{SceneID: "s1", Character: "Diana", Dialogue: "..."})
	addCondition(t, scenes, "s1", models.TriggerMissionCompleted, "m1")

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = dispatcher.Process(context.Background(), NewMissionCompletedEvent("user1", "m1"))
		}()
	}
	wg.Wait()

	assert.Len(t, presenter.presentedScenes(), 1)
}

func TestProcess_AdvancesStorylineWithoutTrigger(t *testing.T) {
	dispatcher, scenes, _, presenter := newTestDispatcher(t, TrustDeltas{})
	addScene(t, scenes, &models.Scene{SceneID: "intro", Storyline: models.StorylineMain, OrderPosition: 1, Character: "Diana", Dialogue: "..."})

	// No trigger condition matches the event, so the dispatch advances the
	// main storyline instead of waiting for the periodic sweep.
	require.NoError(t, dispatcher.Process(context.Background(), NewReactionEvent("user1", "👍")))
	assert.Equal(t, []string{"intro"}, presenter.presentedScenes())
}

func TestProcess_EventSceneTakesTheDispatchSlot(t *testing.T) {
	dispatcher, scenes, _, presenter := newTestDispatcher(t, TrustDeltas{})
	addScene(t, scenes, &models.Scene{SceneID: "rose", Character: "Diana", Dialogue: "..."})
	addCondition(t, scenes, "rose", models.TriggerReaction, "🌹")
	addScene(t, scenes, &models.Scene{SceneID: "intro", Storyline: models.StorylineMain, OrderPosition: 1, Character: "Diana", Dialogue: "..."})

	ctx := context.Background()

	// The triggered scene uses the one-scene slot; the storyline waits.
	require.NoError(t, dispatcher.Process(ctx, NewReactionEvent("user1", "🌹")))
	assert.Equal(t, []string{"rose"}, presenter.presentedScenes())

	// With the trigger consumed, the next event lets the storyline advance.
	require.NoError(t, dispatcher.Process(ctx, NewReactionEvent("user1", "🌹")))
	assert.Equal(t, []string{"rose", "intro"}, presenter.presentedScenes())
}

func TestProcess_TrustStoreFailurePropagates(t *testing.T) {
	dispatcher, _, trust, presenter := newTestDispatcher(t, TrustDeltas{})
	trust.getErr = errors.New("connection refused")

	err := dispatcher.Process(context.Background(), NewReactionEvent("user1", "👍"))
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Empty(t, presenter.presentedScenes())
}

func TestCheckProgression_OrderAndPrerequisites(t *testing.T) {
	dispatcher, scenes, _, presenter := newTestDispatcher(t, TrustDeltas{})
	addScene(t, scenes, &models.Scene{SceneID: "ch1", Storyline: models.StorylineMain, OrderPosition: 1, Character: "Diana", Dialogue: "..."})
	addScene(t, scenes, &models.Scene{SceneID: "ch2", Storyline: models.StorylineMain, OrderPosition: 2, Character: "Diana", Dialogue: "...", Prerequisites: []string{"ch1"}})
	addScene(t, scenes, &models.Scene{SceneID: "ch3", Storyline: models.StorylineMain, OrderPosition: 3, Character: "Diana", Dialogue: "...", Prerequisites: []string{"ch2"}})

	ctx := context.Background()

	// One scene per sweep, in order.
	require.NoError(t, dispatcher.CheckProgression(ctx, "user1"))
	require.NoError(t, dispatcher.CheckProgression(ctx, "user1"))
	assert.Equal(t, []string{"ch1", "ch2"}, presenter.presentedScenes())

	require.NoError(t, dispatcher.CheckProgression(ctx, "user1"))
	assert.Equal(t, []string{"ch1", "ch2", "ch3"}, presenter.presentedScenes())

	// Everything seen: further sweeps do nothing.
	require.NoError(t, dispatcher.CheckProgression(ctx, "user1"))
	assert.Len(t, presenter.presentedScenes(), 3)
}

func TestCheckProgression_StageGate(t *testing.T) {
	dispatcher, scenes, trust, presenter := newTestDispatcher(t, TrustDeltas{})
	addScene(t, scenes, &models.Scene{SceneID: "ch1", Storyline: models.StorylineMain, OrderPosition: 1, Character: "Diana", Dialogue: "...", MinStage: models.StageTrusted})

	ctx := context.Background()

	require.NoError(t, dispatcher.CheckProgression(ctx, "user1"))
	assert.Empty(t, presenter.presentedScenes())

	_, err := trust.Mutate(ctx, "user1", func(s *models.TrustState) error {
		s.TrustValue = 0.45
		s.RelationshipStage = models.StageForTrust(0.45)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, dispatcher.CheckProgression(ctx, "user1"))
	assert.Equal(t, []string{"ch1"}, presenter.presentedScenes())
}
