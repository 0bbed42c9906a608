package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dianabotdeep/dianabot/dianabot/database/models"
	"github.com/dianabotdeep/dianabot/dianabot/database/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// In-memory repository fakes. Each fake serializes its Mutate-style methods
// behind a mutex, mirroring the row locks the real repositories take.

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (r *fakeUserRepo) GetByDiscordID(_ context.Context, discordID string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[discordID]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "user", ID: discordID}
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetOrCreate(_ context.Context, discordID, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[discordID]; ok {
		copied := *user
		return &copied, nil
	}
	user := &models.User{DiscordID: discordID, Username: username, Level: 1}
	r.users[discordID] = user
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) Mutate(_ context.Context, discordID string, fn func(*models.User) error) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[discordID]
	if !ok {
		user = &models.User{DiscordID: discordID, Username: discordID, Level: 1}
		r.users[discordID] = user
	}
	if err := fn(user); err != nil {
		return nil, err
	}
	user.LastActive = time.Now()
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetRecentlyActive(_ context.Context, since time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, user := range r.users {
		if !user.LastActive.Before(since) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type fakeMissionRepo struct {
	mu       sync.Mutex
	defs     map[string]*models.MissionDefinition
	progress map[string]*models.MissionProgress
}

func newFakeMissionRepo() *fakeMissionRepo {
	return &fakeMissionRepo{
		defs:     make(map[string]*models.MissionDefinition),
		progress: make(map[string]*models.MissionProgress),
	}
}

func progressKey(userID, missionID string) string {
	return userID + "|" + missionID
}

func (r *fakeMissionRepo) GetDefinition(_ context.Context, missionID string) (*models.MissionDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	def, ok := r.defs[missionID]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "mission", ID: missionID}
	}
	return def, nil
}

func (r *fakeMissionRepo) GetDefinitionsByKind(_ context.Context, kind string) ([]*models.MissionDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var defs []*models.MissionDefinition
	for _, def := range r.defs {
		if def.Kind == kind && def.IsActive {
			defs = append(defs, def)
		}
	}
	return defs, nil
}

func (r *fakeMissionRepo) GetAllDefinitions(_ context.Context) ([]*models.MissionDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var defs []*models.MissionDefinition
	for _, def := range r.defs {
		if def.IsActive {
			defs = append(defs, def)
		}
	}
	return defs, nil
}

func (r *fakeMissionRepo) CreateDefinition(_ context.Context, def *models.MissionDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.MissionID] = def
	return nil
}

func (r *fakeMissionRepo) GetProgress(_ context.Context, userID, missionID string) (*models.MissionProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	progress, ok := r.progress[progressKey(userID, missionID)]
	if !ok {
		return nil, nil
	}
	copied := *progress
	return &copied, nil
}

func (r *fakeMissionRepo) GetAllProgress(_ context.Context, userID string) ([]*models.MissionProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*models.MissionProgress
	for _, progress := range r.progress {
		if progress.UserID == userID {
			copied := *progress
			all = append(all, &copied)
		}
	}
	return all, nil
}

func (r *fakeMissionRepo) MutateProgress(_ context.Context, userID, missionID string, fn func(*models.MissionProgress) error) (*models.MissionProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := progressKey(userID, missionID)
	progress, ok := r.progress[key]
	if !ok {
		progress = &models.MissionProgress{UserID: userID, MissionID: missionID}
		r.progress[key] = progress
	}
	if err := fn(progress); err != nil {
		return nil, err
	}
	copied := *progress
	return &copied, nil
}

type fakeLoreRepo struct {
	mu     sync.Mutex
	pieces map[string]*models.LorePiece
	owned  map[string]map[string]string // userID -> code -> source
}

func newFakeLoreRepo() *fakeLoreRepo {
	return &fakeLoreRepo{
		pieces: make(map[string]*models.LorePiece),
		owned:  make(map[string]map[string]string),
	}
}

func (r *fakeLoreRepo) addPiece(codeName string) {
	r.pieces[codeName] = &models.LorePiece{CodeName: codeName, Title: codeName, Content: "..."}
}

func (r *fakeLoreRepo) give(userID string, codes ...string) {
	if r.owned[userID] == nil {
		r.owned[userID] = make(map[string]string)
	}
	for _, code := range codes {
		r.owned[userID][code] = models.UnlockSourceGrant
	}
}

func (r *fakeLoreRepo) GetPiece(_ context.Context, codeName string) (*models.LorePiece, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	piece, ok := r.pieces[codeName]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "lore piece", ID: codeName}
	}
	return piece, nil
}

func (r *fakeLoreRepo) GetAllPieces(_ context.Context) ([]*models.LorePiece, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pieces []*models.LorePiece
	for _, piece := range r.pieces {
		pieces = append(pieces, piece)
	}
	return pieces, nil
}

func (r *fakeLoreRepo) CreatePiece(_ context.Context, piece *models.LorePiece) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pieces[piece.CodeName] = piece
	return nil
}

func (r *fakeLoreRepo) GetOwned(_ context.Context, userID string) ([]*models.UserLorePiece, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var owned []*models.UserLorePiece
	for code, source := range r.owned[userID] {
		owned = append(owned, &models.UserLorePiece{
			UserID:   userID,
			CodeName: code,
			Source:   source,
			Piece:    r.pieces[code],
		})
	}
	return owned, nil
}

func (r *fakeLoreRepo) Owns(_ context.Context, userID, codeName string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.owned[userID][codeName]
	return ok, nil
}

func (r *fakeLoreRepo) OwnedSet(_ context.Context, userID string, codeNames []string) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owned := make(map[string]bool, len(codeNames))
	for _, code := range codeNames {
		if _, ok := r.owned[userID][code]; ok {
			owned[code] = true
		}
	}
	return owned, nil
}

func (r *fakeLoreRepo) Grant(_ context.Context, userID, codeName, source string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owned[userID] == nil {
		r.owned[userID] = make(map[string]string)
	}
	if _, ok := r.owned[userID][codeName]; ok {
		return false, nil
	}
	r.owned[userID][codeName] = source
	return true, nil
}

type fakeCombinationRepo struct {
	mu    sync.Mutex
	rules []*models.CombinationRule
}

func (r *fakeCombinationRepo) GetActiveRules(_ context.Context) ([]*models.CombinationRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var active []*models.CombinationRule
	for _, rule := range r.rules {
		if rule.IsActive {
			active = append(active, rule)
		}
	}
	return active, nil
}

func (r *fakeCombinationRepo) GetRulesContaining(_ context.Context, codeName string) ([]*models.CombinationRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matches []*models.CombinationRule
	for _, rule := range r.rules {
		if !rule.IsActive {
			continue
		}
		for _, code := range rule.RequiredCodes {
			if code == codeName {
				matches = append(matches, rule)
				break
			}
		}
	}
	return matches, nil
}

func (r *fakeCombinationRepo) CreateRule(_ context.Context, rule *models.CombinationRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule.ID = int64(len(r.rules) + 1)
	r.rules = append(r.rules, rule)
	return nil
}

type fakeSceneRepo struct {
	mu     sync.Mutex
	scenes map[string]*models.Scene
	conds  []*models.SceneCondition
	seen   map[string]map[string]bool
}

func newFakeSceneRepo() *fakeSceneRepo {
	return &fakeSceneRepo{
		scenes: make(map[string]*models.Scene),
		seen:   make(map[string]map[string]bool),
	}
}

func (r *fakeSceneRepo) GetScene(_ context.Context, sceneID string) (*models.Scene, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	scene, ok := r.scenes[sceneID]
	if !ok {
		return nil, &repositories.NotFoundError{Entity: "scene", ID: sceneID}
	}
	return scene, nil
}

func (r *fakeSceneRepo) GetByStoryline(_ context.Context, storyline string) ([]*models.Scene, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var scenes []*models.Scene
	for _, scene := range r.scenes {
		if scene.Storyline == storyline {
			scenes = append(scenes, scene)
		}
	}
	for i := 0; i < len(scenes); i++ {
		for j := i + 1; j < len(scenes); j++ {
			if scenes[j].OrderPosition < scenes[i].OrderPosition {
				scenes[i], scenes[j] = scenes[j], scenes[i]
			}
		}
	}
	return scenes, nil
}

func (r *fakeSceneRepo) CreateScene(_ context.Context, scene *models.Scene) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scenes[scene.SceneID] = scene
	return nil
}

func (r *fakeSceneRepo) GetConditionsByType(_ context.Context, triggerType string) ([]*models.SceneCondition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var conds []*models.SceneCondition
	for _, cond := range r.conds {
		if cond.TriggerType == triggerType && cond.IsActive {
			conds = append(conds, cond)
		}
	}
	return conds, nil
}

func (r *fakeSceneRepo) GetCondition(_ context.Context, triggerType, triggerValue string) (*models.SceneCondition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cond := range r.conds {
		if cond.TriggerType == triggerType && cond.TriggerValue == triggerValue && cond.IsActive {
			return cond, nil
		}
	}
	return nil, nil
}

func (r *fakeSceneRepo) CreateCondition(_ context.Context, cond *models.SceneCondition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cond.ID = int64(len(r.conds) + 1)
	r.conds = append(r.conds, cond)
	return nil
}

func (r *fakeSceneRepo) HasSeen(_ context.Context, userID, sceneID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen[userID][sceneID], nil
}

func (r *fakeSceneRepo) SeenSet(_ context.Context, userID string) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool, len(r.seen[userID]))
	for sceneID := range r.seen[userID] {
		seen[sceneID] = true
	}
	return seen, nil
}

func (r *fakeSceneRepo) MarkSeen(_ context.Context, userID, sceneID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen[userID] == nil {
		r.seen[userID] = make(map[string]bool)
	}
	if r.seen[userID][sceneID] {
		return false, nil
	}
	r.seen[userID][sceneID] = true
	return true, nil
}

type fakeTrustRepo struct {
	mu     sync.Mutex
	states map[string]*models.TrustState
	getErr error
}

func newFakeTrustRepo() *fakeTrustRepo {
	return &fakeTrustRepo{states: make(map[string]*models.TrustState)}
}

func (r *fakeTrustRepo) Get(_ context.Context, userID string) (*models.TrustState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	state, ok := r.states[userID]
	if !ok {
		return &models.TrustState{UserID: userID, RelationshipStage: models.StageStranger}, nil
	}
	copied := *state
	return &copied, nil
}

func (r *fakeTrustRepo) Mutate(_ context.Context, userID string, fn func(*models.TrustState) error) (*models.TrustState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[userID]
	if !ok {
		state = &models.TrustState{UserID: userID, RelationshipStage: models.StageStranger}
		r.states[userID] = state
	}
	if err := fn(state); err != nil {
		return nil, err
	}
	copied := *state
	return &copied, nil
}

type fakePresenter struct {
	mu        sync.Mutex
	presented []string
	failErr   error
}

func (p *fakePresenter) Present(_ context.Context, userID string, scene *models.Scene) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failErr != nil {
		return p.failErr
	}
	p.presented = append(p.presented, scene.SceneID)
	return nil
}

func (p *fakePresenter) presentedScenes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.presented...)
}

type fakeNotifier struct {
	mu          sync.Mutex
	completions []string
	unlocks     []string
}

func (n *fakeNotifier) NotifyMissionComplete(_ context.Context, userID string, def *models.MissionDefinition, unlockedItem string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completions = append(n.completions, def.MissionID)
}

func (n *fakeNotifier) NotifyUnlock(_ context.Context, userID string, piece *models.LorePiece) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.unlocks = append(n.unlocks, piece.CodeName)
}
