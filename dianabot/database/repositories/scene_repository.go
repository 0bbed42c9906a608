package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dianabotdeep/dianabot/dianabot/database/models"
	"github.com/uptrace/bun"
)

type SceneRepository interface {
	GetScene(ctx context.Context, sceneID string) (*models.Scene, error)
	GetByStoryline(ctx context.Context, storyline string) ([]*models.Scene, error)
	CreateScene(ctx context.Context, scene *models.Scene) error

	GetConditionsByType(ctx context.Context, triggerType string) ([]*models.SceneCondition, error)
	GetCondition(ctx context.Context, triggerType, triggerValue string) (*models.SceneCondition, error)
	CreateCondition(ctx context.Context, cond *models.SceneCondition) error

	HasSeen(ctx context.Context, userID, sceneID string) (bool, error)
	SeenSet(ctx context.Context, userID string) (map[string]bool, error)
	MarkSeen(ctx context.Context, userID, sceneID string) (bool, error)
}

type sceneRepository struct {
	db *bun.DB
}

func NewSceneRepository(db *bun.DB) SceneRepository {
	return &sceneRepository{db: db}
}

func (r *sceneRepository) GetScene(ctx context.Context, sceneID string) (*models.Scene, error) {
	scene := new(models.Scene)
	err := r.db.NewSelect().
		Model(scene).
		Where("scene_id = ?", sceneID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Entity: "scene", ID: sceneID}
		}
		return nil, err
	}

	return scene, nil
}

func (r *sceneRepository) GetByStoryline(ctx context.Context, storyline string) ([]*models.Scene, error) {
	var scenes []*models.Scene
	err := r.db.NewSelect().
		Model(&scenes).
		Where("storyline = ?", storyline).
		Order("order_position ASC", "scene_id ASC").
		Scan(ctx)

	return scenes, err
}

func (r *sceneRepository) CreateScene(ctx context.Context, scene *models.Scene) error {
	scene.CreatedAt = time.Now()
	scene.UpdatedAt = time.Now()
	_, err := r.db.NewInsert().Model(scene).Exec(ctx)
	return err
}

func (r *sceneRepository) GetConditionsByType(ctx context.Context, triggerType string) ([]*models.SceneCondition, error) {
	var conds []*models.SceneCondition
	err := r.db.NewSelect().
		Model(&conds).
		Where("trigger_type = ?", triggerType).
		Where("is_active = ?", true).
		Order("id ASC").
		Scan(ctx)

	return conds, err
}

func (r *sceneRepository) GetCondition(ctx context.Context, triggerType, triggerValue string) (*models.SceneCondition, error) {
	cond := new(models.SceneCondition)
	err := r.db.NewSelect().
		Model(cond).
		Where("trigger_type = ? AND trigger_value = ?", triggerType, triggerValue).
		Where("is_active = ?", true).
		Order("id ASC").
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return cond, nil
}

func (r *sceneRepository) CreateCondition(ctx context.Context, cond *models.SceneCondition) error {
	cond.CreatedAt = time.Now()
	_, err := r.db.NewInsert().Model(cond).Exec(ctx)
	return err
}

func (r *sceneRepository) HasSeen(ctx context.Context, userID, sceneID string) (bool, error) {
	return r.db.NewSelect().
		Model((*models.SceneSeen)(nil)).
		Where("user_id = ? AND scene_id = ?", userID, sceneID).
		Exists(ctx)
}

func (r *sceneRepository) SeenSet(ctx context.Context, userID string) (map[string]bool, error) {
	var rows []*models.SceneSeen
	err := r.db.NewSelect().
		Model(&rows).
		Column("scene_id").
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		seen[row.SceneID] = true
	}
	return seen, nil
}

// MarkSeen records the Unseen -> Presented transition. The insert succeeds
// for exactly one caller per (user, scene); everyone else gets false, which
// is the at-most-once guarantee the dispatcher relies on.
func (r *sceneRepository) MarkSeen(ctx context.Context, userID, sceneID string) (bool, error) {
	row := &models.SceneSeen{
		UserID:  userID,
		SceneID: sceneID,
		SeenAt:  time.Now(),
	}

	res, err := r.db.NewInsert().
		Model(row).
		On("CONFLICT (user_id, scene_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
