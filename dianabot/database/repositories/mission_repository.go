package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dianabotdeep/dianabot/dianabot/database/models"
	"github.com/uptrace/bun"
)

type MissionRepository interface {
	// Definitions
	GetDefinition(ctx context.Context, missionID string) (*models.MissionDefinition, error)
	GetDefinitionsByKind(ctx context.Context, kind string) ([]*models.MissionDefinition, error)
	GetAllDefinitions(ctx context.Context) ([]*models.MissionDefinition, error)
	CreateDefinition(ctx context.Context, def *models.MissionDefinition) error

	// User progress
	GetProgress(ctx context.Context, userID, missionID string) (*models.MissionProgress, error)
	GetAllProgress(ctx context.Context, userID string) ([]*models.MissionProgress, error)
	MutateProgress(ctx context.Context, userID, missionID string, fn func(*models.MissionProgress) error) (*models.MissionProgress, error)
}

type missionRepository struct {
	db *bun.DB
}

func NewMissionRepository(db *bun.DB) MissionRepository {
	return &missionRepository{db: db}
}

func (r *missionRepository) GetDefinition(ctx context.Context, missionID string) (*models.MissionDefinition, error) {
	def := new(models.MissionDefinition)
	err := r.db.NewSelect().
		Model(def).
		Where("mission_id = ?", missionID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Entity: "mission", ID: missionID}
		}
		return nil, err
	}

	return def, nil
}

func (r *missionRepository) GetDefinitionsByKind(ctx context.Context, kind string) ([]*models.MissionDefinition, error) {
	var defs []*models.MissionDefinition
	err := r.db.NewSelect().
		Model(&defs).
		Where("kind = ?", kind).
		Where("is_active = ?", true).
		Order("mission_id ASC").
		Scan(ctx)

	return defs, err
}

func (r *missionRepository) GetAllDefinitions(ctx context.Context) ([]*models.MissionDefinition, error) {
	var defs []*models.MissionDefinition
	err := r.db.NewSelect().
		Model(&defs).
		Where("is_active = ?", true).
		Order("kind ASC", "mission_id ASC").
		Scan(ctx)

	return defs, err
}

func (r *missionRepository) CreateDefinition(ctx context.Context, def *models.MissionDefinition) error {
	def.CreatedAt = time.Now()
	def.UpdatedAt = time.Now()
	_, err := r.db.NewInsert().Model(def).Exec(ctx)
	return err
}

func (r *missionRepository) GetProgress(ctx context.Context, userID, missionID string) (*models.MissionProgress, error) {
	progress := new(models.MissionProgress)
	err := r.db.NewSelect().
		Model(progress).
		Relation("Definition").
		Where("mp.user_id = ? AND mp.mission_id = ?", userID, missionID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return progress, nil
}

func (r *missionRepository) GetAllProgress(ctx context.Context, userID string) ([]*models.MissionProgress, error) {
	var progress []*models.MissionProgress
	err := r.db.NewSelect().
		Model(&progress).
		Relation("Definition").
		Where("mp.user_id = ?", userID).
		Order("mp.mission_id ASC").
		Scan(ctx)

	return progress, err
}

// MutateProgress applies fn to the progress entry for (userID, missionID)
// inside a transaction holding a row lock, creating the entry lazily on
// first use. Concurrent calls for the same key serialize on the lock, which
// is what makes completion transitions fire exactly once.
func (r *missionRepository) MutateProgress(ctx context.Context, userID, missionID string, fn func(*models.MissionProgress) error) (*models.MissionProgress, error) {
	progress := new(models.MissionProgress)

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now()

		// Lazy create; ON CONFLICT keeps a concurrent first-touch harmless.
		seed := &models.MissionProgress{
			UserID:    userID,
			MissionID: missionID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := tx.NewInsert().
			Model(seed).
			On("CONFLICT (user_id, mission_id) DO NOTHING").
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to seed mission progress: %w", err)
		}

		if err := tx.NewSelect().
			Model(progress).
			Where("user_id = ? AND mission_id = ?", userID, missionID).
			For("UPDATE").
			Scan(ctx); err != nil {
			return fmt.Errorf("failed to lock mission progress: %w", err)
		}

		if err := fn(progress); err != nil {
			return err
		}

		progress.UpdatedAt = time.Now()
		_, err := tx.NewUpdate().
			Model(progress).
			WherePK().
			Exec(ctx)
		return err
	})

	if err != nil {
		return nil, err
	}

	return progress, nil
}
