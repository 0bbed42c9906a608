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

type TrustRepository interface {
	Get(ctx context.Context, userID string) (*models.TrustState, error)
	Mutate(ctx context.Context, userID string, fn func(*models.TrustState) error) (*models.TrustState, error)
}

type trustRepository struct {
	db *bun.DB
}

func NewTrustRepository(db *bun.DB) TrustRepository {
	return &trustRepository{db: db}
}

func (r *trustRepository) Get(ctx context.Context, userID string) (*models.TrustState, error) {
	state := new(models.TrustState)
	err := r.db.NewSelect().
		Model(state).
		Where("user_id = ?", userID).
		Scan(ctx)

	if err != nil {
		// A user without a row is simply a stranger; anything else is a real
		// store failure and must surface to the caller.
		if errors.Is(err, sql.ErrNoRows) {
			return &models.TrustState{
				UserID:            userID,
				TrustValue:        0,
				RelationshipStage: models.StageStranger,
			}, nil
		}
		return nil, fmt.Errorf("failed to get trust state: %w", err)
	}

	return state, nil
}

// Mutate applies fn to the user's trust row under a row lock, creating the
// row lazily at Stranger/0.0. Concurrent deltas for the same user serialize;
// different users proceed independently.
func (r *trustRepository) Mutate(ctx context.Context, userID string, fn func(*models.TrustState) error) (*models.TrustState, error) {
	state := new(models.TrustState)

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now()

		seed := &models.TrustState{
			UserID:            userID,
			TrustValue:        0,
			RelationshipStage: models.StageStranger,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if _, err := tx.NewInsert().
			Model(seed).
			On("CONFLICT (user_id) DO NOTHING").
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to seed trust state: %w", err)
		}

		if err := tx.NewSelect().
			Model(state).
			Where("user_id = ?", userID).
			For("UPDATE").
			Scan(ctx); err != nil {
			return fmt.Errorf("failed to lock trust state: %w", err)
		}

		if err := fn(state); err != nil {
			return err
		}

		state.UpdatedAt = time.Now()
		_, err := tx.NewUpdate().
			Model(state).
			WherePK().
			Exec(ctx)
		return err
	})

	if err != nil {
		return nil, err
	}

	return state, nil
}
