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

type UserRepository interface {
	GetByDiscordID(ctx context.Context, discordID string) (*models.User, error)
	GetOrCreate(ctx context.Context, discordID, username string) (*models.User, error)
	Mutate(ctx context.Context, discordID string, fn func(*models.User) error) (*models.User, error)
	GetRecentlyActive(ctx context.Context, since time.Time) ([]string, error)
}

type userRepository struct {
	db *bun.DB
}

func NewUserRepository(db *bun.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByDiscordID(ctx context.Context, discordID string) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Where("discord_id = ?", discordID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Entity: "user", ID: discordID}
		}
		return nil, err
	}

	return user, nil
}

func (r *userRepository) GetOrCreate(ctx context.Context, discordID, username string) (*models.User, error) {
	now := time.Now()
	seed := &models.User{
		DiscordID:  discordID,
		Username:   username,
		Level:      1,
		Joined:     now,
		LastActive: now,
		UpdatedAt:  now,
	}

	if _, err := r.db.NewInsert().
		Model(seed).
		On("CONFLICT (discord_id) DO NOTHING").
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return r.GetByDiscordID(ctx, discordID)
}

// Mutate applies fn to the user row under a row lock, creating the row
// lazily. Used for the points balance so concurrent awards cannot lose
// updates.
func (r *userRepository) Mutate(ctx context.Context, discordID string, fn func(*models.User) error) (*models.User, error) {
	user := new(models.User)

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now()

		seed := &models.User{
			DiscordID:  discordID,
			Username:   discordID,
			Level:      1,
			Joined:     now,
			LastActive: now,
			UpdatedAt:  now,
		}
		if _, err := tx.NewInsert().
			Model(seed).
			On("CONFLICT (discord_id) DO NOTHING").
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}

		if err := tx.NewSelect().
			Model(user).
			Where("discord_id = ?", discordID).
			For("UPDATE").
			Scan(ctx); err != nil {
			return fmt.Errorf("failed to lock user: %w", err)
		}

		if err := fn(user); err != nil {
			return err
		}

		user.LastActive = time.Now()
		user.UpdatedAt = user.LastActive
		_, err := tx.NewUpdate().
			Model(user).
			WherePK().
			Exec(ctx)
		return err
	})

	if err != nil {
		return nil, err
	}

	return user, nil
}

func (r *userRepository) GetRecentlyActive(ctx context.Context, since time.Time) ([]string, error) {
	var users []*models.User
	err := r.db.NewSelect().
		Model(&users).
		Column("discord_id").
		Where("last_active >= ?", since).
		Order("last_active DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.DiscordID)
	}
	return ids, nil
}
