package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dianabotdeep/dianabot/dianabot/database/models"
	"github.com/uptrace/bun"
)

type LoreRepository interface {
	GetPiece(ctx context.Context, codeName string) (*models.LorePiece, error)
	GetAllPieces(ctx context.Context) ([]*models.LorePiece, error)
	CreatePiece(ctx context.Context, piece *models.LorePiece) error

	GetOwned(ctx context.Context, userID string) ([]*models.UserLorePiece, error)
	Owns(ctx context.Context, userID, codeName string) (bool, error)
	OwnedSet(ctx context.Context, userID string, codeNames []string) (map[string]bool, error)
	Grant(ctx context.Context, userID, codeName, source string) (bool, error)
}

type loreRepository struct {
	db *bun.DB
}

func NewLoreRepository(db *bun.DB) LoreRepository {
	return &loreRepository{db: db}
}

func (r *loreRepository) GetPiece(ctx context.Context, codeName string) (*models.LorePiece, error) {
	piece := new(models.LorePiece)
	err := r.db.NewSelect().
		Model(piece).
		Where("code_name = ?", codeName).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Entity: "lore piece", ID: codeName}
		}
		return nil, err
	}

	return piece, nil
}

func (r *loreRepository) GetAllPieces(ctx context.Context) ([]*models.LorePiece, error) {
	var pieces []*models.LorePiece
	err := r.db.NewSelect().
		Model(&pieces).
		Order("code_name ASC").
		Scan(ctx)

	return pieces, err
}

func (r *loreRepository) CreatePiece(ctx context.Context, piece *models.LorePiece) error {
	piece.CreatedAt = time.Now()
	piece.UpdatedAt = time.Now()
	_, err := r.db.NewInsert().Model(piece).Exec(ctx)
	return err
}

func (r *loreRepository) GetOwned(ctx context.Context, userID string) ([]*models.UserLorePiece, error) {
	var owned []*models.UserLorePiece
	err := r.db.NewSelect().
		Model(&owned).
		Relation("Piece").
		Where("ulp.user_id = ?", userID).
		Order("ulp.obtained_at ASC").
		Scan(ctx)

	return owned, err
}

func (r *loreRepository) Owns(ctx context.Context, userID, codeName string) (bool, error) {
	return r.db.NewSelect().
		Model((*models.UserLorePiece)(nil)).
		Where("user_id = ? AND code_name = ?", userID, codeName).
		Exists(ctx)
}

func (r *loreRepository) OwnedSet(ctx context.Context, userID string, codeNames []string) (map[string]bool, error) {
	owned := make(map[string]bool, len(codeNames))
	if len(codeNames) == 0 {
		return owned, nil
	}

	var rows []*models.UserLorePiece
	err := r.db.NewSelect().
		Model(&rows).
		Column("code_name").
		Where("user_id = ?", userID).
		Where("code_name IN (?)", bun.In(codeNames)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		owned[row.CodeName] = true
	}
	return owned, nil
}

// Grant records ownership of a lore piece. Granting is idempotent: a piece
// the user already owns is left untouched and Grant reports false, which is
// how callers distinguish a first unlock from a repeat.
func (r *loreRepository) Grant(ctx context.Context, userID, codeName, source string) (bool, error) {
	row := &models.UserLorePiece{
		UserID:     userID,
		CodeName:   codeName,
		Source:     source,
		ObtainedAt: time.Now(),
	}

	res, err := r.db.NewInsert().
		Model(row).
		On("CONFLICT (user_id, code_name) DO NOTHING").
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
