package repositories

import (
	"context"
	"time"

	"github.com/dianabotdeep/dianabot/dianabot/database/models"
	"github.com/uptrace/bun"
)

type CombinationRepository interface {
	GetActiveRules(ctx context.Context) ([]*models.CombinationRule, error)
	GetRulesContaining(ctx context.Context, codeName string) ([]*models.CombinationRule, error)
	CreateRule(ctx context.Context, rule *models.CombinationRule) error
}

type combinationRepository struct {
	db *bun.DB
}

func NewCombinationRepository(db *bun.DB) CombinationRepository {
	return &combinationRepository{db: db}
}

func (r *combinationRepository) GetActiveRules(ctx context.Context) ([]*models.CombinationRule, error) {
	var rules []*models.CombinationRule
	err := r.db.NewSelect().
		Model(&rules).
		Where("is_active = ?", true).
		Order("id ASC").
		Scan(ctx)

	return rules, err
}

func (r *combinationRepository) GetRulesContaining(ctx context.Context, codeName string) ([]*models.CombinationRule, error) {
	var rules []*models.CombinationRule
	err := r.db.NewSelect().
		Model(&rules).
		Where("is_active = ?", true).
		Where("? = ANY(required_codes)", codeName).
		Order("id ASC").
		Scan(ctx)

	return rules, err
}

func (r *combinationRepository) CreateRule(ctx context.Context, rule *models.CombinationRule) error {
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = time.Now()
	_, err := r.db.NewInsert().Model(rule).Exec(ctx)
	return err
}
