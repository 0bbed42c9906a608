package services

import (
	"context"
	"fmt"

	"github.com/sahilm/fuzzy"

	"github.com/dianabotdeep/dianabot/dianabot/database/models"
	"github.com/dianabotdeep/dianabot/dianabot/database/repositories"
)

// ownedSource adapts a user's collection for fuzzy matching on code names.
type ownedSource []*models.UserLorePiece

func (s ownedSource) String(i int) string { return s[i].CodeName }
func (s ownedSource) Len() int            { return len(s) }

// LoreSearch backs autocomplete over a user's owned lore pieces.
type LoreSearch struct {
	lore repositories.LoreRepository
}

func NewLoreSearch(lore repositories.LoreRepository) *LoreSearch {
	return &LoreSearch{lore: lore}
}

// SearchOwned fuzzy-matches query against the user's owned code names, best
// matches first. An empty query returns the collection in obtained order.
func (s *LoreSearch) SearchOwned(ctx context.Context, userID, query string, limit int) ([]*models.UserLorePiece, error) {
	owned, err := s.lore.GetOwned(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if query == "" {
		if limit > 0 && len(owned) > limit {
			owned = owned[:limit]
		}
		return owned, nil
	}

	matches := fuzzy.FindFrom(query, ownedSource(owned))
	results := make([]*models.UserLorePiece, 0, len(matches))
	for _, m := range matches {
		results = append(results, owned[m.Index])
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, nil
}
