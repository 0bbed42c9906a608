package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/dianabotdeep/dianabot/dianabot/database/models"
	"github.com/dianabotdeep/dianabot/dianabot/database/repositories"
)

// CombinationResult reports one combination attempt. A wrong recipe is not an
// error: Matched is false and nothing changed.
type CombinationResult struct {
	Matched      bool
	RewardCode   string
	NewlyGranted bool
	Reward       *models.LorePiece
}

// CombinationResolver matches user-selected lore pieces against combination
// rules. Matching is exact set equality: order-independent, duplicates
// collapsed, no extras, no missing members.
type CombinationResolver struct {
	rules    repositories.CombinationRepository
	lore     repositories.LoreRepository
	notifier Notifier
	log      *slog.Logger
}

func NewCombinationResolver(
	rules repositories.CombinationRepository,
	lore repositories.LoreRepository,
	notifier Notifier,
	log *slog.Logger,
) *CombinationResolver {
	return &CombinationResolver{
		rules:    rules,
		lore:     lore,
		notifier: notifier,
		log:      log.With(slog.String("service", "combinations")),
	}
}

// AttemptCombination resolves a selection of lore codes. Ownership of every
// selected piece is checked before any matching happens, so a user cannot
// probe recipes with codes they have only heard of. The reward grant is
// idempotent; re-running a successful combination leaves state untouched and
// reports NewlyGranted false.
func (r *CombinationResolver) AttemptCombination(ctx context.Context, userID string, codes []string) (*CombinationResult, error) {
	selection := normalizeCodes(codes)
	if len(selection) < 2 {
		return nil, fmt.Errorf("%w: a combination needs at least two distinct pieces", ErrNotFound)
	}

	ordered := make([]string, 0, len(selection))
	for code := range selection {
		ordered = append(ordered, code)
	}
	sort.Strings(ordered)

	owned, err := r.lore.OwnedSet(ctx, userID, ordered)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	for _, code := range ordered {
		if !owned[code] {
			// Distinguish an unknown code from one the user simply lacks.
			if _, err := r.lore.GetPiece(ctx, code); err != nil {
				if repositories.IsNotFound(err) {
					return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
				}
				return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
			return nil, fmt.Errorf("%w: %s", ErrItemNotOwned, code)
		}
	}

	rules, err := r.rules.GetActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var matched *models.CombinationRule
	for _, rule := range rules {
		if !rule.Matches(selection) {
			continue
		}
		if matched != nil {
			// Two rules with the same required set is a data bug. First one
			// by ID wins; the duplicate gets logged so someone fixes it.
			r.log.Warn("Duplicate combination rules for required set",
				slog.Int64("rule_id", matched.ID),
				slog.Int64("duplicate_id", rule.ID))
			continue
		}
		matched = rule
	}

	if matched == nil {
		return &CombinationResult{Matched: false}, nil
	}

	granted, err := r.lore.Grant(ctx, userID, matched.RewardCode, models.UnlockSourceCombination)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	result := &CombinationResult{
		Matched:      true,
		RewardCode:   matched.RewardCode,
		NewlyGranted: granted,
	}

	if piece, err := r.lore.GetPiece(ctx, matched.RewardCode); err == nil {
		result.Reward = piece
	}

	if granted {
		r.log.Info("Combination unlocked reward",
			slog.String("user_id", userID),
			slog.String("reward_code", matched.RewardCode))
		if r.notifier != nil && result.Reward != nil {
			r.notifier.NotifyUnlock(ctx, userID, result.Reward)
		}
	}

	return result, nil
}

// FindPossibleCombinations returns the rules containing anchorCode whose every
// other required code the user already owns, so each returned rule is a recipe
// the user can complete right now. Rules whose reward the user already holds
// are omitted.
func (r *CombinationResolver) FindPossibleCombinations(ctx context.Context, userID, anchorCode string) ([]*models.CombinationRule, error) {
	anchor := strings.ToLower(strings.TrimSpace(anchorCode))
	if anchor == "" {
		return nil, fmt.Errorf("%w: empty anchor code", ErrNotFound)
	}

	rules, err := r.rules.GetRulesContaining(ctx, anchor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	ownedPieces, err := r.lore.GetOwned(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	owned := make(map[string]bool, len(ownedPieces))
	for _, p := range ownedPieces {
		owned[p.CodeName] = true
	}

	var ready []*models.CombinationRule
	for _, rule := range rules {
		if owned[rule.RewardCode] {
			continue
		}

		complete := true
		for code := range rule.RequiredSet() {
			if code == anchor {
				continue
			}
			if !owned[code] {
				complete = false
				break
			}
		}
		if complete {
			ready = append(ready, rule)
		}
	}

	sort.Slice(ready, func(i, j int) bool { return ready[i].ID < ready[j].ID })
	return ready, nil
}

// ValidateRules checks the active rule set for configuration bugs: duplicate
// required sets, rewards that appear in their own recipe, and recipes with
// fewer than two distinct codes.
func (r *CombinationResolver) ValidateRules(ctx context.Context) error {
	rules, err := r.rules.GetActiveRules(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	seen := make(map[string]int64, len(rules))
	for _, rule := range rules {
		if len(rule.RequiredSet()) < 2 {
			return fmt.Errorf("%w: rule %d needs at least two distinct required codes", ErrInvalidRule, rule.ID)
		}
		if _, ok := rule.RequiredSet()[rule.RewardCode]; ok {
			return fmt.Errorf("%w: rule %d rewards one of its own ingredients", ErrInvalidRule, rule.ID)
		}
		key := rule.SetKey()
		if other, ok := seen[key]; ok {
			return fmt.Errorf("%w: rules %d and %d share required set %s", ErrInvalidRule, other, rule.ID, key)
		}
		seen[key] = rule.ID
	}
	return nil
}

// normalizeCodes lowercases, trims, and deduplicates a raw selection.
func normalizeCodes(codes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		code = strings.ToLower(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		set[code] = struct{}{}
	}
	return set
}
