package models

import (
	"sort"
	"time"

	"github.com/uptrace/bun"
)

// CombinationRule unlocks RewardCode when a user combines exactly the set of
// RequiredCodes. Rules must be unique by required-set; RewardCode must not
// appear in RequiredCodes.
type CombinationRule struct {
	bun.BaseModel `bun:"table:combination_rules,alias:cr"`

	ID            int64     `bun:"id,pk,autoincrement"`
	RequiredCodes []string  `bun:"required_codes,array,notnull"`
	RewardCode    string    `bun:"reward_code,notnull"`
	IsActive      bool      `bun:"is_active,notnull,default:true"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

// RequiredSet returns the required codes as a set, collapsing duplicates.
func (r *CombinationRule) RequiredSet() map[string]struct{} {
	set := make(map[string]struct{}, len(r.RequiredCodes))
	for _, code := range r.RequiredCodes {
		set[code] = struct{}{}
	}
	return set
}

// SetKey returns a canonical identity for the required set, used to detect
// duplicate rules in configuration data.
func (r *CombinationRule) SetKey() string {
	codes := make([]string, 0, len(r.RequiredCodes))
	seen := make(map[string]struct{}, len(r.RequiredCodes))
	for _, code := range r.RequiredCodes {
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	sort.Strings(codes)
	key := ""
	for i, code := range codes {
		if i > 0 {
			key += ","
		}
		key += code
	}
	return key
}

// Matches reports whether the normalized selection is exactly the required
// set: order-independent, no extras, no missing members.
func (r *CombinationRule) Matches(selection map[string]struct{}) bool {
	required := r.RequiredSet()
	if len(required) != len(selection) {
		return false
	}
	for code := range required {
		if _, ok := selection[code]; !ok {
			return false
		}
	}
	return true
}
