package services

import "errors"

var (
	// ErrNotFound reports a referenced mission, rule, scene, or user that
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrItemNotOwned reports a combination attempt including a lore code
	// the user does not hold. Distinct from a wrong recipe, which is not an
	// error at all.
	ErrItemNotOwned = errors.New("item not owned")

	// ErrAlreadyCompleted is informational: the mission was already
	// completed for the current period.
	ErrAlreadyCompleted = errors.New("mission already completed")

	// ErrStoreUnavailable reports a transient persistence failure. The core
	// never retries; that is the caller's concern.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidRule reports configuration data violating an invariant,
	// such as two combination rules sharing a required set.
	ErrInvalidRule = errors.New("invalid combination rule")
)
