package limiter

import "errors"

var (
	// ErrInvalidRule reports rule parameters that cannot replenish,
	// such as a zero interval or zero quota.
	ErrInvalidRule = errors.New("invalid rate limit rule")
	// ErrInvalidFilter reports a key filter with an unknown kind.
	ErrInvalidFilter = errors.New("invalid key filter")
	// ErrFilterExists reports an attempt to add a whitelist filter that
	// is already present.
	ErrFilterExists = errors.New("whitelist filter already exists")
	// ErrFilterNotFound reports an attempt to remove a whitelist filter
	// that is not present.
	ErrFilterNotFound = errors.New("whitelist filter does not exist")
	// ErrTooManyFilters reports a whitelist grown past its capacity.
	ErrTooManyFilters = errors.New("whitelist filter capacity exceeded")
	// ErrExceedLimit reports a denied request: the requested amount is
	// above the remaining quota, or the rule denies everything.
	ErrExceedLimit = errors.New("rate limit exceeded")
)
