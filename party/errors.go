package party

import "errors"

// All failures are synchronous and non-retryable within the same call. The
// caller must correct the violated precondition and reissue. No partial state
// mutation occurs before any of these are returned.
var (
	ErrNoRoundsStarted      = errors.New("no rounds have been started")
	ErrRoundNotActive       = errors.New("current round is not active")
	ErrRoundOver            = errors.New("current round is over")
	ErrRegistrationClosed   = errors.New("registration is closed")
	ErrAlreadyRegistered    = errors.New("user is already registered")
	ErrNotRegistered        = errors.New("user is not registered")
	ErrTooManyVotes         = errors.New("ballot exceeds remaining vote budget")
	ErrVoterEliminated      = errors.New("voter has been eliminated")
	ErrRecipientEliminated  = errors.New("recipient has been eliminated")
	ErrPreviousRoundNotOver = errors.New("previous round is not over")
	ErrNotAdmin             = errors.New("caller is not the administrator")
	ErrInvalidPagination    = errors.New("page size and page must be at least 1")
	ErrReentrantCall        = errors.New("re-entrant call into the engine")
)
