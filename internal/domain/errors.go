package domain

import "errors"

// Domain errors
var (
	ErrGameNotFound   = errors.New("game not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrScoreNotFound  = errors.New("score not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternalError  = errors.New("internal server error")

	// ErrAggregateLag signals a partial success: the play was durably
	// recorded but the aggregate counters could not be updated yet. The
	// reconciliation worker repairs the gap.
	ErrAggregateLag = errors.New("play recorded but points update is pending")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrGameNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrScoreNotFound)
}
