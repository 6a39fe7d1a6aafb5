package exchange

import "errors"

var (
	// ErrInvalidOrder rejects malformed input at submission.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrUnknownOrder refers to an order that is not pending or resting.
	ErrUnknownOrder = errors.New("unknown order")
	// ErrNoLiquidity is transient: the quote side needed for a fill is absent.
	ErrNoLiquidity = errors.New("no liquidity")
	// ErrConstraintViolation aborts the owning session.
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrDataSync aborts the owning session when snapshot invariants break.
	ErrDataSync = errors.New("data synchronization error")

	ErrUnknownSession = errors.New("unknown session")
	ErrSessionAborted = errors.New("session aborted")
)

// IsSessionFatal reports whether err terminates the session it came from.
func IsSessionFatal(err error) bool {
	return errors.Is(err, ErrConstraintViolation) ||
		errors.Is(err, ErrDataSync) ||
		errors.Is(err, ErrSessionAborted)
}
