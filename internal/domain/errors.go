package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrSigningFailed     = errors.New("signing failed")
	ErrLockHeld          = errors.New("lock already held")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrDuplicate         = errors.New("duplicate opportunity")
	ErrCapacity          = errors.New("in-flight set full")
	ErrPaused            = errors.New("coordinator paused")
	ErrNonceUnavailable  = errors.New("nonce unavailable")
	ErrGasTooHigh        = errors.New("gas price above maximum")
	ErrAttemptResolved   = errors.New("attempt already resolved")
	ErrReceiptTimeout    = errors.New("receipt wait timed out")
	ErrUnavailable       = errors.New("not available in this process")
)
