package tokenomics

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrorKind classifies core errors by how a caller should react to them
type ErrorKind int

const (
	// KindValidation is a malformed or out of bounds request. Never retried.
	KindValidation ErrorKind = iota + 1
	// KindStateConflict is a request that the current state cannot satisfy.
	KindStateConflict
	// KindNotFound is a reference to a tier, pool, position or beneficiary that does not exist.
	KindNotFound
	// KindInvariant means stored state broke an invariant. The operation is aborted.
	KindInvariant
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindStateConflict:
		return "state_conflict"
	case KindNotFound:
		return "not_found"
	case KindInvariant:
		return "invariant_violation"
	default:
		return "unknown"
	}
}

// Error carries the violated bound so callers can render a precise message.
// Errors compare equal under errors.Is when their codes match.
type Error struct {
	Kind      ErrorKind
	Code      string
	Message   string
	Requested *decimal.Decimal
	Limit     *decimal.Decimal
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// Is matches on code so wrapped and detailed errors match their sentinel
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func sentinel(kind ErrorKind, code string) *Error {
	return &Error{Kind: kind, Code: code}
}

var (
	ErrInvalidAddress    = sentinel(KindValidation, "INVALID_ADDRESS")
	ErrInvalidAmount     = sentinel(KindValidation, "INVALID_AMOUNT")
	ErrBelowMinimum      = sentinel(KindValidation, "BELOW_MINIMUM")
	ErrAboveMaximum      = sentinel(KindValidation, "ABOVE_MAXIMUM")
	ErrInvalidLockPeriod = sentinel(KindValidation, "INVALID_LOCK_PERIOD")
	ErrInvalidHorizon    = sentinel(KindValidation, "INVALID_HORIZON")

	ErrTierInactive        = sentinel(KindStateConflict, "TIER_INACTIVE")
	ErrAllocationExceeded  = sentinel(KindStateConflict, "ALLOCATION_EXCEEDED")
	ErrPoolInactive        = sentinel(KindStateConflict, "POOL_INACTIVE")
	ErrPoolFull            = sentinel(KindStateConflict, "POOL_FULL")
	ErrLockNotElapsed      = sentinel(KindStateConflict, "LOCK_NOT_ELAPSED")
	ErrCooldownNotElapsed  = sentinel(KindStateConflict, "COOLDOWN_NOT_ELAPSED")
	ErrNothingToClaim      = sentinel(KindStateConflict, "NOTHING_TO_CLAIM")
	ErrPositionNotActive   = sentinel(KindStateConflict, "POSITION_NOT_ACTIVE")
	ErrBeneficiaryInactive = sentinel(KindStateConflict, "BENEFICIARY_INACTIVE")

	ErrTierNotFound        = sentinel(KindNotFound, "TIER_NOT_FOUND")
	ErrPoolNotFound        = sentinel(KindNotFound, "POOL_NOT_FOUND")
	ErrPositionNotFound    = sentinel(KindNotFound, "POSITION_NOT_FOUND")
	ErrBeneficiaryNotFound = sentinel(KindNotFound, "BENEFICIARY_NOT_FOUND")

	ErrInvariantViolation = sentinel(KindInvariant, "INVARIANT_VIOLATION")
)

// newError derives a detailed error from a sentinel
func newError(base *Error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    base.Kind,
		Code:    base.Code,
		Message: fmt.Sprintf(format, args...),
	}
}

// boundError derives a detailed error that records the requested value and the violated limit
func boundError(base *Error, requested, limit decimal.Decimal, format string, args ...interface{}) *Error {
	e := newError(base, format, args...)
	e.Requested = &requested
	e.Limit = &limit
	return e
}

// KindOf returns the kind of a core error, or 0 for infrastructure errors
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
