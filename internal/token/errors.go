package token

import (
	"errors"
	"fmt"
)

// Sentinel errors for the ledger's failure taxonomy. Every public operation
// fails atomically with exactly one of these (possibly wrapped with context).
var (
	ErrUnauthorized          = errors.New("caller lacks required role")
	ErrBlockedAccount        = errors.New("account is blocked")
	ErrPaused                = errors.New("ledger is paused")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInsufficientFrozen    = errors.New("insufficient frozen balance")
	ErrExpiredSignature      = errors.New("permit deadline passed")
	ErrInvalidSignature      = errors.New("signature does not recover to owner")
	ErrOverflow              = errors.New("unsigned arithmetic overflow")
	ErrAlreadyInitialized    = errors.New("ledger already initialized")
	ErrNotInitialized        = errors.New("ledger not initialized")
)

// BlockedError wraps ErrBlockedAccount with the offending address.
func BlockedError(addr Address) error {
	return fmt.Errorf("%w: %s", ErrBlockedAccount, addr)
}

// RejectReason maps a ledger error to a short label for metrics and the
// command log. Unknown errors map to "internal".
func RejectReason(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrBlockedAccount):
		return "blocked"
	case errors.Is(err, ErrPaused):
		return "paused"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrInsufficientAllowance):
		return "insufficient_allowance"
	case errors.Is(err, ErrInsufficientFrozen):
		return "insufficient_frozen"
	case errors.Is(err, ErrExpiredSignature):
		return "expired_signature"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrOverflow):
		return "overflow"
	case errors.Is(err, ErrAlreadyInitialized):
		return "already_initialized"
	case errors.Is(err, ErrNotInitialized):
		return "not_initialized"
	default:
		return "internal"
	}
}
