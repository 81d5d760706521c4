package domain

import "errors"

// Ledger error kinds. All are recoverable at the caller; callers match with
// errors.Is. ErrStoreUnavailable wraps infrastructure failures and is the
// only kind that should abort the current operation outright.
var (
	ErrDuplicateUsername   = errors.New("username already registered")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrNotAuthorized       = errors.New("not authorized")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrAlreadyDecided      = errors.New("transaction already decided")
	ErrStoreUnavailable    = errors.New("store unavailable")

	// ErrUserNotFound is internal to the store boundary; the account service
	// maps it to ErrInvalidCredentials during authentication.
	ErrUserNotFound = errors.New("user not found")
)
