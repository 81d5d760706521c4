package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is an account holder in the ledger. Balance is only ever mutated by
// an approved transaction, never directly.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsAdmin      bool
	Balance      decimal.Decimal
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is a point-in-time authenticated identity. Balance and IsAdmin are
// snapshots taken at login; authoritative reads go back to the store.
type Session struct {
	UserID   int64
	Username string
	IsAdmin  bool
	Balance  decimal.Decimal
}
