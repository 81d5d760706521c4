package repository

import (
	"context"
	"time"

	"savings-ledger/internal/domain"
)

// TransactionRepository exposes persistence operations for the transaction
// ledger. Decide is the only write that touches two rows: it applies the
// balance delta and the status transition as one atomic unit.
type TransactionRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, tx *domain.Transaction) (int64, error)
	Get(ctx context.Context, id int64) (*domain.Transaction, error)
	// ListByUser returns the user's transactions joined with usernames,
	// newest first.
	ListByUser(ctx context.Context, userID int64) ([]domain.TransactionRecord, error)
	// ListAll returns every transaction joined with usernames, newest first.
	ListAll(ctx context.Context) ([]domain.TransactionRecord, error)
	// ListPending returns pending transactions oldest first.
	ListPending(ctx context.Context) ([]domain.TransactionRecord, error)
	// Decide transitions a pending transaction to its terminal status. On
	// approval it re-validates withdrawal sufficiency against the current
	// balance and applies the delta in the same store transaction; either
	// both the balance and the status change, or neither does.
	Decide(ctx context.Context, id int64, decision domain.Decision, verifiedBy int64, verifiedAt time.Time) error
}
