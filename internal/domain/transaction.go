package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionDeposit  TransactionType = "deposit"
	TransactionWithdraw TransactionType = "withdraw"
)

type TransactionStatus string

const (
	StatusPending  TransactionStatus = "pending"
	StatusApproved TransactionStatus = "approved"
	StatusRejected TransactionStatus = "rejected"
)

// Decision is an admin verdict on a pending transaction.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Transaction is a deposit or withdrawal request. It starts pending and
// transitions at most once to approved or rejected; VerifiedBy/VerifiedAt
// are set exactly when the status becomes terminal. Rows are never deleted,
// forming the audit trail.
type Transaction struct {
	ID         int64
	UserID     int64
	Type       TransactionType
	Amount     decimal.Decimal
	Status     TransactionStatus
	CreatedAt  time.Time
	VerifiedBy *int64
	VerifiedAt *time.Time
}

// Terminal reports whether the transaction has reached a final status.
func (t Transaction) Terminal() bool {
	return t.Status == StatusApproved || t.Status == StatusRejected
}

// TransactionRecord is a transaction joined with requester and verifier
// usernames for history views.
type TransactionRecord struct {
	Transaction
	Username         string
	VerifierUsername *string
}
