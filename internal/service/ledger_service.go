package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"savings-ledger/internal/domain"
	"savings-ledger/internal/repository"
)

// LedgerService owns the transaction lifecycle: requests create pending
// transactions without touching the balance, and only an admin decision can
// move money.
type LedgerService interface {
	RequestDeposit(ctx context.Context, session domain.Session, amount decimal.Decimal) (*domain.Transaction, error)
	RequestWithdraw(ctx context.Context, session domain.Session, amount decimal.Decimal) (*domain.Transaction, error)
	// Decide applies an admin verdict and returns the transaction in its
	// terminal state.
	Decide(ctx context.Context, session domain.Session, transactionID int64, decision domain.Decision) (*domain.Transaction, error)
}

type ledgerService struct {
	users        repository.UserRepository
	transactions repository.TransactionRepository
	now          func() time.Time
}

func NewLedgerService(users repository.UserRepository, transactions repository.TransactionRepository) LedgerService {
	return &ledgerService{
		users:        users,
		transactions: transactions,
		now:          time.Now,
	}
}

func (s *ledgerService) RequestDeposit(ctx context.Context, session domain.Session, amount decimal.Decimal) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	tx := &domain.Transaction{
		UserID: session.UserID,
		Type:   domain.TransactionDeposit,
		Amount: amount,
	}
	if _, err := s.transactions.Create(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *ledgerService) RequestWithdraw(ctx context.Context, session domain.Session, amount decimal.Decimal) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	// Early guard against obviously invalid requests, checked against the
	// authoritative balance rather than the possibly stale session snapshot.
	// The binding check happens again inside Decide.
	balance, err := s.users.Balance(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(balance) {
		return nil, domain.ErrInsufficientFunds
	}

	tx := &domain.Transaction{
		UserID: session.UserID,
		Type:   domain.TransactionWithdraw,
		Amount: amount,
	}
	if _, err := s.transactions.Create(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *ledgerService) Decide(ctx context.Context, session domain.Session, transactionID int64, decision domain.Decision) (*domain.Transaction, error) {
	if decision != domain.DecisionApprove && decision != domain.DecisionReject {
		return nil, fmt.Errorf("unknown decision %q", decision)
	}

	// The session's IsAdmin flag is advisory only; the role is re-read from
	// the store at authorization time.
	verifier, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrNotAuthorized
		}
		return nil, err
	}
	if !verifier.IsAdmin {
		return nil, domain.ErrNotAuthorized
	}

	if err := s.transactions.Decide(ctx, transactionID, decision, verifier.ID, s.now()); err != nil {
		return nil, err
	}
	return s.transactions.Get(ctx, transactionID)
}
