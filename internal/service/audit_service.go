package service

import (
	"context"

	"savings-ledger/internal/domain"
	"savings-ledger/internal/repository"
)

// AuditService provides read-only projections over the ledger. It never
// mutates state.
type AuditService interface {
	// History returns all transactions (newest first) for admins, or the
	// session's own transactions otherwise.
	History(ctx context.Context, session domain.Session) ([]domain.TransactionRecord, error)
	// PendingQueue returns pending transactions oldest first. Admin only.
	PendingQueue(ctx context.Context, session domain.Session) ([]domain.TransactionRecord, error)
}

type auditService struct {
	users        repository.UserRepository
	transactions repository.TransactionRepository
}

func NewAuditService(users repository.UserRepository, transactions repository.TransactionRepository) AuditService {
	return &auditService{users: users, transactions: transactions}
}

func (s *auditService) History(ctx context.Context, session domain.Session) ([]domain.TransactionRecord, error) {
	admin, err := s.isAdmin(ctx, session)
	if err != nil {
		return nil, err
	}
	if admin {
		return s.transactions.ListAll(ctx)
	}
	return s.transactions.ListByUser(ctx, session.UserID)
}

func (s *auditService) PendingQueue(ctx context.Context, session domain.Session) ([]domain.TransactionRecord, error) {
	admin, err := s.isAdmin(ctx, session)
	if err != nil {
		return nil, err
	}
	if !admin {
		return nil, domain.ErrNotAuthorized
	}
	return s.transactions.ListPending(ctx)
}

func (s *auditService) isAdmin(ctx context.Context, session domain.Session) (bool, error) {
	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return false, err
	}
	return user.IsAdmin, nil
}
