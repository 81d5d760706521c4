package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"savings-ledger/internal/domain"
)

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	// Balance is the authoritative balance read, bypassing any session copy.
	Balance(ctx context.Context, id int64) (decimal.Decimal, error)
}
