package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"savings-ledger/internal/domain"
	"savings-ledger/internal/repository"
)

// AccountService describes account lifecycle operations.
type AccountService interface {
	Register(ctx context.Context, username, password string) (*domain.User, error)
	Authenticate(ctx context.Context, username, password string) (*domain.Session, error)
	// Balance reads the authoritative balance from the store, bypassing any
	// session snapshot.
	Balance(ctx context.Context, userID int64) (decimal.Decimal, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	// EnsureAdmin creates the seeded admin account if it does not exist yet.
	EnsureAdmin(ctx context.Context, username, password string) error
}

type accountService struct {
	users repository.UserRepository
}

func NewAccountService(users repository.UserRepository) AccountService {
	return &accountService{users: users}
}

func (s *accountService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("username is required")
	}
	if password == "" {
		return nil, errors.New("password is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: string(hash),
		IsAdmin:      false,
		Balance:      decimal.Zero,
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *accountService) Authenticate(ctx context.Context, username, password string) (*domain.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	// Point-in-time snapshot. Balance and IsAdmin here are advisory; every
	// privileged or balance-sensitive operation re-reads the store.
	return &domain.Session{
		UserID:   user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
		Balance:  user.Balance,
	}, nil
}

func (s *accountService) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	return s.users.Balance(ctx, userID)
}

func (s *accountService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *accountService) EnsureAdmin(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return errors.New("admin username and password are required")
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin := &domain.User{
		Username:     username,
		PasswordHash: string(hash),
		IsAdmin:      true,
		Balance:      decimal.Zero,
	}
	if _, err := s.users.Create(ctx, admin); err != nil {
		// Lost a race with another bootstrap; the account exists either way.
		if errors.Is(err, domain.ErrDuplicateUsername) {
			return nil
		}
		return err
	}
	return nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Username:  user.Username,
		IsAdmin:   user.IsAdmin,
		Balance:   user.Balance,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
