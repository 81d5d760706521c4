package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"savings-ledger/internal/domain"
	"savings-ledger/internal/repository"
)

func newTestRepos(t *testing.T) (repository.UserRepository, repository.TransactionRepository) {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := NewUserRepository(db)
	txs := NewTransactionRepository(db)
	require.NoError(t, users.Init(context.Background()))
	require.NoError(t, txs.Init(context.Background()))
	return users, txs
}

func createUser(t *testing.T, users repository.UserRepository, username string, admin bool) *domain.User {
	t.Helper()
	user := &domain.User{
		Username:     username,
		PasswordHash: "x",
		IsAdmin:      admin,
		Balance:      decimal.Zero,
	}
	_, err := users.Create(context.Background(), user)
	require.NoError(t, err)
	return user
}

func createPending(t *testing.T, txs repository.TransactionRepository, userID int64, txType domain.TransactionType, amount string) *domain.Transaction {
	t.Helper()
	tx := &domain.Transaction{
		UserID: userID,
		Type:   txType,
		Amount: decimal.RequireFromString(amount),
	}
	_, err := txs.Create(context.Background(), tx)
	require.NoError(t, err)
	return tx
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	users, _ := newTestRepos(t)
	createUser(t, users, "alice", false)

	_, err := users.Create(context.Background(), &domain.User{Username: "alice", PasswordHash: "y", Balance: decimal.Zero})
	require.ErrorIs(t, err, domain.ErrDuplicateUsername)

	// The original row is untouched.
	got, err := users.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, "x", got.PasswordHash)
}

func TestUsernameLookupIsCaseSensitive(t *testing.T) {
	users, _ := newTestRepos(t)
	createUser(t, users, "Alice", false)

	_, err := users.GetByUsername(context.Background(), "alice")
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestDecideApproveDeposit(t *testing.T) {
	users, txs := newTestRepos(t)
	alice := createUser(t, users, "alice", false)
	admin := createUser(t, users, "admin", true)

	tx := createPending(t, txs, alice.ID, domain.TransactionDeposit, "100")
	decidedAt := time.Now().UTC()
	require.NoError(t, txs.Decide(context.Background(), tx.ID, domain.DecisionApprove, admin.ID, decidedAt))

	balance, err := users.Balance(context.Background(), alice.ID)
	require.NoError(t, err)
	require.True(t, balance.Equal(decimal.RequireFromString("100")), "balance=%s", balance)

	got, err := txs.Get(context.Background(), tx.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusApproved, got.Status)
	require.NotNil(t, got.VerifiedBy)
	require.Equal(t, admin.ID, *got.VerifiedBy)
	require.NotNil(t, got.VerifiedAt)
}

func TestDecideRejectLeavesBalance(t *testing.T) {
	users, txs := newTestRepos(t)
	alice := createUser(t, users, "alice", false)
	admin := createUser(t, users, "admin", true)

	deposit := createPending(t, txs, alice.ID, domain.TransactionDeposit, "100")
	require.NoError(t, txs.Decide(context.Background(), deposit.ID, domain.DecisionApprove, admin.ID, time.Now()))

	withdraw := createPending(t, txs, alice.ID, domain.TransactionWithdraw, "50")
	require.NoError(t, txs.Decide(context.Background(), withdraw.ID, domain.DecisionReject, admin.ID, time.Now()))

	balance, err := users.Balance(context.Background(), alice.ID)
	require.NoError(t, err)
	require.True(t, balance.Equal(decimal.RequireFromString("100")), "balance=%s", balance)

	got, err := txs.Get(context.Background(), withdraw.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusRejected, got.Status)
	require.NotNil(t, got.VerifiedBy)
}

func TestDecideTwiceFailsSecondTime(t *testing.T) {
	users, txs := newTestRepos(t)
	alice := createUser(t, users, "alice", false)
	admin := createUser(t, users, "admin", true)

	tx := createPending(t, txs, alice.ID, domain.TransactionDeposit, "10")
	require.NoError(t, txs.Decide(context.Background(), tx.ID, domain.DecisionApprove, admin.ID, time.Now()))

	err := txs.Decide(context.Background(), tx.ID, domain.DecisionReject, admin.ID, time.Now())
	require.ErrorIs(t, err, domain.ErrAlreadyDecided)

	// Terminal state never changes again.
	got, err := txs.Get(context.Background(), tx.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusApproved, got.Status)
}

func TestDecideUnknownTransaction(t *testing.T) {
	users, txs := newTestRepos(t)
	admin := createUser(t, users, "admin", true)

	err := txs.Decide(context.Background(), 12345, domain.DecisionApprove, admin.ID, time.Now())
	require.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestDecideRevalidatesWithdrawalAtApproval(t *testing.T) {
	users, txs := newTestRepos(t)
	alice := createUser(t, users, "alice", false)
	admin := createUser(t, users, "admin", true)

	deposit := createPending(t, txs, alice.ID, domain.TransactionDeposit, "100")
	require.NoError(t, txs.Decide(context.Background(), deposit.ID, domain.DecisionApprove, admin.ID, time.Now()))

	// Two pending withdrawals individually within the balance but jointly over.
	first := createPending(t, txs, alice.ID, domain.TransactionWithdraw, "80")
	second := createPending(t, txs, alice.ID, domain.TransactionWithdraw, "80")

	require.NoError(t, txs.Decide(context.Background(), first.ID, domain.DecisionApprove, admin.ID, time.Now()))

	err := txs.Decide(context.Background(), second.ID, domain.DecisionApprove, admin.ID, time.Now())
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// The failed approval left both rows untouched: balance stays 20 and the
	// second withdrawal is still pending.
	balance, err := users.Balance(context.Background(), alice.ID)
	require.NoError(t, err)
	require.True(t, balance.Equal(decimal.RequireFromString("20")), "balance=%s", balance)

	got, err := txs.Get(context.Background(), second.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, got.Status)
	require.Nil(t, got.VerifiedBy)
	require.Nil(t, got.VerifiedAt)
}

func TestListOrderingAndJoins(t *testing.T) {
	users, txs := newTestRepos(t)
	alice := createUser(t, users, "alice", false)
	bob := createUser(t, users, "bob", false)
	admin := createUser(t, users, "admin", true)

	first := createPending(t, txs, alice.ID, domain.TransactionDeposit, "10")
	second := createPending(t, txs, bob.ID, domain.TransactionDeposit, "20")
	third := createPending(t, txs, alice.ID, domain.TransactionWithdraw, "5")

	require.NoError(t, txs.Decide(context.Background(), first.ID, domain.DecisionApprove, admin.ID, time.Now()))

	all, err := txs.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Newest first.
	require.Equal(t, third.ID, all[0].ID)
	require.Equal(t, first.ID, all[2].ID)
	require.Equal(t, "alice", all[2].Username)
	require.NotNil(t, all[2].VerifierUsername)
	require.Equal(t, "admin", *all[2].VerifierUsername)

	mine, err := txs.ListByUser(context.Background(), alice.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	for _, rec := range mine {
		require.Equal(t, alice.ID, rec.UserID)
	}

	pending, err := txs.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 2)
	// Oldest first.
	require.Equal(t, second.ID, pending[0].ID)
	require.Equal(t, third.ID, pending[1].ID)
	require.Nil(t, pending[0].VerifierUsername)
}

func TestApprovedSumMatchesBalance(t *testing.T) {
	users, txs := newTestRepos(t)
	alice := createUser(t, users, "alice", false)
	admin := createUser(t, users, "admin", true)

	amounts := []struct {
		txType   domain.TransactionType
		amount   string
		decision domain.Decision
	}{
		{domain.TransactionDeposit, "100.50", domain.DecisionApprove},
		{domain.TransactionDeposit, "25", domain.DecisionReject},
		{domain.TransactionWithdraw, "40.25", domain.DecisionApprove},
		{domain.TransactionDeposit, "10", domain.DecisionApprove},
	}
	for _, a := range amounts {
		tx := createPending(t, txs, alice.ID, a.txType, a.amount)
		require.NoError(t, txs.Decide(context.Background(), tx.ID, a.decision, admin.ID, time.Now()))
	}
	// Pending rows never affect the balance.
	createPending(t, txs, alice.ID, domain.TransactionDeposit, "999")

	balance, err := users.Balance(context.Background(), alice.ID)
	require.NoError(t, err)
	require.True(t, balance.Equal(decimal.RequireFromString("70.25")), "balance=%s", balance)
}

func TestBalanceUnknownUser(t *testing.T) {
	users, _ := newTestRepos(t)
	_, err := users.Balance(context.Background(), 42)
	require.True(t, errors.Is(err, domain.ErrUserNotFound))
}
