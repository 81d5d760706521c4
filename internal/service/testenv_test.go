package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"savings-ledger/internal/domain"
	"savings-ledger/internal/repository"
	"savings-ledger/internal/repository/sqlite"
)

type testEnv struct {
	users        repository.UserRepository
	transactions repository.TransactionRepository
	accounts     AccountService
	ledger       LedgerService
	audit        AuditService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := sqlite.NewUserRepository(db)
	txs := sqlite.NewTransactionRepository(db)
	require.NoError(t, users.Init(context.Background()))
	require.NoError(t, txs.Init(context.Background()))

	return &testEnv{
		users:        users,
		transactions: txs,
		accounts:     NewAccountService(users),
		ledger:       NewLedgerService(users, txs),
		audit:        NewAuditService(users, txs),
	}
}

func (e *testEnv) registerAndLogin(t *testing.T, username, password string) domain.Session {
	t.Helper()
	_, err := e.accounts.Register(context.Background(), username, password)
	require.NoError(t, err)
	session, err := e.accounts.Authenticate(context.Background(), username, password)
	require.NoError(t, err)
	return *session
}

func (e *testEnv) adminSession(t *testing.T) domain.Session {
	t.Helper()
	require.NoError(t, e.accounts.EnsureAdmin(context.Background(), "admin", "admin-secret"))
	session, err := e.accounts.Authenticate(context.Background(), "admin", "admin-secret")
	require.NoError(t, err)
	return *session
}
