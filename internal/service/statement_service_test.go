package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"savings-ledger/internal/domain"
	"savings-ledger/internal/storage"
)

type fakeArchiver struct {
	bucket string
	key    string
	body   []byte
}

func (f *fakeArchiver) PutObject(ctx context.Context, bucket, key string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.bucket = bucket
	f.key = key
	f.body = data
	return "s3://" + bucket + "/" + key, nil
}

func (f *fakeArchiver) ListObjects(ctx context.Context, bucket, prefix string) ([]storage.ObjectInfo, error) {
	if f.key == "" {
		return nil, nil
	}
	return []storage.ObjectInfo{{Key: f.key, Size: int64(len(f.body))}}, nil
}

func TestStatementExport(t *testing.T) {
	env := newTestEnv(t)
	alice := env.registerAndLogin(t, "alice", "hunter22")
	admin := env.adminSession(t)

	deposit, err := env.ledger.RequestDeposit(context.Background(), alice, decimal.RequireFromString("100.50"))
	require.NoError(t, err)
	_, err = env.ledger.Decide(context.Background(), admin, deposit.ID, domain.DecisionApprove)
	require.NoError(t, err)
	_, err = env.ledger.RequestWithdraw(context.Background(), alice, decimal.RequireFromString("10"))
	require.NoError(t, err)

	archiver := &fakeArchiver{}
	statements := NewStatementService(env.users, env.transactions, archiver, "ledger-archive", "statements")

	location, err := statements.Export(context.Background(), admin)
	require.NoError(t, err)
	require.Contains(t, location, "s3://ledger-archive/statements/")
	require.Equal(t, "ledger-archive", archiver.bucket)

	rows, err := csv.NewReader(bytes.NewReader(archiver.body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3) // header + two transactions
	require.Equal(t, []string{"id", "username", "type", "amount", "status", "created_at", "verified_by", "verified_at"}, rows[0])

	// Newest first: the pending withdrawal precedes the approved deposit.
	require.Equal(t, "withdraw", rows[1][2])
	require.Equal(t, "pending", rows[1][4])
	require.Empty(t, rows[1][6])

	require.Equal(t, "alice", rows[2][1])
	require.Equal(t, "100.5", rows[2][3])
	require.Equal(t, "approved", rows[2][4])
	require.Equal(t, "admin", rows[2][6])
	require.NotEmpty(t, rows[2][7])

	exports, err := statements.ListExports(context.Background(), admin)
	require.NoError(t, err)
	require.Len(t, exports, 1)
}

func TestStatementExportRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	alice := env.registerAndLogin(t, "alice", "hunter22")

	statements := NewStatementService(env.users, env.transactions, &fakeArchiver{}, "ledger-archive", "statements")
	_, err := statements.Export(context.Background(), alice)
	require.ErrorIs(t, err, domain.ErrNotAuthorized)
}

func TestStatementExportUnconfigured(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminSession(t)

	statements := NewStatementService(env.users, env.transactions, nil, "", "statements")
	_, err := statements.Export(context.Background(), admin)
	require.ErrorIs(t, err, ErrArchiveNotConfigured)
}
