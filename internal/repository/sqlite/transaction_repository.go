package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"savings-ledger/internal/domain"
	"savings-ledger/internal/repository"
)

const createTransactionsTable = `
CREATE TABLE IF NOT EXISTS transactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	type TEXT NOT NULL,
	amount TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	created_at DATETIME NOT NULL,
	verified_by INTEGER NULL,
	verified_at DATETIME NULL,
	FOREIGN KEY (user_id) REFERENCES users (id),
	FOREIGN KEY (verified_by) REFERENCES users (id)
);
`

const recordColumns = `
SELECT t.id, t.user_id, t.type, t.amount, t.status, t.created_at, t.verified_by, t.verified_at,
	u.username, v.username
FROM transactions t
JOIN users u ON u.id = t.user_id
LEFT JOIN users v ON v.id = t.verified_by
`

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) repository.TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTransactionsTable); err != nil {
		return fmt.Errorf("create transactions table: %w", err)
	}
	return nil
}

func (r *TransactionRepository) Create(ctx context.Context, tx *domain.Transaction) (int64, error) {
	tx.CreatedAt = time.Now().UTC()
	tx.Status = domain.StatusPending

	res, err := r.db.ExecContext(ctx, `
INSERT INTO transactions (user_id, type, amount, status, created_at)
VALUES (?, ?, ?, ?, ?)`,
		tx.UserID,
		string(tx.Type),
		tx.Amount.String(),
		string(tx.Status),
		tx.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: insert transaction: %v", domain.ErrStoreUnavailable, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction last insert id: %w", err)
	}
	tx.ID = id
	return id, nil
}

func (r *TransactionRepository) Get(ctx context.Context, id int64) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, user_id, type, amount, status, created_at, verified_by, verified_at
FROM transactions
WHERE id = ?`,
		id,
	)

	var (
		tx         domain.Transaction
		rawAmount  string
		verifiedBy sql.NullInt64
		verifiedAt sql.NullTime
	)
	if err := row.Scan(&tx.ID, &tx.UserID, &tx.Type, &rawAmount, &tx.Status, &tx.CreatedAt, &verifiedBy, &verifiedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("%w: scan transaction: %v", domain.ErrStoreUnavailable, err)
	}
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", rawAmount, err)
	}
	tx.Amount = amount
	if verifiedBy.Valid {
		tx.VerifiedBy = &verifiedBy.Int64
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		tx.VerifiedAt = &t
	}
	return &tx, nil
}

func (r *TransactionRepository) ListByUser(ctx context.Context, userID int64) ([]domain.TransactionRecord, error) {
	return r.listRecords(ctx, recordColumns+`WHERE t.user_id = ? ORDER BY t.created_at DESC, t.id DESC`, userID)
}

func (r *TransactionRepository) ListAll(ctx context.Context) ([]domain.TransactionRecord, error) {
	return r.listRecords(ctx, recordColumns+`ORDER BY t.created_at DESC, t.id DESC`)
}

func (r *TransactionRepository) ListPending(ctx context.Context) ([]domain.TransactionRecord, error) {
	return r.listRecords(ctx, recordColumns+`WHERE t.status = 'pending' ORDER BY t.created_at ASC, t.id ASC`)
}

func (r *TransactionRepository) listRecords(ctx context.Context, query string, args ...any) ([]domain.TransactionRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query transactions: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var records []domain.TransactionRecord
	for rows.Next() {
		var (
			rec        domain.TransactionRecord
			rawAmount  string
			verifiedBy sql.NullInt64
			verifiedAt sql.NullTime
			verifier   sql.NullString
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.Type,
			&rawAmount,
			&rec.Status,
			&rec.CreatedAt,
			&verifiedBy,
			&verifiedAt,
			&rec.Username,
			&verifier,
		); err != nil {
			return nil, fmt.Errorf("%w: scan transaction record: %v", domain.ErrStoreUnavailable, err)
		}
		amount, err := decimal.NewFromString(rawAmount)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", rawAmount, err)
		}
		rec.Amount = amount
		if verifiedBy.Valid {
			rec.VerifiedBy = &verifiedBy.Int64
		}
		if verifiedAt.Valid {
			t := verifiedAt.Time
			rec.VerifiedAt = &t
		}
		if verifier.Valid {
			rec.VerifierUsername = &verifier.String
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate transactions: %v", domain.ErrStoreUnavailable, err)
	}
	return records, nil
}

// Decide applies an admin verdict. The status transition and, on approval,
// the balance delta execute inside one store transaction: a withdrawal whose
// amount exceeds the current balance fails with ErrInsufficientFunds and
// leaves both rows untouched.
func (r *TransactionRepository) Decide(ctx context.Context, id int64, decision domain.Decision, verifiedBy int64, verifiedAt time.Time) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin decide: %v", domain.ErrStoreUnavailable, err)
	}
	defer dbTx.Rollback()

	var (
		userID    int64
		txType    string
		rawAmount string
		status    string
	)
	err = dbTx.QueryRowContext(ctx, `
SELECT user_id, type, amount, status FROM transactions WHERE id = ?`, id).
		Scan(&userID, &txType, &rawAmount, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrTransactionNotFound
		}
		return fmt.Errorf("%w: read transaction: %v", domain.ErrStoreUnavailable, err)
	}
	if domain.TransactionStatus(status) != domain.StatusPending {
		return domain.ErrAlreadyDecided
	}

	newStatus := domain.StatusRejected
	if decision == domain.DecisionApprove {
		newStatus = domain.StatusApproved

		amount, err := decimal.NewFromString(rawAmount)
		if err != nil {
			return fmt.Errorf("parse amount %q: %w", rawAmount, err)
		}

		var rawBalance string
		if err := dbTx.QueryRowContext(ctx, `SELECT balance FROM users WHERE id = ?`, userID).Scan(&rawBalance); err != nil {
			return fmt.Errorf("%w: read balance: %v", domain.ErrStoreUnavailable, err)
		}
		balance, err := decimal.NewFromString(rawBalance)
		if err != nil {
			return fmt.Errorf("parse balance %q: %w", rawBalance, err)
		}

		if domain.TransactionType(txType) == domain.TransactionWithdraw {
			if amount.GreaterThan(balance) {
				return domain.ErrInsufficientFunds
			}
			balance = balance.Sub(amount)
		} else {
			balance = balance.Add(amount)
		}

		if _, err := dbTx.ExecContext(ctx, `
UPDATE users SET balance = ?, updated_at = ? WHERE id = ?`,
			balance.String(), verifiedAt.UTC(), userID,
		); err != nil {
			return fmt.Errorf("%w: update balance: %v", domain.ErrStoreUnavailable, err)
		}
	}

	if _, err := dbTx.ExecContext(ctx, `
UPDATE transactions SET status = ?, verified_by = ?, verified_at = ? WHERE id = ?`,
		string(newStatus), verifiedBy, verifiedAt.UTC(), id,
	); err != nil {
		return fmt.Errorf("%w: update transaction: %v", domain.ErrStoreUnavailable, err)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("%w: commit decide: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}
