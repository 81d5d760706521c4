package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"savings-ledger/internal/domain"
	"savings-ledger/internal/repository"
	"savings-ledger/internal/storage"
)

// ErrArchiveNotConfigured is returned when statement export is requested but
// no object storage bucket is configured.
var ErrArchiveNotConfigured = errors.New("statement archive is not configured")

// StatementService exports the full transaction history as CSV statements to
// object storage. Admin only.
type StatementService interface {
	Export(ctx context.Context, session domain.Session) (string, error)
	ListExports(ctx context.Context, session domain.Session) ([]storage.ObjectInfo, error)
}

type statementService struct {
	users        repository.UserRepository
	transactions repository.TransactionRepository
	archiver     storage.Archiver
	bucket       string
	keyPrefix    string
}

func NewStatementService(users repository.UserRepository, transactions repository.TransactionRepository, archiver storage.Archiver, bucket, keyPrefix string) StatementService {
	return &statementService{
		users:        users,
		transactions: transactions,
		archiver:     archiver,
		bucket:       bucket,
		keyPrefix:    keyPrefix,
	}
}

func (s *statementService) Export(ctx context.Context, session domain.Session) (string, error) {
	if err := s.authorize(ctx, session); err != nil {
		return "", err
	}
	if s.archiver == nil || s.bucket == "" {
		return "", ErrArchiveNotConfigured
	}

	records, err := s.transactions.ListAll(ctx)
	if err != nil {
		return "", err
	}

	body, err := renderStatement(records)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("%s/%s-%s.csv", s.keyPrefix, time.Now().UTC().Format("20060102T150405Z"), uuid.NewString())
	location, err := s.archiver.PutObject(ctx, s.bucket, key, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("archive statement: %w", err)
	}
	return location, nil
}

func (s *statementService) ListExports(ctx context.Context, session domain.Session) ([]storage.ObjectInfo, error) {
	if err := s.authorize(ctx, session); err != nil {
		return nil, err
	}
	if s.archiver == nil || s.bucket == "" {
		return nil, ErrArchiveNotConfigured
	}
	return s.archiver.ListObjects(ctx, s.bucket, s.keyPrefix)
}

func (s *statementService) authorize(ctx context.Context, session domain.Session) error {
	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrNotAuthorized
		}
		return err
	}
	if !user.IsAdmin {
		return domain.ErrNotAuthorized
	}
	return nil
}

func renderStatement(records []domain.TransactionRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"id", "username", "type", "amount", "status", "created_at", "verified_by", "verified_at"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write statement header: %w", err)
	}

	for _, rec := range records {
		verifier := ""
		if rec.VerifierUsername != nil {
			verifier = *rec.VerifierUsername
		}
		verifiedAt := ""
		if rec.VerifiedAt != nil {
			verifiedAt = rec.VerifiedAt.UTC().Format(time.RFC3339)
		}
		row := []string{
			fmt.Sprintf("%d", rec.ID),
			rec.Username,
			string(rec.Type),
			rec.Amount.String(),
			string(rec.Status),
			rec.CreatedAt.UTC().Format(time.RFC3339),
			verifier,
			verifiedAt,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write statement row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush statement: %w", err)
	}
	return buf.Bytes(), nil
}
