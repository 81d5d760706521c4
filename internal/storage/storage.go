package storage

import (
	"context"
	"io"
	"time"
)

type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified *time.Time
}

// Archiver stores exported ledger statements in remote object storage.
type Archiver interface {
	PutObject(ctx context.Context, bucket, key string, body io.Reader) (string, error)
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
}
