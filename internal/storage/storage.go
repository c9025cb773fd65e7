package storage

import (
	"context"
	"errors"
	"io"
)

// Bucket represents a logical storage zone.
type Bucket string

// BucketDocuments holds document bodies too large for the database row.
const BucketDocuments Bucket = "documents"

var (
	ErrNotFound     = errors.New("storage: file not found")
	ErrAccessDenied = errors.New("storage: access denied")
	ErrTooLarge     = errors.New("storage: object exceeds size limit")
)

// Provider abstracts S3-compatible object storage.
type Provider interface {
	// Get returns a stream of the object. The caller closes it.
	Get(ctx context.Context, bucket Bucket, key string) (io.ReadCloser, error)

	// HealthCheck verifies the bucket is reachable.
	HealthCheck(ctx context.Context, bucket Bucket) error
}

// ReadAll reads a whole object, refusing anything larger than limit bytes.
func ReadAll(ctx context.Context, p Provider, bucket Bucket, key string, limit int64) ([]byte, error) {
	rc, err := p.Get(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	return data, nil
}
