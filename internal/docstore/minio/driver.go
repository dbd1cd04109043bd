// Package minio provides a MinIO implementation of docstore.Store.
package minio

import (
	"context"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/koustreak/tablegate/internal/docstore"
	"github.com/koustreak/tablegate/internal/errs"
)

// Driver is a MinIO implementation of docstore.Store.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	client *miniogo.Client
}

var _ docstore.Store = (*Driver)(nil)

// New creates a client for cfg. It does not contact the server.
func New(cfg *docstore.Config) (*Driver, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create minio client", err)
	}
	return &Driver{client: client}, nil
}

// Ping verifies the MinIO server is reachable by listing buckets.
func (d *Driver) Ping(ctx context.Context) error {
	if _, err := d.client.ListBuckets(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// BucketExists reports whether bucket exists.
func (d *Driver) BucketExists(ctx context.Context, bucket string) (bool, error) {
	if bucket == "" {
		return false, errs.New(errs.ErrKindInvalidInput, "bucket name is required")
	}
	ok, err := d.client.BucketExists(ctx, bucket)
	if err != nil {
		return false, mapError(err, "failed to check bucket "+bucket)
	}
	return ok, nil
}

// Close is a no-op for MinIO: the SDK client holds no persistent connections.
func (d *Driver) Close() error {
	return nil
}
