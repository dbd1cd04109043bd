// Package docstore checks the document store that sits next to the tabular
// database. tablegate only needs to know, at startup, that the configured
// bucket exists; all providers implement Store.
//
// Usage:
//
//	store, err := minio.New(cfg)
//	if err != nil { ... }
//	defer store.Close()
//
//	docstore.CheckBucket(ctx, store, cfg.Bucket, log)
package docstore

import (
	"context"
	"time"

	"github.com/koustreak/tablegate/internal/logger"
)

// Config holds the settings needed to reach the document store.
type Config struct {
	// Endpoint is the host:port of the storage server. Empty disables
	// the startup check.
	Endpoint string

	AccessKey string
	SecretKey string
	UseSSL    bool

	// Region is used by region-aware backends. Leave empty for MinIO.
	Region string

	// Bucket is the bucket whose existence is checked at startup.
	Bucket string

	// Timeout bounds the startup check.
	Timeout time.Duration
}

// Enabled reports whether a document store is configured.
func (c *Config) Enabled() bool { return c != nil && c.Endpoint != "" }

// Store is the interface all document store providers implement.
type Store interface {
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// BucketExists reports whether bucket exists.
	BucketExists(ctx context.Context, bucket string) (bool, error)

	// Close releases any held resources.
	Close() error
}

// CheckBucket logs whether bucket exists in store. Failures are logged,
// never returned: the gateway serves tables without a document store.
func CheckBucket(ctx context.Context, store Store, bucket string, log *logger.Logger) bool {
	l := log.With().Str("bucket", bucket).Logger()

	exists, err := store.BucketExists(ctx, bucket)
	switch {
	case err != nil:
		l.ErrorWith("document store check failed", err, nil)
		return false
	case !exists:
		l.Warn("document store bucket does not exist")
		return false
	}
	l.Info("document store bucket exists")
	return true
}
