// Package storage defines the unified interface for object storage backends.
//
// All providers (MinIO, Amazon S3, …) implement the Store interface.
// Callers depend only on this package, never on a specific provider package.
//
// Usage:
//
//	cfg := storage.DefaultConfig("localhost:9000", "minioadmin", "minioadmin")
//	store, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close()
//
//	buckets, err := store.ListBuckets(ctx)
package storage

import (
	"context"
	"io"
	"time"
)

// Store is the single interface all object storage providers must implement.
type Store interface {
	// Ping verifies the storage backend is reachable with the configured
	// credentials.
	Ping(ctx context.Context) error

	// Close releases any held resources (connections, goroutines, etc.).
	Close() error

	// ListBuckets returns all buckets accessible with the configured credentials.
	ListBuckets(ctx context.Context) ([]BucketInfo, error)

	// CreateBucket creates a new bucket. The name must already satisfy the
	// backend's naming grammar; callers normalize names before reaching here.
	CreateBucket(ctx context.Context, name string) error

	// ListObjects returns the objects in bucket that match opts.
	// Virtual directory entries (common prefixes) are included when
	// opts.Recursive is false.
	ListObjects(ctx context.Context, bucket string, opts ListOptions) ([]ObjectInfo, error)

	// GetObject opens a streaming handle to the object at key inside bucket.
	// The caller MUST call Object.Close() after reading.
	GetObject(ctx context.Context, bucket, key string) (Object, error)

	// GetObjectDetails returns the object's metadata and tags without
	// downloading its content. Tags arrive in the canonical pair shape
	// regardless of how the backend represents them on the wire.
	GetObjectDetails(ctx context.Context, bucket, key string) (*ObjectDetails, error)

	// PutObject uploads size bytes from r to key inside bucket.
	// Pass size -1 when the length is unknown.
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts PutOptions) error

	// RemoveObject deletes the object at key inside bucket.
	RemoveObject(ctx context.Context, bucket, key string) error

	// PresignGetURL returns a time-limited URL that allows anyone to download
	// the object at key inside bucket without credentials.
	PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}
