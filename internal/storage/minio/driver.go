// Package minio provides a MinIO implementation of storage.Store.
//
// Usage:
//
//	cfg := storage.DefaultConfig("localhost:9000", "minioadmin", "minioadmin")
//	store, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close()
//
//	buckets, err := store.ListBuckets(ctx)
package minio

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/errs"
	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/storage"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Driver is a MinIO implementation of storage.Store.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	client *miniogo.Client
	region string
}

// New connects to MinIO using the provided Config and returns a Driver.
// It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *storage.Config) (*Driver, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create minio client", err)
	}

	d := &Driver{client: client, region: cfg.Region}

	if err := d.Ping(ctx); err != nil {
		return nil, err
	}

	return d, nil
}

// --- storage.Store implementation ---

// Ping verifies the MinIO server is reachable by listing buckets.
func (d *Driver) Ping(ctx context.Context) error {
	_, err := d.client.ListBuckets(ctx)
	if err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close is a no-op for MinIO. The SDK client holds no persistent connections.
func (d *Driver) Close() error {
	return nil
}

// ListBuckets returns all buckets accessible with the configured credentials.
// The access-mode label is derived from each bucket's policy; lookup failures
// leave the label empty rather than failing the listing.
func (d *Driver) ListBuckets(ctx context.Context) ([]storage.BucketInfo, error) {
	raw, err := d.client.ListBuckets(ctx)
	if err != nil {
		return nil, mapError(err, "failed to list buckets")
	}

	buckets := make([]storage.BucketInfo, len(raw))
	for i, b := range raw {
		buckets[i] = storage.BucketInfo{
			Name:       b.Name,
			CreatedAt:  b.CreationDate,
			AccessMode: d.accessMode(ctx, b.Name),
		}
	}
	return buckets, nil
}

// CreateBucket creates a new bucket in the configured region.
func (d *Driver) CreateBucket(ctx context.Context, name string) error {
	err := d.client.MakeBucket(ctx, name, miniogo.MakeBucketOptions{Region: d.region})
	if err != nil {
		return mapError(err, "failed to create bucket")
	}
	return nil
}

// ListObjects returns objects in bucket that match opts.
func (d *Driver) ListObjects(ctx context.Context, bucket string, opts storage.ListOptions) ([]storage.ObjectInfo, error) {
	listOpts := miniogo.ListObjectsOptions{
		Prefix:     opts.Prefix,
		Recursive:  opts.Recursive,
		StartAfter: opts.Marker,
	}

	var results []storage.ObjectInfo
	count := 0

	for obj := range d.client.ListObjects(ctx, bucket, listOpts) {
		if obj.Err != nil {
			return nil, mapError(obj.Err, "failed to list objects")
		}

		results = append(results, storage.ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			ContentType:  obj.ContentType,
			ETag:         trimETag(obj.ETag),
			LastModified: obj.LastModified,
			IsDir:        strings.HasSuffix(obj.Key, "/"),
		})

		count++
		if opts.Limit > 0 && count >= opts.Limit {
			break
		}
	}

	return results, nil
}

// GetObject opens a streaming handle to the object at key inside bucket.
// The caller MUST call Object.Close() after reading.
func (d *Driver) GetObject(ctx context.Context, bucket, key string) (storage.Object, error) {
	obj, err := d.client.GetObject(ctx, bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}

	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, mapError(err, "failed to stat object after get")
	}

	return &object{
		ReadCloser: obj,
		info: &storage.ObjectInfo{
			Key:          key,
			Size:         stat.Size,
			ContentType:  stat.ContentType,
			ETag:         trimETag(stat.ETag),
			LastModified: stat.LastModified,
		},
	}, nil
}

// GetObjectDetails returns the object's metadata and tags without downloading
// its content. Tag lookup failures degrade to an empty tag list because stat
// data alone is still useful to callers.
func (d *Driver) GetObjectDetails(ctx context.Context, bucket, key string) (*storage.ObjectDetails, error) {
	stat, err := d.client.StatObject(ctx, bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to stat object")
	}

	details := &storage.ObjectDetails{
		ObjectInfo: storage.ObjectInfo{
			Key:          stat.Key,
			Size:         stat.Size,
			ContentType:  stat.ContentType,
			ETag:         trimETag(stat.ETag),
			LastModified: stat.LastModified,
		},
		Metadata: userMetadata(stat),
	}

	if t, err := d.client.GetObjectTagging(ctx, bucket, key, miniogo.GetObjectTaggingOptions{}); err == nil {
		details.Tags = storage.TagsFromMap(t.ToMap())
	}

	return details, nil
}

// PutObject uploads size bytes from r to key inside bucket.
func (d *Driver) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts storage.PutOptions) error {
	putOpts := miniogo.PutObjectOptions{
		ContentType:  opts.ContentType,
		UserMetadata: opts.Metadata,
		UserTags:     storage.TagMap(opts.Tags),
	}

	_, err := d.client.PutObject(ctx, bucket, key, r, size, putOpts)
	if err != nil {
		return mapError(err, "failed to upload object")
	}
	return nil
}

// RemoveObject deletes the object at key inside bucket.
func (d *Driver) RemoveObject(ctx context.Context, bucket, key string) error {
	err := d.client.RemoveObject(ctx, bucket, key, miniogo.RemoveObjectOptions{})
	if err != nil {
		return mapError(err, "failed to remove object")
	}
	return nil
}

// PresignGetURL returns a time-limited public download URL for the object.
func (d *Driver) PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	u, err := d.client.PresignedGetObject(ctx, bucket, key, ttl, nil)
	if err != nil {
		return "", mapError(err, "failed to generate presigned URL")
	}
	return u.String(), nil
}

// --- internal helpers ---

// accessMode maps a bucket policy onto the coarse label exposed upward.
// A bucket with no policy document is reported as private.
func (d *Driver) accessMode(ctx context.Context, bucket string) string {
	policy, err := d.client.GetBucketPolicy(ctx, bucket)
	if err != nil {
		return ""
	}
	if policy == "" {
		return "private"
	}
	return "custom"
}

// userMetadata merges the two places the SDK may surface x-amz-meta values.
func userMetadata(stat miniogo.ObjectInfo) map[string]string {
	meta := make(map[string]string, len(stat.UserMetadata))
	for k, v := range stat.UserMetadata {
		meta[k] = v
	}
	for k, vals := range stat.Metadata {
		if strings.HasPrefix(k, "X-Amz-Meta-") && len(vals) > 0 {
			meta[strings.TrimPrefix(k, "X-Amz-Meta-")] = vals[0]
		}
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

// trimETag strips the quoting some backends wrap around entity tags.
func trimETag(etag string) string {
	return strings.Trim(etag, `"`)
}

// object wraps a MinIO GetObject response and exposes storage.Object.
type object struct {
	io.ReadCloser
	info *storage.ObjectInfo
}

func (o *object) Info() *storage.ObjectInfo {
	return o.info
}
