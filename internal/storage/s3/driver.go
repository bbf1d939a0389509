// Package s3 provides an AWS S3 implementation of storage.Store.
//
// The driver also speaks to any S3-compatible server (MinIO, R2, …) when
// Config.Endpoint is set; path-style addressing is switched on automatically
// for custom endpoints.
//
// Usage:
//
//	cfg := &storage.Config{Provider: storage.ProviderS3, Region: "eu-west-1",
//	    AccessKey: id, SecretKey: secret}
//	store, err := s3.New(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close()
package s3

import (
	"context"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/errs"
	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/storage"
)

// Driver is an AWS S3 implementation of storage.Store.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	client  *awss3.Client
	presign *awss3.PresignClient
	region  string
}

// New builds an S3 client from the provided Config and returns a Driver.
// It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *storage.Config) (*Driver, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to build aws config", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(endpointURL(cfg))
			o.UsePathStyle = true
		}
	})

	d := &Driver{
		client:  client,
		presign: awss3.NewPresignClient(client),
		region:  region,
	}

	if err := d.Ping(ctx); err != nil {
		return nil, err
	}

	return d, nil
}

// --- storage.Store implementation ---

// Ping verifies the endpoint is reachable by listing buckets.
func (d *Driver) Ping(ctx context.Context) error {
	_, err := d.client.ListBuckets(ctx, &awss3.ListBucketsInput{})
	if err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close is a no-op. The SDK client holds no persistent connections.
func (d *Driver) Close() error {
	return nil
}

// ListBuckets returns all buckets accessible with the configured credentials.
func (d *Driver) ListBuckets(ctx context.Context) ([]storage.BucketInfo, error) {
	out, err := d.client.ListBuckets(ctx, &awss3.ListBucketsInput{})
	if err != nil {
		return nil, mapError(err, "failed to list buckets")
	}

	buckets := make([]storage.BucketInfo, len(out.Buckets))
	for i, b := range out.Buckets {
		buckets[i] = storage.BucketInfo{
			Name:       aws.ToString(b.Name),
			CreatedAt:  aws.ToTime(b.CreationDate),
			AccessMode: d.accessMode(ctx, aws.ToString(b.Name)),
		}
	}
	return buckets, nil
}

// CreateBucket creates a new bucket in the configured region.
func (d *Driver) CreateBucket(ctx context.Context, name string) error {
	in := &awss3.CreateBucketInput{Bucket: aws.String(name)}
	// us-east-1 is the implicit location and must not be sent explicitly.
	if d.region != "us-east-1" {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(d.region),
		}
	}

	if _, err := d.client.CreateBucket(ctx, in); err != nil {
		return mapError(err, "failed to create bucket")
	}
	return nil
}

// ListObjects returns objects in bucket that match opts.
func (d *Driver) ListObjects(ctx context.Context, bucket string, opts storage.ListOptions) ([]storage.ObjectInfo, error) {
	in := &awss3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	}
	if opts.Prefix != "" {
		in.Prefix = aws.String(opts.Prefix)
	}
	if opts.Marker != "" {
		in.StartAfter = aws.String(opts.Marker)
	}
	if !opts.Recursive {
		in.Delimiter = aws.String("/")
	}

	var results []storage.ObjectInfo
	p := awss3.NewListObjectsV2Paginator(d.client, in)

	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, mapError(err, "failed to list objects")
		}

		for _, cp := range page.CommonPrefixes {
			results = append(results, storage.ObjectInfo{
				Key:   aws.ToString(cp.Prefix),
				IsDir: true,
			})
		}
		for _, obj := range page.Contents {
			results = append(results, storage.ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				ETag:         trimETag(aws.ToString(obj.ETag)),
				LastModified: aws.ToTime(obj.LastModified),
			})
			if opts.Limit > 0 && len(results) >= opts.Limit {
				return results, nil
			}
		}
	}

	return results, nil
}

// GetObject opens a streaming handle to the object at key inside bucket.
// The caller MUST call Object.Close() after reading.
func (d *Driver) GetObject(ctx context.Context, bucket, key string) (storage.Object, error) {
	out, err := d.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}

	return &object{
		ReadCloser: out.Body,
		info: &storage.ObjectInfo{
			Key:          key,
			Size:         aws.ToInt64(out.ContentLength),
			ContentType:  aws.ToString(out.ContentType),
			ETag:         trimETag(aws.ToString(out.ETag)),
			LastModified: aws.ToTime(out.LastModified),
		},
	}, nil
}

// GetObjectDetails returns the object's metadata and tags without downloading
// its content. Tag lookup failures degrade to an empty tag list.
func (d *Driver) GetObjectDetails(ctx context.Context, bucket, key string) (*storage.ObjectDetails, error) {
	head, err := d.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err, "failed to stat object")
	}

	details := &storage.ObjectDetails{
		ObjectInfo: storage.ObjectInfo{
			Key:          key,
			Size:         aws.ToInt64(head.ContentLength),
			ContentType:  aws.ToString(head.ContentType),
			ETag:         trimETag(aws.ToString(head.ETag)),
			LastModified: aws.ToTime(head.LastModified),
		},
		Metadata: head.Metadata,
	}

	if out, err := d.client.GetObjectTagging(ctx, &awss3.GetObjectTaggingInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err == nil {
		details.Tags = canonicalTags(out.TagSet)
	}

	return details, nil
}

// PutObject uploads size bytes from r to key inside bucket.
func (d *Driver) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts storage.PutOptions) error {
	in := &awss3.PutObjectInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		Body:     r,
		Metadata: opts.Metadata,
	}
	if size >= 0 {
		in.ContentLength = aws.Int64(size)
	}
	if opts.ContentType != "" {
		in.ContentType = aws.String(opts.ContentType)
	}
	if enc := encodeTags(opts.Tags); enc != "" {
		in.Tagging = aws.String(enc)
	}

	if _, err := d.client.PutObject(ctx, in); err != nil {
		return mapError(err, "failed to upload object")
	}
	return nil
}

// RemoveObject deletes the object at key inside bucket.
func (d *Driver) RemoveObject(ctx context.Context, bucket, key string) error {
	_, err := d.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return mapError(err, "failed to remove object")
	}
	return nil
}

// PresignGetURL returns a time-limited public download URL for the object.
func (d *Driver) PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	req, err := d.presign.PresignGetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, awss3.WithPresignExpires(ttl))
	if err != nil {
		return "", mapError(err, "failed to generate presigned URL")
	}
	return req.URL, nil
}

// --- internal helpers ---

// accessMode maps a bucket policy onto the coarse label exposed upward.
func (d *Driver) accessMode(ctx context.Context, bucket string) string {
	out, err := d.client.GetBucketPolicy(ctx, &awss3.GetBucketPolicyInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		if errorCode(err) == "NoSuchBucketPolicy" {
			return "private"
		}
		return ""
	}
	if aws.ToString(out.Policy) == "" {
		return "private"
	}
	return "custom"
}

// canonicalTags converts the wire tag set into the canonical pair shape,
// preserving the order the backend returned.
func canonicalTags(set []types.Tag) []storage.Tag {
	if len(set) == 0 {
		return nil
	}
	tags := make([]storage.Tag, len(set))
	for i, t := range set {
		tags[i] = storage.Tag{Key: aws.ToString(t.Key), Value: aws.ToString(t.Value)}
	}
	return tags
}

// encodeTags renders tags as the query-string form PutObject.Tagging
// expects. Duplicate keys collapse later-wins through storage.TagMap,
// matching the minio driver's upload path.
func encodeTags(tags []storage.Tag) string {
	if len(tags) == 0 {
		return ""
	}
	v := url.Values{}
	for k, val := range storage.TagMap(tags) {
		v.Set(k, val)
	}
	return v.Encode()
}

// endpointURL expands a bare host:port endpoint into a full URL.
func endpointURL(cfg *storage.Config) string {
	if strings.Contains(cfg.Endpoint, "://") {
		return cfg.Endpoint
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return scheme + "://" + cfg.Endpoint
}

// trimETag strips the quoting S3 wraps around entity tags.
func trimETag(etag string) string {
	return strings.Trim(etag, `"`)
}

// object wraps a GetObject response body and exposes storage.Object.
type object struct {
	io.ReadCloser
	info *storage.ObjectInfo
}

func (o *object) Info() *storage.ObjectInfo {
	return o.info
}
