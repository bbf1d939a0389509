package storage

import (
	"io"
	"sort"
	"time"
)

// BucketInfo describes a storage bucket.
type BucketInfo struct {
	// Name is the bucket name.
	Name string

	// CreatedAt is when the bucket was created.
	// May be zero if the backend does not expose creation time.
	CreatedAt time.Time

	// AccessMode is a coarse label derived from the bucket policy
	// ("private", "custom"). Empty when the backend does not expose it.
	AccessMode string

	// ObjectCount and TotalSize summarise the bucket's contents.
	// Zero when the backend does not expose them cheaply.
	ObjectCount int64
	TotalSize   int64
}

// ObjectInfo describes a single object stored in a bucket.
type ObjectInfo struct {
	// Key is the full object path within the bucket (e.g. "images/photo.jpg").
	Key string

	// Size is the byte size of the object. -1 if unknown.
	Size int64

	// ContentType is the MIME type (e.g. "image/jpeg").
	// Listings may leave it empty; GetObjectDetails fills it.
	ContentType string

	// ETag is the object's entity tag, unquoted.
	ETag string

	// LastModified is when the object was last written.
	LastModified time.Time

	// IsDir is true when the entry represents a virtual directory (prefix),
	// not an actual stored object.
	IsDir bool
}

// Tag is one key/value pair attached to an object. Every provider converts
// its native tag representation into this shape at the driver boundary.
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// TagsFromMap converts a backend tag map into the canonical slice shape,
// ordered by key so results are deterministic.
func TagsFromMap(m map[string]string) []Tag {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tags := make([]Tag, len(keys))
	for i, k := range keys {
		tags[i] = Tag{Key: k, Value: m[k]}
	}
	return tags
}

// TagMap converts canonical tags into the map shape most SDKs accept for
// uploads. Later duplicates win.
func TagMap(tags []Tag) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	m := make(map[string]string, len(tags))
	for _, t := range tags {
		m[t.Key] = t.Value
	}
	return m
}

// ObjectDetails is an ObjectInfo enriched with tags and user metadata,
// as returned by Store.GetObjectDetails.
type ObjectDetails struct {
	ObjectInfo

	// Tags are the object's tags in canonical order.
	Tags []Tag

	// Metadata is the user-defined metadata attached at upload time.
	Metadata map[string]string
}

// Object is a streaming handle to an object's content.
// The caller MUST call Close() after reading to avoid resource leaks.
type Object interface {
	io.ReadCloser

	// Info returns the metadata for this object.
	Info() *ObjectInfo
}

// ListOptions controls how ListObjects filters and paginates results.
type ListOptions struct {
	// Prefix restricts results to objects whose key starts with this string.
	// Use "" to list everything in the bucket.
	Prefix string

	// Recursive, when true, lists all objects under the prefix without
	// grouping by virtual directories. When false (default), common prefixes
	// (virtual "folders") are returned as IsDir entries.
	Recursive bool

	// Limit caps the number of results returned. 0 means use the backend default.
	Limit int

	// Marker is the pagination cursor: the last key seen in a previous page.
	// Pass "" to start from the beginning.
	Marker string
}

// PutOptions carries the optional attributes attached to an upload.
type PutOptions struct {
	// ContentType is the MIME type to record. Empty lets the backend guess.
	ContentType string

	// Tags are attached to the object as S3-style object tags.
	Tags []Tag

	// Metadata is attached as user-defined metadata (x-amz-meta-*).
	Metadata map[string]string
}
