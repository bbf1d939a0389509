// Package browser implements the client-side controller behind the object
// browser: collection loading with per-file metadata and preview
// enrichment, selection, filtering, and the batch upload, delete and
// download operations.
//
// Usage:
//
//	sess, err := session.New("localhost:9000", accessKey, secretKey)
//	if err != nil { ... }
//	store, err := minio.New(ctx, sess.StorageConfig(storage.ProviderMinIO, ""))
//	if err != nil { ... }
//
//	ctl := browser.New(sess, store, browser.Options{})
//	if err := ctl.Load(ctx, "photos"); err != nil { ... }
//	for _, f := range ctl.Visible() { ... }
package browser

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/bucketname"
	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/errs"
	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/logger"
	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/metrics"
	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/preview"
	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/session"
	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/storage"
	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/taskgroup"
)

const (
	defaultWorkers      = 4
	defaultPreviewBytes = 8 << 20
)

// Options tunes a Controller. Zero values pick defaults.
type Options struct {
	// Workers bounds the per-file enrichment and preview fan-out.
	Workers int

	// PreviewMaxBytes caps how much of an object is read for its preview.
	PreviewMaxBytes int64

	// Logger receives orchestration logs. Nil selects the default logger.
	Logger *logger.Logger
}

// Controller owns the browser state for one signed-in session: the current
// collection, its lifecycle state, the selection, the search query, staged
// batch work and the preview handles. All methods are safe for concurrent
// use.
type Controller struct {
	sess     *session.Session
	store    storage.Store
	log      *logger.Logger
	previews *preview.Registry

	// downloads holds transient handles during batch downloads so saved
	// payloads go through the same acquire/release discipline as previews
	// without displacing them.
	downloads *preview.Registry

	workers    int
	previewCap int64

	// gen counts loads. A load publishes its results only while it is
	// still the newest generation; superseded loads finish quietly and
	// change nothing. Claims happen under mu in the same critical
	// section that takes over the view, and EndSession advances the
	// counter so a load in flight across sign-out is superseded.
	gen atomic.Int64

	mu        sync.Mutex
	state     State
	bucket    string
	entries   []FileEntry
	selection map[string]struct{}
	query     string
	lastErr   string
	progress  int
	pending   []PendingFile
	staged    []string
}

// New builds a Controller for the given session and store.
func New(sess *session.Session, store storage.Store, opts Options) *Controller {
	if opts.Workers < 1 {
		opts.Workers = defaultWorkers
	}
	if opts.PreviewMaxBytes < 1 {
		opts.PreviewMaxBytes = defaultPreviewBytes
	}
	if opts.Logger == nil {
		opts.Logger = logger.New(nil)
	}

	return &Controller{
		sess:       sess,
		store:      store,
		log:        opts.Logger,
		previews:   preview.NewRegistry(),
		downloads:  preview.NewRegistry(),
		workers:    opts.Workers,
		previewCap: opts.PreviewMaxBytes,
		selection:  make(map[string]struct{}),
	}
}

// Previews exposes the registry serving preview payloads by token.
func (c *Controller) Previews() *preview.Registry {
	return c.previews
}

// EndSession releases every live preview handle, clears the collection
// and zeroes the session credentials. The controller rejects all backend
// operations afterwards.
func (c *Controller) EndSession() {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A load still in flight is superseded and publishes nothing.
	c.gen.Add(1)

	c.previews.ReleaseAll()
	c.downloads.ReleaseAll()
	metrics.SetPreviewHandles(0)

	c.state = StateIdle
	c.bucket = ""
	c.entries = nil
	c.selection = make(map[string]struct{})
	c.query = ""
	c.lastErr = ""
	c.progress = 0
	c.pending = nil
	c.staged = nil

	c.sess.End()
}

// requireSession rejects operations without live credentials before any
// network call is made.
func (c *Controller) requireSession() error {
	if err := c.sess.Valid(); err != nil {
		return err
	}
	if c.store == nil {
		return errs.New(errs.ErrKindInvalidInput, "no storage connection")
	}
	return nil
}

// Load makes bucket the current collection.
//
// The listing is the strict prerequisite: if it fails, the collection
// enters Failed and keeps the transport's message. Per-file metadata and
// preview fetches run concurrently afterwards and degrade individually: a
// file whose enrichment fails stays listed with empty metadata. A load
// that is superseded by a newer one, or by sign-out, publishes nothing.
func (c *Controller) Load(ctx context.Context, bucket string) error {
	start := time.Now()

	c.mu.Lock()
	if err := c.requireSession(); err != nil {
		c.mu.Unlock()
		return err
	}
	gen := c.gen.Add(1)
	c.state = StateLoading
	c.bucket = bucket
	c.entries = nil
	c.previews.ReleaseAll()
	metrics.SetPreviewHandles(0)
	c.mu.Unlock()

	log := c.log.With().Str("bucket", bucket).Int64("generation", gen).Logger()

	infos, err := c.store.ListObjects(ctx, bucket, storage.ListOptions{Recursive: true})
	if err != nil {
		c.failLoad(gen, err)
		metrics.RecordLoad("failed", time.Since(start))
		log.With().Err(err).Logger().Error("collection listing failed")
		return err
	}

	entries := make([]FileEntry, 0, len(infos))
	for _, info := range infos {
		if info.IsDir {
			continue
		}
		entries = append(entries, FileEntry{
			Name:         info.Key,
			Size:         info.Size,
			ContentType:  info.ContentType,
			LastModified: info.LastModified,
		})
	}

	// Per-file metadata. Failures degrade the entry, never the load.
	details := taskgroup.Collect(ctx, gen, c.workers, len(entries),
		func(ctx context.Context, i int) (*storage.ObjectDetails, error) {
			return c.store.GetObjectDetails(ctx, bucket, entries[i].Name)
		})
	for _, r := range details {
		if r.Err != nil {
			metrics.RecordEnrichmentFailure("metadata")
			log.With().Str("object", entries[r.Index].Name).Err(r.Err).Logger().
				Warn("metadata enrichment failed")
			continue
		}
		e := &entries[r.Index]
		e.Size = r.Value.Size
		e.ContentType = r.Value.ContentType
		e.LastModified = r.Value.LastModified
		e.Tags = r.Value.Tags
		e.Metadata = r.Value.Metadata
	}

	// Preview payloads for image-class entries.
	var imageIdx []int
	for i, e := range entries {
		if IsImageFile(e.Name) {
			imageIdx = append(imageIdx, i)
		}
	}
	previews := taskgroup.Collect(ctx, gen, c.workers, len(imageIdx),
		func(ctx context.Context, i int) ([]byte, error) {
			return c.fetchPreview(ctx, bucket, entries[imageIdx[i]].Name)
		})

	// A dead context means the load was abandoned, not degraded.
	if err := ctx.Err(); err != nil {
		wrapped := errs.Wrap(errs.ErrKindTimeout, "collection load cancelled", err)
		c.failLoad(gen, wrapped)
		metrics.RecordLoad("cancelled", time.Since(start))
		return wrapped
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen.Load() != gen {
		// Superseded: a newer load owns the view. Acquire nothing.
		log.Debug("discarding superseded load")
		return nil
	}

	for _, r := range previews {
		if r.Err != nil {
			metrics.RecordEnrichmentFailure("preview")
			log.With().Str("object", entries[imageIdx[r.Index]].Name).Err(r.Err).Logger().
				Warn("preview fetch failed")
			continue
		}
		c.previews.Acquire(entries[imageIdx[r.Index]].Name, r.Value)
	}
	metrics.SetPreviewHandles(c.previews.Count())

	c.entries = entries
	c.state = StateReady
	c.reconcileSelectionLocked()

	metrics.RecordLoad("ready", time.Since(start))
	log.With().Int("files", len(entries)).Dur("took", time.Since(start)).Logger().
		Info("collection loaded")
	return nil
}

// failLoad moves the collection to Failed unless a newer load took over.
func (c *Controller) failLoad(gen int64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen.Load() != gen {
		return
	}
	c.state = StateFailed
	c.lastErr = err.Error()
}

// fetchPreview reads at most previewCap bytes of the object.
func (c *Controller) fetchPreview(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := c.store.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(io.LimitReader(obj, c.previewCap))
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Open returns a streaming handle to a file in the current bucket.
// The caller closes it.
func (c *Controller) Open(ctx context.Context, name string) (storage.Object, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	bucket := c.bucket
	c.mu.Unlock()
	if bucket == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "no bucket loaded")
	}
	return c.store.GetObject(ctx, bucket, name)
}

// PresignURL returns a time-limited download URL for a file in the
// current bucket.
func (c *Controller) PresignURL(ctx context.Context, name string, ttl time.Duration) (string, error) {
	if err := c.requireSession(); err != nil {
		return "", err
	}
	c.mu.Lock()
	bucket := c.bucket
	c.mu.Unlock()
	if bucket == "" {
		return "", errs.New(errs.ErrKindInvalidInput, "no bucket loaded")
	}
	return c.store.PresignGetURL(ctx, bucket, name, ttl)
}

// Buckets lists the buckets reachable with the session's credentials.
func (c *Controller) Buckets(ctx context.Context) ([]storage.BucketInfo, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}
	return c.store.ListBuckets(ctx)
}

// CreateBucketResult reports which name a creation actually used.
type CreateBucketResult struct {
	RequestedName string `json:"requested_name"`
	Name          string `json:"name"`
	Renamed       bool   `json:"renamed"`
	Violation     string `json:"violation,omitempty"`
}

// CreateBucket creates a bucket. An invalid requested name is replaced by
// its normalized form, and the substitution is surfaced in the result
// before the create request goes out.
func (c *Controller) CreateBucket(ctx context.Context, name string) (*CreateBucketResult, error) {
	if err := c.requireSession(); err != nil {
		return nil, err
	}

	res := &CreateBucketResult{RequestedName: name, Name: name}
	if v := bucketname.Validate(name); v != bucketname.ViolationNone {
		res.Name = bucketname.Normalize(name)
		res.Renamed = true
		res.Violation = v.String()
		c.log.With().
			Str("requested", name).
			Str("normalized", res.Name).
			Str("violation", res.Violation).
			Logger().
			Info("bucket name normalized")
	}

	if err := c.store.CreateBucket(ctx, res.Name); err != nil {
		return res, err
	}
	return res, nil
}

// --- state accessors ---

// State returns the collection lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Bucket returns the name of the current collection's bucket.
func (c *Controller) Bucket() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bucket
}

// Entries returns a copy of the full collection.
func (c *Controller) Entries() []FileEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]FileEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Visible returns the entries matching the current query, derived fresh
// from the collection on every call.
func (c *Controller) Visible() []FileEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Filter(c.entries, c.query)
}

// SetQuery updates the search query. The collection itself is untouched.
func (c *Controller) SetQuery(q string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = q
}

// Query returns the current search query.
func (c *Controller) Query() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// Progress returns the batch upload progress, 0 to 100.
func (c *Controller) Progress() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// LastError returns the reportable error message, "" when clear.
func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// ClearError resets the reportable error state.
func (c *Controller) ClearError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = ""
}

// Snapshot assembles the presentation view in one locked read.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	files := Filter(c.entries, c.query)
	for i := range files {
		if token, ok := c.previews.TokenFor(files[i].Name); ok {
			files[i].PreviewURL = "/api/previews/" + token
		}
	}

	return Snapshot{
		State:          c.state.String(),
		Bucket:         c.bucket,
		Query:          c.query,
		Files:          files,
		Total:          len(c.entries),
		Selection:      c.selectionLocked(),
		Pending:        c.pendingNamesLocked(),
		StagedDeletion: append([]string(nil), c.staged...),
		Progress:       c.progress,
		LastError:      c.lastErr,
	}
}

// --- selection ---

// Select marks name as selected. Names outside the collection are ignored
// so the selection always refers to existing entries.
func (c *Controller) Select(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasEntryLocked(name) {
		return false
	}
	c.selection[name] = struct{}{}
	return true
}

// Deselect removes name from the selection.
func (c *Controller) Deselect(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.selection, name)
}

// ToggleSelect flips name's membership and reports the new state.
func (c *Controller) ToggleSelect(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.selection[name]; ok {
		delete(c.selection, name)
		return false
	}
	if !c.hasEntryLocked(name) {
		return false
	}
	c.selection[name] = struct{}{}
	return true
}

// ClearSelection empties the selection.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection = make(map[string]struct{})
}

// Selection returns the selected names in collection order.
func (c *Controller) Selection() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectionLocked()
}

func (c *Controller) selectionLocked() []string {
	if len(c.selection) == 0 {
		return nil
	}
	names := make([]string, 0, len(c.selection))
	for _, e := range c.entries {
		if _, ok := c.selection[e.Name]; ok {
			names = append(names, e.Name)
		}
	}
	return names
}

func (c *Controller) hasEntryLocked(name string) bool {
	for _, e := range c.entries {
		if e.Name == name {
			return true
		}
	}
	return false
}

// reconcileSelectionLocked drops selected names that vanished from the
// collection, keeping the ones that survived the reload.
func (c *Controller) reconcileSelectionLocked() {
	for name := range c.selection {
		if !c.hasEntryLocked(name) {
			delete(c.selection, name)
		}
	}
}

// setLastError records err as the reportable error message.
func (c *Controller) setLastError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err.Error()
}

// fetchAll downloads the whole object.
func (c *Controller) fetchAll(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := c.store.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return data, nil
}
