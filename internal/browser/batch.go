package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/errs"
	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/metrics"
	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/storage"
)

// PendingFile is a file staged for upload, held in memory until the batch
// is committed.
type PendingFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// PendingFromFile stages a file from disk. The content type is guessed
// from the extension.
func PendingFromFile(path string) (PendingFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PendingFile{}, errs.Wrap(errs.ErrKindInvalidInput, "reading upload file", err)
	}
	ct := mime.TypeByExtension(filepath.Ext(path))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return PendingFile{
		Name:        filepath.Base(path),
		ContentType: ct,
		Data:        data,
	}, nil
}

// StagePending adds files to the upload batch.
func (c *Controller) StagePending(files ...PendingFile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, files...)
}

// Pending returns the names of the staged upload files.
func (c *Controller) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingNamesLocked()
}

func (c *Controller) pendingNamesLocked() []string {
	if len(c.pending) == 0 {
		return nil
	}
	names := make([]string, len(c.pending))
	for i, f := range c.pending {
		names[i] = f.Name
	}
	return names
}

// ClearPending drops the staged upload batch without sending anything.
func (c *Controller) ClearPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = nil
	c.progress = 0
}

// Upload commits the staged batch to the current bucket, applying tags to
// every file.
//
// Files go up one at a time and the batch stops at the first failure:
// progress keeps the last completed value and the staged list stays
// intact so the batch can be retried. Only a fully successful batch
// clears its own files from the staging area and reloads the collection;
// files staged while the batch ran stay pending for the next one.
func (c *Controller) Upload(ctx context.Context, tags []storage.Tag) error {
	if err := c.requireSession(); err != nil {
		return err
	}

	c.mu.Lock()
	bucket := c.bucket
	files := append([]PendingFile(nil), c.pending...)
	c.mu.Unlock()

	if len(files) == 0 {
		return nil
	}
	if bucket == "" {
		return errs.New(errs.ErrKindInvalidInput, "no bucket loaded")
	}

	log := c.log.With().Str("bucket", bucket).Int("files", len(files)).Logger()
	for i, f := range files {
		opts := storage.PutOptions{
			ContentType: f.ContentType,
			Tags:        tags,
		}
		err := c.store.PutObject(ctx, bucket, f.Name, bytes.NewReader(f.Data), int64(len(f.Data)), opts)
		if err != nil {
			c.setLastError(err)
			metrics.RecordBatch("upload", "failed")
			log.With().Str("object", f.Name).Err(err).Logger().Error("upload failed")
			return err
		}
		c.setProgress((i + 1) * 100 / len(files))
	}

	metrics.RecordBatch("upload", "ok")
	log.Info("upload batch completed")

	c.mu.Lock()
	c.pending = trimCommitted(c.pending, files)
	c.progress = 0
	c.mu.Unlock()

	return c.Load(ctx, bucket)
}

func (c *Controller) setProgress(p int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress = p
}

// trimCommitted drops the committed batch from the front of the staging
// list, keeping files staged while the batch ran. A list cleared or
// restaged mid-batch is left as it now stands.
func trimCommitted(pending, committed []PendingFile) []PendingFile {
	if len(pending) < len(committed) {
		return pending
	}
	for i := range committed {
		if pending[i].Name != committed[i].Name {
			return pending
		}
	}
	rest := pending[len(committed):]
	if len(rest) == 0 {
		return nil
	}
	return append([]PendingFile(nil), rest...)
}

// StageDelete replaces the staged deletion list with the given names,
// keeping only names present in the collection. It returns how many were
// staged; nothing is removed until ConfirmDelete.
func (c *Controller) StageDelete(names ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.staged = nil
	for _, name := range names {
		if c.hasEntryLocked(name) {
			c.staged = append(c.staged, name)
		}
	}
	return len(c.staged)
}

// StagedDeletion returns the names currently staged for deletion.
func (c *Controller) StagedDeletion() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.staged...)
}

// CancelDelete drops the staged deletion without removing anything.
func (c *Controller) CancelDelete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.staged = nil
}

// ConfirmDelete removes the staged files one at a time, stopping at the
// first failure. An empty staging list is a no-op. Only a fully
// successful batch clears the selection and reloads the collection.
func (c *Controller) ConfirmDelete(ctx context.Context) error {
	if err := c.requireSession(); err != nil {
		return err
	}

	c.mu.Lock()
	bucket := c.bucket
	staged := append([]string(nil), c.staged...)
	c.mu.Unlock()

	if len(staged) == 0 {
		return nil
	}

	log := c.log.With().Str("bucket", bucket).Int("files", len(staged)).Logger()
	for _, name := range staged {
		if err := c.store.RemoveObject(ctx, bucket, name); err != nil {
			c.setLastError(err)
			metrics.RecordBatch("delete", "failed")
			log.With().Str("object", name).Err(err).Logger().Error("delete failed")
			return err
		}
	}

	metrics.RecordBatch("delete", "ok")
	log.Info("delete batch completed")

	c.mu.Lock()
	c.staged = nil
	c.selection = make(map[string]struct{})
	c.mu.Unlock()

	return c.Load(ctx, bucket)
}

// Saver persists a downloaded payload under a file name.
type Saver interface {
	Save(name string, data []byte) error
}

// DirSaver writes downloads into a directory, creating it on first use.
type DirSaver struct {
	Dir string
}

// Save writes data to Dir/name. Path components in name are stripped.
func (s DirSaver) Save(name string, data []byte) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.Dir, filepath.Base(name)), data, 0o644)
}

// Download fetches each named file and hands it to saver.
//
// Unlike upload and delete, a failed file does not stop the batch: the
// remaining files are still attempted and the failures come back joined
// in a single error. The collection is not reloaded; downloads change
// nothing server-side.
func (c *Controller) Download(ctx context.Context, names []string, saver Saver) error {
	if err := c.requireSession(); err != nil {
		return err
	}

	c.mu.Lock()
	bucket := c.bucket
	c.mu.Unlock()

	if len(names) == 0 {
		return nil
	}
	if bucket == "" {
		return errs.New(errs.ErrKindInvalidInput, "no bucket loaded")
	}

	log := c.log.With().Str("bucket", bucket).Int("files", len(names)).Logger()
	var failures []error
	for _, name := range names {
		data, err := c.fetchAll(ctx, bucket, name)
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", name, err))
			log.With().Str("object", name).Err(err).Logger().Warn("download failed")
			continue
		}

		h := c.downloads.Acquire(name, data)
		err = saver.Save(name, h.Bytes())
		c.downloads.Release(h)
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", name, err))
			log.With().Str("object", name).Err(err).Logger().Warn("saving download failed")
		}
	}

	if len(failures) > 0 {
		metrics.RecordBatch("download", "failed")
		err := errs.Wrap(errs.ErrKindOperationFailed,
			fmt.Sprintf("%d of %d downloads failed", len(failures), len(names)),
			errors.Join(failures...))
		c.setLastError(err)
		return err
	}

	metrics.RecordBatch("download", "ok")
	log.Info("download batch completed")
	return nil
}
