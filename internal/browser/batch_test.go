package browser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/errs"
	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/storage"
)

func loadedController(t *testing.T, fake *fakeStore, bucket string) *Controller {
	t.Helper()
	ctl := newTestController(t, fake)
	require.NoError(t, ctl.Load(context.Background(), bucket))
	return ctl
}

func TestUploadStopsAtFirstFailure(t *testing.T) {
	fake := newFakeStore()
	fake.mu.Lock()
	fake.listings["docs"] = nil
	fake.mu.Unlock()
	fake.putErr["b.txt"] = errs.New(errs.ErrKindOperationFailed, "EntityTooLarge")

	ctl := loadedController(t, fake, "docs")
	listCallsBefore := len(fake.listCalls)

	ctl.StagePending(
		PendingFile{Name: "a.txt", Data: []byte("a")},
		PendingFile{Name: "b.txt", Data: []byte("b")},
		PendingFile{Name: "c.txt", Data: []byte("c")},
	)

	err := ctl.Upload(context.Background(), nil)
	require.Error(t, err)

	// The batch stops where it failed: the third file is never attempted.
	assert.Equal(t, []string{"a.txt", "b.txt"}, fake.putCalls)
	// Progress keeps the last completed value.
	assert.Equal(t, 33, ctl.Progress())
	// The staged batch survives for a retry, and nothing is reloaded.
	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, ctl.Pending())
	assert.Len(t, fake.listCalls, listCallsBefore)
	assert.Contains(t, ctl.LastError(), "EntityTooLarge")
}

func TestUploadSuccessClearsAndReloads(t *testing.T) {
	fake := newFakeStore()
	fake.addObject("docs", "existing.txt", []byte("e"), nil, nil)

	ctl := loadedController(t, fake, "docs")
	listCallsBefore := len(fake.listCalls)

	ctl.StagePending(
		PendingFile{Name: "one.txt", ContentType: "text/plain", Data: []byte("one")},
		PendingFile{Name: "two.txt", ContentType: "text/plain", Data: []byte("two")},
	)
	require.NoError(t, ctl.Upload(context.Background(), nil))

	assert.Equal(t, []string{"one.txt", "two.txt"}, fake.putCalls)
	assert.Empty(t, ctl.Pending())
	assert.Equal(t, 0, ctl.Progress())
	assert.Len(t, fake.listCalls, listCallsBefore+1, "a full success reloads the collection")

	// The reloaded collection includes the uploads.
	names := make([]string, 0, 3)
	for _, e := range ctl.Entries() {
		names = append(names, e.Name)
	}
	assert.ElementsMatch(t, []string{"existing.txt", "one.txt", "two.txt"}, names)
}

func TestUploadSuccessKeepsFilesStagedMidBatch(t *testing.T) {
	fake := newFakeStore()
	fake.mu.Lock()
	fake.listings["docs"] = nil
	fake.mu.Unlock()

	gate := make(chan struct{})
	fake.putGate["first.txt"] = gate
	fake.putStarted = make(chan string, 1)

	ctl := loadedController(t, fake, "docs")
	ctl.StagePending(PendingFile{Name: "first.txt", ContentType: "text/plain", Data: []byte("1")})

	done := make(chan error, 1)
	go func() { done <- ctl.Upload(context.Background(), nil) }()
	<-fake.putStarted // the batch is mid-flight

	ctl.StagePending(PendingFile{Name: "late.txt", ContentType: "text/plain", Data: []byte("2")})
	close(gate)
	require.NoError(t, <-done)

	// The success only clears the committed batch; the late file stays
	// staged for the next one and was never sent.
	assert.Equal(t, []string{"late.txt"}, ctl.Pending())
	assert.Equal(t, []string{"first.txt"}, fake.putCalls)
}

func TestTrimCommitted(t *testing.T) {
	batch := []PendingFile{{Name: "a"}, {Name: "b"}}

	assert.Nil(t, trimCommitted([]PendingFile{{Name: "a"}, {Name: "b"}}, batch))

	kept := trimCommitted([]PendingFile{{Name: "a"}, {Name: "b"}, {Name: "late"}}, batch)
	require.Len(t, kept, 1)
	assert.Equal(t, "late", kept[0].Name)

	// A list cleared mid-batch stays cleared.
	assert.Nil(t, trimCommitted(nil, batch))

	// A list cleared and restaged mid-batch is left as it now stands.
	restaged := []PendingFile{{Name: "x"}, {Name: "y"}}
	assert.Equal(t, restaged, trimCommitted(restaged, batch))
}

func TestUploadEmptyBatchIsNoOp(t *testing.T) {
	fake := newFakeStore()
	ctl := newTestController(t, fake)

	require.NoError(t, ctl.Upload(context.Background(), nil))
	assert.Empty(t, fake.putCalls)
	assert.Empty(t, fake.listCalls)
}

func TestUploadAppliesSharedTags(t *testing.T) {
	fake := newFakeStore()
	fake.mu.Lock()
	fake.listings["docs"] = nil
	fake.mu.Unlock()

	ctl := loadedController(t, fake, "docs")
	ctl.StagePending(
		PendingFile{Name: "a.txt", ContentType: "text/plain", Data: []byte("a")},
		PendingFile{Name: "b.txt", ContentType: "text/plain", Data: []byte("b")},
	)

	tags := []storage.Tag{{Key: "project", Value: "atlas"}}
	require.NoError(t, ctl.Upload(context.Background(), tags))

	assert.Equal(t, tags, fake.putOpts["a.txt"].Tags)
	assert.Equal(t, tags, fake.putOpts["b.txt"].Tags)
	assert.Equal(t, "text/plain", fake.putOpts["a.txt"].ContentType)
}

func TestUploadWithoutBucket(t *testing.T) {
	fake := newFakeStore()
	ctl := newTestController(t, fake)
	ctl.StagePending(PendingFile{Name: "a.txt", Data: []byte("a")})

	err := ctl.Upload(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
	assert.Empty(t, fake.putCalls)
}

func TestClearPending(t *testing.T) {
	fake := newFakeStore()
	ctl := newTestController(t, fake)

	ctl.StagePending(PendingFile{Name: "a.txt", Data: []byte("a")})
	require.Equal(t, []string{"a.txt"}, ctl.Pending())

	ctl.ClearPending()
	assert.Empty(t, ctl.Pending())
	assert.Empty(t, fake.putCalls)
}

func TestStageDeleteFiltersToCollection(t *testing.T) {
	fake := newFakeStore()
	fake.addObject("docs", "a.txt", []byte("a"), nil, nil)
	fake.addObject("docs", "b.txt", []byte("b"), nil, nil)

	ctl := loadedController(t, fake, "docs")

	staged := ctl.StageDelete("a.txt", "ghost.txt")
	assert.Equal(t, 1, staged)
	assert.Equal(t, []string{"a.txt"}, ctl.StagedDeletion())

	// Staging again replaces the previous list.
	staged = ctl.StageDelete("b.txt")
	assert.Equal(t, 1, staged)
	assert.Equal(t, []string{"b.txt"}, ctl.StagedDeletion())

	ctl.CancelDelete()
	assert.Empty(t, ctl.StagedDeletion())
	assert.Empty(t, fake.removeCalls, "staging never deletes anything")
}

func TestConfirmDeleteEmptyIsNoOp(t *testing.T) {
	fake := newFakeStore()
	ctl := newTestController(t, fake)

	require.NoError(t, ctl.ConfirmDelete(context.Background()))
	assert.Empty(t, fake.removeCalls)
	assert.Empty(t, fake.listCalls)
}

func TestConfirmDeleteStopsAtFirstFailure(t *testing.T) {
	fake := newFakeStore()
	fake.addObject("docs", "a.txt", []byte("a"), nil, nil)
	fake.addObject("docs", "b.txt", []byte("b"), nil, nil)
	fake.addObject("docs", "c.txt", []byte("c"), nil, nil)
	fake.removeErr["b.txt"] = errs.New(errs.ErrKindPermissionDenied, "AccessDenied")

	ctl := loadedController(t, fake, "docs")
	listCallsBefore := len(fake.listCalls)
	require.Equal(t, 3, ctl.StageDelete("a.txt", "b.txt", "c.txt"))

	err := ctl.ConfirmDelete(context.Background())
	require.Error(t, err)

	assert.Equal(t, []string{"a.txt", "b.txt"}, fake.removeCalls, "the batch stops at the failure")
	assert.Len(t, fake.listCalls, listCallsBefore, "a failed batch does not reload")
	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, ctl.StagedDeletion(), "staging survives for a retry")
	assert.Contains(t, ctl.LastError(), "AccessDenied")
}

func TestConfirmDeleteSuccessClearsSelectionAndReloads(t *testing.T) {
	fake := newFakeStore()
	fake.addObject("docs", "a.txt", []byte("a"), nil, nil)
	fake.addObject("docs", "b.txt", []byte("b"), nil, nil)

	ctl := loadedController(t, fake, "docs")
	listCallsBefore := len(fake.listCalls)
	ctl.Select("a.txt")
	ctl.Select("b.txt")
	require.Equal(t, 1, ctl.StageDelete("a.txt"))

	require.NoError(t, ctl.ConfirmDelete(context.Background()))

	assert.Equal(t, []string{"a.txt"}, fake.removeCalls)
	assert.Empty(t, ctl.StagedDeletion())
	assert.Empty(t, ctl.Selection(), "a successful delete clears the whole selection")
	assert.Len(t, fake.listCalls, listCallsBefore+1)

	entries := ctl.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "b.txt", entries[0].Name)
}

// memSaver records saves and can fail on demand.
type memSaver struct {
	mu    sync.Mutex
	saved map[string][]byte
	fail  map[string]error
}

func newMemSaver() *memSaver {
	return &memSaver{saved: make(map[string][]byte), fail: make(map[string]error)}
}

func (s *memSaver) Save(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[name]; err != nil {
		return err
	}
	s.saved[name] = append([]byte(nil), data...)
	return nil
}

func TestDownloadContinuesPastFailures(t *testing.T) {
	fake := newFakeStore()
	fake.addObject("docs", "a.txt", []byte("alpha"), nil, nil)
	fake.addObject("docs", "b.txt", []byte("bravo"), nil, nil)
	fake.addObject("docs", "c.txt", []byte("charlie"), nil, nil)
	fake.getErr["b.txt"] = errs.New(errs.ErrKindConnectionFailed, "connection reset")

	ctl := loadedController(t, fake, "docs")
	saver := newMemSaver()

	err := ctl.Download(context.Background(), []string{"a.txt", "b.txt", "c.txt"}, saver)
	require.Error(t, err)
	assert.True(t, errs.IsOperationFailed(err))
	assert.Contains(t, err.Error(), "1 of 3 downloads failed")

	// The files after the failure were still fetched and saved.
	assert.Equal(t, []byte("alpha"), saver.saved["a.txt"])
	assert.Equal(t, []byte("charlie"), saver.saved["c.txt"])
	_, ok := saver.saved["b.txt"]
	assert.False(t, ok)

	assert.Equal(t, 0, ctl.downloads.Count(), "every transient handle is released")
}

func TestDownloadAllSucceed(t *testing.T) {
	fake := newFakeStore()
	fake.addObject("docs", "a.txt", []byte("alpha"), nil, nil)

	ctl := loadedController(t, fake, "docs")
	saver := newMemSaver()

	require.NoError(t, ctl.Download(context.Background(), []string{"a.txt"}, saver))
	assert.Equal(t, []byte("alpha"), saver.saved["a.txt"])
	assert.Equal(t, 0, ctl.downloads.Count())
}

func TestDownloadSaverFailureIsCollected(t *testing.T) {
	fake := newFakeStore()
	fake.addObject("docs", "a.txt", []byte("alpha"), nil, nil)
	fake.addObject("docs", "b.txt", []byte("bravo"), nil, nil)

	ctl := loadedController(t, fake, "docs")
	saver := newMemSaver()
	saver.fail["a.txt"] = errors.New("disk full")

	err := ctl.Download(context.Background(), []string{"a.txt", "b.txt"}, saver)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 downloads failed")
	assert.Equal(t, []byte("bravo"), saver.saved["b.txt"])
	assert.Equal(t, 0, ctl.downloads.Count())
}

func TestDownloadDoesNotDisplacePreviews(t *testing.T) {
	fake := newFakeStore()
	fake.addObject("photos", "pic.png", []byte("png"), nil, nil)

	ctl := loadedController(t, fake, "photos")
	token, ok := ctl.Previews().TokenFor("pic.png")
	require.True(t, ok)

	require.NoError(t, ctl.Download(context.Background(), []string{"pic.png"}, newMemSaver()))

	// The live preview handle for the same key is untouched.
	h, ok := ctl.Previews().Lookup(token)
	require.True(t, ok)
	assert.Equal(t, []byte("png"), h.Bytes())
}

func TestDownloadEmptyListIsNoOp(t *testing.T) {
	fake := newFakeStore()
	ctl := newTestController(t, fake)

	require.NoError(t, ctl.Download(context.Background(), nil, newMemSaver()))
}

func TestDirSaver(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "downloads")
	saver := DirSaver{Dir: dir}

	require.NoError(t, saver.Save("nested/path/report.pdf", []byte("content")))

	// Path components in the object key are stripped.
	data, err := os.ReadFile(filepath.Join(dir, "report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, []byte("content"), data)
}

func TestPendingFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 'P', 'N', 'G'}, 0o644))

	pf, err := PendingFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "photo.png", pf.Name)
	assert.Equal(t, "image/png", pf.ContentType)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, pf.Data)

	_, err = PendingFromFile(filepath.Join(t.TempDir(), "missing.bin"))
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
}
