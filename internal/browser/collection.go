package browser

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/storage"
)

// State identifies where the collection lifecycle currently is.
// Loads move Idle -> Loading -> Ready or Failed; reloads re-enter Loading.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FileEntry is one row of the collection. Name is the identity: the
// collection never holds two entries with the same name.
type FileEntry struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`

	// Tags and Metadata are filled by per-file enrichment after listing.
	// Entries whose enrichment failed keep them empty.
	Tags     []storage.Tag     `json:"tags,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`

	// PreviewURL is only populated in snapshots, for entries that have a
	// live preview handle.
	PreviewURL string `json:"preview_url,omitempty"`
}

// Snapshot is the controller's presentation view: everything a UI needs
// to render the browser in one read.
type Snapshot struct {
	State          string      `json:"state"`
	Bucket         string      `json:"bucket,omitempty"`
	Query          string      `json:"query,omitempty"`
	Files          []FileEntry `json:"files"`
	Total          int         `json:"total"`
	Selection      []string    `json:"selection,omitempty"`
	Pending        []string    `json:"pending,omitempty"`
	StagedDeletion []string    `json:"staged_deletion,omitempty"`
	Progress       int         `json:"progress"`
	LastError      string      `json:"last_error,omitempty"`
}

// imageExtensions lists the file extensions that get previews.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// IsImageFile reports whether name has an image-class extension.
func IsImageFile(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}
