package server

import (
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/browser"
	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/session"
	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/storage"
)

// presignTTL is how long presigned download links stay valid.
const presignTTL = 15 * time.Minute

type signInRequest struct {
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Region    string `json:"region"`
	UseSSL    *bool  `json:"use_ssl"`
}

type sessionResponse struct {
	SignedIn  bool      `json:"signed_in"`
	Endpoint  string    `json:"endpoint,omitempty"`
	Region    string    `json:"region,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(r, &req); err != nil {
		s.sendMappedError(w, err)
		return
	}

	if req.Endpoint == "" {
		req.Endpoint = s.cfg.Storage.Endpoint
	}
	sess, err := session.New(req.Endpoint, req.AccessKey, req.SecretKey)
	if err != nil {
		s.sendMappedError(w, err)
		return
	}
	sess.Region = req.Region
	if sess.Region == "" {
		sess.Region = s.cfg.Storage.Region
	}
	if req.UseSSL != nil {
		sess.UseSSL = *req.UseSSL
	} else {
		sess.UseSSL = s.cfg.Storage.UseSSL
	}

	provider := storage.Provider(s.cfg.Storage.Provider)
	store, err := s.newStore(r.Context(), sess.StorageConfig(provider, s.cfg.Storage.DefaultBucket))
	if err != nil {
		s.sendMappedError(w, err)
		return
	}

	ctl := browser.New(sess, store, browser.Options{
		Workers:         s.cfg.Preview.Workers,
		PreviewMaxBytes: s.cfg.Preview.MaxBytes,
		Logger:          s.log,
	})

	s.mu.Lock()
	old, oldStore := s.ctl, s.store
	s.ctl, s.store, s.sess = ctl, store, sess
	s.mu.Unlock()

	// A replaced session is torn down completely.
	if old != nil {
		old.EndSession()
	}
	if oldStore != nil {
		if err := oldStore.Close(); err != nil {
			s.log.With().Err(err).Logger().Warn("closing replaced store failed")
		}
	}

	s.log.With().Str("endpoint", sess.Endpoint).Logger().Info("session started")
	s.sendJSON(w, http.StatusCreated, sessionResponse{
		SignedIn:  true,
		Endpoint:  sess.Endpoint,
		Region:    sess.Region,
		StartedAt: sess.StartedAt,
	})
}

func (s *Server) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	sess := s.sess
	signedIn := s.ctl != nil
	s.mu.Unlock()

	if !signedIn {
		s.sendJSON(w, http.StatusOK, sessionResponse{SignedIn: false})
		return
	}
	s.sendJSON(w, http.StatusOK, sessionResponse{
		SignedIn:  true,
		Endpoint:  sess.Endpoint,
		Region:    sess.Region,
		StartedAt: sess.StartedAt,
	})
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	ctl, store := s.ctl, s.store
	s.ctl, s.store, s.sess = nil, nil, nil
	s.mu.Unlock()

	if ctl != nil {
		ctl.EndSession()
	}
	if store != nil {
		if err := store.Close(); err != nil {
			s.log.With().Err(err).Logger().Warn("closing store failed")
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// bucketView is the wire shape of one bucket.
type bucketView struct {
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
	AccessMode  string    `json:"access_mode,omitempty"`
	ObjectCount int64     `json:"object_count,omitempty"`
	TotalSize   int64     `json:"total_size,omitempty"`
}

func (s *Server) handleListBuckets(w http.ResponseWriter, r *http.Request) {
	buckets, err := s.controller().Buckets(r.Context())
	if err != nil {
		s.sendMappedError(w, err)
		return
	}

	views := make([]bucketView, len(buckets))
	for i, b := range buckets {
		views[i] = bucketView{
			Name:        b.Name,
			CreatedAt:   b.CreatedAt,
			AccessMode:  b.AccessMode,
			ObjectCount: b.ObjectCount,
			TotalSize:   b.TotalSize,
		}
	}
	s.sendJSON(w, http.StatusOK, map[string]any{"buckets": views})
}

func (s *Server) handleCreateBucket(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.sendMappedError(w, err)
		return
	}
	if req.Name == "" {
		s.sendError(w, http.StatusBadRequest, "bucket name is required")
		return
	}

	res, err := s.controller().CreateBucket(r.Context(), req.Name)
	if err != nil {
		s.sendMappedError(w, err)
		return
	}
	s.sendJSON(w, http.StatusCreated, res)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, s.controller().Snapshot())
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Bucket string `json:"bucket"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.sendMappedError(w, err)
		return
	}
	if req.Bucket == "" {
		req.Bucket = s.cfg.Storage.DefaultBucket
	}
	if req.Bucket == "" {
		s.sendError(w, http.StatusBadRequest, "bucket is required")
		return
	}

	ctl := s.controller()
	if err := ctl.Load(r.Context(), req.Bucket); err != nil {
		s.sendMappedError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, ctl.Snapshot())
}

func (s *Server) handleSetQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.sendMappedError(w, err)
		return
	}

	ctl := s.controller()
	ctl.SetQuery(req.Query)
	s.sendJSON(w, http.StatusOK, ctl.Snapshot())
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Clear    bool     `json:"clear"`
		Select   []string `json:"select"`
		Deselect []string `json:"deselect"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.sendMappedError(w, err)
		return
	}

	ctl := s.controller()
	if req.Clear {
		ctl.ClearSelection()
	}
	for _, name := range req.Select {
		ctl.Select(name)
	}
	for _, name := range req.Deselect {
		ctl.Deselect(name)
	}
	s.sendJSON(w, http.StatusOK, map[string]any{"selection": ctl.Selection()})
}

func (s *Server) handleStageUploads(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		s.sendError(w, http.StatusBadRequest, "no files in request")
		return
	}

	ctl := s.controller()
	for _, hdr := range headers {
		f, err := hdr.Open()
		if err != nil {
			s.sendError(w, http.StatusBadRequest, "unreadable file "+hdr.Filename)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			s.sendError(w, http.StatusBadRequest, "unreadable file "+hdr.Filename)
			return
		}
		ctl.StagePending(browser.PendingFile{
			Name:        filepath.Base(hdr.Filename),
			ContentType: hdr.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	s.sendJSON(w, http.StatusOK, map[string]any{"pending": ctl.Pending()})
}

func (s *Server) handleClearUploads(w http.ResponseWriter, r *http.Request) {
	s.controller().ClearPending()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCommitUploads(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tags []storage.Tag `json:"tags"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.sendMappedError(w, err)
		return
	}

	ctl := s.controller()
	if err := ctl.Upload(r.Context(), req.Tags); err != nil {
		s.sendMappedError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, ctl.Snapshot())
}

func (s *Server) handleStageDeletions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Names []string `json:"names"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.sendMappedError(w, err)
		return
	}

	ctl := s.controller()
	names := req.Names
	if len(names) == 0 {
		// No explicit names: stage the current selection.
		names = ctl.Selection()
	}

	count := ctl.StageDelete(names...)
	s.sendJSON(w, http.StatusOK, map[string]any{
		"staged": ctl.StagedDeletion(),
		"count":  count,
	})
}

func (s *Server) handleCancelDeletions(w http.ResponseWriter, r *http.Request) {
	s.controller().CancelDelete()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConfirmDeletions(w http.ResponseWriter, r *http.Request) {
	ctl := s.controller()
	if err := ctl.ConfirmDelete(r.Context()); err != nil {
		s.sendMappedError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, ctl.Snapshot())
}

func (s *Server) handleDownloads(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Names []string `json:"names"`
		Dir   string   `json:"dir"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.sendMappedError(w, err)
		return
	}

	ctl := s.controller()
	names := req.Names
	if len(names) == 0 {
		names = ctl.Selection()
	}
	if len(names) == 0 {
		s.sendError(w, http.StatusBadRequest, "nothing to download")
		return
	}
	dir := req.Dir
	if dir == "" {
		dir = s.cfg.Download.Dir
	}

	if err := ctl.Download(r.Context(), names, browser.DirSaver{Dir: dir}); err != nil {
		s.sendMappedError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]any{
		"downloaded": len(names),
		"dir":        dir,
	})
}

func (s *Server) handleFileContent(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	if name == "" {
		s.sendError(w, http.StatusBadRequest, "file name is required")
		return
	}

	ctl := s.controller()
	if r.URL.Query().Get("presign") == "true" {
		url, err := ctl.PresignURL(r.Context(), name, presignTTL)
		if err != nil {
			s.sendMappedError(w, err)
			return
		}
		s.sendJSON(w, http.StatusOK, map[string]any{
			"url":        url,
			"expires_at": time.Now().Add(presignTTL),
		})
		return
	}

	obj, err := ctl.Open(r.Context(), name)
	if err != nil {
		s.sendMappedError(w, err)
		return
	}
	defer obj.Close()

	info := obj.Info()
	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(name)+`"`)
	if info.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}

	if _, err := io.Copy(w, obj); err != nil {
		s.log.With().Str("object", name).Err(err).Logger().Warn("streaming content failed")
	}
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	h, ok := s.controller().Previews().Lookup(token)
	if !ok {
		s.sendError(w, http.StatusNotFound, "preview not found")
		return
	}
	data := h.Bytes()
	if data == nil {
		s.sendError(w, http.StatusNotFound, "preview not found")
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}
