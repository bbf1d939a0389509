// Package server exposes the browser over HTTP: session sign-in and
// sign-out, bucket operations, the collection view with search and
// selection, staged upload and deletion batches, raw file content and
// preview payloads.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/browser"
	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/config"
	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/errs"
	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/logger"
	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/metrics"
	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/session"
	"github.com/bout0047/GG-main-v2-fix-search-logic/internal/storage"
	miniodrv "github.com/bout0047/GG-main-v2-fix-search-logic/internal/storage/minio"
	s3drv "github.com/bout0047/GG-main-v2-fix-search-logic/internal/storage/s3"
)

// maxUploadMemory bounds how much of a multipart upload stays in RAM
// before spilling to temp files.
const maxUploadMemory = 32 << 20

// StoreFactory dials a storage backend for a fresh session.
type StoreFactory func(ctx context.Context, cfg *storage.Config) (storage.Store, error)

// OpenStore is the default StoreFactory. It picks the driver named by
// cfg.Provider.
func OpenStore(ctx context.Context, cfg *storage.Config) (storage.Store, error) {
	if cfg.Provider == storage.ProviderS3 {
		return s3drv.New(ctx, cfg)
	}
	return miniodrv.New(ctx, cfg)
}

// Server is the HTTP surface over one browser controller at a time.
// Signing in replaces the controller; signing out tears it down.
type Server struct {
	cfg      *config.Config
	log      *logger.Logger
	newStore StoreFactory

	mu    sync.Mutex
	ctl   *browser.Controller
	store storage.Store
	sess  *session.Session
}

// New builds a Server. A nil factory selects OpenStore.
func New(cfg *config.Config, log *logger.Logger, factory StoreFactory) *Server {
	if factory == nil {
		factory = OpenStore
	}
	return &Server{
		cfg:      cfg,
		log:      log,
		newStore: factory,
	}
}

// Handler assembles the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/session", s.handleSignIn)
		r.Get("/session", s.handleSessionInfo)
		r.Delete("/session", s.handleSignOut)

		// Everything below needs a signed-in controller.
		r.Group(func(r chi.Router) {
			r.Use(s.requireController)

			r.Get("/buckets", s.handleListBuckets)
			r.Post("/buckets", s.handleCreateBucket)

			r.Get("/view", s.handleView)
			r.Put("/view", s.handleLoad)
			r.Put("/view/query", s.handleSetQuery)
			r.Put("/view/selection", s.handleSelection)

			r.Post("/uploads", s.handleStageUploads)
			r.Delete("/uploads", s.handleClearUploads)
			r.Post("/uploads/commit", s.handleCommitUploads)

			r.Post("/deletions", s.handleStageDeletions)
			r.Delete("/deletions", s.handleCancelDeletions)
			r.Post("/deletions/confirm", s.handleConfirmDeletions)

			r.Post("/downloads", s.handleDownloads)

			r.Get("/files/*", s.handleFileContent)
			r.Get("/previews/{token}", s.handlePreview)
		})
	})

	return r
}

// controller returns the live controller, or nil before sign-in.
func (s *Server) controller() *browser.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctl
}

// requireController rejects API calls made before sign-in.
func (s *Server) requireController(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.controller() == nil {
			s.sendError(w, http.StatusUnauthorized, "not signed in")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs every request and feeds the HTTP metrics.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		took := time.Since(start)

		metrics.RecordHTTPRequest(r.Method, route, ww.Status(), took)
		s.log.HTTPEvent().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", took).
			Msg("http request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// errorResponse is the JSON shape of every error reply.
type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func (s *Server) sendJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.With().Err(err).Logger().Error("encoding response failed")
	}
}

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	s.sendJSON(w, code, errorResponse{Error: message, Code: code})
}

// sendMappedError translates an error kind into an HTTP status and keeps
// the error's own message in the body.
func (s *Server) sendMappedError(w http.ResponseWriter, err error) {
	s.sendError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errs.IsInvalidInput(err):
		return http.StatusBadRequest
	case errs.IsNotFound(err):
		return http.StatusNotFound
	case errs.IsPermissionDenied(err):
		return http.StatusForbidden
	case errs.IsTimeout(err):
		return http.StatusGatewayTimeout
	case errs.IsConnectionFailed(err), errs.IsOperationFailed(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads the request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "invalid request body", err)
	}
	return nil
}
