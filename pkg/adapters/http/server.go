package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aretw0/sessionlock/internal/logging"
	"github.com/aretw0/sessionlock/pkg/domain"
	"github.com/aretw0/sessionlock/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Store is the subset of session.Store the facade exposes.
type Store interface {
	NewRecord(id, namespace string, timeoutMinutes int, payload []byte, itemCount int) *domain.Record
	Insert(ctx context.Context, rec *domain.Record) error
	InsertFresh(ctx context.Context, rec *domain.Record) error
	CreateUninitialized(ctx context.Context, id, namespace string, timeoutMinutes int) error
	Fetch(ctx context.Context, id, namespace string, exclusive bool) (session.FetchResult, error)
	ReleaseAndUpdate(ctx context.Context, id, namespace string, token domain.LockToken, payload []byte, itemCount, timeoutMinutes int) error
	ReleaseLock(ctx context.Context, id, namespace string, token domain.LockToken, timeoutMinutes int) error
	RefreshExpiration(ctx context.Context, id, namespace string, timeoutMinutes int) error
	Evict(ctx context.Context, id, namespace string, token domain.LockToken) error
	EvictIfExpired(ctx context.Context, id, namespace string) error
	Ping(ctx context.Context) error
}

var _ Store = (*session.Store)(nil)

// Server serves the session store over JSON/HTTP.
type Server struct {
	Store   Store
	Logger  *slog.Logger
	Metrics http.Handler
}

// Option configures the handler.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = logger
	}
}

// WithMetricsHandler mounts h at GET /metrics (typically promhttp.Handler()).
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.Metrics = h
	}
}

// NewHandler creates the HTTP handler for store.
func NewHandler(store Store, opts ...Option) http.Handler {
	s := &Server{
		Store:  store,
		Logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.Health)
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}

	r.Route("/v1/sessions/{namespace}/{id}", func(r chi.Router) {
		r.Post("/", s.Insert)
		r.Get("/", s.Fetch)
		r.Delete("/", s.Evict)
		r.Put("/release", s.Release)
		r.Post("/unlock", s.Unlock)
		r.Post("/touch", s.Touch)
		r.Delete("/expired", s.EvictIfExpired)
	})

	return r
}

func sessionKey(r *http.Request) (id, namespace string) {
	return chi.URLParam(r, "id"), chi.URLParam(r, "namespace")
}

// Insert handles POST /v1/sessions/{namespace}/{id}.
func (s *Server) Insert(w http.ResponseWriter, r *http.Request) {
	id, ns := sessionKey(r)
	var body InsertRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.TimeoutMinutes < 0 || body.ItemCount < 0 {
		s.badRequest(w, "timeout_minutes and item_count must not be negative")
		return
	}

	var err error
	switch {
	case body.Uninitialized:
		err = s.Store.CreateUninitialized(r.Context(), id, ns, body.TimeoutMinutes)
	case body.Fresh:
		err = s.Store.InsertFresh(r.Context(), s.Store.NewRecord(id, ns, body.TimeoutMinutes, body.Payload, body.ItemCount))
	default:
		err = s.Store.Insert(r.Context(), s.Store.NewRecord(id, ns, body.TimeoutMinutes, body.Payload, body.ItemCount))
	}
	if err != nil {
		s.storeError(w, r, "Insert", err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// Fetch handles GET /v1/sessions/{namespace}/{id}?exclusive=true.
func (s *Server) Fetch(w http.ResponseWriter, r *http.Request) {
	id, ns := sessionKey(r)
	exclusive := false
	if v := r.URL.Query().Get("exclusive"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.badRequest(w, "exclusive must be a boolean")
			return
		}
		exclusive = b
	}

	res, err := s.Store.Fetch(r.Context(), id, ns, exclusive)
	if err != nil {
		s.storeError(w, r, "Fetch", err)
		return
	}

	switch {
	case res.Absent():
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "session not found"})
	case res.Locked:
		writeJSON(w, http.StatusLocked, LockedResponse{
			ID:        id,
			Namespace: ns,
			LockAgeMS: res.LockAge.Milliseconds(),
			LockToken: res.LockToken,
		})
	default:
		writeJSON(w, http.StatusOK, toRecordResponse(res.Record, res.Flags))
	}
}

// Release handles PUT .../release.
func (s *Server) Release(w http.ResponseWriter, r *http.Request) {
	id, ns := sessionKey(r)
	var body ReleaseRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.LockToken == nil {
		s.badRequest(w, "lock_token is required")
		return
	}
	if err := s.Store.ReleaseAndUpdate(r.Context(), id, ns, *body.LockToken, body.Payload, body.ItemCount, body.TimeoutMinutes); err != nil {
		s.storeError(w, r, "Release", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Unlock handles POST .../unlock.
func (s *Server) Unlock(w http.ResponseWriter, r *http.Request) {
	id, ns := sessionKey(r)
	var body UnlockRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.LockToken == nil {
		s.badRequest(w, "lock_token is required")
		return
	}
	if err := s.Store.ReleaseLock(r.Context(), id, ns, *body.LockToken, body.TimeoutMinutes); err != nil {
		s.storeError(w, r, "Unlock", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Touch handles POST .../touch.
func (s *Server) Touch(w http.ResponseWriter, r *http.Request) {
	id, ns := sessionKey(r)
	var body TouchRequest
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.Store.RefreshExpiration(r.Context(), id, ns, body.TimeoutMinutes); err != nil {
		s.storeError(w, r, "Touch", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Evict handles DELETE /v1/sessions/{namespace}/{id}?lock_token=N.
func (s *Server) Evict(w http.ResponseWriter, r *http.Request) {
	id, ns := sessionKey(r)
	token, err := strconv.ParseInt(r.URL.Query().Get("lock_token"), 10, 64)
	if err != nil {
		s.badRequest(w, "lock_token query parameter is required")
		return
	}
	if err := s.Store.Evict(r.Context(), id, ns, domain.LockToken(token)); err != nil {
		s.storeError(w, r, "Evict", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EvictIfExpired handles DELETE .../expired.
func (s *Server) EvictIfExpired(w http.ResponseWriter, r *http.Request) {
	id, ns := sessionKey(r)
	if err := s.Store.EvictIfExpired(r.Context(), id, ns); err != nil {
		s.storeError(w, r, "EvictIfExpired", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Ping(r.Context()); err != nil {
		s.Logger.Warn("Health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads an optional JSON body into v. An empty body leaves v zero.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		s.Logger.Warn("Invalid request body", "path", r.URL.Path, "error", err)
		s.badRequest(w, "invalid request body")
		return false
	}
	return true
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg})
}

func (s *Server) storeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, domain.ErrStoreUnavailable) {
		status = http.StatusServiceUnavailable
	}
	s.Logger.Error(op+" failed",
		"error", err,
		"request_id", middleware.GetReqID(r.Context()),
	)
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
