// Package server exposes the catalog views, pipeline health and the
// parameter store over HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/drallgood/book-catalog/internal/catalog"
	"github.com/drallgood/book-catalog/internal/database"
	"github.com/drallgood/book-catalog/internal/logger"
	"github.com/drallgood/book-catalog/internal/models"
	"github.com/drallgood/book-catalog/internal/paramstore"
	"github.com/drallgood/book-catalog/internal/remoteconfig"
	"github.com/drallgood/book-catalog/internal/validation"
)

// maxParameterBytes bounds PUT /parameters/{key} bodies
const maxParameterBytes = 4 << 20

// Pipeline is the part of the remote config service the server drives
type Pipeline interface {
	Refresh(ctx context.Context)
	Status() remoteconfig.Status
}

// ParameterStore is the parameter store as used by the server
type ParameterStore interface {
	List(ctx context.Context, keys ...string) ([]database.Parameter, error)
	Put(ctx context.Context, key, value string) (database.Parameter, error)
	Delete(ctx context.Context, key string) error
}

// HealthChecker reports whether a backing resource is reachable
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Options configures a Server
type Options struct {
	Addr     string
	Pipeline Pipeline
	Catalog  *catalog.Catalog
	// Store is optional; parameter routes answer 404 without it
	Store ParameterStore
	// Database is optional; /healthz reports degraded when it fails
	Database HealthChecker
	// Token, when set, is required as a bearer token on parameter routes
	Token  string
	Logger *logger.Logger
}

// Server represents the HTTP server
type Server struct {
	server   *http.Server
	pipeline Pipeline
	catalog  *catalog.Catalog
	store    ParameterStore
	database HealthChecker
	token    string
	logger   *logger.Logger
}

// New creates the HTTP server and its routes
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logger.Get()
	}
	s := &Server{
		server: &http.Server{
			Addr:         opts.Addr,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		pipeline: opts.Pipeline,
		catalog:  opts.Catalog,
		store:    opts.Store,
		database: opts.Database,
		token:    opts.Token,
		logger:   log.Component("server"),
	}
	s.server.Handler = s.Routes()
	return s
}

// Routes builds the router; exposed for tests
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(logger.HTTPMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Get("/library", s.handleLibrary)
		r.Get("/books/{id}", s.handleBook)
		r.Post("/refresh", s.handleRefresh)
	})

	if s.store != nil {
		r.Route("/parameters", func(r chi.Router) {
			r.Use(s.requireToken)
			r.Get("/", s.handleListParameters)
			r.Put("/{key}", s.handlePutParameter)
			r.Delete("/{key}", s.handleDeleteParameter)
		})
	}
	return r
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", map[string]interface{}{
		"addr": s.server.Addr,
	})

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server", nil)
	return s.server.Shutdown(ctx)
}

// requestLogger hands the chi request id to the access log and stores a
// request-scoped logger in the context
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			ctx := context.WithValue(r.Context(), logger.ContextKeyRequestID, id)
			ctx = logger.WithLogger(ctx, s.logger.With(map[string]interface{}{"request_id": id}))
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) log(r *http.Request) *logger.Logger {
	if l := logger.FromContext(r.Context()); l != nil {
		return l
	}
	return s.logger
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
				s.writeError(w, r, http.StatusUnauthorized, "missing or invalid token", nil)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{"status": "ok"}
	if s.pipeline != nil {
		st := s.pipeline.Status()
		status["remote_config"] = st
		if st.LastError != "" {
			// content is served from defaults or the last activation
			status["status"] = "degraded"
		}
	}
	if s.database != nil {
		if err := s.database.Health(r.Context()); err != nil {
			s.log(r).Warn("Database health check failed", map[string]interface{}{"error": err.Error()})
			status["database"] = err.Error()
			status["status"] = "degraded"
		} else {
			status["database"] = "ok"
		}
	}
	s.writeJSON(w, r, http.StatusOK, status)
}

func (s *Server) handleLibrary(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.catalog.Library(r.Context()))
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 0 {
		s.writeError(w, r, http.StatusBadRequest, "invalid book id", nil)
		return
	}
	view := s.catalog.Details(r.Context(), id)
	if view.Current == nil {
		s.writeError(w, r, http.StatusNotFound, "book not found", nil)
		return
	}
	s.writeJSON(w, r, http.StatusOK, view)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.pipeline.Refresh(r.Context())
	s.writeJSON(w, r, http.StatusOK, s.pipeline.Status())
}

func (s *Server) handleListParameters(w http.ResponseWriter, r *http.Request) {
	var keys []string
	if raw := r.URL.Query().Get("keys"); raw != "" {
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
	}

	params, err := s.store.List(r.Context(), keys...)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "failed to list parameters", err)
		return
	}
	resp := remoteconfig.ParametersResponse{Parameters: make(map[string]string, len(params))}
	for _, p := range params {
		resp.Parameters[p.Key] = p.Value
	}
	s.writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handlePutParameter(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxParameterBytes))
	if err != nil {
		s.writeError(w, r, http.StatusRequestEntityTooLarge, "failed to read body", err)
		return
	}

	param, err := s.store.Put(r.Context(), key, string(body))
	switch {
	case errors.Is(err, paramstore.ErrInvalidKey):
		s.writeError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	case errors.Is(err, models.ErrInvalidDocument):
		resp := map[string]interface{}{"error": err.Error()}
		if fields, ok := validation.Fields(err); ok {
			resp["fields"] = fields
		}
		s.writeJSON(w, r, http.StatusUnprocessableEntity, resp)
		return
	case err != nil:
		s.writeError(w, r, http.StatusInternalServerError, "failed to store parameter", err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, param)
}

func (s *Server) handleDeleteParameter(w http.ResponseWriter, r *http.Request) {
	err := s.store.Delete(r.Context(), chi.URLParam(r, "key"))
	switch {
	case errors.Is(err, paramstore.ErrNotFound):
		s.writeError(w, r, http.StatusNotFound, "parameter not found", nil)
		return
	case errors.Is(err, paramstore.ErrInvalidKey):
		s.writeError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	case err != nil:
		s.writeError(w, r, http.StatusInternalServerError, "failed to delete parameter", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log(r).Error("Failed to encode response", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	if err != nil {
		s.log(r).Error(msg, map[string]interface{}{
			"status": status,
			"error":  err.Error(),
		})
	}
	s.writeJSON(w, r, status, map[string]string{"error": msg})
}
