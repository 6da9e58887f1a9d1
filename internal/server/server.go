// Package server exposes a datastore.Adapter over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/redbco/redb-esadapter/internal/datastore"
	"github.com/redbco/redb-esadapter/pkg/config"
	"github.com/redbco/redb-esadapter/pkg/logger"
)

// RequestIDHeader carries the request ID on every response.
const RequestIDHeader = "X-Request-ID"

// DefaultOperationTimeout bounds a single datastore call made by a handler.
const DefaultOperationTimeout = 30 * time.Second

type Server struct {
	adapter  *datastore.Adapter
	router   *mux.Router
	logger   *logger.Logger
	gatherer prometheus.Gatherer
	timeout  time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithGatherer sets the registry served on /metrics.
// Defaults to prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithOperationTimeout bounds every datastore call.
func WithOperationTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates a server for a. The server does not take ownership of a.
func New(a *datastore.Adapter, opts ...Option) *Server {
	s := &Server{
		adapter:  a,
		router:   mux.NewRouter(),
		gatherer: prometheus.DefaultGatherer,
		timeout:  DefaultOperationTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	datastores := s.router.PathPrefix("/datastores").Subrouter()
	datastores.HandleFunc("", s.listDatastores).Methods(http.MethodGet)
	datastores.HandleFunc("", s.registerDatastore).Methods(http.MethodPost)
	datastores.HandleFunc("/{identity}", s.teardownDatastore).Methods(http.MethodDelete)
	datastores.HandleFunc("/{identity}/capabilities", s.capabilities).Methods(http.MethodGet)

	collections := datastores.PathPrefix("/{identity}/collections/{collection}").Subrouter()
	collections.HandleFunc("", s.describeCollection).Methods(http.MethodGet)
	collections.HandleFunc("", s.defineCollection).Methods(http.MethodPut)
	collections.HandleFunc("", s.dropCollection).Methods(http.MethodDelete)
	collections.HandleFunc("/documents", s.createDocument).Methods(http.MethodPost)
	collections.HandleFunc("/documents/{id}", s.updateDocument).Methods(http.MethodPatch)
	collections.HandleFunc("/documents/{id}", s.destroyDocument).Methods(http.MethodDelete)
	collections.HandleFunc("/_search", s.search).Methods(http.MethodPost)
	collections.HandleFunc("/_count", s.count).Methods(http.MethodPost)
	collections.HandleFunc("/_bulk", s.bulk).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "route not found", "route_not_found")
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context, cfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:         cfg.HTTPAddress,
		Handler:      s,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if s.logger != nil {
			s.logger.Info("HTTP server listening on %s", cfg.HTTPAddress)
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestID returns the request ID assigned by the server.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	if s.logger == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		entry := s.logger.WithFields(map[string]string{
			"request_id": RequestID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
		})
		switch {
		case rec.status >= 500:
			entry.Error("HTTP %d in %v", rec.status, time.Since(start))
		case rec.status >= 400:
			entry.Warn("HTTP %d in %v", rec.status, time.Since(start))
		default:
			entry.Debug("HTTP %d in %v", rec.status, time.Since(start))
		}
	})
}
