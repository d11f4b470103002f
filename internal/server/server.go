// Package server exposes ingestion and journey maps over HTTP.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wjkennedy/cjm/internal/ingest"
	"github.com/wjkennedy/cjm/internal/layout"
	"github.com/wjkennedy/cjm/internal/query"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("pages").
	Funcs(template.FuncMap{"pathEscape": url.PathEscape}).
	ParseFS(templateFS, "templates/*.html"))

// maxUploadBytes bounds request bodies on the ingest endpoints.
const maxUploadBytes = 32 << 20

// Options configures a Server.
type Options struct {
	// UploadDir receives files posted to /upload.
	UploadDir string

	// DefaultVersion is used when a request does not name a version.
	DefaultVersion string

	// Layout is applied to every map unless the request overrides it.
	Layout []layout.Option

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	pipeline *ingest.Pipeline
	query    *query.Service
	opts     Options
	logger   *slog.Logger
}

// New creates a server over an ingest pipeline and a query service.
func New(pipeline *ingest.Pipeline, svc *query.Service, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DefaultVersion == "" {
		opts.DefaultVersion = "1.0"
	}
	return &Server{pipeline: pipeline, query: svc, opts: opts, logger: opts.Logger}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(s.logger))

	r.Get("/healthz", s.healthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", s.index)
	r.Get("/upload", s.uploadForm)
	r.Post("/upload", s.upload)
	r.Get("/visualize/{customerID}", s.visualize)

	r.Route("/api", func(r chi.Router) {
		r.Post("/batches", s.postBatch)
		r.Get("/customers", s.listCustomers)
		r.Route("/customers/{customerID}", func(r chi.Router) {
			r.Get("/journey", s.getJourney)
			r.Get("/graph", s.getGraph)
			r.Get("/figure", s.getFigure)
		})
	})
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info("http server listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chimiddleware.GetReqID(r.Context()))
		})
	}
}
