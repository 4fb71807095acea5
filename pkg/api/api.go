// Package api serves the conversion pipeline over HTTP.
//
// Routes:
//
//	GET  /healthz                 liveness probe
//	GET  /v1/version              build information
//	POST /v1/analyze?detailed=    multipart upload, one report per file
//	POST /v1/convert?format=&thickness=&colors=
//	                              multipart upload, returns the model
//	GET  /metrics                 counters in text exposition format
//
// Uploaded parts are matched to layers by their form field name (a layer
// kind such as "edge_cuts") or, failing that, by classifying the file name.
// A conversion producing one file returns it directly; OBJ with materials
// produces two and is returned as a zip archive.
package api

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/pcbmesh/pkg/observability"
	"github.com/matzehuels/pcbmesh/pkg/pipeline"
)

const (
	// DefaultMaxUpload bounds the size of a multipart request body.
	DefaultMaxUpload = 32 << 20

	// DefaultTimeout bounds a single conversion.
	DefaultTimeout = 60 * time.Second

	// HeaderConversionID carries the id assigned to each conversion.
	HeaderConversionID = "X-Conversion-Id"

	// HeaderWarnings carries the number of warnings of a conversion.
	HeaderWarnings = "X-Conversion-Warnings"
)

// Options configures a Server.
type Options struct {
	// Defaults supplies thickness, format, palette and geometry for
	// requests that do not override them.
	Defaults pipeline.Options

	// MaxUpload bounds the request body in bytes.
	MaxUpload int64

	// Timeout bounds each analyze or convert request.
	Timeout time.Duration

	// Metrics is served on /metrics when set.
	Metrics *observability.Counters

	Logger *log.Logger
}

// Server handles API requests. It is safe for concurrent use.
type Server struct {
	runner  *pipeline.Runner
	opts    Options
	logger  *log.Logger
	handler http.Handler
}

// New creates a server backed by runner.
func New(runner *pipeline.Runner, opts Options) *Server {
	if opts.MaxUpload <= 0 {
		opts.MaxUpload = DefaultMaxUpload
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = runner.Logger
	}
	s := &Server{runner: runner, opts: opts, logger: opts.Logger}
	s.handler = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	if s.opts.Metrics != nil {
		r.Get("/metrics", s.handleMetrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/version", s.handleVersion)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.opts.Timeout))
			r.Post("/analyze", s.handleAnalyze)
			r.Post("/convert", s.handleConvert)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errMethodNotAllowed)
	})
	return r
}

// observe reports every response to the HTTP hooks and the debug log.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		d := time.Since(start)
		observability.HTTP().OnResponse(r.Context(), r.Method, route, status, d)
		s.logger.Debug("request",
			"method", r.Method,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"request_id", middleware.GetReqID(r.Context()),
			"duration", d)
	})
}
