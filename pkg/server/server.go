// Package server exposes calendars over HTTP: a JSON API, standalone HTML
// pages and the health and metrics endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/Sumatoshi-tech/heatmap/pkg/alg/lru"
	"github.com/Sumatoshi-tech/heatmap/pkg/calendar"
	"github.com/Sumatoshi-tech/heatmap/pkg/observability"
	"github.com/Sumatoshi-tech/heatmap/pkg/project"
)

const (
	defaultCacheEntries    = 32
	defaultShutdownTimeout = 10 * time.Second
	calendarCacheName      = "calendars"
)

// Source supplies the catalog and the calendars served.
type Source interface {
	calendar.Provider
	Catalog() *project.Catalog
}

// Options configures a Server.
type Options struct {
	// DefaultMode is used when a request names no mode.
	DefaultMode calendar.Mode
	// ShowTemperature is the overlay state when a request does not set one.
	ShowTemperature bool
	// CacheEntries bounds the calendars kept in memory.
	CacheEntries int

	Tracer trace.Tracer
	Meter  metric.Meter
	Logger *slog.Logger

	// MetricsHandler is served on /metrics when set.
	MetricsHandler http.Handler
	// ReadyChecks are run by /readyz.
	ReadyChecks map[string]observability.ReadyCheck
	// AccessLog receives combined-format access logs when set.
	AccessLog io.Writer
}

// Timeouts are the http.Server timeouts.
type Timeouts struct {
	Read  time.Duration
	Write time.Duration
	Idle  time.Duration
}

// Server serves calendars of one source.
type Server struct {
	source Source
	opts   Options
	logger *slog.Logger

	calendars *lru.Cache[string, *calendar.Calendar]
	group     singleflight.Group
	cacheMet  *observability.CacheMetrics
	red       *observability.REDMetrics
	handler   http.Handler
}

// New creates a server over source.
func New(source Source, opts Options) (*Server, error) {
	if opts.DefaultMode == nil {
		opts.DefaultMode = calendar.DefaultMode
	}

	if opts.CacheEntries <= 0 {
		opts.CacheEntries = defaultCacheEntries
	}

	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("heatmap/server")
	}

	if opts.Meter == nil {
		opts.Meter = noopmetric.NewMeterProvider().Meter("heatmap/server")
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	red, err := observability.NewREDMetrics(opts.Meter)
	if err != nil {
		return nil, fmt.Errorf("create request metrics: %w", err)
	}

	cacheMet, err := observability.NewCacheMetrics(opts.Meter, calendarCacheName)
	if err != nil {
		return nil, fmt.Errorf("create cache metrics: %w", err)
	}

	s := &Server{
		source:   source,
		opts:     opts,
		logger:   opts.Logger,
		cacheMet: cacheMet,
		red:      red,
	}

	s.calendars = lru.New(opts.CacheEntries, lru.WithOnEvict(s.calendarEvicted))

	s.handler = s.routes()

	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, timeouts Timeouts) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	return s.Serve(ctx, listener, timeouts)
}

// Serve serves on listener until ctx is canceled.
func (s *Server) Serve(ctx context.Context, listener net.Listener, timeouts Timeouts) error {
	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  timeouts.Read,
		WriteTimeout: timeouts.Write,
		IdleTimeout:  timeouts.Idle,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.Serve(listener)
	}()

	s.logger.InfoContext(ctx, "server listening", "addr", listener.Addr().String())

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultShutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	if serveErr := <-errCh; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", serveErr)
	}

	s.logger.InfoContext(ctx, "server stopped")

	return nil
}

func (s *Server) routes() http.Handler {
	router := mux.NewRouter()

	router.Handle("/healthz", observability.HealthHandler()).Methods(http.MethodGet)
	router.Handle("/readyz", observability.ReadyHandler(s.opts.ReadyChecks)).Methods(http.MethodGet)

	if s.opts.MetricsHandler != nil {
		router.Handle("/metrics", s.opts.MetricsHandler).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/projects", s.handleProjects).Methods(http.MethodGet)
	api.HandleFunc("/projects/{key}/calendar", s.handleCalendar).Methods(http.MethodGet)
	api.HandleFunc("/projects/{key}/days/{date}", s.handleDay).Methods(http.MethodGet)
	api.HandleFunc("/projects/{key}/heatmap.html", s.handlePage).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		s.writeError(rw, hr, http.StatusNotFound, errRouteNotFound)
	})

	router.Use(func(next http.Handler) http.Handler {
		return observability.HTTPMiddleware(observability.MiddlewareOptions{
			Tracer:  s.opts.Tracer,
			Metrics: s.red,
			Route:   routeTemplate,
		}, next)
	})

	var handler http.Handler = router

	handler = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet}),
	)(handler)
	handler = handlers.CompressHandler(handler)
	handler = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.logger}))(handler)

	if s.opts.AccessLog != nil {
		handler = handlers.CombinedLoggingHandler(s.opts.AccessLog, handler)
	}

	return handler
}

// routeTemplate names requests by their matched path template.
func routeTemplate(hr *http.Request) string {
	if route := mux.CurrentRoute(hr); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}

	return hr.URL.Path
}

// calendar returns the cached calendar of key, building it once.
func (s *Server) calendar(ctx context.Context, key string) (*calendar.Calendar, error) {
	if cal, ok := s.calendars.Get(key); ok {
		s.cacheMet.RecordLookup(ctx, true)

		return cal, nil
	}

	s.cacheMet.RecordLookup(ctx, false)

	// Joined requests must not inherit the cancellation of the first one.
	buildCtx := context.WithoutCancel(ctx)

	ch := s.group.DoChan(key, func() (any, error) {
		if cal, ok := s.calendars.Peek(key); ok {
			return cal, nil
		}

		cal, err := s.source.Calendar(buildCtx, key)
		if err != nil {
			return nil, err
		}

		s.calendars.Put(key, cal)

		return cal, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}

		cal, _ := res.Val.(*calendar.Calendar)

		return cal, nil
	}
}

// calendarEvicted runs under the cache lock.
func (s *Server) calendarEvicted(key string, _ *calendar.Calendar) {
	ctx := context.Background()

	s.cacheMet.RecordEviction(ctx)
	s.logger.DebugContext(ctx, "calendar evicted", "project", key)
}

type recoveryLogger struct {
	logger *slog.Logger
}

func (l recoveryLogger) Println(v ...any) {
	l.logger.Error("handler panic", "panic", fmt.Sprint(v...))
}
