package observability

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// httpStatusServerError is the threshold for HTTP server errors.
const httpStatusServerError = 500

// statusWriter captures the status code written by a handler.
type statusWriter struct {
	http.ResponseWriter

	statusCode int
}

func (sw *statusWriter) WriteHeader(code int) {
	if sw.statusCode == 0 {
		sw.statusCode = code
	}

	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(buf []byte) (int, error) {
	if sw.statusCode == 0 {
		sw.statusCode = http.StatusOK
	}

	return sw.ResponseWriter.Write(buf)
}

// RouteFunc names the route of a request, e.g. its path template.
type RouteFunc func(*http.Request) string

// MiddlewareOptions configures HTTPMiddleware.
type MiddlewareOptions struct {
	// Tracer creates one server span per request; required.
	Tracer trace.Tracer
	// Metrics records RED metrics per route when set.
	Metrics *REDMetrics
	// Route names requests; the URL path when nil.
	Route RouteFunc
}

// HTTPMiddleware returns a handler that extracts W3C trace context, opens a
// span named "METHOD route" and records RED metrics for next.
func HTTPMiddleware(opts MiddlewareOptions, next http.Handler) http.Handler {
	route := opts.Route
	if route == nil {
		route = func(hr *http.Request) string { return hr.URL.Path }
	}

	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		start := time.Now()
		name := route(hr)
		op := hr.Method + " " + name

		parentCtx := otel.GetTextMapPropagator().Extract(hr.Context(), propagation.HeaderCarrier(hr.Header))

		ctx, span := opts.Tracer.Start(parentCtx, op,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(hr.Method),
				semconv.HTTPRoute(name),
				attribute.String("http.target", hr.URL.Path),
			),
		)
		defer span.End()

		if opts.Metrics != nil {
			defer opts.Metrics.TrackInflight(ctx, op)()
		}

		sw := &statusWriter{ResponseWriter: rw}
		next.ServeHTTP(sw, hr.WithContext(ctx))

		if sw.statusCode == 0 {
			sw.statusCode = http.StatusOK
		}

		span.SetAttributes(semconv.HTTPResponseStatusCode(sw.statusCode))

		status := StatusOK
		if sw.statusCode >= httpStatusServerError {
			status = StatusError

			span.SetStatus(codes.Error, http.StatusText(sw.statusCode))
		}

		if opts.Metrics != nil {
			opts.Metrics.RecordRequest(ctx, op, status, time.Since(start))
		}
	})
}
