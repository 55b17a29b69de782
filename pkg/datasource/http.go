package datasource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// tracerName is the instrumentation scope of the HTTP fetcher.
const tracerName = "heatmap/datasource"

// defaultHTTPTimeout bounds a single document request.
const defaultHTTPTimeout = 30 * time.Second

// defaultMaxDocumentSize limits the size of a fetched document.
const defaultMaxDocumentSize = 256 << 20

// HTTPOptions configures an HTTPFetcher.
type HTTPOptions struct {
	// Client is the HTTP client; a client with Timeout is created when nil.
	Client *http.Client
	// Timeout is used when Client is nil.
	Timeout time.Duration
	// RateLimit is the maximum number of requests per second; 0 disables limiting.
	RateLimit float64
	// Tracer creates client spans; the global tracer when nil.
	Tracer trace.Tracer
	// MaxDocumentSize is the largest accepted body in bytes; 256 MiB when 0.
	MaxDocumentSize int64
}

// HTTPFetcher retrieves documents relative to a base URL.
type HTTPFetcher struct {
	base    *url.URL
	client  *http.Client
	limiter *rate.Limiter
	tracer  trace.Tracer
	maxSize int64
}

// NewHTTPFetcher creates a fetcher for documents below baseURL.
func NewHTTPFetcher(baseURL string, opts HTTPOptions) (*HTTPFetcher, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, base.Scheme)
	}

	if base.Path == "" || base.Path[len(base.Path)-1] != '/' {
		base.Path += "/"
	}

	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}

		client = &http.Client{Timeout: timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	maxSize := opts.MaxDocumentSize
	if maxSize <= 0 {
		maxSize = defaultMaxDocumentSize
	}

	return &HTTPFetcher{base: base, client: client, limiter: limiter, tracer: tracer, maxSize: maxSize}, nil
}

// Fetch downloads base/name.
func (f *HTTPFetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	cleaned, err := cleanPath(name)
	if err != nil {
		return nil, err
	}

	target := f.base.ResolveReference(&url.URL{Path: cleaned})

	ctx, span := f.tracer.Start(ctx, "datasource.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", http.MethodGet),
			attribute.String("url.full", target.String()),
		),
	)
	defer span.End()

	data, err := f.do(ctx, target, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	span.SetAttributes(attribute.Int("http.response.body.size", len(data)))

	return data, nil
}

func (f *HTTPFetcher) do(ctx context.Context, target *url.URL, span trace.Span) ([]byte, error) {
	err := f.limiter.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", target, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, target)
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		return nil, fmt.Errorf("%w: %s: %d", ErrUnexpectedStatus, target, resp.StatusCode)
	}

	// One byte past the limit tells an oversized body from one that fits exactly.
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}

	if int64(len(data)) > f.maxSize {
		return nil, fmt.Errorf("%w: %s: over %d bytes", ErrDocumentTooLarge, target, f.maxSize)
	}

	return data, nil
}
