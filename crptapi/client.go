/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package crptapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/acronis/go-crptapi/config"
	"github.com/acronis/go-crptapi/httpclient"
	"github.com/acronis/go-crptapi/log"
	"github.com/acronis/go-crptapi/retry"
	"github.com/acronis/go-crptapi/throttle"
)

// CreateDocumentPath is the path of the document creation endpoint.
const CreateDocumentPath = "/api/v3/lk/documents/create"

// RequestTypeCreateDocument identifies document creation requests in logs and metrics.
const RequestTypeCreateDocument = "create_document"

const tracerName = "github.com/acronis/go-crptapi/crptapi"

// CreateDocumentResult is a successful response of the remote API.
type CreateDocumentResult struct {
	StatusCode int
	Body       []byte
	Attempts   int
}

// Client sends documents to the CRPT API.
// At most requestLimit documents are sent per timeUnit; callers that exceed the limit
// wait until the window is reset. Client is safe for concurrent use.
type Client struct {
	httpClient       *httpclient.Client
	executor         *throttle.Executor
	createURL        string
	logger           log.FieldLogger
	tracer           trace.Tracer
	propagator       propagation.TextMapPropagator
	retryPolicy      retry.Policy
	maxErrorBodySize int64
}

// New creates a new Client that sends at most requestLimit documents per timeUnit.
// Close must be called when the client is no longer needed.
func New(timeUnit time.Duration, requestLimit int, optFns ...Option) (*Client, error) {
	opts := options{
		baseURL:          DefaultBaseURL,
		maxErrorBodySize: DefaultMaxErrorBodySize,
		retryPolicy:      retry.NoRetryPolicy,
	}
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}
	if err := validateBaseURL(opts.baseURL); err != nil {
		return nil, fmt.Errorf("base url: %w", err)
	}

	logger := opts.logger
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	tracerProvider := opts.tracerProvider
	if tracerProvider == nil {
		tracerProvider = otel.GetTracerProvider()
	}
	propagator := opts.propagator
	if propagator == nil {
		propagator = otel.GetTextMapPropagator()
	}

	executor, err := throttle.NewExecutorFromConfig(
		&throttle.Config{Limit: requestLimit, Window: timeUnit, WaitTimeout: opts.waitTimeout},
		throttle.ExecutorOpts{Name: RequestTypeCreateDocument, Logger: logger, Collector: opts.throttleCollector},
	)
	if err != nil {
		return nil, fmt.Errorf("create throttle executor: %w", err)
	}

	httpCfg := httpclient.NewDefaultConfig()
	if opts.httpClientConfig != nil {
		cfgCopy := *opts.httpClientConfig
		httpCfg = &cfgCopy
	}
	// Documents are already gated by the executor.
	httpCfg.Throttle.Enabled = false
	if opts.httpCollector != nil {
		httpCfg.Metrics.Enabled = true
	}

	loggerProvider := func(ctx context.Context) log.FieldLogger {
		if ctxLogger := httpclient.GetLoggerFromContext(ctx); ctxLogger != nil {
			return ctxLogger
		}
		return logger
	}
	httpClient, err := httpclient.NewWithOpts(httpCfg, httpclient.Opts{
		RequestType:    RequestTypeCreateDocument,
		Delegate:       opts.transport,
		LoggerProvider: loggerProvider,
		Collector:      opts.httpCollector,
		AuthProvider:   httpclient.ContextTokenProvider{},
	})
	if err != nil {
		executor.Pool().Close()
		return nil, fmt.Errorf("create http client: %w", err)
	}

	return &Client{
		httpClient:       httpClient,
		executor:         executor,
		createURL:        strings.TrimRight(opts.baseURL, "/") + CreateDocumentPath,
		logger:           logger,
		tracer:           tracerProvider.Tracer(tracerName),
		propagator:       propagator,
		retryPolicy:      opts.retryPolicy,
		maxErrorBodySize: int64(opts.maxErrorBodySize),
	}, nil
}

// NewFromConfig creates a new Client configured by cfg. Options passed explicitly take precedence over cfg.
func NewFromConfig(cfg *Config, optFns ...Option) (*Client, error) {
	cfgOpts := []Option{
		WithBaseURL(cfg.BaseURL),
		WithMaxErrorBodySize(cfg.MaxErrorBodySize),
		WithWaitTimeout(cfg.Throttle.WaitTimeout),
		WithRetryPolicy(cfg.Retries.GetPolicy()),
		WithHTTPClientConfig(&cfg.Client),
	}
	return New(cfg.Throttle.Window, cfg.Throttle.Limit, append(cfgOpts, optFns...)...)
}

// Close stops the replenishment of permits and releases resources of the client.
// Calls of CreateDocument that wait for a permit are not interrupted, they finish by their contexts.
func (c *Client) Close() {
	c.executor.Pool().Close()
	c.httpClient.Close()
}

// Executor returns the throttled executor that gates document creation.
func (c *Client) Executor() *throttle.Executor {
	return c.executor
}

// CreateDocument sends the document signed by signature to the remote API.
// The call blocks while the limit of the current window is exhausted.
//
// Errors:
//   - ErrEmptySignature and ErrInvalidDocument are returned before any permit is taken;
//   - an error matching throttle.ErrCancelled is returned if ctx is done while waiting for a permit;
//   - *UnexpectedStatusError is returned if the response status is not 200 OK;
//   - ErrRequestFailed is returned for transport errors.
func (c *Client) CreateDocument(ctx context.Context, doc *Document, signature string) (*CreateDocumentResult, error) {
	if signature == "" {
		return nil, ErrEmptySignature
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal: %w", ErrInvalidDocument, err)
	}

	ctx, span := c.tracer.Start(ctx, "crptapi.CreateDocument",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("crpt.doc_type", doc.DocType),
			attribute.String("crpt.doc_id", doc.DocID),
			attribute.Int("crpt.products", len(doc.Products)),
		))
	defer span.End()

	ctx = httpclient.NewContextWithBearerToken(ctx, signature)

	var res *CreateDocumentResult
	attempts := 0
	err = retry.DoWithRetry(ctx, c.retryPolicy, isRetryableError, c.notifyRetry(doc), func(ctx context.Context) error {
		attempts++
		var attemptErr error
		res, attemptErr = throttle.Do(ctx, c.executor, func(ctx context.Context) (*CreateDocumentResult, error) {
			return c.send(ctx, body)
		})
		return attemptErr
	})
	span.SetAttributes(attribute.Int("crpt.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Error("document creation failed",
			log.String("doc_id", doc.DocID), log.Int("attempts", attempts), log.Error(err))
		return nil, err
	}
	res.Attempts = attempts

	span.SetAttributes(attribute.Int("http.response.status_code", res.StatusCode))
	c.logger.Info("document created",
		log.String("doc_id", doc.DocID), log.Int("attempts", attempts), log.Bytes("response", res.Body))
	return res, nil
}

func (c *Client) send(ctx context.Context, body []byte) (*CreateDocumentResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.createURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.propagator.Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer func() {
		if _, err = io.Copy(io.Discard, resp.Body); err != nil {
			c.logger.Warn("failed to discard unused body", log.Error(err))
		}
		if err = resp.Body.Close(); err != nil {
			c.logger.Warn("failed to close response body", log.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		b, readErr := io.ReadAll(io.LimitReader(resp.Body, c.maxErrorBodySize))
		if readErr != nil {
			b = []byte("unable to read body")
		}
		return nil, &UnexpectedStatusError{StatusCode: resp.StatusCode, Body: string(b), Err: ErrUnexpectedStatusCode}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response body: %w", ErrRequestFailed, err)
	}
	return &CreateDocumentResult{StatusCode: resp.StatusCode, Body: b}, nil
}

func (c *Client) notifyRetry(doc *Document) retry.Notify {
	return func(err error, delay time.Duration) {
		c.logger.Warn("document creation failed, retrying",
			log.String("doc_id", doc.DocID), log.Duration("delay", delay), log.Error(err))
	}
}

// isRetryableError reports whether the request may succeed if it's sent again.
// Cancelled waits for a permit and cancelled contexts are never retried.
func isRetryableError(err error) bool {
	if errors.Is(err, throttle.ErrCancelled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *UnexpectedStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	return errors.Is(err, ErrRequestFailed)
}

// Option is a functional option for configuring a Client via New and NewFromConfig.
type Option func(*options) error

type options struct {
	baseURL           string
	maxErrorBodySize  config.ByteSize
	waitTimeout       time.Duration
	logger            log.FieldLogger
	transport         http.RoundTripper
	httpClientConfig  *httpclient.Config
	httpCollector     httpclient.MetricsCollector
	throttleCollector throttle.MetricsCollector
	retryPolicy       retry.Policy
	tracerProvider    trace.TracerProvider
	propagator        propagation.TextMapPropagator
}

// WithBaseURL sets the address of the remote API. DefaultBaseURL is used by default.
func WithBaseURL(baseURL string) Option {
	return func(o *options) error {
		if err := validateBaseURL(baseURL); err != nil {
			return fmt.Errorf("base url: %w", err)
		}
		o.baseURL = baseURL
		return nil
	}
}

// WithMaxErrorBodySize limits how much of the response body is kept in UnexpectedStatusError.
func WithMaxErrorBodySize(size config.ByteSize) Option {
	return func(o *options) error {
		if size == 0 {
			return errors.New("max error body size must be positive")
		}
		o.maxErrorBodySize = size
		return nil
	}
}

// WithWaitTimeout limits how long a single request may wait for a permit. Zero means no limit.
func WithWaitTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return errors.New("wait timeout must not be negative")
		}
		o.waitTimeout = d
		return nil
	}
}

// WithLogger sets the logger. Nothing is logged by default.
func WithLogger(logger log.FieldLogger) Option {
	return func(o *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		o.logger = logger
		return nil
	}
}

// WithTransport sets the innermost http.RoundTripper of the client.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) error {
		if rt == nil {
			return errors.New("transport must not be nil")
		}
		o.transport = rt
		return nil
	}
}

// WithHTTPClientConfig sets the configuration of the underlying HTTP client.
// Throttling of the HTTP client is always disabled since documents are throttled by the Client itself.
func WithHTTPClientConfig(cfg *httpclient.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return errors.New("http client config must not be nil")
		}
		o.httpClientConfig = cfg
		return nil
	}
}

// WithRetryPolicy enables retries of requests that failed with a transport error, 5xx or 429 status.
// Every attempt takes its own permit.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(o *options) error {
		if policy == nil {
			return errors.New("retry policy must not be nil")
		}
		o.retryPolicy = policy
		return nil
	}
}

// WithMetrics enables collecting of HTTP request and throttling metrics. Any of the collectors may be nil.
func WithMetrics(httpCollector httpclient.MetricsCollector, throttleCollector throttle.MetricsCollector) Option {
	return func(o *options) error {
		o.httpCollector = httpCollector
		o.throttleCollector = throttleCollector
		return nil
	}
}

// WithTracerProvider sets the provider of tracers. The global provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) error {
		if tp == nil {
			return errors.New("tracer provider must not be nil")
		}
		o.tracerProvider = tp
		return nil
	}
}

// WithPropagator sets the propagator that injects the trace context into request headers.
// The global propagator is used by default.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(o *options) error {
		if p == nil {
			return errors.New("propagator must not be nil")
		}
		o.propagator = p
		return nil
	}
}
