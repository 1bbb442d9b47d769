/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package httpclient builds http.Client instances with a chain of round trippers:
// request ID, user agent, bearer authorization, throttling, metrics and logging.
package httpclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/acronis/go-crptapi/log"
	"github.com/acronis/go-crptapi/throttle"
)

// CloneHTTPRequest creates a shallow copy of the request along with a deep copy of the Headers.
func CloneHTTPRequest(req *http.Request) *http.Request {
	r := new(http.Request)
	*r = *req
	r.Header = CloneHTTPHeader(req.Header)
	return r
}

// CloneHTTPHeader creates a deep copy of an http.Header.
func CloneHTTPHeader(in http.Header) http.Header {
	out := make(http.Header, len(in))
	for key, values := range in {
		out[key] = append([]string(nil), values...)
	}
	return out
}

// Opts provides options for NewWithOpts and MustWithOpts functions.
type Opts struct {
	// RequestType is a type of request used in logs and metrics (e.g. "create_document").
	RequestType string

	// Delegate is the innermost RoundTripper. A clone of http.DefaultTransport is used by default.
	Delegate http.RoundTripper

	// LoggerProvider is a function that provides a context-specific logger.
	LoggerProvider func(ctx context.Context) log.FieldLogger

	// RequestIDProvider is a function that provides a request ID.
	RequestIDProvider func(ctx context.Context) string

	// Collector is a metrics collector. Used only if metrics are enabled in the config.
	Collector MetricsCollector

	// AuthProvider enables bearer authorization of requests that have no Authorization header.
	AuthProvider AuthProvider

	// ThrottleExecutor gates requests when throttling is enabled in the config.
	// If it's nil, an executor with its own pool is created from the config and stopped by Client.Close.
	ThrottleExecutor *throttle.Executor

	// ThrottleCollector collects metrics of the executor created from the config.
	ThrottleCollector throttle.MetricsCollector
}

// Client is an http.Client that may own a throttle pool.
type Client struct {
	*http.Client
	ownedPool *throttle.PermitPool
}

// Close stops the throttle pool created by the client. A pool passed in Opts.ThrottleExecutor is not closed.
func (c *Client) Close() {
	if c.ownedPool != nil {
		c.ownedPool.Close()
	}
}

// New creates a client configured by cfg.
func New(cfg *Config) (*Client, error) {
	return NewWithOpts(cfg, Opts{})
}

// Must creates a client configured by cfg and panics if any error occurs.
func Must(cfg *Config) *Client {
	client, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// NewWithOpts creates a client configured by cfg and opts.
// Round trippers are chained from outermost to innermost as request ID, user agent,
// bearer authorization, throttling, metrics, logging.
func NewWithOpts(cfg *Config, opts Opts) (*Client, error) {
	delegate := opts.Delegate
	if delegate == nil {
		delegate = http.DefaultTransport.(*http.Transport).Clone()
	}

	if cfg.Logger.Enabled {
		logOpts := cfg.Logger.TransportOpts()
		logOpts.LoggerProvider = opts.LoggerProvider
		logOpts.RequestType = opts.RequestType
		delegate = NewLoggingRoundTripperWithOpts(delegate, logOpts)
	}

	if cfg.Metrics.Enabled {
		delegate = NewMetricsRoundTripperWithOpts(delegate, MetricsRoundTripperOpts{
			RequestType: opts.RequestType,
			Collector:   opts.Collector,
		})
	}

	client := &Client{}
	if cfg.Throttle.Enabled {
		executor := opts.ThrottleExecutor
		if executor == nil {
			var err error
			executor, err = throttle.NewExecutorFromConfig(&cfg.Throttle.Config, throttle.ExecutorOpts{
				Name:      opts.RequestType,
				Collector: opts.ThrottleCollector,
			})
			if err != nil {
				return nil, fmt.Errorf("create throttle executor: %w", err)
			}
			client.ownedPool = executor.Pool()
		}
		delegate = NewPermitRoundTripper(delegate, executor)
	}

	if opts.AuthProvider != nil {
		delegate = NewAuthBearerRoundTripper(delegate, opts.AuthProvider)
	}

	if cfg.UserAgent != "" {
		delegate = NewUserAgentRoundTripper(delegate, cfg.UserAgent)
	}

	delegate = NewRequestIDRoundTripperWithOpts(delegate, RequestIDRoundTripperOpts{
		RequestIDProvider: opts.RequestIDProvider,
	})

	client.Client = &http.Client{Transport: delegate, Timeout: cfg.Timeout}
	return client, nil
}

// MustWithOpts creates a client configured by cfg and opts and panics if any error occurs.
func MustWithOpts(cfg *Config, opts Opts) *Client {
	client, err := NewWithOpts(cfg, opts)
	if err != nil {
		panic(err)
	}
	return client
}
