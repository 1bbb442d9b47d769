/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"net/http"
	"time"

	"github.com/acronis/go-crptapi/log"
)

// LoggingMode represents a mode of logging.
type LoggingMode string

// Logging modes.
const (
	LoggingModeNone   LoggingMode = "none"
	LoggingModeAll    LoggingMode = "all"
	LoggingModeFailed LoggingMode = "failed"
)

// IsValid checks if the logger mode is valid.
func (lm LoggingMode) IsValid() bool {
	switch lm {
	case LoggingModeNone, LoggingModeAll, LoggingModeFailed:
		return true
	}
	return false
}

// LoggingRoundTripperOpts represents an options for LoggingRoundTripper.
type LoggingRoundTripperOpts struct {
	// LoggerProvider is a function that provides a context-specific logger.
	// GetLoggerFromContext is used by default.
	LoggerProvider func(ctx context.Context) log.FieldLogger

	// RequestType is a type of request (e.g. "create_document"). GetRequestTypeFromContext overrides it.
	RequestType string

	// Mode of logging: none, all, failed. "all" is used by default.
	Mode LoggingMode

	// SlowRequestThreshold makes successful requests faster than it not logged.
	SlowRequestThreshold time.Duration
}

// LoggingRoundTripper implements http.RoundTripper for logging requests.
type LoggingRoundTripper struct {
	// Delegate is the next RoundTripper in the chain.
	Delegate http.RoundTripper

	// Opts are the options for the logging round tripper.
	Opts LoggingRoundTripperOpts
}

// NewLoggingRoundTripper creates an HTTP transport that log requests.
func NewLoggingRoundTripper(delegate http.RoundTripper) http.RoundTripper {
	return NewLoggingRoundTripperWithOpts(delegate, LoggingRoundTripperOpts{})
}

// NewLoggingRoundTripperWithOpts creates an HTTP transport that log requests with options.
func NewLoggingRoundTripperWithOpts(delegate http.RoundTripper, opts LoggingRoundTripperOpts) http.RoundTripper {
	if opts.Mode == "" {
		opts.Mode = LoggingModeAll
	}
	if opts.LoggerProvider == nil {
		opts.LoggerProvider = GetLoggerFromContext
	}
	return &LoggingRoundTripper{Delegate: delegate, Opts: opts}
}

// RoundTrip adds logging capabilities to the HTTP transport.
func (rt *LoggingRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	if rt.Opts.Mode == LoggingModeNone {
		return rt.Delegate.RoundTrip(r)
	}
	ctx := r.Context()
	logger := rt.Opts.LoggerProvider(ctx)
	if logger == nil {
		return rt.Delegate.RoundTrip(r)
	}

	start := time.Now()
	resp, err := rt.Delegate.RoundTrip(r)
	elapsed := time.Since(start)

	failed := err != nil || (resp != nil && resp.StatusCode >= http.StatusBadRequest)
	if !failed && (rt.Opts.Mode == LoggingModeFailed || elapsed < rt.Opts.SlowRequestThreshold) {
		return resp, err
	}

	requestType := GetRequestTypeFromContext(ctx)
	if requestType == "" {
		requestType = rt.Opts.RequestType
	}
	fields := []log.Field{
		log.String("method", r.Method),
		log.String("url", r.URL.String()),
		log.String("request_type", requestType),
		log.Int64("duration_ms", elapsed.Milliseconds()),
	}
	if requestID := r.Header.Get(RequestIDHeader); requestID != "" {
		fields = append(fields, log.String("request_id", requestID))
	}
	if resp != nil {
		fields = append(fields, log.Int("status", resp.StatusCode))
	}
	if err != nil {
		logger.Error("client http request failed", append(fields, log.Error(err))...)
		return resp, err
	}
	if failed {
		logger.Warn("client http request done", fields...)
		return resp, err
	}
	logger.Info("client http request done", fields...)
	return resp, err
}
