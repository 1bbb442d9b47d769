/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"net/http"

	"github.com/rs/xid"
)

// RequestIDHeader is the header that carries the request ID.
const RequestIDHeader = "X-Request-ID"

// RequestIDRoundTripperOpts represents an options for RequestIDRoundTripper.
type RequestIDRoundTripperOpts struct {
	// RequestIDProvider provides a request ID for the context.
	// GetRequestIDFromContext is used by default.
	RequestIDProvider func(ctx context.Context) string
}

// RequestIDRoundTripper sets X-Request-ID header in outgoing requests.
// The ID comes from the provider, a new one is generated if the provider has none.
type RequestIDRoundTripper struct {
	Delegate http.RoundTripper
	Opts     RequestIDRoundTripperOpts
}

// NewRequestIDRoundTripper creates an HTTP transport with X-Request-ID header support.
func NewRequestIDRoundTripper(delegate http.RoundTripper) http.RoundTripper {
	return NewRequestIDRoundTripperWithOpts(delegate, RequestIDRoundTripperOpts{})
}

// NewRequestIDRoundTripperWithOpts creates an HTTP transport with X-Request-ID header support with options.
func NewRequestIDRoundTripperWithOpts(delegate http.RoundTripper, opts RequestIDRoundTripperOpts) http.RoundTripper {
	if opts.RequestIDProvider == nil {
		opts.RequestIDProvider = GetRequestIDFromContext
	}
	return &RequestIDRoundTripper{Delegate: delegate, Opts: opts}
}

// RoundTrip adds X-Request-ID header to the request.
func (rt *RequestIDRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Header.Get(RequestIDHeader) != "" {
		return rt.Delegate.RoundTrip(r)
	}
	requestID := rt.Opts.RequestIDProvider(r.Context())
	if requestID == "" {
		requestID = xid.New().String()
	}
	r = CloneHTTPRequest(r)
	r.Header.Set(RequestIDHeader, requestID)
	return rt.Delegate.RoundTrip(r)
}
