/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"net/http"

	"github.com/acronis/go-crptapi/internal/libinfo"
)

// DefaultUserAgent is sent when no other User-Agent is configured, e.g. "go-crptapi/v1.2.0".
var DefaultUserAgent = libinfo.UserAgent()

// UserAgentUpdateStrategy represents a strategy for updating User-Agent HTTP header.
type UserAgentUpdateStrategy int

// User-Agent update strategies.
const (
	UserAgentUpdateStrategySetIfEmpty UserAgentUpdateStrategy = iota
	UserAgentUpdateStrategyAppend
	UserAgentUpdateStrategyPrepend
)

// UserAgentRoundTripperOpts represents an options for UserAgentRoundTripper.
type UserAgentRoundTripperOpts struct {
	UpdateStrategy UserAgentUpdateStrategy
}

// UserAgentRoundTripper implements http.RoundTripper interface
// and sets User-Agent HTTP header in all outgoing requests.
type UserAgentRoundTripper struct {
	Delegate       http.RoundTripper
	UserAgent      string
	UpdateStrategy UserAgentUpdateStrategy
}

// NewUserAgentRoundTripper creates a new UserAgentRoundTripper.
func NewUserAgentRoundTripper(delegate http.RoundTripper, userAgent string) *UserAgentRoundTripper {
	return NewUserAgentRoundTripperWithOpts(delegate, userAgent, UserAgentRoundTripperOpts{})
}

// NewUserAgentRoundTripperWithOpts creates a new UserAgentRoundTripper with specified options.
func NewUserAgentRoundTripperWithOpts(
	delegate http.RoundTripper, userAgent string, opts UserAgentRoundTripperOpts,
) *UserAgentRoundTripper {
	return &UserAgentRoundTripper{delegate, userAgent, opts.UpdateStrategy}
}

// RoundTrip executes a single HTTP transaction, returning a Response for the provided Request.
func (rt *UserAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	userAgent, changed := rt.userAgentFor(req.Header.Get("User-Agent"))
	if !changed {
		return rt.Delegate.RoundTrip(req)
	}
	req = req.Clone(req.Context()) // Per RoundTripper contract.
	req.Header.Set("User-Agent", userAgent)
	return rt.Delegate.RoundTrip(req)
}

func (rt *UserAgentRoundTripper) userAgentFor(current string) (string, bool) {
	if current == "" {
		return rt.UserAgent, rt.UserAgent != ""
	}
	switch rt.UpdateStrategy {
	case UserAgentUpdateStrategyAppend:
		return current + " " + rt.UserAgent, true
	case UserAgentUpdateStrategyPrepend:
		return rt.UserAgent + " " + current, true
	}
	return current, false
}
