/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrNoBearerToken is returned by token providers that have no token for the request.
var ErrNoBearerToken = errors.New("bearer token is not provided")

// AuthBearerRoundTripperError is returned in RoundTrip method of AuthBearerRoundTripper
// when the token cannot be obtained. The request is not sent in this case.
type AuthBearerRoundTripperError struct {
	Inner error
}

func (e *AuthBearerRoundTripperError) Error() string {
	return fmt.Sprintf("auth bearer round trip: %s", e.Inner.Error())
}

// Unwrap returns the next error in the error chain.
func (e *AuthBearerRoundTripperError) Unwrap() error {
	return e.Inner
}

// AuthProvider provides the token used for bearer authorization.
type AuthProvider interface {
	GetToken(ctx context.Context, scope ...string) (string, error)
}

// ContextTokenProvider takes the token from the request context (see NewContextWithBearerToken).
// It suits APIs where the token is a per-request value, such as a document signature.
type ContextTokenProvider struct{}

// GetToken implements AuthProvider.
func (ContextTokenProvider) GetToken(ctx context.Context, _ ...string) (string, error) {
	if token := GetBearerTokenFromContext(ctx); token != "" {
		return token, nil
	}
	return "", ErrNoBearerToken
}

// StaticTokenProvider always returns the same token.
type StaticTokenProvider string

// GetToken implements AuthProvider.
func (p StaticTokenProvider) GetToken(context.Context, ...string) (string, error) {
	if p == "" {
		return "", ErrNoBearerToken
	}
	return string(p), nil
}

// AuthBearerRoundTripperOpts is options for AuthBearerRoundTripper.
type AuthBearerRoundTripperOpts struct {
	TokenScope []string
}

// AuthBearerRoundTripper implements http.RoundTripper interface
// and sets Authorization HTTP header in all outgoing requests that don't have it yet.
type AuthBearerRoundTripper struct {
	Delegate     http.RoundTripper
	AuthProvider AuthProvider
	opts         AuthBearerRoundTripperOpts
}

// NewAuthBearerRoundTripper creates a new AuthBearerRoundTripper.
func NewAuthBearerRoundTripper(delegate http.RoundTripper, authProvider AuthProvider) *AuthBearerRoundTripper {
	return NewAuthBearerRoundTripperWithOpts(delegate, authProvider, AuthBearerRoundTripperOpts{})
}

// NewAuthBearerRoundTripperWithOpts creates a new AuthBearerRoundTripper with options.
func NewAuthBearerRoundTripperWithOpts(delegate http.RoundTripper, authProvider AuthProvider,
	opts AuthBearerRoundTripperOpts) *AuthBearerRoundTripper {
	return &AuthBearerRoundTripper{delegate, authProvider, opts}
}

// RoundTrip executes a single HTTP transaction, returning a Response for the provided Request.
func (rt *AuthBearerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Authorization") != "" {
		return rt.Delegate.RoundTrip(req)
	}
	token, err := rt.AuthProvider.GetToken(req.Context(), rt.opts.TokenScope...)
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close() // Per RoundTripper contract.
		}
		return nil, &AuthBearerRoundTripperError{Inner: err}
	}
	req = req.Clone(req.Context()) // Per RoundTripper contract.
	req.Header.Set("Authorization", "Bearer "+token)
	return rt.Delegate.RoundTrip(req)
}
