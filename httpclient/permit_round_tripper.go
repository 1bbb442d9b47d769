/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package httpclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/acronis/go-crptapi/throttle"
)

// PermitWaitError is returned by PermitRoundTripper when no permit could be acquired.
// It wraps throttle.ErrCancelled and the context error.
type PermitWaitError struct {
	Inner error
}

func (e *PermitWaitError) Error() string {
	return fmt.Sprintf("wait for throttle permit: %s", e.Inner.Error())
}

// Unwrap returns the next error in the error chain.
func (e *PermitWaitError) Unwrap() error {
	return e.Inner
}

// PermitRoundTripper sends every request under a permit of throttle.Executor.
// The permit is held until the response headers are received.
type PermitRoundTripper struct {
	Delegate http.RoundTripper
	Executor *throttle.Executor
}

// NewPermitRoundTripper creates a new PermitRoundTripper.
func NewPermitRoundTripper(delegate http.RoundTripper, executor *throttle.Executor) *PermitRoundTripper {
	return &PermitRoundTripper{Delegate: delegate, Executor: executor}
}

// RoundTrip executes a single HTTP transaction, returning a Response for the provided Request.
func (rt *PermitRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	var resp *http.Response
	var sent bool
	err := rt.Executor.Execute(r.Context(), func(context.Context) error {
		sent = true
		var rtErr error
		resp, rtErr = rt.Delegate.RoundTrip(r)
		return rtErr
	})
	if err != nil && !sent {
		if r.Body != nil {
			_ = r.Body.Close() // Per RoundTripper contract.
		}
		return nil, &PermitWaitError{Inner: err}
	}
	return resp, err
}
