/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package crptapi

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrEmptySignature is returned when the document is sent without a signature.
	ErrEmptySignature = errors.New("signature must not be empty")

	// ErrInvalidDocument is returned when the document fails validation.
	// The validation details may be extracted with errors.As into FieldErrors.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrUnexpectedStatusCode is wrapped by UnexpectedStatusError.
	ErrUnexpectedStatusCode = errors.New("unexpected status code")

	// ErrRequestFailed is returned when the request could not be sent or the response could not be read.
	ErrRequestFailed = errors.New("create document request failed")
)

// UnexpectedStatusError is returned when the remote API responds with a status other than 200 OK.
// Body holds the beginning of the response body, up to the configured maximum size.
type UnexpectedStatusError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("%v: %d, body: %s", e.Err, e.StatusCode, e.Body)
}

func (e *UnexpectedStatusError) Unwrap() error {
	return e.Err
}

// Temporary reports whether the request may succeed if it is sent again.
func (e *UnexpectedStatusError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}
