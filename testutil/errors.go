/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"github.com/stretchr/testify/require"
)

// RequireNoErrorsInChannel reads all values buffered in c (without blocking)
// and asserts that none of them is a non-nil error.
func RequireNoErrorsInChannel(t require.TestingT, c <-chan error, msgAndArgs ...interface{}) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	for {
		select {
		case err, ok := <-c:
			if !ok {
				return
			}
			if err != nil {
				require.NoError(t, err, msgAndArgs...)
				return
			}
		default:
			return
		}
	}
}
