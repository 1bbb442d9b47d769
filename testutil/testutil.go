/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package testutil contains testify-style assertions shared by tests of the module.
package testutil

type tHelper interface {
	Helper()
}
