/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package crptapi provides a client of the CRPT ("Chestny ZNAK") API for creating documents
// that introduce goods into circulation.
//
// The client bounds the number of documents sent within a fixed time window: every call of
// Client.CreateDocument takes a permit from a throttle.PermitPool, and the pool is reset to
// full capacity on every window. Callers that exceed the limit block until the next reset,
// the wait may be interrupted through the context.
package crptapi
