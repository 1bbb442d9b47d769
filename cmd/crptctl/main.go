/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Command crptctl sends documents to the CRPT API.
//
// Usage:
//
//	crptctl create --config crptctl.yaml --signature-file sig.txt doc1.json doc2.yaml
//	crptctl sample --format yaml > doc.yaml
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
