/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package throttle bounds the number of operations a process issues within a fixed time window.
//
// PermitPool holds up to Capacity permits. Acquire takes one permit (blocking while none is left),
// Release returns it, and every Window a background ticker resets the pool to full capacity
// regardless of the permits still held. Executor runs a unit of work under one permit and
// returns the permit as soon as the work is done, so the window reset is what limits the rate.
//
//	pool, err := throttle.NewPermitPool(100, time.Minute)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	executor := throttle.NewExecutor(pool)
//	err = executor.Execute(ctx, func(ctx context.Context) error {
//		return sendRequest(ctx)
//	})
//
// Up to 2*Capacity operations may start around a window boundary.
package throttle
