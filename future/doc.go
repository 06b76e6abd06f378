// Package future provides awaitable values for the asynchronous request protocols.
//
// A Future is completed exactly once, either with a value or with an error, and can be
// awaited by any number of goroutines:
//
//	f := future.Go(ctx, func(ctx context.Context) (int, error) {
//		return lookup(ctx)
//	})
//
//	n, err := f.Await(ctx)
//
// Futures are created already completed (Resolved, Failed), backed by a goroutine (Go), or
// completed externally through a Promise.
package future
