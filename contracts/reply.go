package contracts

import (
	"context"

	"github.com/glimte/courier/future"
)

type replyKind uint8

const (
	replyValue replyKind = iota
	replyFuture
	replyFunc
)

// reply is one asynchronous reply: an immediate value, a future, or a deferred function
type reply[T any] struct {
	kind  replyKind
	value T
	fut   *future.Future[T]
	fn    func(ctx context.Context) (T, error)
}

// await resolves the reply on the calling goroutine
func (r reply[T]) await(ctx context.Context) (T, error) {
	switch r.kind {
	case replyFuture:
		return r.fut.Await(ctx)
	case replyFunc:
		return r.fn(ctx)
	default:
		return r.value, nil
	}
}

// start returns a future for the reply, starting deferred functions on their own goroutine
func (r reply[T]) start(ctx context.Context) *future.Future[T] {
	switch r.kind {
	case replyFuture:
		return r.fut
	case replyFunc:
		return future.Go(ctx, r.fn)
	default:
		return future.Resolved(r.value)
	}
}
