package messaging

import (
	"context"

	"github.com/glimte/courier/contracts"
	"github.com/glimte/courier/future"
)

// Request sends a new request message of type *T and returns its single reply.
//
// It fails with contracts.ErrNoReply if no handler replied and with
// contracts.ErrMultipleReplies if a handler replied more than once; both are wrapped in a
// *contracts.RequestError. Handler errors are returned unchanged.
//
//	type UserCountRequest struct {
//		contracts.RequestMessage[int]
//	}
//
//	n, err := messaging.Request[UserCountRequest, int](ctx, m)
func Request[T any, R any, PT interface {
	*T
	contracts.Replier[R]
}](ctx context.Context, m *Messenger, opts ...ChannelOption) (R, error) {
	return SendRequest[R](ctx, m, PT(new(T)), opts...)
}

// SendRequest sends msg and returns its single reply. See Request.
func SendRequest[R any, M contracts.Replier[R]](ctx context.Context, m *Messenger, msg M, opts ...ChannelOption) (R, error) {
	var zero R
	if _, err := Send(ctx, m, msg, opts...); err != nil {
		return zero, err
	}

	response, err := msg.Result()
	if err != nil {
		return zero, &contracts.RequestError{Op: "request", MessageType: typeName[M](), Err: err}
	}
	return response, nil
}

// RequestAsync sends a new request message of type *T and returns a future for its single reply.
//
// Dispatch is synchronous: reply-count violations are returned by RequestAsync itself, before
// anything is awaited. The future completes once the reply, which may be a pending future or a
// deferred function, resolves. Deferred functions are started with ctx.
//
//	f, err := messaging.RequestAsync[ProfileRequest, *Profile](ctx, m)
//	if err != nil {
//		return err
//	}
//	profile, err := f.Await(ctx)
func RequestAsync[T any, R any, PT interface {
	*T
	contracts.AsyncReplier[R]
}](ctx context.Context, m *Messenger, opts ...ChannelOption) (*future.Future[R], error) {
	return SendRequestAsync[R](ctx, m, PT(new(T)), opts...)
}

// SendRequestAsync sends msg and returns a future for its single reply. See RequestAsync.
func SendRequestAsync[R any, M contracts.AsyncReplier[R]](ctx context.Context, m *Messenger, msg M, opts ...ChannelOption) (*future.Future[R], error) {
	if _, err := Send(ctx, m, msg, opts...); err != nil {
		return nil, err
	}

	f, err := msg.Result(ctx)
	if err != nil {
		return nil, &contracts.RequestError{Op: "request", MessageType: typeName[M](), Err: err}
	}
	return f, nil
}

// RequestAll sends a new collection request message of type *T and returns it once every
// handler has run. Its Responses and All methods expose the replies in reply order; zero
// replies is valid.
//
//	req, err := messaging.RequestAll[ActiveSessionsRequest, Session](ctx, m)
//	for s := range req.All() {
//		...
//	}
func RequestAll[T any, R any, PT interface {
	*T
	contracts.CollectionReplier[R]
}](ctx context.Context, m *Messenger, opts ...ChannelOption) (PT, error) {
	return Send(ctx, m, PT(new(T)), opts...)
}

// RequestAllAsync sends a new asynchronous collection request message of type *T and returns
// it once every handler has run. Its All method yields replies in reply order as each one
// resolves; GetResponses waits for all of them.
//
//	req, err := messaging.RequestAllAsync[HealthRequest, Health](ctx, m)
//	if err != nil {
//		return err
//	}
//	reports, err := req.GetResponses(ctx)
func RequestAllAsync[T any, R any, PT interface {
	*T
	contracts.AsyncCollectionReplier[R]
}](ctx context.Context, m *Messenger, opts ...ChannelOption) (PT, error) {
	return Send(ctx, m, PT(new(T)), opts...)
}
