package contracts

import (
	"context"

	"github.com/glimte/courier/future"
)

type replyState uint8

const (
	replyUnset replyState = iota
	replySet
	replyViolated
)

// RequestMessage is embedded by request messages that expect exactly one reply:
//
//	type CurrentUserRequest struct {
//		contracts.RequestMessage[*User]
//	}
//
// A handler replies with Reply. A second Reply fails with ErrMultipleReplies and keeps
// the first response.
type RequestMessage[T any] struct {
	response T
	state    replyState
}

// Reply sets the response
func (m *RequestMessage[T]) Reply(response T) error {
	if m.state != replyUnset {
		m.state = replyViolated
		return ErrMultipleReplies
	}
	m.response = response
	m.state = replySet
	return nil
}

// HasReceivedResponse reports whether a response was set
func (m *RequestMessage[T]) HasReceivedResponse() bool {
	return m.state != replyUnset
}

// Response returns the response, or ErrNoReply if none was set
func (m *RequestMessage[T]) Response() (T, error) {
	if m.state == replyUnset {
		var zero T
		return zero, ErrNoReply
	}
	return m.response, nil
}

// ReplyCount implements ReplyCounter. A violated request counts as two replies.
func (m *RequestMessage[T]) ReplyCount() int {
	return int(m.state)
}

// Result implements Replier
func (m *RequestMessage[T]) Result() (T, error) {
	if m.state == replyViolated {
		var zero T
		return zero, ErrMultipleReplies
	}
	return m.Response()
}

// AsyncRequestMessage is embedded by request messages that expect exactly one reply
// which may complete asynchronously. The reply is an immediate value (Reply), a future
// (ReplyFuture), or a function run when the request is awaited (ReplyFunc).
type AsyncRequestMessage[T any] struct {
	reply reply[T]
	state replyState
}

// Reply sets an immediate response
func (m *AsyncRequestMessage[T]) Reply(response T) error {
	return m.set(reply[T]{kind: replyValue, value: response})
}

// ReplyFuture sets a response that completes with f
func (m *AsyncRequestMessage[T]) ReplyFuture(f *future.Future[T]) error {
	if f == nil {
		return ErrNilReply
	}
	return m.set(reply[T]{kind: replyFuture, fut: f})
}

// ReplyFunc sets a response produced by fn once the request is awaited
func (m *AsyncRequestMessage[T]) ReplyFunc(fn func(ctx context.Context) (T, error)) error {
	if fn == nil {
		return ErrNilReply
	}
	return m.set(reply[T]{kind: replyFunc, fn: fn})
}

func (m *AsyncRequestMessage[T]) set(r reply[T]) error {
	if m.state != replyUnset {
		m.state = replyViolated
		return ErrMultipleReplies
	}
	m.reply = r
	m.state = replySet
	return nil
}

// HasReceivedResponse reports whether a response was set
func (m *AsyncRequestMessage[T]) HasReceivedResponse() bool {
	return m.state != replyUnset
}

// ReplyCount implements ReplyCounter. A violated request counts as two replies.
func (m *AsyncRequestMessage[T]) ReplyCount() int {
	return int(m.state)
}

// Response awaits the response, or returns ErrNoReply if none was set
func (m *AsyncRequestMessage[T]) Response(ctx context.Context) (T, error) {
	if m.state == replyUnset {
		var zero T
		return zero, ErrNoReply
	}
	return m.reply.await(ctx)
}

// Result implements AsyncReplier. Deferred functions are started with ctx.
func (m *AsyncRequestMessage[T]) Result(ctx context.Context) (*future.Future[T], error) {
	switch m.state {
	case replyUnset:
		return nil, ErrNoReply
	case replyViolated:
		return nil, ErrMultipleReplies
	}
	return m.reply.start(ctx), nil
}
