package contracts

import (
	"context"
	"iter"

	"github.com/glimte/courier/future"
)

// ReplyCounter is implemented by every request message base
type ReplyCounter interface {
	ReplyCount() int
}

// ReplyCount returns the number of replies msg has received so far, or 0 if msg is not a
// request message
func ReplyCount(msg any) int {
	if rc, ok := msg.(ReplyCounter); ok {
		return rc.ReplyCount()
	}
	return 0
}

// Replier is implemented by single-response request messages.
// Result returns the reply, ErrMultipleReplies if more than one reply was attempted,
// or ErrNoReply if none was set.
type Replier[T any] interface {
	HasReceivedResponse() bool
	Result() (T, error)
}

// AsyncReplier is implemented by asynchronous single-response request messages.
// Result performs the same reply-count checks as Replier and returns a future for the reply.
type AsyncReplier[T any] interface {
	HasReceivedResponse() bool
	Result(ctx context.Context) (*future.Future[T], error)
}

// CollectionReplier is implemented by multi-response request messages
type CollectionReplier[T any] interface {
	Responses() []T
	All() iter.Seq[T]
}

// AsyncCollectionReplier is implemented by asynchronous multi-response request messages
type AsyncCollectionReplier[T any] interface {
	Len() int
	All(ctx context.Context) iter.Seq2[T, error]
	GetResponses(ctx context.Context) ([]T, error)
}
