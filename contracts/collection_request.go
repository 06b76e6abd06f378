package contracts

import (
	"context"
	"iter"
	"slices"

	"github.com/glimte/courier/future"
	"golang.org/x/sync/errgroup"
)

// CollectionRequestMessage is embedded by request messages that accept any number of
// replies from any number of handlers
type CollectionRequestMessage[T any] struct {
	responses []T
}

// Reply appends a response
func (m *CollectionRequestMessage[T]) Reply(response T) {
	m.responses = append(m.responses, response)
}

// ReplyCount implements ReplyCounter
func (m *CollectionRequestMessage[T]) ReplyCount() int {
	return len(m.responses)
}

// Responses returns the responses in reply order
func (m *CollectionRequestMessage[T]) Responses() []T {
	return slices.Clone(m.responses)
}

// All iterates the responses in reply order
func (m *CollectionRequestMessage[T]) All() iter.Seq[T] {
	return slices.Values(m.responses)
}

// AsyncCollectionRequestMessage is embedded by request messages that accept any number of
// replies, each of which may complete asynchronously
type AsyncCollectionRequestMessage[T any] struct {
	replies []reply[T]
}

// Reply appends an immediate response
func (m *AsyncCollectionRequestMessage[T]) Reply(response T) {
	m.replies = append(m.replies, reply[T]{kind: replyValue, value: response})
}

// ReplyFuture appends a response that completes with f
func (m *AsyncCollectionRequestMessage[T]) ReplyFuture(f *future.Future[T]) error {
	if f == nil {
		return ErrNilReply
	}
	m.replies = append(m.replies, reply[T]{kind: replyFuture, fut: f})
	return nil
}

// ReplyFunc appends a response produced by fn once the responses are awaited
func (m *AsyncCollectionRequestMessage[T]) ReplyFunc(fn func(ctx context.Context) (T, error)) error {
	if fn == nil {
		return ErrNilReply
	}
	m.replies = append(m.replies, reply[T]{kind: replyFunc, fn: fn})
	return nil
}

// Len returns the number of replies
func (m *AsyncCollectionRequestMessage[T]) Len() int {
	return len(m.replies)
}

// ReplyCount implements ReplyCounter
func (m *AsyncCollectionRequestMessage[T]) ReplyCount() int {
	return m.Len()
}

// All iterates the responses in reply order, waiting for each one in turn.
// Iteration stops after the first error, which is yielded with a zero value.
func (m *AsyncCollectionRequestMessage[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, r := range m.replies {
			v, err := r.await(ctx)
			if !yield(v, err) || err != nil {
				return
			}
		}
	}
}

// GetResponses waits for every reply concurrently and returns the responses in reply order.
// The first failure cancels the context passed to pending reply functions and is returned.
func (m *AsyncCollectionRequestMessage[T]) GetResponses(ctx context.Context) ([]T, error) {
	responses := make([]T, len(m.replies))
	if len(m.replies) == 0 {
		return responses, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, r := range m.replies {
		g.Go(func() error {
			v, err := r.await(gctx)
			if err != nil {
				return err
			}
			responses[i] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return responses, nil
}
