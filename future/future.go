package future

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNilFuture is returned when awaiting a nil future
var ErrNilFuture = errors.New("future: nil future")

// PanicError is returned by futures whose function panicked
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("future: function panicked: %v", e.Value)
}

// Future is a value that becomes available at some point
type Future[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns a future already completed with v
func Resolved[T any](v T) *Future[T] {
	f := newFuture[T]()
	f.complete(v, nil)
	return f
}

// Failed returns a future already completed with err
func Failed[T any](err error) *Future[T] {
	f := newFuture[T]()
	var zero T
	f.complete(zero, err)
	return f
}

// Go runs fn on a new goroutine and returns a future completed with its result.
// A panic inside fn completes the future with a *PanicError.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	go func() {
		var (
			value T
			err   error
		)
		defer func() {
			if r := recover(); r != nil {
				var zero T
				f.complete(zero, &PanicError{Value: r})
				return
			}
			f.complete(value, err)
		}()
		value, err = fn(ctx)
	}()
	return f
}

// complete stores the result; only the first call has any effect
func (f *Future[T]) complete(v T, err error) bool {
	completed := false
	f.once.Do(func() {
		f.value = v
		f.err = err
		close(f.done)
		completed = true
	})
	return completed
}

// Done returns a channel closed once the future is completed
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// IsDone reports whether the future is completed
func (f *Future[T]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Await blocks until the future is completed or ctx is done
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	var zero T
	if f == nil {
		return zero, ErrNilFuture
	}

	// A completed future always wins over a cancelled context.
	select {
	case <-f.done:
		return f.value, f.err
	default:
	}

	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Promise is the write side of a future
type Promise[T any] struct {
	future *Future[T]
}

// NewPromise creates a promise with a pending future
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{future: newFuture[T]()}
}

// Future returns the future completed by this promise
func (p *Promise[T]) Future() *Future[T] {
	return p.future
}

// Resolve completes the future with v. It returns false if the future was already completed.
func (p *Promise[T]) Resolve(v T) bool {
	return p.future.complete(v, nil)
}

// Reject completes the future with err. It returns false if the future was already completed.
func (p *Promise[T]) Reject(err error) bool {
	var zero T
	return p.future.complete(zero, err)
}
