package contracts

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/glimte/courier/future"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type numbersRequest struct {
	CollectionRequestMessage[int]
}

type asyncNumbersRequest struct {
	AsyncCollectionRequestMessage[int]
}

func TestCollectionRequestMessage(t *testing.T) {
	t.Run("has no responses initially", func(t *testing.T) {
		req := &numbersRequest{}

		assert.Empty(t, req.Responses())
		assert.Empty(t, slices.Collect(req.All()))
	})

	t.Run("accumulates replies in order", func(t *testing.T) {
		req := &numbersRequest{}
		req.Reply(1)
		req.Reply(2)
		req.Reply(3)

		assert.Equal(t, []int{1, 2, 3}, req.Responses())
		assert.Equal(t, []int{1, 2, 3}, slices.Collect(req.All()))
	})

	t.Run("iteration can be restarted and stopped early", func(t *testing.T) {
		req := &numbersRequest{}
		req.Reply(1)
		req.Reply(2)

		for v := range req.All() {
			assert.Equal(t, 1, v)
			break
		}
		assert.Equal(t, []int{1, 2}, slices.Collect(req.All()))
	})

	t.Run("Responses returns a copy", func(t *testing.T) {
		req := &numbersRequest{}
		req.Reply(1)

		responses := req.Responses()
		responses[0] = 99

		assert.Equal(t, []int{1}, req.Responses())
	})

	t.Run("implements CollectionReplier", func(t *testing.T) {
		var _ CollectionReplier[int] = &numbersRequest{}
	})
}

func TestAsyncCollectionRequestMessage(t *testing.T) {
	ctx := context.Background()

	delayed := func(v int, d time.Duration) func(ctx context.Context) (int, error) {
		return func(ctx context.Context) (int, error) {
			select {
			case <-time.After(d):
				return v, nil
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}
	}

	t.Run("GetResponses with no replies returns an empty slice", func(t *testing.T) {
		req := &asyncNumbersRequest{}

		responses, err := req.GetResponses(ctx)
		require.NoError(t, err)
		assert.Empty(t, responses)
		assert.Equal(t, 0, req.Len())
	})

	t.Run("resolves every kind of reply", func(t *testing.T) {
		req := &asyncNumbersRequest{}
		req.Reply(1)
		require.NoError(t, req.ReplyFuture(future.Resolved(2)))
		require.NoError(t, req.ReplyFuture(future.Go(ctx, delayed(3, 20*time.Millisecond))))
		require.NoError(t, req.ReplyFunc(delayed(3, 20*time.Millisecond)))

		responses, err := req.GetResponses(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int{1, 2, 3, 3}, responses)
	})

	t.Run("GetResponses keeps reply order when later replies finish first", func(t *testing.T) {
		req := &asyncNumbersRequest{}
		require.NoError(t, req.ReplyFunc(delayed(1, 50*time.Millisecond)))
		require.NoError(t, req.ReplyFunc(delayed(2, 10*time.Millisecond)))
		req.Reply(3)

		responses, err := req.GetResponses(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3}, responses)
	})

	t.Run("All yields responses in reply order", func(t *testing.T) {
		req := &asyncNumbersRequest{}
		require.NoError(t, req.ReplyFunc(delayed(1, 30*time.Millisecond)))
		req.Reply(2)

		var got []int
		for v, err := range req.All(ctx) {
			require.NoError(t, err)
			got = append(got, v)
		}
		assert.Equal(t, []int{1, 2}, got)
	})

	t.Run("All stops at the first error", func(t *testing.T) {
		wantErr := errors.New("unavailable")
		req := &asyncNumbersRequest{}
		req.Reply(1)
		require.NoError(t, req.ReplyFuture(future.Failed[int](wantErr)))
		req.Reply(3)

		var (
			got  []int
			errs []error
		)
		for v, err := range req.All(ctx) {
			if err != nil {
				errs = append(errs, err)
				continue
			}
			got = append(got, v)
		}

		assert.Equal(t, []int{1}, got)
		require.Len(t, errs, 1)
		assert.ErrorIs(t, errs[0], wantErr)
	})

	t.Run("GetResponses returns the first error and cancels pending functions", func(t *testing.T) {
		wantErr := errors.New("unavailable")
		cancelled := make(chan struct{})
		req := &asyncNumbersRequest{}
		require.NoError(t, req.ReplyFunc(func(ctx context.Context) (int, error) {
			<-ctx.Done()
			close(cancelled)
			return 0, ctx.Err()
		}))
		require.NoError(t, req.ReplyFuture(future.Failed[int](wantErr)))

		responses, err := req.GetResponses(ctx)
		assert.ErrorIs(t, err, wantErr)
		assert.Nil(t, responses)

		select {
		case <-cancelled:
		case <-time.After(time.Second):
			t.Fatal("pending reply function was not cancelled")
		}
	})

	t.Run("nil replies are rejected", func(t *testing.T) {
		req := &asyncNumbersRequest{}

		assert.ErrorIs(t, req.ReplyFuture(nil), ErrNilReply)
		assert.ErrorIs(t, req.ReplyFunc(nil), ErrNilReply)
		assert.Equal(t, 0, req.Len())
	})

	t.Run("implements AsyncCollectionReplier", func(t *testing.T) {
		var _ AsyncCollectionReplier[int] = &asyncNumbersRequest{}
	})
}
