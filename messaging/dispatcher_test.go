package messaging

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glimte/courier/interceptors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// counter is a recipient with mutable state
type counter struct {
	name  string
	total int
}

type increment struct {
	By  int
	Log *[]string
}

func TestSend(t *testing.T) {
	ctx := context.Background()

	t.Run("Send with no recipients succeeds", func(t *testing.T) {
		m := NewMessenger()

		msg, err := Send(ctx, m, ping{Seq: 9})
		require.NoError(t, err)
		assert.Equal(t, ping{Seq: 9}, msg)
	})

	t.Run("Send delivers in registration order", func(t *testing.T) {
		m := NewMessenger()
		var order []string
		names := []string{"first", "second", "third"}
		recipients := make([]*counter, 0, len(names))

		for _, name := range names {
			c := &counter{name: name}
			recipients = append(recipients, c)
			require.NoError(t, Register(m, c, func(ctx context.Context, c *counter, msg increment) error {
				c.total += msg.By
				*msg.Log = append(*msg.Log, c.name)
				return nil
			}))
		}

		_, err := Send(ctx, m, increment{By: 2, Log: &order})
		require.NoError(t, err)

		assert.Equal(t, names, order)
		for _, c := range recipients {
			assert.Equal(t, 2, c.total)
		}
	})

	t.Run("Send returns the message after handler mutations", func(t *testing.T) {
		m := NewMessenger()
		r := newRecipient("r")
		require.NoError(t, Register(m, r, func(ctx context.Context, r *testRecipient, msg *ping) error {
			msg.Seq++
			return nil
		}))

		msg, err := Send(ctx, m, &ping{Seq: 1})
		require.NoError(t, err)
		assert.Equal(t, 2, msg.Seq)
	})

	t.Run("Send stops at the first handler error", func(t *testing.T) {
		m := NewMessenger()
		boom := errors.New("boom")
		a, b, c := newRecipient("a"), newRecipient("b"), newRecipient("c")

		require.NoError(t, Register(m, a, record[ping]))
		require.NoError(t, Register(m, b, func(ctx context.Context, r *testRecipient, msg ping) error {
			return boom
		}))
		require.NoError(t, Register(m, c, record[ping]))

		_, err := Send(ctx, m, ping{Seq: 1})
		assert.Same(t, boom, err)
		assert.Len(t, a.received, 1)
		assert.Empty(t, c.received)
	})

	t.Run("Send propagates handler panics", func(t *testing.T) {
		m := NewMessenger()
		r := newRecipient("r")
		require.NoError(t, Register(m, r, func(ctx context.Context, r *testRecipient, msg ping) error {
			panic("handler failed")
		}))

		assert.PanicsWithValue(t, "handler failed", func() {
			_, _ = Send(ctx, m, ping{})
		})
	})

	t.Run("Send passes the context to handlers", func(t *testing.T) {
		type ctxKey struct{}
		m := NewMessenger()
		r := newRecipient("r")
		var seen any
		require.NoError(t, Register(m, r, func(ctx context.Context, r *testRecipient, msg ping) error {
			seen = ctx.Value(ctxKey{})
			return nil
		}))

		_, err := Send(context.WithValue(ctx, ctxKey{}, "value"), m, ping{})
		require.NoError(t, err)
		assert.Equal(t, "value", seen)
	})
}

func TestReentrantDispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("handler may register recipients during dispatch", func(t *testing.T) {
		m := NewMessenger()
		first, late := newRecipient("first"), newRecipient("late")

		require.NoError(t, Register(m, first, func(ctx context.Context, r *testRecipient, msg ping) error {
			r.received = append(r.received, msg)
			if IsRegistered[ping](m, late) {
				return nil
			}
			return Register(m, late, record[ping])
		}))

		_, err := Send(ctx, m, ping{Seq: 1})
		require.NoError(t, err)
		assert.Empty(t, late.received)

		_, err = Send(ctx, m, ping{Seq: 2})
		require.NoError(t, err)
		assert.Equal(t, []any{ping{Seq: 2}}, late.received)
		assert.Len(t, first.received, 2)
	})

	t.Run("recipients unregistered during dispatch are skipped", func(t *testing.T) {
		m := NewMessenger()
		first, second := newRecipient("first"), newRecipient("second")

		require.NoError(t, Register(m, first, func(ctx context.Context, r *testRecipient, msg ping) error {
			UnregisterAll(m, second)
			return nil
		}))
		require.NoError(t, Register(m, second, record[ping]))

		_, err := Send(ctx, m, ping{Seq: 1})
		require.NoError(t, err)
		assert.Empty(t, second.received)
	})

	t.Run("handler may unregister itself", func(t *testing.T) {
		m := NewMessenger()
		r := newRecipient("once")
		require.NoError(t, Register(m, r, func(ctx context.Context, r *testRecipient, msg ping) error {
			r.received = append(r.received, msg)
			Unregister[ping](m, r)
			return nil
		}))

		for i := range 3 {
			_, err := Send(ctx, m, ping{Seq: i})
			require.NoError(t, err)
		}
		assert.Equal(t, []any{ping{Seq: 0}}, r.received)
	})

	t.Run("handler may send nested messages", func(t *testing.T) {
		m := NewMessenger()
		r := newRecipient("r")
		require.NoError(t, Register(m, r, func(ctx context.Context, r *testRecipient, msg ping) error {
			_, err := Send(ctx, m, pong{Seq: msg.Seq})
			return err
		}))
		require.NoError(t, Register(m, r, record[pong]))

		_, err := Send(ctx, m, ping{Seq: 5})
		require.NoError(t, err)
		assert.Equal(t, []any{pong{Seq: 5}}, r.received)
	})
}

func TestConcurrentDispatch(t *testing.T) {
	ctx := context.Background()
	m := NewMessenger()
	var delivered atomic.Int64

	handler := func(ctx context.Context, c *counter, msg increment) error {
		delivered.Add(int64(msg.By))
		return nil
	}

	stable := &counter{name: "stable"}
	require.NoError(t, Register(m, stable, handler))

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := &counter{name: "churn"}
			for range 100 {
				assert.NoError(t, Register(m, c, handler, WithToken(i%2)))
				Unregister[increment](m, c, WithToken(i%2))
			}
		}()
		go func() {
			defer wg.Done()
			for range 100 {
				_, err := Send(ctx, m, increment{By: 1})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(800), delivered.Load())
	assert.Equal(t, 1, m.Stats().Registrations)
	assert.True(t, IsRegistered[increment](m, stable))
}

// mockMetrics records interceptor metrics
type mockMetrics struct {
	mock.Mock
}

func (m *mockMetrics) IncrementMessageCount(messageType string) {
	m.Called(messageType)
}

func (m *mockMetrics) RecordProcessingTime(messageType string, duration time.Duration) {
	m.Called(messageType, duration)
}

func (m *mockMetrics) IncrementErrorCount(messageType, errorType string) {
	m.Called(messageType, errorType)
}

func TestDispatchInterceptors(t *testing.T) {
	ctx := context.Background()

	t.Run("interceptors wrap every delivery in order", func(t *testing.T) {
		var trace []string
		tracing := func(name string) interceptors.Interceptor {
			return interceptors.NewInterceptorFunc(name, func(ctx context.Context, d *interceptors.Delivery, next interceptors.Handler) error {
				trace = append(trace, name+":"+d.MessageType+":"+d.RecipientType())
				return next.Handle(ctx, d)
			})
		}

		m := NewMessenger(WithInterceptors(tracing("outer"), tracing("inner")))
		r := newRecipient("r")
		require.NoError(t, Register(m, r, record[ping]))

		_, err := Send(ctx, m, ping{Seq: 1})
		require.NoError(t, err)

		assert.Equal(t, []string{
			"outer:messaging.ping:*messaging.testRecipient",
			"inner:messaging.ping:*messaging.testRecipient",
		}, trace)
		assert.Equal(t, []any{ping{Seq: 1}}, r.received)
	})

	t.Run("deliveries of one dispatch share a dispatch id", func(t *testing.T) {
		var ids []string
		var tokens []any
		capture := interceptors.NewInterceptorFunc("capture", func(ctx context.Context, d *interceptors.Delivery, next interceptors.Handler) error {
			ids = append(ids, d.DispatchID)
			tokens = append(tokens, d.Token)
			return next.Handle(ctx, d)
		})

		m := NewMessenger(WithInterceptors(capture))
		a, b := newRecipient("a"), newRecipient("b")
		require.NoError(t, Register(m, a, record[ping], WithToken("t")))
		require.NoError(t, Register(m, b, record[ping], WithToken("t")))

		_, err := Send(ctx, m, ping{}, WithToken("t"))
		require.NoError(t, err)
		_, err = Send(ctx, m, ping{}, WithToken("t"))
		require.NoError(t, err)

		require.Len(t, ids, 4)
		assert.Equal(t, ids[0], ids[1])
		assert.Equal(t, ids[2], ids[3])
		assert.NotEqual(t, ids[0], ids[2])
		assert.Equal(t, []any{"t", "t", "t", "t"}, tokens)
	})

	t.Run("filtering interceptor skips blocked recipients", func(t *testing.T) {
		filter := interceptors.NewFilteringInterceptor(
			interceptors.NewRecipientTypeFilter("*messaging.counter"),
			interceptors.SkipSilently,
			nil,
		)
		m := NewMessenger(WithInterceptors(filter))
		r := newRecipient("r")
		c := &counter{name: "blocked"}
		require.NoError(t, Register(m, c, func(ctx context.Context, c *counter, msg ping) error {
			c.total++
			return nil
		}))
		require.NoError(t, Register(m, r, record[ping]))

		_, err := Send(ctx, m, ping{})
		require.NoError(t, err)

		assert.Equal(t, 0, c.total)
		assert.Len(t, r.received, 1)
	})

	t.Run("metrics interceptor records deliveries and errors", func(t *testing.T) {
		metrics := &mockMetrics{}
		metrics.On("IncrementMessageCount", "messaging.ping").Return().Twice()
		metrics.On("RecordProcessingTime", "messaging.ping", mock.AnythingOfType("time.Duration")).Return().Twice()
		metrics.On("IncrementErrorCount", "messaging.ping", "*errors.errorString").Return().Once()

		m := NewMessenger(WithInterceptors(interceptors.NewMetricsInterceptor(metrics)))
		ok, failing := newRecipient("ok"), newRecipient("failing")
		require.NoError(t, Register(m, ok, record[ping]))
		require.NoError(t, Register(m, failing, func(ctx context.Context, r *testRecipient, msg ping) error {
			return errors.New("failed")
		}))

		_, err := Send(ctx, m, ping{})
		assert.EqualError(t, err, "failed")

		metrics.AssertExpectations(t)
	})
}
