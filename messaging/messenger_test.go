package messaging

import (
	"context"
	"log/slog"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glimte/courier/interceptors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test message and recipient types
type ping struct {
	Seq int
}

type pong struct {
	Seq int
}

type testRecipient struct {
	name     string
	received []any
}

func newRecipient(name string) *testRecipient {
	return &testRecipient{name: name}
}

func record[M any](ctx context.Context, r *testRecipient, msg M) error {
	r.received = append(r.received, msg)
	return nil
}

// registerTransient registers a recipient that becomes unreachable as soon as it returns
func registerTransient[M any](t *testing.T, m *Messenger, handler Handler[testRecipient, M]) {
	t.Helper()
	r := newRecipient("transient")
	require.NoError(t, Register(m, r, handler))
}

// collectGarbage runs the GC until the messenger reports dead entries
func collectGarbage(t *testing.T, m *Messenger, dead int) {
	t.Helper()
	require.Eventually(t, func() bool {
		runtime.GC()
		return m.Stats().Dead == dead
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNewMessenger(t *testing.T) {
	t.Run("NewMessenger creates messenger with defaults", func(t *testing.T) {
		m := NewMessenger()

		assert.NotNil(t, m.table)
		assert.NotNil(t, m.logger)
		assert.Equal(t, 0, m.chain.Len())
		assert.False(t, m.strong)

		_, err := uuid.Parse(m.ID())
		assert.NoError(t, err)
	})

	t.Run("NewMessenger applies options", func(t *testing.T) {
		logger := slog.Default()
		noop := interceptors.NewInterceptorFunc("noop", func(ctx context.Context, d *interceptors.Delivery, next interceptors.Handler) error {
			return next.Handle(ctx, d)
		})

		m := NewMessenger(
			WithLogger(logger),
			WithInterceptors(noop),
			WithStrongReferences(),
		)

		assert.Equal(t, 1, m.chain.Len())
		assert.True(t, m.strong)
	})

	t.Run("messengers have disjoint registrations", func(t *testing.T) {
		m1, m2 := NewMessenger(), NewMessenger()
		r := newRecipient("shared")

		require.NoError(t, Register(m1, r, record[ping]))

		assert.True(t, IsRegistered[ping](m1, r))
		assert.False(t, IsRegistered[ping](m2, r))
		assert.NotEqual(t, m1.ID(), m2.ID())

		_, err := Send(context.Background(), m2, ping{Seq: 1})
		require.NoError(t, err)
		assert.Empty(t, r.received)
	})
}

func TestMessengerMaintenance(t *testing.T) {
	t.Run("Stats counts channels, recipients and registrations", func(t *testing.T) {
		m := NewMessenger()
		a, b := newRecipient("a"), newRecipient("b")

		require.NoError(t, Register(m, a, record[ping]))
		require.NoError(t, Register(m, a, record[pong]))
		require.NoError(t, Register(m, b, record[ping], WithToken("audit")))

		assert.Equal(t, Stats{Channels: 3, Recipients: 2, Registrations: 3}, m.Stats())
		runtime.KeepAlive(a)
		runtime.KeepAlive(b)
	})

	t.Run("Cleanup removes reclaimed recipients", func(t *testing.T) {
		m := NewMessenger()
		kept := newRecipient("kept")
		require.NoError(t, Register(m, kept, record[ping]))
		registerTransient(t, m, record[ping])

		collectGarbage(t, m, 1)

		assert.Equal(t, 1, m.Cleanup())
		assert.Equal(t, Stats{Channels: 1, Recipients: 1, Registrations: 1}, m.Stats())
		assert.Equal(t, 0, m.Cleanup())
		runtime.KeepAlive(kept)
	})

	t.Run("Reset removes every registration", func(t *testing.T) {
		m := NewMessenger()
		r := newRecipient("r")
		require.NoError(t, Register(m, r, record[ping]))
		require.NoError(t, Register(m, r, record[pong], WithToken(7)))

		m.Reset()

		assert.Equal(t, Stats{}, m.Stats())
		assert.False(t, IsRegistered[ping](m, r))
		require.NoError(t, Register(m, r, record[ping]))
	})

	t.Run("strong references keep recipients registered", func(t *testing.T) {
		m := NewMessenger(WithStrongReferences())
		var calls atomic.Int32
		registerTransient(t, m, func(ctx context.Context, r *testRecipient, msg ping) error {
			calls.Add(1)
			return nil
		})

		runtime.GC()
		runtime.GC()

		assert.Equal(t, 0, m.Cleanup())
		_, err := Send(context.Background(), m, ping{})
		require.NoError(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})
}
