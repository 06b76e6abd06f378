package messaging

import (
	"context"
	"fmt"
	"runtime"
	"testing"

	"github.com/glimte/courier/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type auditLog struct {
	entries []string
}

func (a *auditLog) Receive(ctx context.Context, msg ping) error {
	a.entries = append(a.entries, fmt.Sprintf("ping %d", msg.Seq))
	return nil
}

type marker struct{}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("Register delivers messages of the registered type", func(t *testing.T) {
		m := NewMessenger()
		r := newRecipient("r")

		require.NoError(t, Register(m, r, record[ping]))
		assert.True(t, IsRegistered[ping](m, r))
		assert.False(t, IsRegistered[pong](m, r))

		_, err := Send(ctx, m, ping{Seq: 1})
		require.NoError(t, err)
		_, err = Send(ctx, m, pong{Seq: 2})
		require.NoError(t, err)

		assert.Equal(t, []any{ping{Seq: 1}}, r.received)
	})

	t.Run("Register rejects duplicate registration", func(t *testing.T) {
		m := NewMessenger()
		r := newRecipient("r")
		require.NoError(t, Register(m, r, record[ping]))

		err := Register(m, r, record[ping])
		require.ErrorIs(t, err, contracts.ErrDuplicateRegistration)

		var regErr *contracts.RegistrationError
		require.ErrorAs(t, err, &regErr)
		assert.Equal(t, "register", regErr.Op)
		assert.Equal(t, "messaging.ping", regErr.MessageType)
		assert.Equal(t, "*messaging.testRecipient", regErr.Recipient)
		assert.Nil(t, regErr.Token)

		_, err = Send(ctx, m, ping{Seq: 1})
		require.NoError(t, err)
		assert.Len(t, r.received, 1)
	})

	t.Run("Register allows the same recipient for different types and channels", func(t *testing.T) {
		m := NewMessenger()
		r := newRecipient("r")

		require.NoError(t, Register(m, r, record[ping]))
		require.NoError(t, Register(m, r, record[pong]))
		require.NoError(t, Register(m, r, record[ping], WithToken("orders")))
		require.NoError(t, Register(m, r, record[ping], WithToken(42)))

		assert.Equal(t, 4, m.Stats().Registrations)
	})

	t.Run("Register rejects nil recipient and nil handler", func(t *testing.T) {
		m := NewMessenger()

		err := Register(m, (*testRecipient)(nil), record[ping])
		assert.ErrorIs(t, err, contracts.ErrInvalidRegistration)

		err = Register[testRecipient, ping](m, newRecipient("r"), nil)
		assert.ErrorIs(t, err, contracts.ErrInvalidRegistration)

		assert.Equal(t, Stats{}, m.Stats())
	})

	t.Run("Register rejects zero-sized recipient types", func(t *testing.T) {
		m := NewMessenger()

		err := Register(m, &marker{}, func(ctx context.Context, r *marker, msg ping) error { return nil })
		assert.ErrorIs(t, err, contracts.ErrInvalidRegistration)
		assert.Contains(t, err.Error(), "zero-sized")
	})

	t.Run("RegisterRecipient uses the Receive method", func(t *testing.T) {
		m := NewMessenger()
		log := &auditLog{}

		require.NoError(t, RegisterRecipient[ping](m, log))
		assert.True(t, IsRegistered[ping](m, log))

		_, err := Send(ctx, m, ping{Seq: 3})
		require.NoError(t, err)
		assert.Equal(t, []string{"ping 3"}, log.entries)

		err = RegisterRecipient[ping](m, log)
		assert.ErrorIs(t, err, contracts.ErrDuplicateRegistration)
	})

	t.Run("RegisterRecipient rejects nil recipient", func(t *testing.T) {
		m := NewMessenger()

		err := RegisterRecipient[ping](m, (*auditLog)(nil))
		assert.ErrorIs(t, err, contracts.ErrInvalidRegistration)
	})
}

func TestChannels(t *testing.T) {
	ctx := context.Background()

	t.Run("Send only reaches recipients on the selected channel", func(t *testing.T) {
		m := NewMessenger()
		def, orders, billing := newRecipient("default"), newRecipient("orders"), newRecipient("billing")

		require.NoError(t, Register(m, def, record[ping]))
		require.NoError(t, Register(m, orders, record[ping], WithToken("orders")))
		require.NoError(t, Register(m, billing, record[ping], WithToken("billing")))

		_, err := Send(ctx, m, ping{Seq: 1}, WithToken("orders"))
		require.NoError(t, err)
		_, err = Send(ctx, m, ping{Seq: 2})
		require.NoError(t, err)

		assert.Equal(t, []any{ping{Seq: 2}}, def.received)
		assert.Equal(t, []any{ping{Seq: 1}}, orders.received)
		assert.Empty(t, billing.received)
	})

	t.Run("incomparable tokens are rejected", func(t *testing.T) {
		m := NewMessenger()
		r := newRecipient("r")
		token := WithToken[any]([]int{1})

		var err error
		assert.NotPanics(t, func() {
			err = Register(m, r, record[ping], token)
		})
		assert.ErrorIs(t, err, contracts.ErrInvalidRegistration)
		assert.ErrorIs(t, err, contracts.ErrInvalidToken)
		var regErr *contracts.RegistrationError
		require.ErrorAs(t, err, &regErr)
		assert.Equal(t, []int{1}, regErr.Token)

		assert.NotPanics(t, func() {
			_, err = Send(ctx, m, ping{Seq: 1}, token)
		})
		assert.ErrorIs(t, err, contracts.ErrInvalidToken)

		assert.NotPanics(t, func() {
			assert.False(t, IsRegistered[ping](m, r, token))
			Unregister[ping](m, r, token)
			UnregisterToken[testRecipient, any](m, r, map[string]int{})
		})
		assert.Equal(t, Stats{}, m.Stats())
		assert.Empty(t, r.received)
	})

	t.Run("tokens of different types are different channels", func(t *testing.T) {
		m := NewMessenger()
		r := newRecipient("r")

		require.NoError(t, Register(m, r, record[ping], WithToken(1)))

		_, err := Send(ctx, m, ping{Seq: 1}, WithToken(int64(1)))
		require.NoError(t, err)
		_, err = Send(ctx, m, ping{Seq: 2}, WithToken("1"))
		require.NoError(t, err)
		assert.Empty(t, r.received)

		_, err = Send(ctx, m, ping{Seq: 3}, WithToken(1))
		require.NoError(t, err)
		assert.Equal(t, []any{ping{Seq: 3}}, r.received)
	})
}

func TestUnregister(t *testing.T) {
	ctx := context.Background()

	t.Run("Unregister stops delivery and allows re-registration", func(t *testing.T) {
		m := NewMessenger()
		r := newRecipient("r")
		require.NoError(t, Register(m, r, record[ping]))

		Unregister[ping](m, r)
		assert.False(t, IsRegistered[ping](m, r))

		_, err := Send(ctx, m, ping{Seq: 1})
		require.NoError(t, err)
		assert.Empty(t, r.received)

		require.NoError(t, Register(m, r, record[ping]))
		_, err = Send(ctx, m, ping{Seq: 2})
		require.NoError(t, err)
		assert.Equal(t, []any{ping{Seq: 2}}, r.received)
	})

	t.Run("Unregister only affects the selected type and channel", func(t *testing.T) {
		m := NewMessenger()
		r := newRecipient("r")
		require.NoError(t, Register(m, r, record[ping]))
		require.NoError(t, Register(m, r, record[ping], WithToken("a")))
		require.NoError(t, Register(m, r, record[pong]))

		Unregister[ping](m, r, WithToken("a"))

		assert.True(t, IsRegistered[ping](m, r))
		assert.False(t, IsRegistered[ping](m, r, WithToken("a")))
		assert.True(t, IsRegistered[pong](m, r))
	})

	t.Run("Unregister without registration is a no-op", func(t *testing.T) {
		m := NewMessenger()
		r := newRecipient("r")

		assert.NotPanics(t, func() {
			Unregister[ping](m, r)
			Unregister[ping](m, (*testRecipient)(nil))
		})
	})

	t.Run("UnregisterToken removes every type on the channel", func(t *testing.T) {
		m := NewMessenger()
		r := newRecipient("r")
		require.NoError(t, Register(m, r, record[ping], WithToken("a")))
		require.NoError(t, Register(m, r, record[pong], WithToken("a")))
		require.NoError(t, Register(m, r, record[ping]))

		UnregisterToken(m, r, "a")

		assert.False(t, IsRegistered[ping](m, r, WithToken("a")))
		assert.False(t, IsRegistered[pong](m, r, WithToken("a")))
		assert.True(t, IsRegistered[ping](m, r))
		assert.Equal(t, 1, m.Stats().Registrations)
	})

	t.Run("UnregisterAll on a recipient without registrations is a no-op", func(t *testing.T) {
		m := NewMessenger()
		r, stranger := newRecipient("r"), newRecipient("stranger")
		require.NoError(t, Register(m, r, record[ping]))
		require.NoError(t, Register(m, r, record[pong], WithToken("a")))
		before := m.Stats()

		UnregisterAll(m, stranger)

		assert.Equal(t, before, m.Stats())
		assert.True(t, IsRegistered[ping](m, r))
		assert.True(t, IsRegistered[pong](m, r, WithToken("a")))

		_, err := Send(ctx, m, ping{Seq: 1})
		require.NoError(t, err)
		assert.Equal(t, []any{ping{Seq: 1}}, r.received)
		assert.Empty(t, stranger.received)
		runtime.KeepAlive(stranger)
	})

	t.Run("UnregisterAll removes every registration and is idempotent", func(t *testing.T) {
		m := NewMessenger()
		r, other := newRecipient("r"), newRecipient("other")
		require.NoError(t, Register(m, r, record[ping]))
		require.NoError(t, Register(m, r, record[pong], WithToken(7)))
		require.NoError(t, Register(m, other, record[ping]))

		UnregisterAll(m, r)
		UnregisterAll(m, r)

		assert.False(t, IsRegistered[ping](m, r))
		assert.False(t, IsRegistered[pong](m, r, WithToken(7)))
		assert.True(t, IsRegistered[ping](m, other))
		assert.Equal(t, Stats{Channels: 1, Recipients: 1, Registrations: 1}, m.Stats())
		runtime.KeepAlive(r)
		runtime.KeepAlive(other)
	})
}

func TestWeakReferences(t *testing.T) {
	ctx := context.Background()

	t.Run("reclaimed recipients are not invoked and are pruned on send", func(t *testing.T) {
		m := NewMessenger()
		calls := 0
		registerTransient(t, m, func(ctx context.Context, r *testRecipient, msg ping) error {
			calls++
			return nil
		})

		collectGarbage(t, m, 1)

		_, err := Send(ctx, m, ping{Seq: 1})
		require.NoError(t, err)

		assert.Equal(t, 0, calls)
		assert.Equal(t, Stats{}, m.Stats())
	})

	t.Run("live recipients keep receiving after others are reclaimed", func(t *testing.T) {
		m := NewMessenger()
		live := newRecipient("live")
		registerTransient(t, m, record[ping])
		require.NoError(t, Register(m, live, record[ping]))

		collectGarbage(t, m, 1)

		_, err := Send(ctx, m, ping{Seq: 1})
		require.NoError(t, err)

		assert.Equal(t, []any{ping{Seq: 1}}, live.received)
		assert.Equal(t, 1, m.Stats().Registrations)
	})
}
