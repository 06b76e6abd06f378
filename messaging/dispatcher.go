package messaging

import (
	"context"
	"fmt"

	"github.com/glimte/courier/contracts"
	"github.com/glimte/courier/interceptors"
	"github.com/google/uuid"
)

// Send delivers msg to every recipient registered for messages of type M on the channel,
// in registration order, and returns msg so that handler mutations can be inspected.
//
// Having no recipients is not an error. The first handler error stops the dispatch and is
// returned unchanged; panics propagate to the caller. An incomparable channel token fails with
// contracts.ErrInvalidToken before any handler runs.
func Send[M any](ctx context.Context, m *Messenger, msg M, opts ...ChannelOption) (M, error) {
	key, token := keyFor[M](opts)
	if !validToken(token) {
		return msg, fmt.Errorf("send %s: %w", typeName[M](), contracts.ErrInvalidToken)
	}
	return msg, m.dispatch(ctx, key, typeName[M], token, msg)
}

// dispatch runs one synchronous pass over the live entries of key
func (m *Messenger) dispatch(ctx context.Context, key channelKey, name func() string, token any, msg any) error {
	m.mu.RLock()
	entries := m.table.lookup(key)
	m.mu.RUnlock()

	if len(entries) == 0 {
		return nil
	}

	var dead []*entry
	defer func() {
		if len(dead) > 0 {
			m.prune(key, dead)
		}
	}()

	var delivery *interceptors.Delivery
	if m.chain.Len() > 0 {
		delivery = &interceptors.Delivery{
			DispatchID:  uuid.NewString(),
			MessageType: name(),
			Token:       token,
		}
	}

	for _, e := range entries {
		// Unregistered by an earlier handler of this dispatch.
		if e.removed.Load() {
			continue
		}

		recipient, alive := e.ref.target()
		if !alive {
			dead = append(dead, e)
			continue
		}

		if err := m.deliver(ctx, e, delivery, recipient, msg); err != nil {
			return err
		}
	}

	return nil
}

func (m *Messenger) deliver(ctx context.Context, e *entry, delivery *interceptors.Delivery, recipient any, msg any) error {
	if delivery == nil {
		return e.invoke(ctx, recipient, msg)
	}

	d := *delivery
	d.Recipient = recipient
	d.Message = msg

	return m.chain.Execute(ctx, &d, interceptors.HandlerFunc(func(ctx context.Context, d *interceptors.Delivery) error {
		return e.invoke(ctx, d.Recipient, d.Message)
	}))
}

// prune removes entries found dead during a dispatch
func (m *Messenger) prune(key channelKey, dead []*entry) {
	m.mu.Lock()
	for _, e := range dead {
		m.table.remove(key, e)
	}
	m.mu.Unlock()

	m.logger.Debug("pruned dead recipients", "count", len(dead))
}
