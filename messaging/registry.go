package messaging

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync/atomic"
	"weak"

	"github.com/glimte/courier/contracts"
)

// Handler handles messages of type M on behalf of recipient.
// The recipient is passed in so that the handler does not need to capture it; a handler
// closure that references its recipient keeps that recipient alive.
type Handler[T any, M any] func(ctx context.Context, recipient *T, msg M) error

// Recipient is implemented by types that receive messages of type M themselves
type Recipient[M any] interface {
	Receive(ctx context.Context, msg M) error
}

// typeKey is a reflection-free type tag: typeKey[A]{} and typeKey[B]{} are unequal map keys
type typeKey[M any] struct{}

// channelKey identifies the entries for one message type on one channel
type channelKey struct {
	messageType any
	token       any
}

// recipientRef is a weak or strong reference to a recipient
type recipientRef struct {
	// key identifies the recipient and stays comparable after the recipient is reclaimed
	key any
	// target returns the live recipient, or false once it has been reclaimed
	target func() (any, bool)
	name   string
}

func refOf[T any](m *Messenger, recipient *T) recipientRef {
	name := fmt.Sprintf("%T", recipient)
	if m.strong {
		return recipientRef{
			key:    recipient,
			target: func() (any, bool) { return recipient, true },
			name:   name,
		}
	}

	wp := weak.Make(recipient)
	return recipientRef{
		key: wp,
		target: func() (any, bool) {
			p := wp.Value()
			if p == nil {
				return nil, false
			}
			return p, true
		},
		name: name,
	}
}

// keyOf returns the identity of recipient without building a full reference
func keyOf[T any](m *Messenger, recipient *T) any {
	if m.strong {
		return recipient
	}
	return weak.Make(recipient)
}

// entry is one registration
type entry struct {
	ref     recipientRef
	invoke  func(ctx context.Context, recipient any, msg any) error
	removed atomic.Bool
}

// channel holds the entries of one channelKey. entries is copy-on-write: it is replaced,
// never modified, so dispatch can iterate a snapshot without holding the lock.
type channel struct {
	entries []*entry
	index   map[any]*entry
}

// table is the weak recipient table. It is guarded by Messenger.mu.
type table struct {
	channels   map[channelKey]*channel
	recipients map[any]map[channelKey]struct{}
}

func newTable() *table {
	return &table{
		channels:   make(map[channelKey]*channel),
		recipients: make(map[any]map[channelKey]struct{}),
	}
}

func (t *table) lookup(key channelKey) []*entry {
	ch, ok := t.channels[key]
	if !ok {
		return nil
	}
	return ch.entries
}

func (t *table) contains(key channelKey, recipient any) bool {
	ch, ok := t.channels[key]
	if !ok {
		return false
	}
	_, ok = ch.index[recipient]
	return ok
}

func (t *table) add(key channelKey, e *entry) bool {
	ch, ok := t.channels[key]
	if !ok {
		ch = &channel{index: make(map[any]*entry)}
		t.channels[key] = ch
	}
	if _, exists := ch.index[e.ref.key]; exists {
		return false
	}

	ch.entries = append(slices.Clip(ch.entries), e)
	ch.index[e.ref.key] = e

	keys, ok := t.recipients[e.ref.key]
	if !ok {
		keys = make(map[channelKey]struct{})
		t.recipients[e.ref.key] = keys
	}
	keys[key] = struct{}{}
	return true
}

// remove deletes e from the channel it was registered on. Removing an entry twice is a no-op.
func (t *table) remove(key channelKey, e *entry) {
	if e.removed.Swap(true) {
		return
	}

	if ch, ok := t.channels[key]; ok {
		ch.entries = slices.DeleteFunc(slices.Clone(ch.entries), func(x *entry) bool { return x == e })
		delete(ch.index, e.ref.key)
		if len(ch.entries) == 0 {
			delete(t.channels, key)
		}
	}

	if keys, ok := t.recipients[e.ref.key]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(t.recipients, e.ref.key)
		}
	}
}

// removeRecipient deletes the recipient's entries on every channel accepted by match
func (t *table) removeRecipient(recipient any, match func(channelKey) bool) int {
	removed := 0
	for key := range t.recipients[recipient] {
		if !match(key) {
			continue
		}
		if ch, ok := t.channels[key]; ok {
			if e, ok := ch.index[recipient]; ok {
				t.remove(key, e)
				removed++
			}
		}
	}
	return removed
}

// ChannelOption selects the channel a registration or send applies to
type ChannelOption func(*channelOptions)

type channelOptions struct {
	token any
}

// WithToken selects the channel identified by token. Without it the default channel is used.
// The dynamic value of token must be comparable: registering or sending with an interface
// token holding a slice, map or func fails with contracts.ErrInvalidToken.
func WithToken[K comparable](token K) ChannelOption {
	return func(o *channelOptions) {
		o.token = token
	}
}

func resolveChannel(opts []ChannelOption) channelOptions {
	var o channelOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// validToken reports whether token can be used as part of a map key
func validToken(token any) bool {
	return token == nil || reflect.ValueOf(token).Comparable()
}

func keyFor[M any](opts []ChannelOption) (channelKey, any) {
	o := resolveChannel(opts)
	return channelKey{messageType: typeKey[M]{}, token: o.token}, o.token
}

// typeName returns the printable name of M used in logs, metrics and errors
func typeName[M any]() string {
	return reflect.TypeFor[M]().String()
}

// Register registers handler to receive messages of type M on behalf of recipient.
//
// The messenger does not keep recipient alive unless it was created WithStrongReferences.
// Registering the same recipient twice for the same message type and channel fails with
// contracts.ErrDuplicateRegistration.
//
// Example:
//
//	err := messaging.Register(m, cache, func(ctx context.Context, c *Cache, msg UserChanged) error {
//		c.Invalidate(msg.UserID)
//		return nil
//	})
func Register[T any, M any](m *Messenger, recipient *T, handler Handler[T, M], opts ...ChannelOption) error {
	key, token := keyFor[M](opts)

	if recipient == nil || handler == nil {
		return &contracts.RegistrationError{
			Op:          "register",
			MessageType: typeName[M](),
			Recipient:   fmt.Sprintf("%T", recipient),
			Token:       token,
			Err:         contracts.ErrInvalidRegistration,
		}
	}
	// All zero-sized values share one address, so they cannot be told apart or reclaimed.
	if reflect.TypeFor[T]().Size() == 0 {
		return &contracts.RegistrationError{
			Op:          "register",
			MessageType: typeName[M](),
			Recipient:   fmt.Sprintf("%T", recipient),
			Token:       token,
			Err:         fmt.Errorf("%w: zero-sized recipient type", contracts.ErrInvalidRegistration),
		}
	}
	if !validToken(token) {
		return &contracts.RegistrationError{
			Op:          "register",
			MessageType: typeName[M](),
			Recipient:   fmt.Sprintf("%T", recipient),
			Token:       token,
			Err:         fmt.Errorf("%w: %w", contracts.ErrInvalidRegistration, contracts.ErrInvalidToken),
		}
	}

	e := &entry{
		ref: refOf(m, recipient),
		invoke: func(ctx context.Context, recipient any, msg any) error {
			return handler(ctx, recipient.(*T), msg.(M))
		},
	}

	m.mu.Lock()
	added := m.table.add(key, e)
	m.mu.Unlock()

	if !added {
		return &contracts.RegistrationError{
			Op:          "register",
			MessageType: typeName[M](),
			Recipient:   e.ref.name,
			Token:       token,
			Err:         contracts.ErrDuplicateRegistration,
		}
	}

	m.logger.Debug("registered recipient",
		"messageType", typeName[M](),
		"recipient", e.ref.name,
		"token", token,
	)
	return nil
}

// RegisterRecipient registers recipient to receive messages of type M through its Receive method.
//
//	err := messaging.RegisterRecipient[UserChanged](m, cache)
func RegisterRecipient[M any, T any, PT interface {
	*T
	Recipient[M]
}](m *Messenger, recipient PT, opts ...ChannelOption) error {
	var handler Handler[T, M]
	if recipient != nil {
		handler = func(ctx context.Context, r *T, msg M) error {
			return PT(r).Receive(ctx, msg)
		}
	}
	return Register(m, (*T)(recipient), handler, opts...)
}

// IsRegistered reports whether recipient is registered for messages of type M on the channel
func IsRegistered[M any, T any](m *Messenger, recipient *T, opts ...ChannelOption) bool {
	if recipient == nil {
		return false
	}
	key, token := keyFor[M](opts)
	if !validToken(token) {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.table.contains(key, keyOf(m, recipient))
}

// Unregister removes the registration of recipient for messages of type M on the channel.
// It is a no-op if there is none.
func Unregister[M any, T any](m *Messenger, recipient *T, opts ...ChannelOption) {
	if recipient == nil {
		return
	}
	key, token := keyFor[M](opts)
	if !validToken(token) {
		return
	}
	rk := keyOf(m, recipient)

	m.mu.Lock()
	removed := m.table.removeRecipient(rk, func(k channelKey) bool { return k == key })
	m.mu.Unlock()

	if removed > 0 {
		m.logger.Debug("unregistered recipient",
			"messageType", typeName[M](),
			"recipient", fmt.Sprintf("%T", recipient),
			"token", token,
		)
	}
}

// UnregisterToken removes every registration of recipient on the channel identified by token,
// whatever the message type
func UnregisterToken[T any, K comparable](m *Messenger, recipient *T, token K) {
	if recipient == nil || !validToken(token) {
		return
	}
	rk := keyOf(m, recipient)

	m.mu.Lock()
	removed := m.table.removeRecipient(rk, func(k channelKey) bool { return k.token == any(token) })
	m.mu.Unlock()

	if removed > 0 {
		m.logger.Debug("unregistered recipient from channel",
			"recipient", fmt.Sprintf("%T", recipient),
			"token", token,
			"count", removed,
		)
	}
}

// UnregisterAll removes every registration of recipient. It is idempotent.
func UnregisterAll[T any](m *Messenger, recipient *T) {
	if recipient == nil {
		return
	}
	rk := keyOf(m, recipient)

	m.mu.Lock()
	removed := m.table.removeRecipient(rk, func(channelKey) bool { return true })
	m.mu.Unlock()

	if removed > 0 {
		m.logger.Debug("unregistered recipient from all channels",
			"recipient", fmt.Sprintf("%T", recipient),
			"count", removed,
		)
	}
}
