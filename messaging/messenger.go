package messaging

import (
	"log/slog"
	"sync"

	"github.com/glimte/courier/interceptors"
	"github.com/google/uuid"
)

// Messenger delivers messages between recipients that hold no references to each other.
//
// Recipients are registered per message type and channel token. By default the messenger keeps
// only weak references to recipients, so registering never keeps a recipient alive; entries
// whose recipient has been reclaimed are pruned lazily during dispatch or by Cleanup.
//
// Messenger is safe for concurrent use. Structural changes take an internal lock; dispatch works
// on an immutable snapshot of the matching entries and never holds the lock while a handler runs,
// so handlers may register and unregister recipients themselves.
type Messenger struct {
	id     string
	mu     sync.RWMutex
	table  *table
	logger *slog.Logger
	chain  *interceptors.InterceptorChain
	strong bool
}

// Option configures the Messenger
type Option func(*Messenger)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(m *Messenger) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithInterceptors wraps every handler invocation with the given interceptors, in order
func WithInterceptors(list ...interceptors.Interceptor) Option {
	return func(m *Messenger) {
		if m.chain == nil {
			m.chain = interceptors.NewInterceptorChain(m.logger)
		}
		for _, i := range list {
			m.chain.Add(i)
		}
	}
}

// WithInterceptorChain sets a prebuilt interceptor chain
func WithInterceptorChain(chain *interceptors.InterceptorChain) Option {
	return func(m *Messenger) {
		m.chain = chain
	}
}

// WithStrongReferences makes the messenger hold strong references to recipients.
// Recipients then stay registered, and alive, until they are unregistered.
func WithStrongReferences() Option {
	return func(m *Messenger) {
		m.strong = true
	}
}

// NewMessenger creates a new messenger
func NewMessenger(options ...Option) *Messenger {
	m := &Messenger{
		id:     uuid.NewString(),
		table:  newTable(),
		logger: slog.Default(),
	}

	for _, opt := range options {
		opt(m)
	}

	m.logger = m.logger.With("messengerId", m.id)
	return m
}

// ID returns the messenger identifier used in logs
func (m *Messenger) ID() string {
	return m.id
}

// Stats is a point-in-time view of the registry
type Stats struct {
	Channels      int `json:"channels"`
	Recipients    int `json:"recipients"`
	Registrations int `json:"registrations"`
	Dead          int `json:"dead"`
}

// Stats returns registry statistics. Dead counts entries whose recipient was reclaimed
// but which have not been pruned yet.
func (m *Messenger) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		Channels:   len(m.table.channels),
		Recipients: len(m.table.recipients),
	}
	for _, ch := range m.table.channels {
		for _, e := range ch.entries {
			stats.Registrations++
			if _, alive := e.ref.target(); !alive {
				stats.Dead++
			}
		}
	}
	return stats
}

// Cleanup removes every entry whose recipient has been reclaimed and returns how many
// were removed
func (m *Messenger) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, ch := range m.table.channels {
		for _, e := range ch.entries {
			if _, alive := e.ref.target(); !alive {
				m.table.remove(key, e)
				removed++
			}
		}
	}

	if removed > 0 {
		m.logger.Debug("pruned dead recipients", "count", removed)
	}
	return removed
}

// Reset removes every registration
func (m *Messenger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ch := range m.table.channels {
		for _, e := range ch.entries {
			e.removed.Store(true)
		}
	}
	m.table = newTable()

	m.logger.Debug("messenger reset")
}
