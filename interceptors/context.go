package interceptors

import (
	"context"
	"maps"
	"sync"
)

type contextKey string

// InterceptorContextKey is the context key of the InterceptorContext
const InterceptorContextKey contextKey = "courier:interceptor:context"

// InterceptorContext holds values shared by the interceptors and handler of one delivery
type InterceptorContext struct {
	values map[string]any
	mu     sync.RWMutex
}

// NewInterceptorContext creates a new interceptor context
func NewInterceptorContext() *InterceptorContext {
	return &InterceptorContext{
		values: make(map[string]any),
	}
}

// Set stores a value
func (ic *InterceptorContext) Set(key string, value any) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.values[key] = value
}

// Get retrieves a value
func (ic *InterceptorContext) Get(key string) (any, bool) {
	ic.mu.RLock()
	defer ic.mu.RUnlock()
	value, exists := ic.values[key]
	return value, exists
}

// GetString retrieves a string value
func (ic *InterceptorContext) GetString(key string) (string, bool) {
	value, exists := ic.Get(key)
	if !exists {
		return "", false
	}
	str, ok := value.(string)
	return str, ok
}

// Delete removes a value
func (ic *InterceptorContext) Delete(key string) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	delete(ic.values, key)
}

// Copy returns an independent copy
func (ic *InterceptorContext) Copy() *InterceptorContext {
	ic.mu.RLock()
	defer ic.mu.RUnlock()
	return &InterceptorContext{values: maps.Clone(ic.values)}
}

// GetInterceptorContext retrieves the interceptor context from ctx
func GetInterceptorContext(ctx context.Context) (*InterceptorContext, bool) {
	ic, ok := ctx.Value(InterceptorContextKey).(*InterceptorContext)
	return ic, ok
}

// WithInterceptorContext returns a copy of ctx carrying ic
func WithInterceptorContext(ctx context.Context, ic *InterceptorContext) context.Context {
	return context.WithValue(ctx, InterceptorContextKey, ic)
}

// EnsureInterceptorContext returns ctx with an interceptor context, creating one if needed
func EnsureInterceptorContext(ctx context.Context) (context.Context, *InterceptorContext) {
	ic, exists := GetInterceptorContext(ctx)
	if !exists {
		ic = NewInterceptorContext()
		ctx = WithInterceptorContext(ctx, ic)
	}
	return ctx, ic
}

// ContextEnricher adds delivery metadata to an interceptor context
type ContextEnricher interface {
	Enrich(ctx context.Context, ic *InterceptorContext, d *Delivery) error
}

// ContextEnricherFunc is a function adapter for ContextEnricher
type ContextEnricherFunc func(ctx context.Context, ic *InterceptorContext, d *Delivery) error

// Enrich implements ContextEnricher
func (f ContextEnricherFunc) Enrich(ctx context.Context, ic *InterceptorContext, d *Delivery) error {
	return f(ctx, ic, d)
}

// DeliveryMetadataEnricher records the dispatch id, message type and recipient type
var DeliveryMetadataEnricher = ContextEnricherFunc(func(ctx context.Context, ic *InterceptorContext, d *Delivery) error {
	ic.Set("dispatchId", d.DispatchID)
	ic.Set("messageType", d.MessageType)
	ic.Set("recipientType", d.RecipientType())
	return nil
})

// ContextEnrichmentInterceptor makes an enriched InterceptorContext available to handlers
type ContextEnrichmentInterceptor struct {
	enricher ContextEnricher
}

// NewContextEnrichmentInterceptor creates a new context enrichment interceptor
func NewContextEnrichmentInterceptor(enricher ContextEnricher) *ContextEnrichmentInterceptor {
	return &ContextEnrichmentInterceptor{enricher: enricher}
}

// Intercept implements Interceptor
func (i *ContextEnrichmentInterceptor) Intercept(ctx context.Context, d *Delivery, next Handler) error {
	ctx, ic := EnsureInterceptorContext(ctx)

	if err := i.enricher.Enrich(ctx, ic, d); err != nil {
		return err
	}

	return next.Handle(ctx, d)
}

// Name implements Interceptor
func (i *ContextEnrichmentInterceptor) Name() string {
	return "ContextEnrichmentInterceptor"
}
