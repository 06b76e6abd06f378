package interceptors

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Delivery describes one handler invocation within a dispatch
type Delivery struct {
	// DispatchID identifies the send operation; every delivery of one send shares it
	DispatchID string

	// MessageType is the printable name of the message type
	MessageType string

	// Token is the channel token, nil for the default channel
	Token any

	// Recipient is the live recipient the handler is invoked for
	Recipient any

	// Message is the message being delivered
	Message any
}

// RecipientType returns the printable type of the recipient
func (d *Delivery) RecipientType() string {
	return fmt.Sprintf("%T", d.Recipient)
}

// Handler represents a handler invocation in the interceptor chain
type Handler interface {
	Handle(ctx context.Context, d *Delivery) error
}

// HandlerFunc is a function adapter for Handler
type HandlerFunc func(ctx context.Context, d *Delivery) error

// Handle implements Handler
func (f HandlerFunc) Handle(ctx context.Context, d *Delivery) error {
	return f(ctx, d)
}

// Interceptor wraps handler invocations
type Interceptor interface {
	// Intercept processes a delivery and calls the next handler in the chain
	Intercept(ctx context.Context, d *Delivery, next Handler) error

	// Name returns the interceptor name for logging and debugging
	Name() string
}

// InterceptorFunc is a function adapter for Interceptor
type InterceptorFunc struct {
	name string
	fn   func(ctx context.Context, d *Delivery, next Handler) error
}

// NewInterceptorFunc creates a new function-based interceptor
func NewInterceptorFunc(name string, fn func(ctx context.Context, d *Delivery, next Handler) error) *InterceptorFunc {
	return &InterceptorFunc{name: name, fn: fn}
}

// Intercept implements Interceptor
func (i *InterceptorFunc) Intercept(ctx context.Context, d *Delivery, next Handler) error {
	return i.fn(ctx, d, next)
}

// Name implements Interceptor
func (i *InterceptorFunc) Name() string {
	return i.name
}

// InterceptorChain manages a chain of interceptors
type InterceptorChain struct {
	interceptors []Interceptor
	logger       *slog.Logger
}

// NewInterceptorChain creates a new interceptor chain
func NewInterceptorChain(logger *slog.Logger) *InterceptorChain {
	if logger == nil {
		logger = slog.Default()
	}

	return &InterceptorChain{
		interceptors: make([]Interceptor, 0),
		logger:       logger,
	}
}

// Add adds an interceptor to the chain
func (c *InterceptorChain) Add(interceptor Interceptor) *InterceptorChain {
	c.interceptors = append(c.interceptors, interceptor)
	c.logger.Debug("added interceptor", "interceptor", interceptor.Name(), "position", len(c.interceptors))
	return c
}

// Len returns the number of interceptors in the chain
func (c *InterceptorChain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.interceptors)
}

// Execute runs the delivery through the chain, calling finalHandler last.
// Interceptors run in the order they were added.
func (c *InterceptorChain) Execute(ctx context.Context, d *Delivery, finalHandler Handler) error {
	if c.Len() == 0 {
		return finalHandler.Handle(ctx, d)
	}

	// Build the chain in reverse order
	handler := finalHandler
	for i := len(c.interceptors) - 1; i >= 0; i-- {
		interceptor := c.interceptors[i]
		next := handler
		handler = HandlerFunc(func(ctx context.Context, d *Delivery) error {
			return interceptor.Intercept(ctx, d, next)
		})
	}

	return handler.Handle(ctx, d)
}

// Built-in interceptors

// LoggingInterceptor logs handler invocations
type LoggingInterceptor struct {
	logger *slog.Logger
}

// NewLoggingInterceptor creates a new logging interceptor
func NewLoggingInterceptor(logger *slog.Logger) *LoggingInterceptor {
	if logger == nil {
		logger = slog.Default()
	}

	return &LoggingInterceptor{logger: logger}
}

// Intercept implements Interceptor
func (i *LoggingInterceptor) Intercept(ctx context.Context, d *Delivery, next Handler) error {
	start := time.Now()

	i.logger.DebugContext(ctx, "delivering message",
		"dispatchId", d.DispatchID,
		"messageType", d.MessageType,
		"recipient", d.RecipientType(),
		"token", d.Token,
	)

	err := next.Handle(ctx, d)
	duration := time.Since(start)

	if err != nil {
		i.logger.ErrorContext(ctx, "handler failed",
			"dispatchId", d.DispatchID,
			"messageType", d.MessageType,
			"recipient", d.RecipientType(),
			"duration", duration,
			"error", err,
		)
	} else {
		i.logger.DebugContext(ctx, "message delivered",
			"dispatchId", d.DispatchID,
			"messageType", d.MessageType,
			"recipient", d.RecipientType(),
			"duration", duration,
		)
	}

	return err
}

// Name implements Interceptor
func (i *LoggingInterceptor) Name() string {
	return "LoggingInterceptor"
}

// MetricsInterceptor collects metrics about handler invocations
type MetricsInterceptor struct {
	collector MetricsCollector
}

// MetricsCollector defines the interface for collecting metrics
type MetricsCollector interface {
	IncrementMessageCount(messageType string)
	RecordProcessingTime(messageType string, duration time.Duration)
	IncrementErrorCount(messageType string, errorType string)
}

// NewMetricsInterceptor creates a new metrics interceptor
func NewMetricsInterceptor(collector MetricsCollector) *MetricsInterceptor {
	return &MetricsInterceptor{collector: collector}
}

// Intercept implements Interceptor
func (i *MetricsInterceptor) Intercept(ctx context.Context, d *Delivery, next Handler) error {
	start := time.Now()

	i.collector.IncrementMessageCount(d.MessageType)

	err := next.Handle(ctx, d)

	i.collector.RecordProcessingTime(d.MessageType, time.Since(start))

	if err != nil {
		i.collector.IncrementErrorCount(d.MessageType, fmt.Sprintf("%T", err))
	}

	return err
}

// Name implements Interceptor
func (i *MetricsInterceptor) Name() string {
	return "MetricsInterceptor"
}

// TracingInterceptor opens a span around each handler invocation
type TracingInterceptor struct {
	tracer Tracer
}

// Tracer defines the interface for tracing
type Tracer interface {
	StartSpan(ctx context.Context, operationName string, d *Delivery) (context.Context, Span)
}

// Span represents a tracing span
type Span interface {
	SetTag(key string, value any)
	SetError(err error)
	Finish()
}

// NewTracingInterceptor creates a new tracing interceptor
func NewTracingInterceptor(tracer Tracer) *TracingInterceptor {
	return &TracingInterceptor{tracer: tracer}
}

// Intercept implements Interceptor
func (i *TracingInterceptor) Intercept(ctx context.Context, d *Delivery, next Handler) error {
	spanCtx, span := i.tracer.StartSpan(ctx, "message.deliver", d)
	defer span.Finish()

	span.SetTag("dispatch.id", d.DispatchID)
	span.SetTag("message.type", d.MessageType)
	span.SetTag("recipient.type", d.RecipientType())

	err := next.Handle(spanCtx, d)
	if err != nil {
		span.SetError(err)
	}

	return err
}

// Name implements Interceptor
func (i *TracingInterceptor) Name() string {
	return "TracingInterceptor"
}

// ValidationInterceptor validates messages before they reach a handler
type ValidationInterceptor struct {
	validator MessageValidator
}

// MessageValidator defines the interface for message validation
type MessageValidator interface {
	Validate(ctx context.Context, msg any) error
}

// MessageValidatorFunc is a function adapter for MessageValidator
type MessageValidatorFunc func(ctx context.Context, msg any) error

// Validate implements MessageValidator
func (f MessageValidatorFunc) Validate(ctx context.Context, msg any) error {
	return f(ctx, msg)
}

// NewValidationInterceptor creates a new validation interceptor
func NewValidationInterceptor(validator MessageValidator) *ValidationInterceptor {
	return &ValidationInterceptor{validator: validator}
}

// Intercept implements Interceptor
func (i *ValidationInterceptor) Intercept(ctx context.Context, d *Delivery, next Handler) error {
	if err := i.validator.Validate(ctx, d.Message); err != nil {
		return fmt.Errorf("message validation failed: %w", err)
	}

	return next.Handle(ctx, d)
}

// Name implements Interceptor
func (i *ValidationInterceptor) Name() string {
	return "ValidationInterceptor"
}

// DefaultInterceptorChainBuilder builds a common interceptor chain
type DefaultInterceptorChainBuilder struct {
	chain  *InterceptorChain
	logger *slog.Logger
}

// NewDefaultInterceptorChainBuilder creates a new builder
func NewDefaultInterceptorChainBuilder(logger *slog.Logger) *DefaultInterceptorChainBuilder {
	if logger == nil {
		logger = slog.Default()
	}

	return &DefaultInterceptorChainBuilder{
		chain:  NewInterceptorChain(logger),
		logger: logger,
	}
}

// WithLogging adds logging interceptor
func (b *DefaultInterceptorChainBuilder) WithLogging() *DefaultInterceptorChainBuilder {
	b.chain.Add(NewLoggingInterceptor(b.logger))
	return b
}

// WithMetrics adds metrics interceptor
func (b *DefaultInterceptorChainBuilder) WithMetrics(collector MetricsCollector) *DefaultInterceptorChainBuilder {
	b.chain.Add(NewMetricsInterceptor(collector))
	return b
}

// WithTracing adds tracing interceptor
func (b *DefaultInterceptorChainBuilder) WithTracing(tracer Tracer) *DefaultInterceptorChainBuilder {
	b.chain.Add(NewTracingInterceptor(tracer))
	return b
}

// WithValidation adds validation interceptor
func (b *DefaultInterceptorChainBuilder) WithValidation(validator MessageValidator) *DefaultInterceptorChainBuilder {
	b.chain.Add(NewValidationInterceptor(validator))
	return b
}

// WithFilter adds a filtering interceptor
func (b *DefaultInterceptorChainBuilder) WithFilter(filter DeliveryFilter, behavior SkipBehavior) *DefaultInterceptorChainBuilder {
	b.chain.Add(NewFilteringInterceptor(filter, behavior, b.logger))
	return b
}

// WithCustom adds a custom interceptor
func (b *DefaultInterceptorChainBuilder) WithCustom(interceptor Interceptor) *DefaultInterceptorChainBuilder {
	b.chain.Add(interceptor)
	return b
}

// Build returns the built interceptor chain
func (b *DefaultInterceptorChainBuilder) Build() *InterceptorChain {
	return b.chain
}
