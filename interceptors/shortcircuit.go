package interceptors

import (
	"context"
	"errors"
)

// ErrShortCircuit is returned when an interceptor stops a dispatch
var ErrShortCircuit = errors.New("dispatch short-circuited")

// ShortCircuitError stops a dispatch and carries the reason
type ShortCircuitError struct {
	Reason string
	Err    error
}

// Error implements the error interface
func (e *ShortCircuitError) Error() string {
	if e.Reason != "" {
		return "dispatch short-circuited: " + e.Reason
	}
	return ErrShortCircuit.Error()
}

// Is reports ErrShortCircuit as a match
func (e *ShortCircuitError) Is(target error) bool {
	return target == ErrShortCircuit
}

// Unwrap returns the error that caused the short-circuit, if any
func (e *ShortCircuitError) Unwrap() error {
	return e.Err
}

// IsShortCircuit reports whether err stopped a dispatch through a short-circuit
func IsShortCircuit(err error) bool {
	return errors.Is(err, ErrShortCircuit)
}

// ShortCircuitEvaluator decides whether a dispatch stops before a delivery
type ShortCircuitEvaluator interface {
	ShouldShortCircuit(ctx context.Context, d *Delivery) (bool, string, error)
}

// ShortCircuitEvaluatorFunc is a function adapter for ShortCircuitEvaluator
type ShortCircuitEvaluatorFunc func(ctx context.Context, d *Delivery) (bool, string, error)

// ShouldShortCircuit implements ShortCircuitEvaluator
func (f ShortCircuitEvaluatorFunc) ShouldShortCircuit(ctx context.Context, d *Delivery) (bool, string, error) {
	return f(ctx, d)
}

// ShortCircuitInterceptor stops the dispatch when its evaluator says so. Unlike a filter,
// it also prevents every later recipient from being invoked.
type ShortCircuitInterceptor struct {
	evaluator ShortCircuitEvaluator
}

// NewShortCircuitInterceptor creates a new short-circuit interceptor
func NewShortCircuitInterceptor(evaluator ShortCircuitEvaluator) *ShortCircuitInterceptor {
	return &ShortCircuitInterceptor{evaluator: evaluator}
}

// Intercept implements Interceptor
func (i *ShortCircuitInterceptor) Intercept(ctx context.Context, d *Delivery, next Handler) error {
	stop, reason, err := i.evaluator.ShouldShortCircuit(ctx, d)
	if err != nil {
		return err
	}
	if stop {
		return &ShortCircuitError{Reason: reason}
	}

	return next.Handle(ctx, d)
}

// Name implements Interceptor
func (i *ShortCircuitInterceptor) Name() string {
	return "ShortCircuitInterceptor"
}

// ErrorEvaluator decides whether a handler error should be reported as a short-circuit
type ErrorEvaluator interface {
	ShouldShortCircuitOnError(err error) (bool, string)
}

// ShortCircuitOnErrorInterceptor turns selected handler errors into a ShortCircuitError
type ShortCircuitOnErrorInterceptor struct {
	errorEvaluator ErrorEvaluator
}

// NewShortCircuitOnErrorInterceptor creates a new error-based short-circuit interceptor
func NewShortCircuitOnErrorInterceptor(errorEvaluator ErrorEvaluator) *ShortCircuitOnErrorInterceptor {
	return &ShortCircuitOnErrorInterceptor{errorEvaluator: errorEvaluator}
}

// Intercept implements Interceptor
func (i *ShortCircuitOnErrorInterceptor) Intercept(ctx context.Context, d *Delivery, next Handler) error {
	err := next.Handle(ctx, d)
	if err != nil {
		if stop, reason := i.errorEvaluator.ShouldShortCircuitOnError(err); stop {
			return &ShortCircuitError{Reason: reason, Err: err}
		}
	}
	return err
}

// Name implements Interceptor
func (i *ShortCircuitOnErrorInterceptor) Name() string {
	return "ShortCircuitOnErrorInterceptor"
}
