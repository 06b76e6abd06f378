package interceptors

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/glimte/courier/contracts"
	"github.com/glimte/courier/internal/reliability"
)

// RetryInterceptor invokes a failing handler again according to a retry policy.
// Request protocol violations are never retried, and neither is a failed attempt that
// replied to its request message: the reply stays on the message, so a second invocation
// would reply again.
type RetryInterceptor struct {
	retryPolicy reliability.RetryPolicy
	logger      *slog.Logger
}

// NewRetryInterceptor creates a new retry interceptor. maxRetries is the number of
// invocations after the first one; delay is waited between them.
func NewRetryInterceptor(maxRetries int, delay time.Duration) *RetryInterceptor {
	return NewRetryInterceptorWithPolicy(reliability.NewFixedDelay(delay, maxRetries))
}

// NewRetryInterceptorWithPolicy creates a retry interceptor using policy
func NewRetryInterceptorWithPolicy(policy reliability.RetryPolicy) *RetryInterceptor {
	return &RetryInterceptor{
		retryPolicy: policy,
		logger:      slog.Default(),
	}
}

// WithLogger sets the logger for the retry interceptor
func (r *RetryInterceptor) WithLogger(logger *slog.Logger) *RetryInterceptor {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Intercept implements Interceptor
func (r *RetryInterceptor) Intercept(ctx context.Context, d *Delivery, next Handler) error {
	attempt := 0
	var last error
	err := reliability.Retry(ctx, r.retryPolicy, func() error {
		attempt++
		replies := contracts.ReplyCount(d.Message)
		err := next.Handle(ctx, d)
		last = err
		if err == nil {
			return nil
		}
		if contracts.IsInvalidRequest(err) || contracts.ReplyCount(d.Message) != replies {
			return reliability.Permanent(err)
		}

		r.logger.WarnContext(ctx, "handler failed",
			"dispatchId", d.DispatchID,
			"messageType", d.MessageType,
			"recipient", d.RecipientType(),
			"attempt", attempt,
			"error", err,
		)
		return err
	})

	// Return the handler error itself, not the permanent marker.
	if err != nil && last != nil && errors.Is(err, last) {
		return last
	}
	return err
}

// Name implements Interceptor
func (r *RetryInterceptor) Name() string {
	return "RetryInterceptor"
}
