// Package reliability provides retry policies for handler invocations.
//
// A policy decides, per failed attempt, whether to try again and how long to wait first.
// Errors marked with Permanent are never retried.
//
//	policy := reliability.NewExponentialBackoff(10*time.Millisecond, time.Second, 2.0, 3)
//	err := reliability.Retry(ctx, policy, func() error {
//		return flakyCall()
//	})
package reliability
