// Package interceptors wraps every handler invocation of the messenger with cross-cutting
// concerns, without changing what handlers see or return.
//
// An interceptor receives a Delivery (dispatch ID, message type, channel token, recipient and
// message) and the next handler in the chain. Built-in interceptors:
//   - LoggingInterceptor: logs deliveries and handler failures with timing information
//   - MetricsInterceptor: feeds a MetricsCollector (see monitor.SimpleMetricsCollector)
//   - TracingInterceptor: opens a span per delivery
//   - ValidationInterceptor: validates messages before the handler runs
//   - FilteringInterceptor: skips handlers whose delivery does not pass a DeliveryFilter
//   - ConditionalInterceptor: applies another interceptor only to matching deliveries
//   - RetryInterceptor: invokes a failing handler again according to a retry policy
//   - ContextEnrichmentInterceptor: shares per-delivery values through the context
//   - ShortCircuitInterceptor: stops the whole dispatch before a delivery
//
// Example usage:
//
//	chain := interceptors.NewDefaultInterceptorChainBuilder(logger).
//		WithLogging().
//		WithMetrics(collector).
//		Build()
//
//	m := messaging.NewMessenger(messaging.WithInterceptorChain(chain))
//
// Interceptors run in the order they are added, with the handler called last. Handler errors
// must be returned unchanged so that they reach the caller of the send operation as-is.
package interceptors
