// Package messaging provides the courier messenger: a weak-reference recipient registry and
// a synchronous dispatch engine with four request protocols.
//
// Recipients register typed handlers per message type and optional channel token:
//
//	m := messaging.NewMessenger(messaging.WithLogger(logger))
//
//	err := messaging.Register(m, svc, func(ctx context.Context, s *Service, msg UserCreated) error {
//		return s.onboard(ctx, msg.UserID)
//	})
//
// Producers send notifications or requests without knowing who handles them:
//   - Send: plain notification, zero or more handlers
//   - Request / SendRequest: exactly one synchronous reply
//   - RequestAsync / SendRequestAsync: exactly one reply, awaited through a future
//   - RequestAll: zero or more replies
//   - RequestAllAsync: zero or more replies, each possibly asynchronous
//
// Handlers run on the caller's goroutine, in registration order. The first handler error stops
// the dispatch and is returned to the caller unchanged.
//
// The messenger holds recipients through weak pointers: registering does not keep a recipient
// alive, and entries of reclaimed recipients are removed during dispatch or by Cleanup. Handlers
// receive their recipient as an argument and must not capture it.
package messaging
