// Package courier is an in-process messenger that lets loosely coupled components exchange
// messages without holding references to each other.
//
// Recipients register typed handlers with a messaging.Messenger, which keeps only weak
// references to them: a recipient that is otherwise unreachable is reclaimed by the garbage
// collector and silently dropped from the registry. Besides plain messages the messenger
// supports four request protocols, built on the request bases in package contracts:
//   - messaging.Request: exactly one synchronous reply
//   - messaging.RequestAsync: exactly one reply, possibly still pending, as a future.Future
//   - messaging.RequestAll: any number of synchronous replies
//   - messaging.RequestAllAsync: any number of replies, each possibly pending
//
// New wires a messenger with logging, metrics and retry interceptors; Default returns a
// process-wide messenger.
//
//	client := courier.New(courier.WithMetrics())
//	m := client.Messenger()
//
//	err := messaging.Register(m, cache, func(ctx context.Context, c *Cache, msg UserChanged) error {
//		c.Invalidate(msg.UserID)
//		return nil
//	})
//
//	_, err = messaging.Send(ctx, m, UserChanged{UserID: 42})
package courier
