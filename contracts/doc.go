// Package contracts provides the request message types and error taxonomy of the courier messenger.
//
// Plain notifications are ordinary Go values and need nothing from this package. Request
// messages embed one of four bases, which carry the response state inspected by the
// messaging package once dispatch completes:
//   - RequestMessage: exactly one synchronous reply
//   - AsyncRequestMessage: exactly one reply, possibly completing asynchronously
//   - CollectionRequestMessage: zero or more replies from any number of handlers
//   - AsyncCollectionRequestMessage: zero or more replies, each possibly asynchronous
//
// Example:
//
//	type UserCountRequest struct {
//		contracts.RequestMessage[int]
//	}
//
//	messaging.Register(m, store, func(ctx context.Context, s *Store, req *UserCountRequest) error {
//		return req.Reply(s.Count())
//	})
//
//	n, err := messaging.Request[UserCountRequest, int](ctx, m)
//
// Protocol violations wrap ErrInvalidRequest: ErrNoReply when nothing replied and
// ErrMultipleReplies when a single-response request was replied to twice.
package contracts
