package contracts

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest is the kind shared by every request protocol violation
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNoReply is returned when a single-response request completes dispatch without a reply
	ErrNoReply = fmt.Errorf("%w: no reply received", ErrInvalidRequest)

	// ErrMultipleReplies is returned when a single-response request is replied to twice
	ErrMultipleReplies = fmt.Errorf("%w: multiple replies", ErrInvalidRequest)

	// ErrNilReply is returned when a nil future or function is used as a reply
	ErrNilReply = fmt.Errorf("%w: nil reply", ErrInvalidRequest)

	// ErrDuplicateRegistration is returned when a recipient is already registered
	// for the same message type and channel
	ErrDuplicateRegistration = errors.New("recipient already registered")

	// ErrInvalidRegistration is returned for nil recipients or handlers
	ErrInvalidRegistration = errors.New("invalid registration")

	// ErrInvalidToken is returned for channel tokens whose value cannot be compared,
	// such as a slice passed as WithToken[any]
	ErrInvalidToken = errors.New("invalid channel token")
)

// RequestError reports a request protocol violation for a message type
type RequestError struct {
	Op          string
	MessageType string
	Err         error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.MessageType, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// RegistrationError reports a failed registration
type RegistrationError struct {
	Op          string
	MessageType string
	Recipient   string
	Token       any
	Err         error
}

func (e *RegistrationError) Error() string {
	if e.Token != nil {
		return fmt.Sprintf("%s %s for %s on channel %v: %v", e.Op, e.MessageType, e.Recipient, e.Token, e.Err)
	}
	return fmt.Sprintf("%s %s for %s: %v", e.Op, e.MessageType, e.Recipient, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// IsInvalidRequest reports whether err is a request protocol violation
func IsInvalidRequest(err error) bool {
	return errors.Is(err, ErrInvalidRequest)
}
