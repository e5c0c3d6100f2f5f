package actor

import (
	"errors"
	"fmt"
)

var (
	// ErrMailboxClosed is returned when a message is enqueued on an actor
	// that has already stopped.
	ErrMailboxClosed = errors.New("mailbox closed")

	// ErrAskTimeout is returned when the caller's context expires before
	// a reply arrives. The message may still be processed later.
	ErrAskTimeout = errors.New("ask timed out")
)

// TransportError reports that the ask protocol could not deliver a message
// or receive a reply: the mailbox was closed, the actor stopped, or the
// caller's context expired. It never carries a handler-reported failure.
type TransportError struct {
	ActorID string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("actor %s: transport: %v", e.ActorID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HandlerError wraps an error returned (or panicked) by an actor's own
// message handler. The message was delivered and processed; the business
// logic reported failure.
type HandlerError struct {
	ActorID string
	MsgType string
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("actor %s: handler %s: %v", e.ActorID, e.MsgType, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// IsTransportError reports whether err originated in message delivery
// rather than in a handler.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsHandlerError reports whether err was reported by a message handler.
func IsHandlerError(err error) bool {
	var he *HandlerError
	return errors.As(err, &he)
}
