package localsocket

import (
	"fmt"

	"github.com/pkg/errors"
)

// Errors returned by channel operations.
var (
	// ErrPeerClosed is matched by both framing errors: the peer went away
	// before a complete frame arrived.
	ErrPeerClosed = errors.New("peer closed connection")
	// ErrEmptyMessage is returned when the stream ends before any byte of a frame is read.
	ErrEmptyMessage = errors.WithMessage(ErrPeerClosed, "incoming message was empty")
	// ErrTruncatedMessage is matched by *TruncatedError.
	ErrTruncatedMessage = errors.WithMessage(ErrPeerClosed, "incoming message was truncated")
	// ErrMessageTooLarge is returned when a frame exceeds the configured maximum size.
	ErrMessageTooLarge = errors.New("message too large")
	// ErrConnectionClosed is returned when operating on a closed channel.
	ErrConnectionClosed = errors.New("connection closed")
)

// EncodingError reports a message value that could not be represented as JSON.
// It is a caller bug and retrying will not help.
type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("could not convert outgoing message to json: %v", e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// DecodingError reports a frame that was not valid JSON or did not match
// the expected shape. Raw is the offending line without its terminator.
type DecodingError struct {
	Raw string
	Err error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("incoming message '%s' was not valid JSON: %v", e.Raw, e.Err)
}

func (e *DecodingError) Unwrap() error { return e.Err }

// TruncatedError is returned when the peer closed the stream mid-frame.
type TruncatedError struct {
	Partial string
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("incoming message was truncated after %d bytes", len(e.Partial))
}

// Is reports whether target is ErrTruncatedMessage or ErrPeerClosed.
func (e *TruncatedError) Is(target error) bool {
	return target == ErrTruncatedMessage || target == ErrPeerClosed
}

// ReadError wraps a failed read on the underlying connection.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("could not read incoming message: %v", e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// WriteError wraps a failed write. Attempted holds the encoded payload
// without its terminator.
type WriteError struct {
	Attempted string
	Err       error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("could not write outgoing message '%s' to socket: %v", e.Attempted, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
