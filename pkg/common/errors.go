package common

import (
	"errors"
	"fmt"
)

// ErrorKind classifies errors by how the server reacts to them.
type ErrorKind int

const (
	// KindUnknown is returned for errors that carry no classification.
	KindUnknown ErrorKind = iota
	// KindTransport is a connection-level I/O failure. Fatal to that connection only.
	KindTransport
	// KindHandler is a failure signalled or thrown by a middleware. Recoverable.
	KindHandler
	// KindContinuation is a malformed continuation signal (a failure carrying no error).
	KindContinuation
	// KindFraming is a framing violation such as an oversized partial message.
	KindFraming
	// KindUnauthorized is a peer rejected by client verification.
	KindUnauthorized
	// KindTimeout is an idle or absolute connection timeout.
	KindTimeout
)

// String returns the string representation of ErrorKind.
func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindHandler:
		return "handler"
	case KindContinuation:
		return "continuation"
	case KindFraming:
		return "framing"
	case KindUnauthorized:
		return "unauthorized"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions.
var (
	ErrNoConnection        = errors.New("no connection")
	ErrConnectionClosed    = errors.New("connection closed")
	ErrNoEncoder           = errors.New("no encoder attached to response")
	ErrBufferOverflow      = errors.New("partial message exceeds maximum size")
	ErrIdleTimeout         = errors.New("idle timeout")
	ErrMaxLifetime         = errors.New("maximum connection lifetime reached")
	ErrUnauthorized        = errors.New("client not authorized")
	ErrInvalidContinuation = errors.New("failure signalled without an error value")
	ErrServerClosed        = errors.New("sline: server closed")
)

// Error wraps an error with its classification and the operation that produced it.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified error. It returns nil if err is nil.
func NewError(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the classification of err.
// Unclassified errors report KindUnknown; recovered panics report KindHandler.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var rec *RecoveryError
	if errors.As(err, &rec) {
		return KindHandler
	}
	switch {
	case errors.Is(err, ErrBufferOverflow):
		return KindFraming
	case errors.Is(err, ErrIdleTimeout), errors.Is(err, ErrMaxLifetime):
		return KindTimeout
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrInvalidContinuation):
		return KindContinuation
	}
	return KindUnknown
}
