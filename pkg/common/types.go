// Package common provides shared types and utilities used across the SLine framework.
package common

import (
	"context"
	"net"
	"time"
)

// Conn is the abstract view of one client connection that middleware and handlers see.
// Implementations are owned by the server; handlers must not retain a Conn after the
// connection closes.
type Conn interface {
	// ID returns the unique identifier assigned to the connection at accept time.
	ID() string

	// RemoteAddr returns the peer address.
	RemoteAddr() net.Addr

	// Authorized reports whether the transport layer verified the peer (TLS client certificate).
	// The value is fixed at accept time.
	Authorized() bool

	// SendLine writes text followed by a single newline.
	SendLine(text string) error

	// Close closes the connection. It is safe to call multiple times.
	Close() error
}

// HandlerFunc defines the type for message middleware functions.
// It receives the request and response for one framed message and returns a Result
// describing how the pipeline should continue.
type HandlerFunc func(req *Request, res *Response) Result

// ErrorHandlerFunc defines the type for error-recovery handlers.
// It is invoked with the error that diverted the pipeline.
type ErrorHandlerFunc func(err error, req *Request, res *Response) Result

// Request is created fresh for every framed message.
// Body starts as the raw message string and may be replaced by middleware
// (for example a codec parser) or by the router when it transforms the body.
type Request struct {
	// Conn is a non-owning reference to the connection the message arrived on.
	Conn Conn

	// Body is the current message payload.
	Body any

	// ReceivedAt is the time the message was framed.
	ReceivedAt time.Time

	ctx context.Context
}

// NewRequest creates a request for a framed message on conn.
func NewRequest(ctx context.Context, conn Conn, body string) *Request {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Request{
		Conn:       conn,
		Body:       body,
		ReceivedAt: time.Now(),
		ctx:        ctx,
	}
}

// Context returns the request context. It is cancelled when the connection closes.
func (r *Request) Context() context.Context {
	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// WithContext returns a shallow copy of r with its context changed to ctx.
func (r *Request) WithContext(ctx context.Context) *Request {
	if ctx == nil {
		panic("nil context")
	}
	r2 := *r
	r2.ctx = ctx
	return &r2
}

// SetContext replaces the request context in place so handlers later in the
// pipeline observe it.
func (r *Request) SetContext(ctx context.Context) {
	if ctx == nil {
		panic("nil context")
	}
	r.ctx = ctx
}

// WithBody returns a shallow copy of r with its body replaced.
func (r *Request) WithBody(body any) *Request {
	r2 := *r
	r2.Body = body
	return &r2
}

// RateLimiter defines the interface for rate limiting algorithms.
type RateLimiter interface {
	// Allow checks if a message is allowed based on the key and rate limit config.
	// Returns true if the message is allowed, false otherwise.
	// Also returns the number of remaining messages and the approximate time until the limit resets.
	Allow(key string, limit int, window time.Duration) (allowed bool, remaining int, reset time.Duration)
}

// RateLimitConfig defines configuration for per-client message rate limiting.
type RateLimitConfig struct {
	// BucketName provides a namespace for the rate limit.
	// Limits sharing a BucketName share counters.
	BucketName string

	// Limit is the maximum number of messages allowed within the Window.
	Limit int

	// Window is the time duration for the rate limit.
	Window time.Duration

	// KeyExtractor derives the rate limit key from the request.
	// If nil, the client IP (or remote address) is used.
	KeyExtractor func(req *Request) (string, error)

	// ExceededHandler is called when the limit is exceeded.
	// If nil, the message is dropped.
	ExceededHandler HandlerFunc
}
