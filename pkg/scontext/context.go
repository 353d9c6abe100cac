// Package scontext stores the values SLine attaches to a message's context.
// All values live in a single SLineContext so middleware never nest context values.
package scontext

import (
	"context"
	"maps"

	"github.com/Suhaibinator/SLine/pkg/common"
)

// sLineContextKey is a private type for the context key to avoid collisions
type sLineContextKey struct{}

// SLineContext holds all values that SLine adds to message contexts.
type SLineContext struct {
	ConnID   string
	TraceID  string
	ClientIP string

	// HandlerError is the error that diverted the pipeline into the error-recovery chain.
	HandlerError error

	ConnIDSet       bool
	TraceIDSet      bool
	ClientIPSet     bool
	HandlerErrorSet bool

	Flags map[string]bool
}

// NewSLineContext creates a new SLine context
func NewSLineContext() *SLineContext {
	return &SLineContext{
		Flags: make(map[string]bool),
	}
}

// GetSLineContext retrieves the SLine context from a context
func GetSLineContext(ctx context.Context) (*SLineContext, bool) {
	rc, ok := ctx.Value(sLineContextKey{}).(*SLineContext)
	return rc, ok
}

// WithSLineContext adds or replaces the SLine context in ctx
func WithSLineContext(ctx context.Context, rc *SLineContext) context.Context {
	return context.WithValue(ctx, sLineContextKey{}, rc)
}

// EnsureSLineContext retrieves or creates an SLine context
func EnsureSLineContext(ctx context.Context) (*SLineContext, context.Context) {
	rc, ok := GetSLineContext(ctx)
	if !ok {
		rc = NewSLineContext()
		ctx = WithSLineContext(ctx, rc)
	}
	return rc, ctx
}

// Copy returns a context carrying an independent copy of the SLine context in ctx.
// Use it when a value set on a derived message must not leak back.
func Copy(ctx context.Context) context.Context {
	rc, ok := GetSLineContext(ctx)
	if !ok {
		return ctx
	}
	clone := *rc
	clone.Flags = make(map[string]bool, len(rc.Flags))
	maps.Copy(clone.Flags, rc.Flags)
	return WithSLineContext(ctx, &clone)
}

// WithConnID adds the connection ID to the context
func WithConnID(ctx context.Context, id string) context.Context {
	rc, ctx := EnsureSLineContext(ctx)
	rc.ConnID = id
	rc.ConnIDSet = true
	return ctx
}

// GetConnID retrieves the connection ID from the context
func GetConnID(ctx context.Context) (string, bool) {
	rc, ok := GetSLineContext(ctx)
	if !ok || !rc.ConnIDSet {
		return "", false
	}
	return rc.ConnID, true
}

// WithTraceID adds a trace ID to the context. An existing trace ID is not overwritten.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	rc, ctx := EnsureSLineContext(ctx)
	if rc.TraceIDSet {
		return ctx
	}
	rc.TraceID = traceID
	rc.TraceIDSet = true
	return ctx
}

// GetTraceIDFromContext extracts the trace ID from the context.
// Returns an empty string if no trace ID is set.
func GetTraceIDFromContext(ctx context.Context) string {
	rc, ok := GetSLineContext(ctx)
	if !ok || !rc.TraceIDSet {
		return ""
	}
	return rc.TraceID
}

// GetTraceIDFromRequest is a convenience function to get the trace ID from a request.
func GetTraceIDFromRequest(req *common.Request) string {
	return GetTraceIDFromContext(req.Context())
}

// WithClientIP adds a client IP to the context
func WithClientIP(ctx context.Context, ip string) context.Context {
	rc, ctx := EnsureSLineContext(ctx)
	rc.ClientIP = ip
	rc.ClientIPSet = true
	return ctx
}

// GetClientIP retrieves a client IP from the context
func GetClientIP(ctx context.Context) (string, bool) {
	rc, ok := GetSLineContext(ctx)
	if !ok || !rc.ClientIPSet {
		return "", false
	}
	return rc.ClientIP, true
}

// GetClientIPFromRequest is a convenience function to get the client IP from a request
func GetClientIPFromRequest(req *common.Request) (string, bool) {
	return GetClientIP(req.Context())
}

// WithHandlerError records the error that diverted the pipeline
func WithHandlerError(ctx context.Context, err error) context.Context {
	rc, ctx := EnsureSLineContext(ctx)
	rc.HandlerError = err
	rc.HandlerErrorSet = true
	return ctx
}

// GetHandlerError retrieves the error that diverted the pipeline
func GetHandlerError(ctx context.Context) (error, bool) {
	rc, ok := GetSLineContext(ctx)
	if !ok || !rc.HandlerErrorSet {
		return nil, false
	}
	return rc.HandlerError, true
}

// WithFlag adds a flag to the context
func WithFlag(ctx context.Context, name string, value bool) context.Context {
	rc, ctx := EnsureSLineContext(ctx)
	if rc.Flags == nil {
		rc.Flags = make(map[string]bool)
	}
	rc.Flags[name] = value
	return ctx
}

// GetFlag retrieves a flag from the context
func GetFlag(ctx context.Context, name string) (bool, bool) {
	rc, ok := GetSLineContext(ctx)
	if !ok || rc.Flags == nil {
		return false, false
	}
	value, exists := rc.Flags[name]
	return value, exists
}

// GetFlagFromRequest is a convenience function to get a flag from a request
func GetFlagFromRequest(req *common.Request, name string) (bool, bool) {
	return GetFlag(req.Context(), name)
}
