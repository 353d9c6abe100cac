// Package middleware provides a collection of message middleware components for SLine.
// These components add functionality such as logging, trace IDs, client identification,
// authorization checks, message size limits and rate limiting to a server pipeline or
// to a single router handler.
package middleware

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Suhaibinator/SLine/pkg/common"
	"github.com/Suhaibinator/SLine/pkg/scontext"
)

// ErrMessageTooLarge is the failure signalled by MaxMessageSize.
var ErrMessageTooLarge = errors.New("message exceeds maximum size")

// Chain combines handlers into one. The handlers run in order until one of them
// does not return Next; that result becomes the result of the chain.
// Panics are recovered into failures as they are in the pipeline.
func Chain(handlers ...common.HandlerFunc) common.HandlerFunc {
	for _, h := range handlers {
		if h == nil {
			panic("middleware: nil handler passed to Chain")
		}
	}
	return func(req *common.Request, res *common.Response) common.Result {
		for _, h := range handlers {
			if r := common.Call(h, req, res); r.Outcome() != common.OutcomeNext {
				return r
			}
		}
		return common.Next()
	}
}

// logging logs every message at Debug level.
func logging(logger *zap.Logger) common.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(req *common.Request, res *common.Response) common.Result {
		if ce := logger.Check(zap.DebugLevel, "Message"); ce != nil {
			fields := []zap.Field{zap.String("body_type", fmt.Sprintf("%T", req.Body))}
			if s, ok := req.Body.(string); ok {
				fields = append(fields, zap.Int("size", len(s)))
			}
			if id, ok := scontext.GetConnID(req.Context()); ok {
				fields = append(fields, zap.String("conn_id", id))
			}
			if traceID := scontext.GetTraceIDFromRequest(req); traceID != "" {
				fields = append(fields, zap.String("trace_id", traceID))
			}
			if req.Conn != nil && req.Conn.RemoteAddr() != nil {
				fields = append(fields, zap.String("remote_addr", req.Conn.RemoteAddr().String()))
			}
			ce.Write(fields...)
		}
		return common.Next()
	}
}

// maxMessageSize fails messages whose raw text is longer than limit bytes.
// Bodies that are no longer strings (already decoded) pass through.
func maxMessageSize(limit int) common.HandlerFunc {
	return func(req *common.Request, res *common.Response) common.Result {
		if s, ok := req.Body.(string); ok && len(s) > limit {
			return common.Fail(common.NewError(common.KindHandler, "max message size",
				fmt.Errorf("%w: %d > %d bytes", ErrMessageTooLarge, len(s), limit)))
		}
		return common.Next()
	}
}
