// Package pipeline runs framed messages through an ordered list of middleware with an
// error-recovery chain.
//
// Handlers return a common.Result instead of calling a continuation: the pipeline keeps an
// index into the handler list and an explicit advance / divert / stop decision per step,
// driven by a single loop.
package pipeline

import (
	"go.uber.org/zap"

	"github.com/Suhaibinator/SLine/pkg/common"
	"github.com/Suhaibinator/SLine/pkg/scontext"
)

// Pipeline holds the ordered middleware list and the ordered error-recovery list.
//
// Registration (Use, UseErrorHandler) is setup-time only. Mutating a Pipeline while
// Run is executing on any connection is unsafe.
type Pipeline struct {
	logger        *zap.Logger
	handlers      []common.HandlerFunc
	errorHandlers []common.ErrorHandlerFunc
}

// New creates an empty Pipeline. A nil logger disables logging.
func New(logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{logger: logger}
}

// Use appends middleware. Insertion order is execution order.
func (p *Pipeline) Use(handlers ...common.HandlerFunc) {
	for _, h := range handlers {
		if h == nil {
			panic("pipeline: nil handler passed to Use")
		}
	}
	p.handlers = append(p.handlers, handlers...)
}

// UseErrorHandler appends error-recovery handlers. Insertion order is execution order.
func (p *Pipeline) UseErrorHandler(handlers ...common.ErrorHandlerFunc) {
	for _, h := range handlers {
		if h == nil {
			panic("pipeline: nil handler passed to UseErrorHandler")
		}
	}
	p.errorHandlers = append(p.errorHandlers, handlers...)
}

// Len returns the number of registered middleware.
func (p *Pipeline) Len() int {
	return len(p.handlers)
}

// Run executes the middleware for one message.
//
// Nothing runs when no middleware is registered or when the body is the empty string.
// A handler returning Fail(err), or panicking, diverts into the error-recovery chain.
// A handler returning Fail(nil) is logged as a warning and the pipeline stops.
//
// Run returns nil when the message completed, stopped, or its error was recovered.
// Otherwise it returns the error that ended processing; the error has already been logged.
func (p *Pipeline) Run(req *common.Request, res *common.Response) error {
	if len(p.handlers) == 0 || isEmpty(req.Body) {
		return nil
	}

	for i := 0; i < len(p.handlers); i++ {
		result := common.Call(p.handlers[i], req, res)
		switch result.Outcome() {
		case common.OutcomeNext:
			continue
		case common.OutcomeStop:
			return nil
		case common.OutcomeFail:
			if result.Err() == nil {
				p.logger.Warn("Failure signalled without an error value",
					append(logFields(req), zap.Int("handler_index", i))...)
				return common.NewError(common.KindContinuation, "next", common.ErrInvalidContinuation)
			}
			return p.recover(result.Err(), req, res)
		}
	}
	return nil
}

// recover walks the error-recovery chain. Stop resolves the error, Next hands the current
// error to the following handler, Fail(newErr) hands newErr on instead.
func (p *Pipeline) recover(err error, req *common.Request, res *common.Response) error {
	req.SetContext(scontext.WithHandlerError(req.Context(), err))

	current := err
	for _, h := range p.errorHandlers {
		result := common.CallErrorHandler(h, current, req, res)
		switch result.Outcome() {
		case common.OutcomeStop:
			return nil
		case common.OutcomeFail:
			if result.Err() != nil {
				current = result.Err()
			}
		}
	}

	p.logger.Error("Unhandled message error", append(logFields(req), zap.Error(current))...)
	if common.KindOf(current) == common.KindUnknown {
		return common.NewError(common.KindHandler, "pipeline", current)
	}
	return current
}

func isEmpty(body any) bool {
	s, ok := body.(string)
	return ok && s == ""
}

func logFields(req *common.Request) []zap.Field {
	fields := make([]zap.Field, 0, 3)
	if req.Conn != nil {
		fields = append(fields, zap.String("conn_id", req.Conn.ID()))
		if addr := req.Conn.RemoteAddr(); addr != nil {
			fields = append(fields, zap.String("remote_addr", addr.String()))
		}
	}
	if traceID := scontext.GetTraceIDFromRequest(req); traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	return fields
}
