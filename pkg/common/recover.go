package common

import (
	"fmt"
	"runtime/debug"
)

// RecoveryError wraps a panic value with the stack trace.
// A handler that panics is treated exactly like one that returned Fail(err).
type RecoveryError struct {
	// PanicValue is the original value that was passed to panic().
	PanicValue any
	// StackTrace contains the full stack trace at the point of panic.
	StackTrace string
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("panic recovered: %v", e.PanicValue)
}

// Unwrap returns the panic value when it is itself an error.
func (e *RecoveryError) Unwrap() error {
	if err, ok := e.PanicValue.(error); ok {
		return err
	}
	return nil
}

// Call invokes h and converts a panic into a Fail result.
func Call(h HandlerFunc, req *Request, res *Response) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			result = Fail(&RecoveryError{PanicValue: rec, StackTrace: string(debug.Stack())})
		}
	}()
	return h(req, res)
}

// CallErrorHandler invokes h and converts a panic into a Fail result.
func CallErrorHandler(h ErrorHandlerFunc, err error, req *Request, res *Response) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			result = Fail(&RecoveryError{PanicValue: rec, StackTrace: string(debug.Stack())})
		}
	}()
	return h(err, req, res)
}
