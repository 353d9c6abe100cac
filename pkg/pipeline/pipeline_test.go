package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/Suhaibinator/SLine/pkg/common"
	"github.com/Suhaibinator/SLine/pkg/internal/mocks"
	"github.com/Suhaibinator/SLine/pkg/scontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestPipeline() (*Pipeline, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return New(zap.New(core)), logs
}

func newMessage(body string) (*common.Request, *common.Response) {
	conn := mocks.NewMockConn()
	req := common.NewRequest(context.Background(), conn, body)
	return req, common.NewResponse(conn)
}

// recorder returns a handler that appends name to calls and returns result.
func recorder(calls *[]string, name string, result common.Result) common.HandlerFunc {
	return func(*common.Request, *common.Response) common.Result {
		*calls = append(*calls, name)
		return result
	}
}

func TestRunInOrder(t *testing.T) {
	p, _ := newTestPipeline()
	var calls []string
	p.Use(
		recorder(&calls, "A", common.Next()),
		recorder(&calls, "B", common.Next()),
		recorder(&calls, "C", common.Next()),
	)

	req, res := newMessage("hello")
	require.NoError(t, p.Run(req, res))
	assert.Equal(t, []string{"A", "B", "C"}, calls)
}

func TestEmptyBodyRunsNothing(t *testing.T) {
	p, _ := newTestPipeline()
	var calls []string
	p.Use(recorder(&calls, "A", common.Next()))

	req, res := newMessage("")
	require.NoError(t, p.Run(req, res))
	assert.Empty(t, calls)
}

func TestNoHandlersIsNoop(t *testing.T) {
	p, _ := newTestPipeline()
	req, res := newMessage("x")
	assert.NoError(t, p.Run(req, res))
	assert.Equal(t, 0, p.Len())
}

func TestStopEndsPipeline(t *testing.T) {
	p, _ := newTestPipeline()
	var calls []string
	p.Use(
		recorder(&calls, "A", common.Stop()),
		recorder(&calls, "B", common.Next()),
	)

	req, res := newMessage("x")
	require.NoError(t, p.Run(req, res))
	assert.Equal(t, []string{"A"}, calls)
}

func TestMiddlewareMutatesBodyForLaterHandlers(t *testing.T) {
	p, _ := newTestPipeline()
	var seen any
	p.Use(
		func(req *common.Request, _ *common.Response) common.Result {
			req.Body = map[string]any{"parsed": true}
			return common.Next()
		},
		func(req *common.Request, _ *common.Response) common.Result {
			seen = req.Body
			return common.Stop()
		},
	)

	req, res := newMessage("{}")
	require.NoError(t, p.Run(req, res))
	assert.Equal(t, map[string]any{"parsed": true}, seen)
}

func TestFailDivertsToErrorChain(t *testing.T) {
	p, _ := newTestPipeline()
	boom := errors.New("boom")
	var calls []string
	p.Use(
		recorder(&calls, "A", common.Next()),
		recorder(&calls, "B", common.Fail(boom)),
		recorder(&calls, "C", common.Next()),
	)
	var received error
	p.UseErrorHandler(func(err error, req *common.Request, res *common.Response) common.Result {
		calls = append(calls, "E0")
		received = err
		return common.Stop()
	})

	req, res := newMessage("x")
	require.NoError(t, p.Run(req, res))
	assert.Equal(t, []string{"A", "B", "E0"}, calls)
	assert.Equal(t, boom, received)

	herr, ok := scontext.GetHandlerError(req.Context())
	assert.True(t, ok)
	assert.Equal(t, boom, herr)
}

func TestPanicTreatedAsFail(t *testing.T) {
	p, _ := newTestPipeline()
	p.Use(func(*common.Request, *common.Response) common.Result {
		panic("kaboom")
	})
	var received error
	p.UseErrorHandler(func(err error, _ *common.Request, _ *common.Response) common.Result {
		received = err
		return common.Stop()
	})

	req, res := newMessage("x")
	require.NoError(t, p.Run(req, res))
	var rec *common.RecoveryError
	require.ErrorAs(t, received, &rec)
	assert.Equal(t, "kaboom", rec.PanicValue)
}

func TestErrorChainPassesNewErrors(t *testing.T) {
	p, logs := newTestPipeline()
	first := errors.New("first")
	second := errors.New("second")
	p.Use(recorder(new([]string), "A", common.Fail(first)))

	var seen []error
	p.UseErrorHandler(
		func(err error, _ *common.Request, _ *common.Response) common.Result {
			seen = append(seen, err)
			return common.Fail(second)
		},
		func(err error, _ *common.Request, _ *common.Response) common.Result {
			seen = append(seen, err)
			return common.Next()
		},
		func(err error, _ *common.Request, _ *common.Response) common.Result {
			seen = append(seen, err)
			panic("third")
		},
	)

	req, res := newMessage("x")
	err := p.Run(req, res)
	require.Error(t, err)
	assert.Equal(t, []error{first, second, second}, seen)

	var rec *common.RecoveryError
	assert.ErrorAs(t, err, &rec)
	assert.Equal(t, 1, logs.FilterMessage("Unhandled message error").Len())
}

func TestUnhandledErrorIsLoggedAndClassified(t *testing.T) {
	p, logs := newTestPipeline()
	boom := errors.New("boom")
	p.Use(recorder(new([]string), "A", common.Fail(boom)))

	req, res := newMessage("x")
	err := p.Run(req, res)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, common.KindHandler, common.KindOf(err))

	entries := logs.FilterMessage("Unhandled message error").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "conn-1", entries[0].ContextMap()["conn_id"])
}

func TestFailWithoutErrorDoesNotAdvance(t *testing.T) {
	p, logs := newTestPipeline()
	var calls []string
	p.Use(
		recorder(&calls, "A", common.Fail(nil)),
		recorder(&calls, "B", common.Next()),
	)
	p.UseErrorHandler(func(error, *common.Request, *common.Response) common.Result {
		calls = append(calls, "E")
		return common.Stop()
	})

	req, res := newMessage("x")
	err := p.Run(req, res)
	assert.ErrorIs(t, err, common.ErrInvalidContinuation)
	assert.Equal(t, common.KindContinuation, common.KindOf(err))
	assert.Equal(t, []string{"A"}, calls)
	assert.Equal(t, 1, logs.FilterMessage("Failure signalled without an error value").Len())
}

func TestUsePanicsOnNil(t *testing.T) {
	p, _ := newTestPipeline()
	assert.Panics(t, func() { p.Use(nil) })
	assert.Panics(t, func() { p.UseErrorHandler(nil) })
}
