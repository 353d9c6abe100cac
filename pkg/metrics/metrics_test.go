package metrics

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/Suhaibinator/SLine/pkg/common"
	"github.com/stretchr/testify/assert"
)

func TestReasonFor(t *testing.T) {
	tests := []struct {
		err  error
		want CloseReason
	}{
		{nil, CloseLocal},
		{io.EOF, CloseEOF},
		{common.ErrIdleTimeout, CloseIdleTimeout},
		{common.NewError(common.KindTimeout, "idle", common.ErrIdleTimeout), CloseIdleTimeout},
		{common.ErrMaxLifetime, CloseMaxLifetime},
		{common.ErrServerClosed, CloseShutdown},
		{common.NewError(common.KindTimeout, "read", errors.New("i/o timeout")), CloseRecvTimeout},
		{common.NewError(common.KindFraming, "read", common.ErrBufferOverflow), CloseFraming},
		{common.ErrUnauthorized, CloseUnauthorized},
		{common.NewError(common.KindTransport, "read", errors.New("reset")), CloseTransport},
		{errors.New("other"), CloseLocal},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.err), func(t *testing.T) {
			assert.Equal(t, tt.want, ReasonFor(tt.err))
		})
	}
}

func TestNopCollector(t *testing.T) {
	var c Collector = NopCollector{}
	assert.NotPanics(t, func() {
		c.ConnectionOpened()
		c.ConnectionRejected()
		c.ConnectionClosed(CloseEOF, 0)
		c.MessageHandled(0, nil)
	})
}
