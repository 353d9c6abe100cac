// Package metrics provides an interface-based metrics system for SLine.
// The server reports connection and message events to a Collector; users plug in an
// implementation such as the Prometheus adapter in pkg/metrics/prometheus.
package metrics

import (
	"errors"
	"io"
	"time"

	"github.com/Suhaibinator/SLine/pkg/common"
)

// Tags represents a map of key-value pairs attached to every metric as constant labels.
type Tags map[string]string

// Collector receives the events the server produces.
// Implementations must be safe for concurrent use; every connection reports from its own goroutine.
type Collector interface {
	// ConnectionOpened is called once a connection has been accepted and authorized.
	ConnectionOpened()

	// ConnectionRejected is called when a connection fails client verification.
	ConnectionRejected()

	// ConnectionClosed is called once per connection with the reason it closed and its lifetime.
	ConnectionClosed(reason CloseReason, lifetime time.Duration)

	// MessageHandled is called after the pipeline finished with one message.
	// err is the error that ended processing, or nil.
	MessageHandled(duration time.Duration, err error)
}

// CloseReason describes why a connection closed.
type CloseReason string

const (
	CloseEOF          CloseReason = "eof"
	CloseIdleTimeout  CloseReason = "idle_timeout"
	CloseMaxLifetime  CloseReason = "max_lifetime"
	CloseRecvTimeout  CloseReason = "recv_timeout"
	CloseTransport    CloseReason = "transport_error"
	CloseFraming      CloseReason = "framing_error"
	CloseUnauthorized CloseReason = "unauthorized"
	CloseShutdown     CloseReason = "shutdown"
	CloseLocal        CloseReason = "local"
)

// ReasonFor maps the error a connection closed with to a CloseReason.
// A nil error means the connection was closed locally.
func ReasonFor(err error) CloseReason {
	switch {
	case err == nil:
		return CloseLocal
	case errors.Is(err, io.EOF):
		return CloseEOF
	case errors.Is(err, common.ErrIdleTimeout):
		return CloseIdleTimeout
	case errors.Is(err, common.ErrMaxLifetime):
		return CloseMaxLifetime
	case errors.Is(err, common.ErrServerClosed):
		return CloseShutdown
	}
	switch common.KindOf(err) {
	case common.KindFraming:
		return CloseFraming
	case common.KindUnauthorized:
		return CloseUnauthorized
	case common.KindTimeout:
		return CloseRecvTimeout
	case common.KindTransport:
		return CloseTransport
	}
	return CloseLocal
}

// NopCollector discards every event.
type NopCollector struct{}

func (NopCollector) ConnectionOpened()                           {}
func (NopCollector) ConnectionRejected()                         {}
func (NopCollector) ConnectionClosed(CloseReason, time.Duration) {}
func (NopCollector) MessageHandled(time.Duration, error)         {}

var _ Collector = NopCollector{}
