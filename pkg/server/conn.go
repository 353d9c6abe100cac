package server

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/transform"

	"github.com/Suhaibinator/SLine/pkg/common"
	"github.com/Suhaibinator/SLine/pkg/framing"
	"github.com/Suhaibinator/SLine/pkg/metrics"
	"github.com/Suhaibinator/SLine/pkg/scontext"
)

const readBufferSize = 32 * 1024

// connState is the lifecycle state of a connection.
type connState int

const (
	stateAuthorizing connState = iota
	stateActive
	stateClosing
	stateClosed
)

// conn is one accepted connection. It implements common.Conn.
type conn struct {
	srv        *Server
	nc         net.Conn
	id         string
	authorized bool
	framer     *framing.Framer
	logger     *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	openedAt   time.Time

	writeMu sync.Mutex

	mu       sync.Mutex
	state    connState
	idle     *time.Timer
	idleGen  uint64
	lifetime *time.Timer
}

func newConn(srv *Server, nc net.Conn, id string, authorized bool) *conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &conn{
		srv:        srv,
		nc:         nc,
		id:         id,
		authorized: authorized,
		framer:     framing.New(srv.config.Delimiter, srv.config.MaxMessageSize),
		logger:     srv.logger.With(zap.String("conn_id", id), zap.String("remote_addr", remoteString(nc))),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func remoteString(nc net.Conn) string {
	if addr := nc.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func (c *conn) ID() string { return c.id }

func (c *conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

func (c *conn) Authorized() bool { return c.authorized }

// SendLine writes text followed by a newline.
func (c *conn) SendLine(text string) error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	if state >= stateClosing {
		return common.ErrConnectionClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if d := c.srv.config.Timeout.Send; d > 0 {
		_ = c.nc.SetWriteDeadline(time.Now().Add(d))
	}
	if _, err := io.WriteString(c.nc, text+"\n"); err != nil {
		return common.NewError(common.KindTransport, "write", err)
	}
	return nil
}

// Close closes the connection. Later calls are no-ops.
func (c *conn) Close() error {
	c.closeWith(nil)
	return nil
}

// closeWith moves the connection to CLOSING, stops its timers and closes the socket.
// Only the first call has any effect; reason is reported to logging and metrics.
func (c *conn) closeWith(reason error) {
	c.mu.Lock()
	if c.state >= stateClosing {
		c.mu.Unlock()
		return
	}
	wasActive := c.state == stateActive
	c.state = stateClosing
	if c.idle != nil {
		c.idle.Stop()
	}
	if c.lifetime != nil {
		c.lifetime.Stop()
	}
	c.mu.Unlock()

	c.cancel()
	if err := c.nc.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		c.logger.Debug("Error closing connection", zap.Error(err))
	}

	c.mu.Lock()
	c.state = stateClosed
	c.mu.Unlock()

	closeReason := metrics.ReasonFor(reason)
	c.logger.Debug("Connection closed", zap.String("reason", string(closeReason)))
	if wasActive {
		c.srv.metrics.ConnectionClosed(closeReason, time.Since(c.openedAt))
	}
}

func (c *conn) isActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateActive
}

// activate moves the connection to ACTIVE and arms both timers.
func (c *conn) activate() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateAuthorizing {
		return false
	}
	c.state = stateActive
	c.openedAt = time.Now()
	if d := c.srv.config.KeepAlive.Max; d > 0 {
		c.lifetime = time.AfterFunc(d, func() {
			c.logger.Debug("Connection reached its maximum lifetime")
			c.closeWith(common.ErrMaxLifetime)
		})
	}
	c.armIdleLocked()
	return true
}

// resetIdle restarts the idle timer. It does nothing once the connection is closing.
func (c *conn) resetIdle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateActive {
		return
	}
	c.armIdleLocked()
}

func (c *conn) armIdleLocked() {
	d := c.srv.config.KeepAlive.Timeout
	if d <= 0 {
		return
	}
	if c.idle != nil {
		c.idle.Stop()
	}
	c.idleGen++
	gen := c.idleGen
	c.idle = time.AfterFunc(d, func() { c.idleFired(gen) })
}

// idleFired closes the connection unless the timer was re-armed after it fired.
func (c *conn) idleFired(gen uint64) {
	c.mu.Lock()
	stale := gen != c.idleGen || c.state != stateActive
	c.mu.Unlock()
	if stale {
		return
	}
	c.logger.Debug("Connection idle timeout")
	c.closeWith(common.ErrIdleTimeout)
}

// serve runs the connection until it closes.
func (c *conn) serve() {
	if c.srv.requireClientCert() && !c.authorized {
		c.logger.Info("Rejecting unauthorized connection")
		c.srv.metrics.ConnectionRejected()
		c.srv.stats.rejected.Add(1)
		c.closeWith(common.ErrUnauthorized)
		return
	}
	if !c.activate() {
		return
	}
	c.srv.metrics.ConnectionOpened()
	c.logger.Debug("Connection opened")

	var r io.Reader = c.nc
	if c.srv.encoding != nil {
		r = transform.NewReader(c.nc, c.srv.encoding.NewDecoder())
	}

	buf := make([]byte, readBufferSize)
	for {
		if d := c.srv.config.Timeout.Recv; d > 0 {
			_ = c.nc.SetReadDeadline(time.Now().Add(d))
		}
		n, err := r.Read(buf)
		if n > 0 {
			msgs, ferr := c.framer.Feed(string(buf[:n]))
			for _, msg := range msgs {
				if !c.isActive() {
					return
				}
				c.dispatch(msg)
			}
			if ferr != nil {
				c.logger.Warn("Closing connection", zap.Error(ferr))
				c.closeWith(ferr)
				return
			}
			c.resetIdle()
		}
		if err != nil {
			c.readFailed(err)
			return
		}
	}
}

// readFailed handles the error that ended the read loop.
// End of input flushes the framer; any other error closes without flushing.
func (c *conn) readFailed(err error) {
	if !c.isActive() {
		return
	}
	if errors.Is(err, io.EOF) {
		if rest := c.framer.Flush(); rest != "" {
			c.dispatch(rest)
		}
		c.closeWith(io.EOF)
		return
	}
	kind := common.KindTransport
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		kind = common.KindTimeout
	}
	classified := common.NewError(kind, "read", err)
	c.logger.Debug("Read failed", zap.Error(classified))
	c.closeWith(classified)
}

// dispatch runs the pipeline for one message.
func (c *conn) dispatch(msg string) {
	if msg == "" {
		return
	}
	ctx := scontext.WithSLineContext(c.ctx, scontext.NewSLineContext())
	ctx = scontext.WithConnID(ctx, c.id)
	req := common.NewRequest(ctx, c, msg)
	res := common.NewResponse(c)

	start := time.Now()
	err := c.srv.pipeline.Run(req, res)
	c.srv.metrics.MessageHandled(time.Since(start), err)
	c.srv.stats.messages.Add(1)
}

var _ common.Conn = (*conn)(nil)
