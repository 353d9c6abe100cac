// Package server accepts TCP or TLS connections, frames their input on a delimiter and runs
// every message through the middleware pipeline.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"

	"github.com/Suhaibinator/SLine/pkg/common"
	"github.com/Suhaibinator/SLine/pkg/metrics"
	"github.com/Suhaibinator/SLine/pkg/pipeline"
)

// Server is the line-delimited socket server.
// Register middleware with Use and UseErrorHandler before calling Listen or Serve;
// registration while connections are being served is unsafe.
type Server struct {
	config    Config
	logger    *zap.Logger
	pipeline  *pipeline.Pipeline
	metrics   metrics.Collector
	encoding  encoding.Encoding // nil for UTF-8
	tlsConfig *tls.Config

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	conns     map[*conn]struct{}
	wg        sync.WaitGroup
	shutdown  atomic.Bool

	stats struct {
		total    atomic.Int64
		rejected atomic.Int64
		messages atomic.Int64
	}
}

// Stats is a snapshot of server counters.
type Stats struct {
	ActiveConnections   int   `json:"active_connections"`
	TotalConnections    int64 `json:"total_connections"`
	RejectedConnections int64 `json:"rejected_connections"`
	MessagesDispatched  int64 `json:"messages_dispatched"`
}

// ListenOptions configures Listen.
type ListenOptions struct {
	Host        string         // Interface to bind. Empty binds all interfaces.
	Port        int            // Port to bind. Zero picks a free port.
	Backlog     int            // Accepted for compatibility; the OS default backlog is used
	OnListening func(net.Addr) // Called once the listener is bound (optional)
}

// New creates a Server. The configuration is merged over DefaultConfig.
// It returns an error if the configured encoding is unknown.
func New(config Config) (*Server, error) {
	config = config.withDefaults()

	logger := config.Logger
	if logger == nil {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
	}
	logger = logger.Named("SLine")

	enc, err := lookupEncoding(config.Encoding)
	if err != nil {
		return nil, err
	}

	return &Server{
		config:    config,
		logger:    logger,
		pipeline:  pipeline.New(logger),
		metrics:   config.Metrics,
		encoding:  enc,
		listeners: make(map[net.Listener]struct{}),
		conns:     make(map[*conn]struct{}),
	}, nil
}

// lookupEncoding resolves a WHATWG encoding label. UTF-8 needs no decoding and yields nil.
func lookupEncoding(name string) (encoding.Encoding, error) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", name, err)
	}
	if enc == unicode.UTF8 {
		return nil, nil
	}
	return enc, nil
}

// Logger returns the server logger.
func (s *Server) Logger() *zap.Logger {
	return s.logger
}

// Use appends middleware. A router is mounted with s.Use(r.Handle).
func (s *Server) Use(handlers ...common.HandlerFunc) {
	s.pipeline.Use(handlers...)
}

// UseErrorHandler appends error-recovery handlers.
func (s *Server) UseErrorHandler(handlers ...common.ErrorHandlerFunc) {
	s.pipeline.UseErrorHandler(handlers...)
}

func (s *Server) requireClientCert() bool {
	return s.config.TLS != nil && s.config.TLS.VerifyClient
}

// Listen binds a listener and serves it in the background.
// It returns the bound address once the listener is ready.
func (s *Server) Listen(opts ListenOptions) (net.Addr, error) {
	if s.shutdown.Load() {
		return nil, common.ErrServerClosed
	}
	if opts.Backlog != 0 {
		s.logger.Debug("Listen backlog is not configurable; using the system default",
			zap.Int("backlog", opts.Backlog))
	}

	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	l, err := net.Listen("tcp", addr)
	if err != nil {
		s.logger.Error("Failed to listen", zap.String("addr", addr), zap.Error(err))
		return nil, err
	}
	tl, err := s.wrapTLS(l)
	if err != nil {
		l.Close()
		return nil, err
	}
	l = tl

	s.logger.Info("Listening", zap.String("addr", l.Addr().String()), zap.Bool("tls", s.tlsConfig != nil))
	if opts.OnListening != nil {
		opts.OnListening(l.Addr())
	}
	go func() {
		if err := s.serve(l); err != nil && !errors.Is(err, common.ErrServerClosed) {
			s.logger.Error("Server stopped", zap.Error(err))
		}
	}()
	return l.Addr(), nil
}

// ListenPort is the positional form of Listen. A zero backlog uses the system default.
func (s *Server) ListenPort(port int, host string, backlog int, onListening func(net.Addr)) (net.Addr, error) {
	return s.Listen(ListenOptions{Host: host, Port: port, Backlog: backlog, OnListening: onListening})
}

// Serve accepts connections on l until l fails or the server shuts down.
// When TLS is configured, l is wrapped in a TLS listener.
// Serve always returns a non-nil error; after Shutdown it is common.ErrServerClosed.
func (s *Server) Serve(l net.Listener) error {
	tl, err := s.wrapTLS(l)
	if err != nil {
		l.Close()
		return err
	}
	return s.serve(tl)
}

func (s *Server) wrapTLS(l net.Listener) (net.Listener, error) {
	if s.config.TLS == nil {
		return l, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tlsConfig == nil {
		cfg, err := loadTLSConfig(s.config.TLS)
		if err != nil {
			s.logger.Error("Failed to load TLS configuration", zap.Error(err))
			return nil, err
		}
		s.tlsConfig = cfg
	}
	return tls.NewListener(l, s.tlsConfig), nil
}

func (s *Server) serve(l net.Listener) error {
	if !s.trackListener(l, true) {
		l.Close()
		return common.ErrServerClosed
	}
	defer s.trackListener(l, false)

	var tempDelay time.Duration
	for {
		nc, err := l.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return common.ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay = min(2*tempDelay, time.Second)
				}
				s.logger.Warn("Accept error; retrying", zap.Error(err), zap.Duration("delay", tempDelay))
				time.Sleep(tempDelay)
				continue
			}
			s.logger.Error("Accept failed", zap.Error(err))
			return err
		}
		tempDelay = 0

		go s.handshake(nc)
	}
}

// handshake completes the TLS handshake, if any, and serves the connection.
func (s *Server) handshake(nc net.Conn) {
	isAuthorized := false
	if tc, ok := nc.(*tls.Conn); ok {
		ctx := context.Background()
		if d := s.config.Timeout.Recv; d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		if err := tc.HandshakeContext(ctx); err != nil {
			s.logger.Debug("TLS handshake failed",
				zap.String("remote_addr", nc.RemoteAddr().String()), zap.Error(err))
			nc.Close()
			return
		}
		isAuthorized = authorized(tc.ConnectionState())
	}
	s.ServeConn(nc, isAuthorized)
}

// ServeConn serves one already-accepted connection and blocks until it closes.
// authorized is the transport's verdict on the peer (a verified TLS client certificate);
// when client verification is configured an unauthorized connection is closed
// without reading from it.
func (s *Server) ServeConn(nc net.Conn, authorized bool) {
	c := newConn(s, nc, uuid.NewString(), authorized)
	if !s.trackConn(c, true) {
		c.closeWith(common.ErrServerClosed)
		return
	}
	defer s.trackConn(c, false)
	s.stats.total.Add(1)
	c.serve()
}

func (s *Server) trackListener(l net.Listener, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		if s.shutdown.Load() {
			return false
		}
		s.listeners[l] = struct{}{}
	} else {
		delete(s.listeners, l)
	}
	return true
}

func (s *Server) trackConn(c *conn, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		if s.shutdown.Load() {
			return false
		}
		s.conns[c] = struct{}{}
		s.wg.Add(1)
	} else {
		delete(s.conns, c)
		s.wg.Done()
	}
	return true
}

// Stats returns a snapshot of the server counters.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	active := len(s.conns)
	s.mu.Unlock()
	return Stats{
		ActiveConnections:   active,
		TotalConnections:    s.stats.total.Load(),
		RejectedConnections: s.stats.rejected.Load(),
		MessagesDispatched:  s.stats.messages.Load(),
	}
}

// Shutdown gracefully shuts down the server.
// It stops accepting connections, closes every open connection and waits until each
// connection has finished its current message or ctx is done. In-flight handlers are not interrupted.
func (s *Server) Shutdown(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.mu.Lock()
	s.shutdown.Store(true)
	listeners := make([]net.Listener, 0, len(s.listeners))
	for l := range s.listeners {
		listeners = append(listeners, l)
	}
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		if err := l.Close(); err != nil {
			s.logger.Debug("Error closing listener", zap.Error(err))
		}
	}
	for _, c := range conns {
		c.closeWith(common.ErrServerClosed)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Server shut down")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
