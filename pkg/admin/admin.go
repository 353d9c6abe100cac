// Package admin serves the HTTP side channel of an SLine server: Prometheus metrics,
// a health check and a JSON snapshot of the connection counters.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Suhaibinator/SLine/pkg/server"
)

// StatsSource provides the counters served on /stats. *server.Server implements it.
type StatsSource interface {
	Stats() server.Stats
}

// Config configures the admin handler.
type Config struct {
	// Gatherer is exposed on /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// Stats backs /stats. The route is not registered when nil.
	Stats StatsSource

	Logger *zap.Logger
}

// NewHandler returns the admin routes:
//
//	GET /metrics  Prometheus exposition
//	GET /healthz  "OK"
//	GET /stats    server.Stats as JSON
func NewHandler(cfg Config) http.Handler {
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	r := httprouter.New()
	r.Handler(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	r.GET("/healthz", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("OK"))
	})
	if cfg.Stats != nil {
		r.GET("/stats", func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(cfg.Stats.Stats()); err != nil {
				cfg.Logger.Error("Failed to write stats", zap.Error(err))
			}
		})
	}
	return r
}

// Server runs the admin handler on its own listener.
type Server struct {
	handler http.Handler
	logger  *zap.Logger

	mu     sync.Mutex
	server *http.Server
}

// NewServer creates an admin server for cfg.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{handler: NewHandler(cfg), logger: logger}
}

// Start listens on addr and serves in the background. It returns the bound address.
func (s *Server) Start(addr string) (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return nil, errors.New("admin: server already running")
	}

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.server = srv

	s.logger.Info("Admin server listening", zap.String("addr", l.Addr().String()))
	go func() {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Admin server stopped", zap.Error(err))
		}
	}()
	return l.Addr(), nil
}

// Shutdown stops the admin server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
