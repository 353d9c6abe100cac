package admin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Suhaibinator/SLine/pkg/metrics"
	slineprom "github.com/Suhaibinator/SLine/pkg/metrics/prometheus"
	"github.com/Suhaibinator/SLine/pkg/server"
)

type fixedStats server.Stats

func (s fixedStats) Stats() server.Stats { return server.Stats(s) }

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(Config{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestStats(t *testing.T) {
	h := NewHandler(Config{Stats: fixedStats{ActiveConnections: 2, TotalConnections: 7, RejectedConnections: 1, MessagesDispatched: 40}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, map[string]int{
		"active_connections":   2,
		"total_connections":    7,
		"rejected_connections": 1,
		"messages_dispatched":  40,
	}, got)
}

func TestStatsNotRegisteredWithoutSource(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(Config{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := slineprom.NewCollector(registry, "sline", "", nil)
	collector.ConnectionOpened()
	collector.ConnectionClosed(metrics.CloseEOF, time.Second)

	rec := httptest.NewRecorder()
	NewHandler(Config{Gatherer: registry}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sline_connections_total 1")
	assert.Contains(t, rec.Body.String(), `sline_closed_connections_total{reason="eof"} 1`)
}

func TestMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(Config{}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServerStartShutdown(t *testing.T) {
	s := NewServer(Config{Stats: fixedStats{TotalConnections: 3}})
	addr, err := s.Start("127.0.0.1:0")
	require.NoError(t, err)

	_, err = s.Start("127.0.0.1:0")
	assert.Error(t, err)

	resp, err := http.Get("http://" + addr.String() + "/stats")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `"total_connections":3`)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	require.NoError(t, s.Shutdown(ctx))
}
