package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Suhaibinator/SLine/pkg/common"
	sline_metrics "github.com/Suhaibinator/SLine/pkg/metrics"
)

func TestNewCollectorPanicsOnNilRegistry(t *testing.T) {
	assert.Panics(t, func() { NewCollector(nil, "test", "sline", nil) })
}

func TestConnectionLifecycleMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollector(registry, "test", "sline", sline_metrics.Tags{"service": "echo"})

	c.ConnectionOpened()
	c.ConnectionOpened()
	assert.Equal(t, 2.0, testutil.ToFloat64(c.activeConnections))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.connectionsTotal))

	c.ConnectionClosed(sline_metrics.CloseIdleTimeout, 2*time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.activeConnections))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.closedConnections.WithLabelValues("idle_timeout")))

	c.ConnectionRejected()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rejectedConnections))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.closedConnections.WithLabelValues("unauthorized")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.activeConnections))

	count, err := testutil.GatherAndCount(registry, "test_sline_connection_lifetime_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMessageMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollector(registry, "test", "sline", nil)

	c.MessageHandled(time.Millisecond, nil)
	c.MessageHandled(time.Millisecond, nil)
	c.MessageHandled(time.Millisecond, common.NewError(common.KindHandler, "pipeline", errors.New("boom")))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.messagesTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.messagesTotal.WithLabelValues("handler")))
}

func TestSharedRegistryReusesMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := NewCollector(registry, "test", "sline", nil)
	second := NewCollector(registry, "test", "sline", nil)

	first.ConnectionOpened()
	second.ConnectionOpened()
	assert.Equal(t, 2.0, testutil.ToFloat64(first.connectionsTotal))
	assert.Same(t, first.messagesTotal, second.messagesTotal)
}

func TestMessageDurationHistogram(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollector(registry, "test", "sline", sline_metrics.Tags{"service": "echo"})

	c.MessageHandled(2*time.Millisecond, nil)
	c.MessageHandled(3*time.Second, errors.New("slow"))

	families, err := registry.Gather()
	require.NoError(t, err)

	var histogram *dto.Histogram
	var labels []*dto.LabelPair
	for _, mf := range families {
		if mf.GetName() == "test_sline_message_duration_seconds" {
			require.Equal(t, dto.MetricType_HISTOGRAM, mf.GetType())
			require.Len(t, mf.GetMetric(), 1)
			histogram = mf.GetMetric()[0].GetHistogram()
			labels = mf.GetMetric()[0].GetLabel()
		}
	}
	require.NotNil(t, histogram)
	assert.Equal(t, uint64(2), histogram.GetSampleCount())
	assert.InDelta(t, 3.002, histogram.GetSampleSum(), 1e-9)
	require.Len(t, labels, 1)
	assert.Equal(t, "service", labels[0].GetName())
	assert.Equal(t, "echo", labels[0].GetValue())
}
