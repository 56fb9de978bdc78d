package observability

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/danghamo/satwatch/internal/tracking"
	"github.com/danghamo/satwatch/pkg/config"
	"github.com/danghamo/satwatch/pkg/logger"
)

func TestTrackingCollector_RecordsCycles(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewTrackingCollector(reg)
	require.NoError(t, err)

	c.ObserveCycle(tracking.OutcomePublished, 200*time.Millisecond)
	c.ObserveCycle(tracking.OutcomePublished, 300*time.Millisecond)
	c.ObserveCycle(tracking.OutcomeFetchFailed, time.Second)
	c.ObserveCycle(tracking.OutcomeDiscarded, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Cycles.WithLabelValues("published")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Cycles.WithLabelValues("fetch_failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Cycles.WithLabelValues("discarded")))
	assert.Equal(t, uint64(3), histogramSampleCount(t, reg, "satwatch_refresh_duration_seconds"))
}

func TestTrackingCollector_StateAndFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewTrackingCollector(reg)
	require.NoError(t, err)

	c.ObserveState(tracking.Running, 3)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Active))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.Generation))

	c.ObserveState(tracking.Stopped, 4)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.Active))

	c.ObserveFailures(5)
	assert.Equal(t, 5.0, testutil.ToFloat64(c.ConsecutiveFailures))
}

func TestTrackingCollector_ReRegistrationReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewTrackingCollector(reg)
	require.NoError(t, err)
	second, err := NewTrackingCollector(reg)
	require.NoError(t, err)

	first.ObserveCycle(tracking.OutcomeDegraded, time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(second.Cycles.WithLabelValues("degraded")))
}

func TestTrackingCollector_Handler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewTrackingCollector(reg)
	require.NoError(t, err)
	c.ObserveCycle(tracking.OutcomePublished, time.Millisecond)
	c.ObserveState(tracking.Running, 1)

	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	for _, name := range []string{
		"satwatch_refresh_cycles_total",
		"satwatch_refresh_duration_seconds",
		"satwatch_tracking_active",
		"satwatch_tracking_generation",
		"satwatch_fetch_consecutive_failures",
	} {
		assert.Contains(t, rr.Body.String(), name)
	}
}

func TestInitTracing(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	t.Run("disabled", func(t *testing.T) {
		shutdown, err := initTracing(context.Background(), config.TracingConfig{}, &bytes.Buffer{}, logger.NewNop())
		require.NoError(t, err)
		assert.NoError(t, shutdown(context.Background()))
	})

	t.Run("stdout exporter writes spans", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := config.TracingConfig{Enabled: true, ServiceName: "satwatch-test", Exporter: "stdout", SampleRatio: 1}
		shutdown, err := initTracing(context.Background(), cfg, &buf, logger.NewNop())
		require.NoError(t, err)

		_, span := otel.Tracer("test").Start(context.Background(), "position.fetch")
		span.End()
		require.NoError(t, shutdown(context.Background()))

		assert.Contains(t, buf.String(), "position.fetch")
	})

	t.Run("unknown exporter", func(t *testing.T) {
		_, err := initTracing(context.Background(), config.TracingConfig{Enabled: true, Exporter: "zipkin"}, nil, logger.NewNop())
		assert.Error(t, err)
	})
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string) uint64 {
	t.Helper()

	families, err := gatherer.Gather()
	require.NoError(t, err)
	mf := findFamily(families, name)
	if mf == nil {
		return 0
	}
	for _, m := range mf.Metric {
		if h := m.GetHistogram(); h != nil {
			return h.GetSampleCount()
		}
	}
	return 0
}

func findFamily(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}
