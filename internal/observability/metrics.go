package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danghamo/satwatch/internal/tracking"
)

// TrackingCollector exposes the refresh loop as Prometheus metrics and
// satisfies tracking.Recorder
type TrackingCollector struct {
	gatherer prometheus.Gatherer

	Cycles              *prometheus.CounterVec
	CycleDuration       prometheus.Histogram
	Active              prometheus.Gauge
	Generation          prometheus.Gauge
	ConsecutiveFailures prometheus.Gauge
}

var _ tracking.Recorder = (*TrackingCollector)(nil)

// NewTrackingCollector registers the tracking metrics against reg, defaulting
// to the global registry when nil
func NewTrackingCollector(reg prometheus.Registerer) (*TrackingCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	cycles, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "satwatch_refresh_cycles_total",
		Help: "Refresh cycles by outcome (published, degraded, fetch_failed, discarded).",
	}, []string{"outcome"}), "satwatch_refresh_cycles_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "satwatch_refresh_duration_seconds",
		Help:    "Time from cycle start to its outcome.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}), "satwatch_refresh_duration_seconds")
	if err != nil {
		return nil, err
	}

	active, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "satwatch_tracking_active",
		Help: "1 while tracking is running.",
	}), "satwatch_tracking_active")
	if err != nil {
		return nil, err
	}

	generation, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "satwatch_tracking_generation",
		Help: "Current tracking session generation.",
	}), "satwatch_tracking_generation")
	if err != nil {
		return nil, err
	}

	failures, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "satwatch_fetch_consecutive_failures",
		Help: "Consecutive position fetch failures in the current session.",
	}), "satwatch_fetch_consecutive_failures")
	if err != nil {
		return nil, err
	}

	return &TrackingCollector{
		gatherer:            gatherer,
		Cycles:              cycles,
		CycleDuration:       duration,
		Active:              active,
		Generation:          generation,
		ConsecutiveFailures: failures,
	}, nil
}

// ObserveCycle counts a finished cycle
func (c *TrackingCollector) ObserveCycle(outcome tracking.Outcome, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Cycles.WithLabelValues(string(outcome)).Inc()
	if outcome != tracking.OutcomeDiscarded {
		c.CycleDuration.Observe(elapsed.Seconds())
	}
}

// ObserveState records a start or stop
func (c *TrackingCollector) ObserveState(state tracking.State, generation uint64) {
	if c == nil {
		return
	}
	if state == tracking.Running {
		c.Active.Set(1)
	} else {
		c.Active.Set(0)
	}
	c.Generation.Set(float64(generation))
}

// ObserveFailures records the consecutive failure count
func (c *TrackingCollector) ObserveFailures(consecutive int) {
	if c == nil {
		return
	}
	c.ConsecutiveFailures.Set(float64(consecutive))
}

// Handler exposes a ready-to-use /metrics handler
func (c *TrackingCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
