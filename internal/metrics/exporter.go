// Package metrics exports controller snapshots as Prometheus metrics.
package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shini4i/edr-brightness-daemon/internal/auto"
	"github.com/shini4i/edr-brightness-daemon/internal/controller"
)

const namespace = "edr_brightness"

// Exporter is a controller.Observer that keeps Prometheus collectors current.
type Exporter struct {
	registry *prometheus.Registry
	last     atomic.Pointer[controller.Snapshot]

	lux           prometheus.Gauge
	smoothedCount prometheus.Gauge
	blendWeight   prometheus.Gauge
	userPercent   prometheus.Gauge
	factor        prometheus.Gauge
	effectiveGain prometheus.Gauge
	capGain       prometheus.Gauge
	duckLevel     prometheus.Gauge
	active        prometheus.Gauge
	autoEnabled   prometheus.Gauge
	hdrActive     prometheus.Gauge
	sensorUp      prometheus.Gauge
	notSupported  prometheus.Gauge
	recovering    prometheus.Gauge
}

var _ controller.Observer = (*Exporter)(nil)

func gauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
}

// NewExporter creates an exporter with its own registry.
func NewExporter() *Exporter {
	e := &Exporter{
		registry:      prometheus.NewRegistry(),
		lux:           gauge("lux", "Estimated ambient illuminance."),
		smoothedCount: gauge("sensor_smoothed_value", "Smoothed sensor reading in counts."),
		blendWeight:   gauge("blend_weight", "Weight of the relative lux estimate."),
		userPercent:   gauge("user_percent", "Brightness intent in effect, 0 to 100."),
		factor:        gauge("factor", "Gain for the intent before ducking."),
		effectiveGain: gauge("effective_gain", "Gain written to the displays."),
		capGain:       gauge("cap", "Maximum safe gain."),
		duckLevel:     gauge("duck_level", "HDR duck progress, 0 to 1."),
		active:        gauge("active", "Whether the gain path is engaged."),
		autoEnabled:   gauge("auto_enabled", "Whether auto-control drives the intent."),
		hdrActive:     gauge("hdr_active", "Whether HDR content is considered on screen."),
		sensorUp:      gauge("sensor_available", "Whether a sensor handle is bound."),
		notSupported:  gauge("display_not_supported", "Whether no display supports extended range."),
		recovering:    gauge("recovering", "Whether a recovery burst is in progress."),
	}

	e.registry.MustRegister(
		e.lux, e.smoothedCount, e.blendWeight,
		e.userPercent, e.factor, e.effectiveGain, e.capGain, e.duckLevel,
		e.active, e.autoEnabled, e.hdrActive,
		e.sensorUp, e.notSupported, e.recovering,
	)

	e.registry.MustRegister(
		e.counter("sensor_saturated_ticks_total", "Ticks with a saturated reading.",
			func(s *controller.Snapshot) uint64 { return s.Sensor.SaturatedTicks }),
		e.counter("sensor_invalid_ticks_total", "Ticks with an invalid reading.",
			func(s *controller.Snapshot) uint64 { return s.Sensor.InvalidTicks }),
		e.counter("sensor_rebinds_total", "Successful sensor rebinds.",
			func(s *controller.Snapshot) uint64 { return s.Sensor.Rebinds }),
		e.counter("apply_failures_total", "Failed gain writes.",
			func(s *controller.Snapshot) uint64 { return s.Gain.ApplyFailures }),
		e.counter("recoveries_total", "Recovery bursts started.",
			func(s *controller.Snapshot) uint64 { return s.Recoveries }),
		e.counter("panics_total", "Panics contained in the controller loop.",
			func(s *controller.Snapshot) uint64 { return s.Panics }),
	)

	e.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "auto_state",
		Help:      "Auto-control state, 0 disabled, 1 enabled.",
	}, func() float64 {
		if s := e.last.Load(); s != nil && s.Auto.State == auto.Enabled {
			return 1
		}
		return 0
	}))

	return e
}

func (e *Exporter) counter(name, help string, value func(*controller.Snapshot) uint64) prometheus.CounterFunc {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, func() float64 {
		s := e.last.Load()
		if s == nil {
			return 0
		}
		return float64(value(s))
	})
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Observe records a snapshot. It never blocks.
func (e *Exporter) Observe(s controller.Snapshot) {
	e.last.Store(&s)

	e.lux.Set(s.Sensor.Estimate.Lux)
	e.smoothedCount.Set(s.Sensor.Estimate.SmoothedX)
	e.blendWeight.Set(s.Sensor.Estimate.BlendWeight)
	e.userPercent.Set(s.UserPercent)
	e.factor.Set(s.Factor)
	e.effectiveGain.Set(s.EffectiveGain)
	e.capGain.Set(s.Cap.Cap)
	e.duckLevel.Set(s.Gain.DuckLevel)
	e.active.Set(boolValue(s.Active))
	e.autoEnabled.Set(boolValue(s.Settings.AutoEnabled))
	e.hdrActive.Set(boolValue(s.Gain.HDRActive))
	e.sensorUp.Set(boolValue(s.Sensor.Available))
	e.notSupported.Set(boolValue(s.NotSupported))
	e.recovering.Set(boolValue(s.Recovering))
}

// Registry returns the exporter's registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
