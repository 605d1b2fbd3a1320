// Package metrics exposes the robot's counters in Prometheus format.
package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "saras"

// Metrics holds every counter. Components bump the atomics from their
// hooks; the registry reads them on scrape.
type Metrics struct {
	FramesCaptured   atomic.Uint64
	CaptureErrors    atomic.Uint64
	PerceptionCycles atomic.Uint64
	Detections       atomic.Uint64
	DetectorErrors   atomic.Uint64
	Greetings        atomic.Uint64
	AutopilotCycles  atomic.Uint64
	SafetyOverrides  atomic.Uint64
	MotorCommands    atomic.Uint64
	MotorErrors      atomic.Uint64
	QueueDrops       atomic.Uint64
	StreamFrames     atomic.Uint64
	AssistantErrors  atomic.Uint64

	registry *prometheus.Registry
}

// New creates Metrics on a private registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	counters := []struct {
		name, help string
		v          *atomic.Uint64
	}{
		{"frames_captured_total", "Frames read from the camera", &m.FramesCaptured},
		{"capture_errors_total", "Camera read errors", &m.CaptureErrors},
		{"perception_cycles_total", "Perception loop cycles that processed a frame", &m.PerceptionCycles},
		{"detections_total", "Detections published to shared state", &m.Detections},
		{"detector_errors_total", "Object detector failures", &m.DetectorErrors},
		{"greetings_total", "Proactive greetings spoken", &m.Greetings},
		{"autopilot_cycles_total", "Autopilot loop cycles", &m.AutopilotCycles},
		{"safety_overrides_total", "Hazard retreats that forced the autopilot off", &m.SafetyOverrides},
		{"motor_commands_total", "Commands written to the motors", &m.MotorCommands},
		{"motor_errors_total", "Failed motor writes", &m.MotorErrors},
		{"queue_drops_total", "Side-effect jobs dropped by a full queue", &m.QueueDrops},
		{"stream_frames_total", "Annotated frames broadcast to viewers", &m.StreamFrames},
		{"assistant_errors_total", "Failed language model calls", &m.AssistantErrors},
	}
	for _, c := range counters {
		v := c.v
		m.registry.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{Namespace: namespace, Name: c.name, Help: c.help},
			func() float64 { return float64(v.Load()) },
		))
	}
	return m
}

// AddGauge registers a gauge read from fn on every scrape.
func (m *Metrics) AddGauge(name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help},
		fn,
	))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
