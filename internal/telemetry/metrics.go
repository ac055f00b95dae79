package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// SamplesReceived counts position samples delivered by a source
	SamplesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geo",
			Name:      "samples_received_total",
			Help:      "Total number of position samples delivered to a tracking controller",
		},
		[]string{"mode"},
	)

	// SamplesApplied counts samples written into a coordinate
	SamplesApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geo",
			Name:      "samples_applied_total",
			Help:      "Total number of position samples applied to a coordinate",
		},
		[]string{"mode"},
	)

	// SamplesDropped counts samples discarded before reaching a coordinate
	SamplesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geo",
			Name:      "samples_dropped_total",
			Help:      "Total number of position samples dropped",
		},
		[]string{"reason"},
	)

	// SourceErrors counts errors reported by position sources
	SourceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geo",
			Name:      "source_errors_total",
			Help:      "Total number of errors reported by position sources",
		},
		[]string{"code"},
	)

	// ActiveSessions tracks controllers currently watching or polling
	ActiveSessions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "geo",
			Name:      "tracking_sessions_active",
			Help:      "Number of tracking sessions currently running",
		},
		[]string{"mode"},
	)

	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus registry.
// Safe to call more than once.
func InitMetrics() {
	once.Do(func() {
		prometheus.DefaultRegisterer.Register(SamplesReceived)
		prometheus.DefaultRegisterer.Register(SamplesApplied)
		prometheus.DefaultRegisterer.Register(SamplesDropped)
		prometheus.DefaultRegisterer.Register(SourceErrors)
		prometheus.DefaultRegisterer.Register(ActiveSessions)
	})
}
