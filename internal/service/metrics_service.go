package service

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the lifecycle
// core. All methods are safe on a nil receiver so wiring stays optional.
type MetricsService struct {
	registry              *prometheus.Registry
	handler               http.Handler
	tickDuration          prometheus.Histogram
	tickErrors            prometheus.Counter
	transitionsTotal      *prometheus.CounterVec
	registrationConflicts prometheus.Counter
	mirrorRepairs         prometheus.Counter
}

// NewMetricsService registers the lifecycle collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	tickDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduler_tick_duration_seconds",
		Help:    "Duration of scheduler evaluation passes",
		Buckets: prometheus.DefBuckets,
	})

	tickErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_tick_errors_total",
		Help: "Total per-event failures during scheduler ticks",
	})

	transitionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "event_transitions_total",
		Help: "Total applied event lifecycle transitions",
	}, []string{"to_status"})

	registrationConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "registration_conflicts_total",
		Help: "Total declined registration attempts (duplicate, capacity, lock)",
	})

	mirrorRepairs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "participation_ref_repairs_total",
		Help: "Total participation reference mirror rewrites",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(tickDuration, tickErrors, transitionsTotal, registrationConflicts, mirrorRepairs, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:              registry,
		handler:               handler,
		tickDuration:          tickDuration,
		tickErrors:            tickErrors,
		transitionsTotal:      transitionsTotal,
		registrationConflicts: registrationConflicts,
		mirrorRepairs:         mirrorRepairs,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveTick records the duration of one scheduler pass.
func (m *MetricsService) ObserveTick(duration time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(duration.Seconds())
}

// RecordTickError counts a per-event failure inside a tick.
func (m *MetricsService) RecordTickError() {
	if m == nil {
		return
	}
	m.tickErrors.Inc()
}

// RecordTransition counts an applied lifecycle transition.
func (m *MetricsService) RecordTransition(to models.EventStatus) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(string(to)).Inc()
}

// RecordRegistrationConflict counts a declined registration attempt.
func (m *MetricsService) RecordRegistrationConflict() {
	if m == nil {
		return
	}
	m.registrationConflicts.Inc()
}

// RecordMirrorRepair counts one participation reference rewrite.
func (m *MetricsService) RecordMirrorRepair() {
	if m == nil {
		return
	}
	m.mirrorRepairs.Inc()
}
