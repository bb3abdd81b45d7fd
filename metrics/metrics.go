// Package metrics exposes driver and measurement state to Prometheus.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"i4.energy/across/raingauge/gauge"
	"i4.energy/across/raingauge/rg15"
)

var (
	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rg15_operations_total",
		Help: "Finished gauge operations by outcome code.",
	}, []string{"op", "code"})
	Attempts = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rg15_operation_attempts",
		Help:    "Attempts consumed per gauge operation.",
		Buckets: prometheus.LinearBuckets(0, 1, 6),
	}, []string{"op"})
	Accumulation = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rg15_accumulation",
		Help: "Rainfall since the previous poll.",
	}, []string{"unit"})
	EventAccumulation = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rg15_event_accumulation",
		Help: "Rainfall of the current event.",
	}, []string{"unit"})
	TotalAccumulation = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rg15_total_accumulation",
		Help: "Rainfall since the last accumulation reset.",
	}, []string{"unit"})
	RainfallIntensity = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rg15_rainfall_intensity",
		Help: "Current rainfall rate per hour.",
	}, []string{"unit"})
	LastPoll = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rg15_last_poll_timestamp_seconds",
		Help: "Unix time of the last successful poll.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version"})

	ready atomic.Bool
)

// Observer feeds gauge operation outcomes into the counters above.
type Observer struct{}

func (Observer) ObserveOperation(op gauge.Op, attempts int, code gauge.Code) {
	Operations.WithLabelValues(string(op), code.String()).Inc()
	Attempts.WithLabelValues(string(op)).Observe(float64(attempts))
}

// SetMeasurement publishes a committed measurement.
func SetMeasurement(m gauge.Measurement, unit rg15.Unit, at time.Time) {
	u := unit.String()
	Accumulation.WithLabelValues(u).Set(m.Acc)
	EventAccumulation.WithLabelValues(u).Set(m.EventAcc)
	TotalAccumulation.WithLabelValues(u).Set(m.TotalAcc)
	RainfallIntensity.WithLabelValues(u).Set(m.RInt)
	LastPoll.Set(float64(at.Unix()))
}

// SetReady marks whether the gauge finished initialization.
func SetReady(v bool) { ready.Store(v) }

func IsReady() bool { return ready.Load() }

// Register adds /metrics and /ready to mux.
func Register(mux *http.ServeMux) {
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})
}
