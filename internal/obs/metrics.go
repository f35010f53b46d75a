package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	registrationsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "registrations_completed_total",
		Help: "Members admitted into the network.",
	})

	transactionsRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "transactions_recorded_total",
		Help: "Transactions committed to the ledger.",
	})

	payoutMinorUnits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payout_minor_units_total",
			Help: "Distributed payout value in minor units, by recipient role.",
		},
		[]string{"role"},
	)
)

// Init registers metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		registrationsCompleted, transactionsRecorded, payoutMinorUnits,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RegistrationCompleted increments the admission counter.
func RegistrationCompleted() { registrationsCompleted.Inc() }

// TransactionRecorded increments the ledger counter.
func TransactionRecorded() { transactionsRecorded.Inc() }

// PayoutDistributed accumulates distributed value per recipient role
// (seller, platform, upline).
func PayoutDistributed(role string, minorUnits int64) {
	if minorUnits <= 0 {
		return
	}
	payoutMinorUnits.WithLabelValues(role).Add(float64(minorUnits))
}

// Instrument wraps a handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush forwards flushes so SSE keeps working behind instrumentation.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
