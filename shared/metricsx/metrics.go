package metricsx

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	admissionDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_admission_decisions_total",
			Help: "Entry validation verdicts by result and reason.",
		},
		[]string{"result", "reason"},
	)
	badgeConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gate_badge_reserve_conflicts_total",
			Help: "Badge reservations refused because the badge was taken or out of service.",
		},
	)
	custodyAlertsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gate_custody_alerts_open",
			Help: "Unresolved badge custody alerts.",
		},
	)
	openAdmissions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gate_open_admissions",
			Help: "Subjects currently on site by category.",
		},
		[]string{"category"},
	)
	overstayedAdmissions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gate_overstayed_admissions",
			Help: "Open admissions past the permanence hard maximum.",
		},
	)
	kafkaConsumerLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kafka_consumer_lag",
			Help: "Kafka consumer lag by topic.",
		},
		[]string{"topic", "group"},
	)
	influxWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "influx_write_failures_total",
			Help: "Total InfluxDB write failures.",
		},
	)
	registryLookupFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "registry_lookup_failures_total",
			Help: "Total document registry lookup failures.",
		},
	)
	registryLookupSuccess = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "registry_lookup_success_total",
			Help: "Total document registry lookup successes.",
		},
	)
	registryLookupLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "registry_lookup_latency_seconds",
			Help:    "Document registry lookup latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
	asynqQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "asynq_queue_depth",
			Help: "Asynq queue depth by queue.",
		},
		[]string{"queue"},
	)
)

func Register() {
	prometheus.MustRegister(
		httpRequests, httpLatency,
		admissionDecisions, badgeConflicts, custodyAlertsOpen, openAdmissions, overstayedAdmissions,
		kafkaConsumerLag, influxWriteFailures,
		registryLookupFailures, registryLookupSuccess, registryLookupLatency,
		asynqQueueDepth,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)
		status := strconv.Itoa(lrw.statusCode)
		httpRequests.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpLatency.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
	})
}

func IncAdmissionDecision(result string, reason string) {
	admissionDecisions.WithLabelValues(result, reason).Inc()
}

func IncBadgeConflict() {
	badgeConflicts.Inc()
}

func SetCustodyAlertsOpen(n int) {
	custodyAlertsOpen.Set(float64(n))
}

func SetOpenAdmissions(category string, n int) {
	openAdmissions.WithLabelValues(category).Set(float64(n))
}

func SetOverstayedAdmissions(n int) {
	overstayedAdmissions.Set(float64(n))
}

func SetKafkaLag(topic string, group string, lag int64) {
	kafkaConsumerLag.WithLabelValues(topic, group).Set(float64(lag))
}

func IncInfluxWriteFailure() {
	influxWriteFailures.Inc()
}

func IncRegistryLookupFailure() {
	registryLookupFailures.Inc()
}

func IncRegistryLookupSuccess() {
	registryLookupSuccess.Inc()
}

func ObserveRegistryLookupLatency(d time.Duration) {
	registryLookupLatency.Observe(d.Seconds())
}

func SetAsynqQueueDepth(queue string, depth int) {
	asynqQueueDepth.WithLabelValues(queue).Set(float64(depth))
}

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
