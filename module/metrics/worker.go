package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespaceWorker = "worldtree"

	subsystemProcessor = "processor"
	subsystemHost      = "host"
)

// WorkerCollector implements metric collection for the request processor and
// the host-runtime client.
type WorkerCollector struct {
	requestsCompleted prometheus.Counter
	requestsFailed    prometheus.Counter
	stateRejections   prometheus.Counter
	pollFailures      prometheus.Counter
	requestsInFlight  prometheus.Gauge
	hostCallDuration  *prometheus.HistogramVec
}

func NewWorkerCollector(registerer prometheus.Registerer) *WorkerCollector {
	requestsCompleted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespaceWorker,
		Subsystem: subsystemProcessor,
		Name:      "requests_completed_total",
		Help:      "number of analysis requests completed with a successful on-chain submission",
	})
	requestsFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespaceWorker,
		Subsystem: subsystemProcessor,
		Name:      "requests_failed_total",
		Help:      "number of analysis requests reported failed on-chain",
	})
	stateRejections := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespaceWorker,
		Subsystem: subsystemProcessor,
		Name:      "state_rejections_total",
		Help:      "number of submissions rejected by the contract status gate, treated as already processed",
	})
	pollFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespaceWorker,
		Subsystem: subsystemProcessor,
		Name:      "poll_failures_total",
		Help:      "number of failed attempts to fetch the pending request set",
	})
	requestsInFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespaceWorker,
		Subsystem: subsystemProcessor,
		Name:      "requests_in_flight",
		Help:      "number of analysis requests currently being processed",
	})
	hostCallDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespaceWorker,
		Subsystem: subsystemHost,
		Name:      "call_duration_seconds",
		Help:      "duration of calls to the host runtime socket",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30},
	}, []string{"method"})
	registerer.MustRegister(
		requestsCompleted,
		requestsFailed,
		stateRejections,
		pollFailures,
		requestsInFlight,
		hostCallDuration,
	)

	return &WorkerCollector{
		requestsCompleted: requestsCompleted,
		requestsFailed:    requestsFailed,
		stateRejections:   stateRejections,
		pollFailures:      pollFailures,
		requestsInFlight:  requestsInFlight,
		hostCallDuration:  hostCallDuration,
	}
}

func (w *WorkerCollector) RequestCompleted() {
	w.requestsCompleted.Inc()
}

func (w *WorkerCollector) RequestFailed() {
	w.requestsFailed.Inc()
}

func (w *WorkerCollector) StateRejection() {
	w.stateRejections.Inc()
}

func (w *WorkerCollector) PollFailure() {
	w.pollFailures.Inc()
}

func (w *WorkerCollector) RequestStarted() {
	w.requestsInFlight.Inc()
}

func (w *WorkerCollector) RequestFinished() {
	w.requestsInFlight.Dec()
}

func (w *WorkerCollector) HostCall(method string, duration time.Duration) {
	w.hostCallDuration.WithLabelValues(method).Observe(duration.Seconds())
}
