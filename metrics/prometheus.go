package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lumenmq/prism/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Metric registration is deferred until the first recording so that
// constructing an unused collector has no side effects on the registry.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	messages                *prometheus.CounterVec
	overruns                *prometheus.CounterVec
	deserializationFailures *prometheus.CounterVec
	receiverFaults          *prometheus.CounterVec
	listeners               *prometheus.GaugeVec
	leakedSubscribers       prometheus.Counter
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer (uses prometheus.DefaultRegisterer if nil)
//   - namespace: metrics namespace (defaults to "prism" if empty)
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "prism"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.messages = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "subscriber",
			Name:      "messages_total",
			Help:      "Total decoded messages fanned out to listeners by subject.",
		}, []string{"subject"})

		p.overruns = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "subscriber",
			Name:      "overruns_total",
			Help:      "Total messages dropped due to full subscriber queues by subject.",
		}, []string{"subject"})

		p.deserializationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "subscriber",
			Name:      "deserialization_failures_total",
			Help:      "Total transfers dropped due to payload decoding failures by subject.",
		}, []string{"subject"})

		p.receiverFaults = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "subscriber",
			Name:      "receiver_faults_total",
			Help:      "Total transport faults that terminated a shared receiver by subject.",
		}, []string{"subject"})

		p.listeners = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "subscriber",
			Name:      "listeners",
			Help:      "Current number of listeners attached to a subject's shared receiver.",
		}, []string{"subject"})

		p.leakedSubscribers = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "subscriber",
			Name:      "leaked_total",
			Help:      "Total subscribers garbage collected without an explicit close.",
		})

		p.reg.MustRegister(p.messages)
		p.reg.MustRegister(p.overruns)
		p.reg.MustRegister(p.deserializationFailures)
		p.reg.MustRegister(p.receiverFaults)
		p.reg.MustRegister(p.listeners)
		p.reg.MustRegister(p.leakedSubscribers)
	})
}

// RecordMessage increments the fanned-out message counter for a subject.
func (p *PrometheusCollector) RecordMessage(subject string) {
	p.ensureRegistered()
	p.messages.WithLabelValues(subject).Inc()
}

// RecordOverrun increments the queue overrun counter for a subject.
func (p *PrometheusCollector) RecordOverrun(subject string) {
	p.ensureRegistered()
	p.overruns.WithLabelValues(subject).Inc()
}

// RecordDeserializationFailure increments the decode failure counter for a subject.
func (p *PrometheusCollector) RecordDeserializationFailure(subject string) {
	p.ensureRegistered()
	p.deserializationFailures.WithLabelValues(subject).Inc()
}

// RecordReceiverFault increments the receiver fault counter for a subject.
func (p *PrometheusCollector) RecordReceiverFault(subject string) {
	p.ensureRegistered()
	p.receiverFaults.WithLabelValues(subject).Inc()
}

// SetListenerCount sets the listener gauge for a subject.
func (p *PrometheusCollector) SetListenerCount(subject string, count int) {
	p.ensureRegistered()
	p.listeners.WithLabelValues(subject).Set(float64(count))
}

// RecordLeakedSubscriber increments the leaked subscriber counter.
func (p *PrometheusCollector) RecordLeakedSubscriber() {
	p.ensureRegistered()
	p.leakedSubscribers.Inc()
}
