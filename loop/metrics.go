package loop

import "github.com/prometheus/client_golang/prometheus"

// metrics is optional Prometheus instrumentation, enabled via WithMetrics.
// Disabled by default: the core scheduling contract makes no fairness or
// observability guarantees, but when a deployment wants them it reaches
// for client_golang rather than a bespoke counter.
type metrics struct {
	queueDepth prometheus.Gauge
	executed   prometheus.Counter
}

func newMetrics(namespace string) *metrics {
	m := &metrics{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "ready_queue_depth",
			Help:      "Number of callbacks currently queued for execution.",
		}),
		executed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "callbacks_executed_total",
			Help:      "Total number of callbacks executed by the loop.",
		}),
	}
	prometheus.MustRegister(m.queueDepth, m.executed)
	return m
}
