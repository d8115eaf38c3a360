package compliance

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	actions        *prometheus.CounterVec
	sweeps         *prometheus.CounterVec
	sweepDuration  prometheus.Histogram
	failedMessages prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "neighborguard",
			Subsystem: "compliance",
			Name:      "actions_total",
			Help:      "Compliance actions taken, by kind.",
		}, []string{"action"}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "neighborguard",
			Subsystem: "compliance",
			Name:      "sweeps_total",
			Help:      "Compliance sweeps run, by result.",
		}, []string{"result"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "neighborguard",
			Subsystem: "compliance",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of compliance sweeps.",
			Buckets:   prometheus.DefBuckets,
		}),
		failedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "neighborguard",
			Subsystem: "compliance",
			Name:      "failed_messages_total",
			Help:      "Compliance notifications that could not be delivered.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.actions, m.sweeps, m.sweepDuration, m.failedMessages)
	}
	return m
}
