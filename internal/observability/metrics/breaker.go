package metrics

import "github.com/prometheus/client_golang/prometheus"

func newBreakerTransitions() *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state transitions by remote service.",
		},
		[]string{"service", "remote", "from", "to"},
	)
}

func breakerObserver(counter *prometheus.CounterVec, service string) func(remote, from, to string) {
	return func(remote, from, to string) {
		counter.WithLabelValues(service, remote, from, to).Inc()
	}
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
