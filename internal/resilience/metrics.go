package resilience

import "github.com/prometheus/client_golang/prometheus"

// Breaker collectors are process wide and labelled by upstream (shopify, vies).
var (
	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "upstream",
		Name:      "breaker_state",
		Help:      "Breaker state per upstream: 0=closed, 1=open, 2=half-open.",
	}, []string{"target"})
	BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "upstream",
		Name:      "breaker_transitions_total",
		Help:      "Breaker state transitions per upstream.",
	}, []string{"target", "from", "to"})
	BreakerOpenedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "upstream",
		Name:      "breaker_opened_total",
		Help:      "Times an upstream breaker tripped open.",
	}, []string{"target"})
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal)
}

func observeState(target string, s State) {
	BreakerState.WithLabelValues(target).Set(s.gauge())
}

func observeTransition(target string, from, to State) {
	BreakerTransitions.WithLabelValues(target, from.String(), to.String()).Inc()
	if to == Open {
		BreakerOpenedTotal.WithLabelValues(target).Inc()
	}
}
