package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	WorkflowTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docflow", Name: "workflow_transitions_total", Help: "Number of successfully applied workflow transitions by action."},
		[]string{"action"},
	)
	WorkflowTransitionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docflow", Name: "workflow_transition_failures_total", Help: "Number of rejected workflow transitions by failure kind."},
		[]string{"reason"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docflow", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docflow", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(WorkflowTransitions)
	reg.MustRegister(WorkflowTransitionFailures)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
