package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CredentialsSelected tracks rotation winners per provider and tier
	CredentialsSelected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healer_credentials_selected_total",
			Help: "Total number of credentials handed out by the rotation pool",
		},
		[]string{"provider", "tier"},
	)

	// CredentialsExhausted tracks quota-triggered exhaustion transitions
	CredentialsExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healer_credentials_exhausted_total",
			Help: "Total number of credential transitions into exhausted status",
		},
		[]string{"provider"},
	)

	// QuotaSignals tracks predictive quota decisions other than allow
	QuotaSignals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healer_quota_signals_total",
			Help: "Total number of predictive quota signals",
		},
		[]string{"action"},
	)

	// QueueDepth tracks the current number of active replay records
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "healer_queue_depth",
			Help: "Number of replay records in the active queue",
		},
	)

	// QueueReplays tracks replay attempts by outcome
	QueueReplays = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healer_queue_replays_total",
			Help: "Total number of replay attempts by outcome",
		},
		[]string{"outcome"},
	)

	// QueueOverflow tracks overflow signals emitted on enqueue
	QueueOverflow = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "healer_queue_overflow_total",
			Help: "Total number of queue overflow signals",
		},
	)

	// DeadAlerts tracks dead-letter alert threshold breaches
	DeadAlerts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "healer_queue_dead_alerts_total",
			Help: "Total number of dead-letter rate alerts",
		},
	)
)
