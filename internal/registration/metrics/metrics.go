package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the registration and login flows.
type Metrics struct {
	RegistrationsStarted   prometheus.Counter
	RegistrationsResumed   prometheus.Counter
	RegistrationsCompleted prometheus.Counter
	LoginsStarted          prometheus.Counter
	LoginsCompleted        prometheus.Counter
	SessionsIssued         prometheus.Counter
}

// New creates and registers all registration metrics.
func New() *Metrics {
	return &Metrics{
		RegistrationsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "garrison_registrations_started_total",
			Help: "Total registrations started",
		}),
		RegistrationsResumed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "garrison_registrations_resumed_total",
			Help: "Total registrations resumed from a prior partial state",
		}),
		RegistrationsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "garrison_registrations_completed_total",
			Help: "Total registrations completed",
		}),
		LoginsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "garrison_logins_started_total",
			Help: "Total OTP logins started",
		}),
		LoginsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "garrison_logins_completed_total",
			Help: "Total OTP logins completed",
		}),
		SessionsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "garrison_sessions_issued_total",
			Help: "Total auth sessions minted",
		}),
	}
}
