package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for verification code operations.
type Metrics struct {
	CodesIssued    *prometheus.CounterVec
	VerifySuccess  *prometheus.CounterVec
	VerifyFailure  *prometheus.CounterVec
	ResendRejected *prometheus.CounterVec
}

// New creates and registers all verification metrics.
func New() *Metrics {
	return &Metrics{
		CodesIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "garrison_otp_codes_issued_total",
			Help: "Total verification codes issued, by channel",
		}, []string{"channel"}),
		VerifySuccess: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "garrison_otp_verify_success_total",
			Help: "Total successful code verifications, by channel",
		}, []string{"channel"}),
		VerifyFailure: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "garrison_otp_verify_failure_total",
			Help: "Total failed code verifications, by channel and reason",
		}, []string{"channel", "reason"}),
		ResendRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "garrison_otp_resend_rejected_total",
			Help: "Total resend attempts rejected by the cooldown, by channel",
		}, []string{"channel"}),
	}
}
