package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records the outcome of payment reconciliations and
// gateway verification round-trips.
type PaymentMetrics struct {
	reconciled    *prometheus.CounterVec
	verifyLatency *prometheus.HistogramVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	reconciled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_reconciliations_total",
		Help: "Payment reconciliations grouped by resulting status.",
	}, []string{"status", "source"})
	verifyLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_gateway_verify_seconds",
		Help:    "Latency of gateway verification calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"gateway"})
	reg.MustRegister(reconciled, verifyLatency)
	return &PaymentMetrics{
		reconciled:    reconciled,
		verifyLatency: verifyLatency,
	}
}

// IncReconciled counts a reconciliation that ended in status, attributed
// to a source such as "callback", "verify" or "cron".
func (p *PaymentMetrics) IncReconciled(status, source string) {
	if p == nil || p.reconciled == nil {
		return
	}
	p.reconciled.WithLabelValues(normalizeLabel(status), normalizeLabel(source)).Inc()
}

// ObserveVerify records the latency of one gateway verification call.
func (p *PaymentMetrics) ObserveVerify(gateway string, duration time.Duration) {
	if p == nil || p.verifyLatency == nil {
		return
	}
	p.verifyLatency.WithLabelValues(normalizeLabel(gateway)).Observe(duration.Seconds())
}
